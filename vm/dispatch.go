// VM dispatch (spec component F): the register-based bytecode
// interpreter. Every opcode that moves data follows the write-barrier
// table in spec §4.E via the `barrier` package; this file is deliberately
// thin glue between decoded instructions and that package plus `vmstate`.
package vm

import (
	"github.com/taintscript/seclua/barrier"
	"github.com/taintscript/seclua/label"
	"github.com/taintscript/seclua/value"
)

func (th *Thread) callLua(cl *Closure, args []value.Value, entryTaint *label.Label) ([]value.Value, *Error) {
	p := cl.Proto
	base := th.Top()
	th.SetTop(base + p.MaxStackSize)

	for i := 0; i < p.MaxStackSize; i++ {
		var src value.Value
		if i < len(args) && i < p.NumParams {
			src = args[i]
		}
		var dst value.Value
		barrier.StackMove(&dst, src, th.taint)
		th.stack[base+i] = dst
	}

	var varargs []value.Value
	if p.IsVararg && len(args) > p.NumParams {
		varargs = append(varargs, args[p.NumParams:]...)
	}

	ci := CallInfo{Closure: cl, Base: base, NumVarargs: len(varargs), Insecure: cl.Header.Taint != nil}
	ci.Frame.Saved = entryTaint
	th.frames = append(th.frames, ci)
	th.varargs = append(th.varargs, varargs)

	results, err := th.run()

	th.closeUpvalsFrom(&ci, 0)
	th.varargs = th.varargs[:len(th.varargs)-1]
	th.frames = th.frames[:len(th.frames)-1]
	th.SetTop(base)

	return results, err
}

// run executes instructions for the current (topmost) frame until a
// RETURN, an error, or a yield unwinds it.
func (th *Thread) run() ([]value.Value, *Error) {
	for {
		if budget := th.state.Budget; budget != nil {
			if err := budget.Tick(); err != nil {
				return nil, newRuntimeError("%s", err.Error())
			}
		}

		ci := &th.frames[len(th.frames)-1]
		p := ci.Closure.Proto
		if ci.PC >= len(p.Code) {
			return nil, nil
		}
		instr := p.Code[ci.PC]
		ci.PC++

		switch instr.Op {
		case OpLoadK:
			th.setReg(ci, instr.A, loadImmediate(p.Constants[instr.Bx()], th))

		case OpLoadBool:
			th.setReg(ci, instr.A, immediateBool(instr.B != 0, th))

		case OpLoadNil:
			for r := instr.A; r <= instr.B; r++ {
				th.setReg(ci, r, immediateNil(th))
			}

		case OpMove:
			var dst value.Value
			barrier.StackMove(&dst, th.reg(ci, instr.B), th.taint)
			th.setRegRaw(ci, instr.A, dst)

		case OpGetGlobal:
			name := p.Constants[instr.Bx()].Str
			raw := th.state.globals.Get(value.Str(name))
			var dst value.Value
			barrier.StackMove(&dst, raw, th.taint)
			th.setRegRaw(ci, instr.A, dst)

		case OpSetGlobal:
			name := p.Constants[instr.Bx()].Str
			th.state.globals.SetTable(value.Str(name), th.reg(ci, instr.A))

		case OpGetUpval:
			raw := ci.Closure.Upvalues[instr.B].Get()
			var dst value.Value
			barrier.StackMove(&dst, raw, th.taint)
			th.setRegRaw(ci, instr.A, dst)

		case OpSetUpval:
			ci.Closure.Upvalues[instr.B].Set(th.reg(ci, instr.A))

		case OpGetTable:
			tbl, err := th.asTable(th.reg(ci, instr.B))
			if err != nil {
				return nil, err
			}
			key := th.rkValue(ci, instr.C)
			raw := tbl.Get(key)
			var dst value.Value
			barrier.StackMove(&dst, raw, th.taint)
			th.setRegRaw(ci, instr.A, dst)

		case OpSetTable:
			tbl, err := th.asTable(th.reg(ci, instr.A))
			if err != nil {
				return nil, err
			}
			key := th.rkValue(ci, instr.B)
			tbl.SetTable(key, th.rkValue(ci, instr.C))

		case OpSelf:
			recv := th.reg(ci, instr.B)
			tbl, err := th.asTable(recv)
			if err != nil {
				return nil, err
			}
			key := th.rkValue(ci, instr.C)
			var method value.Value
			barrier.StackMove(&method, tbl.Get(key), th.taint)
			th.setRegRaw(ci, instr.A+1, recv)
			th.setRegRaw(ci, instr.A, method)

		case OpNewTable:
			th.setRegRaw(ci, instr.A, th.NewTableValue())

		case OpSetList:
			// Table-constructor array entries are emitted as individual
			// SETTABLE instructions by this compiler; SETLIST is reserved
			// for a future array-bulk-store optimization and never emitted.

		case OpAdd, OpSub, OpMul, OpDiv, OpMod, OpPow:
			if err := th.arith(ci, instr); err != nil {
				return nil, err
			}

		case OpUnm:
			n, err := th.asNumber(th.reg(ci, instr.B))
			if err != nil {
				return nil, err
			}
			th.setReg(ci, instr.A, immediateNum(-n, th))

		case OpNot:
			th.setReg(ci, instr.A, immediateBool(!th.reg(ci, instr.B).Truthy(), th))

		case OpLen:
			v := th.reg(ci, instr.B)
			switch v.Type {
			case value.TypeString:
				th.setReg(ci, instr.A, immediateNum(float64(len(v.Str)), th))
			case value.TypeTable:
				th.setReg(ci, instr.A, immediateNum(float64(v.Ref.(*Table).Len()), th))
			default:
				return nil, newRuntimeError("attempt to get length of a %s value", v.Type)
			}

		case OpConcat:
			s := ""
			for r := instr.B; r <= instr.C; r++ {
				s += th.reg(ci, r).String()
			}
			th.setReg(ci, instr.A, loadImmediate(StrValue(th.state, th, s), th))

		case OpEq:
			eq := value.Equal(th.rkValue(ci, instr.B), th.rkValue(ci, instr.C))
			if eq == (instr.A != 0) {
				ci.PC++
			}

		case OpLt, OpLe:
			lt, err := th.compare(ci, instr)
			if err != nil {
				return nil, err
			}
			if lt == (instr.A != 0) {
				ci.PC++
			}

		case OpJmp:
			ci.PC += instr.SBx()

		case OpTest:
			if th.reg(ci, instr.A).Truthy() != (instr.C != 0) {
				ci.PC++
			}

		case OpTestSet:
			v := th.reg(ci, instr.B)
			if v.Truthy() == (instr.C != 0) {
				th.setRegRaw(ci, instr.A, v)
			} else {
				ci.PC++
			}

		case OpForPrep:
			initV, _ := th.asNumber(th.reg(ci, instr.A))
			stepV, _ := th.asNumber(th.reg(ci, instr.A+2))
			th.setReg(ci, instr.A, immediateNum(initV-stepV, th))
			ci.PC += instr.SBx()

		case OpForLoop:
			step, _ := th.asNumber(th.reg(ci, instr.A+2))
			cur, _ := th.asNumber(th.reg(ci, instr.A))
			limit, _ := th.asNumber(th.reg(ci, instr.A+1))
			cur += step
			more := (step >= 0 && cur <= limit) || (step < 0 && cur >= limit)
			th.setReg(ci, instr.A, immediateNum(cur, th))
			if more {
				var dst value.Value
				barrier.StackMove(&dst, immediateNum(cur, th), th.taint)
				th.setRegRaw(ci, instr.A+3, dst)
				ci.PC += instr.SBx()
			}

		case OpVararg:
			extras := th.varargs[len(th.varargs)-1]
			n := instr.B - 1
			if n < 0 {
				n = len(extras)
			}
			for i := 0; i < n; i++ {
				var v value.Value
				if i < len(extras) {
					v = extras[i]
				}
				var dst value.Value
				barrier.StackMove(&dst, v, th.taint)
				th.setRegRaw(ci, instr.A+i, dst)
			}

		case OpClosure:
			closure := th.buildClosure(ci, p.Prototypes[instr.Bx()])
			th.setRegRaw(ci, instr.A, closure)

		case OpClose:
			th.closeUpvalsFrom(ci, instr.A)

		case OpCall:
			results, err := th.execCall(ci, instr)
			if err != nil {
				return nil, err
			}
			for i, r := range results {
				th.setRegRaw(ci, instr.A+i, r)
			}

		case OpTailCall:
			results, err := th.execCall(ci, instr)
			if err != nil {
				return nil, err
			}
			return results, nil

		case OpReturn:
			n := instr.B - 1
			results := make([]value.Value, n)
			for i := 0; i < n; i++ {
				results[i] = th.reg(ci, instr.A+i)
			}
			return results, nil
		}
	}
}
