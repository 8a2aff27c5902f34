// Register access, the RK (register-or-constant) operand convention, and
// the handful of opcode helpers dispatch.go's run loop delegates to.
// Grounded on the reference language's own RK encoding (the high bit of a
// B/C operand selects the constant pool over the register file) and on
// spec §4.F's per-opcode taint rules.
package vm

import (
	"math"

	"github.com/taintscript/seclua/barrier"
	"github.com/taintscript/seclua/object"
	"github.com/taintscript/seclua/value"
)

// rkConstBit marks a B/C operand as a constant-pool index rather than a
// register index. Reserving the top bit caps constant operands at 256
// per instruction, which the compiler's constant-pool layout respects.
const rkConstBit = 1 << 8

// reg reads register idx of the current frame (absolute stack index
// ci.Base+idx).
func (th *Thread) reg(ci *CallInfo, idx int) value.Value {
	return th.stack[ci.Base+idx]
}

// setReg writes an already-barrier-stamped value (typically the output
// of loadImmediate/immediateBool/immediateNum/immediateNil) into a
// register. It is the same write as setRegRaw; the two names document
// which call sites already ran a barrier rule versus which are handed a
// literal that still needs one.
func (th *Thread) setReg(ci *CallInfo, idx int, v value.Value) {
	th.stack[ci.Base+idx] = v
}

// setRegRaw writes a value that has already been routed through a
// barrier function (StackMove, TableStore, ...) directly into a
// register, with no further stamping.
func (th *Thread) setRegRaw(ci *CallInfo, idx int, v value.Value) {
	th.stack[ci.Base+idx] = v
}

// rkValue resolves an RK-encoded operand: a constant-pool entry if the
// high bit is set, otherwise a register read.
func (th *Thread) rkValue(ci *CallInfo, idx int) value.Value {
	if idx&rkConstBit != 0 {
		return ci.Closure.Proto.Constants[idx&^rkConstBit]
	}
	return th.reg(ci, idx)
}

func (th *Thread) asTable(v value.Value) (*Table, *Error) {
	if v.Type != value.TypeTable {
		return nil, newRuntimeError("attempt to index a %s value", v.Type)
	}
	return v.Ref.(*Table), nil
}

func (th *Thread) asNumber(v value.Value) (float64, *Error) {
	if v.Type != value.TypeNumber {
		return 0, newRuntimeError("attempt to perform arithmetic on a %s value", v.Type)
	}
	return v.Number, nil
}

// arith implements ADD/SUB/MUL/DIV/MOD/POW (spec §4.F: "the result
// stack slot is stamped with the ambient taint; operand value taints do
// not combine pairwise" — the result is written via the same Immediate
// rule a literal load uses, not by merging the two operands' taints).
func (th *Thread) arith(ci *CallInfo, instr Instr) *Error {
	x, err := th.asNumber(th.rkValue(ci, instr.B))
	if err != nil {
		return err
	}
	y, err := th.asNumber(th.rkValue(ci, instr.C))
	if err != nil {
		return err
	}

	var result float64
	switch instr.Op {
	case OpAdd:
		result = x + y
	case OpSub:
		result = x - y
	case OpMul:
		result = x * y
	case OpDiv:
		result = x / y
	case OpMod:
		result = math.Mod(x, y)
	case OpPow:
		result = math.Pow(x, y)
	}

	th.setReg(ci, instr.A, immediateNum(result, th))
	return nil
}

// compare implements LT/LE over numbers and strings (equality, OpEq, is
// handled directly in run() via value.Equal since it needs no type
// dispatch).
func (th *Thread) compare(ci *CallInfo, instr Instr) (bool, *Error) {
	a := th.rkValue(ci, instr.B)
	b := th.rkValue(ci, instr.C)

	switch {
	case a.Type == value.TypeNumber && b.Type == value.TypeNumber:
		if instr.Op == OpLt {
			return a.Number < b.Number, nil
		}
		return a.Number <= b.Number, nil
	case a.Type == value.TypeString && b.Type == value.TypeString:
		if instr.Op == OpLt {
			return a.Str < b.Str, nil
		}
		return a.Str <= b.Str, nil
	default:
		return false, newRuntimeError("attempt to compare %s with %s", a.Type, b.Type)
	}
}

// execCall decodes CALL/TAILCALL's A/B/C operands (A: function register,
// B-1: argument count, C-1: wanted result count; B==0 or C==0 meaning
// "use every value up to the current top" is not supported by this
// compiler, which always emits an exact count) and delegates to Call.
func (th *Thread) execCall(ci *CallInfo, instr Instr) ([]value.Value, *Error) {
	fn := th.reg(ci, instr.A)

	nargs := instr.B - 1
	args := make([]value.Value, nargs)
	for i := 0; i < nargs; i++ {
		args[i] = th.reg(ci, instr.A+1+i)
	}

	results, err := th.Call(fn, args)
	if err != nil {
		return nil, err
	}

	nwant := instr.C - 1
	if nwant >= 0 && nwant != len(results) {
		adjusted := make([]value.Value, nwant)
		copy(adjusted, results)
		results = adjusted
	}
	return results, nil
}

// buildClosure executes a CLOSURE instruction: it reads the per-upvalue
// pseudo-instructions the compiler emits immediately after CLOSURE in
// the enclosing prototype's code (one OpMove per parent-local capture,
// one OpGetUpval per parent-upvalue capture — the reference language's
// own convention for encoding a closure's upvalue bindings), builds the
// Upvalue slice, and stamps the new Closure's object taint via the
// ordinary allocation-hook priority (spec §4.F CLOSURE: "newcltaint or
// stacktaint", which object.Alloc already resolves precisely since it
// also checks newgctaint first).
func (th *Thread) buildClosure(ci *CallInfo, proto *Proto) value.Value {
	cl := &Closure{Proto: proto, Name: proto.Source}
	cl.Header = object.Alloc(object.KindClosure, th.taint)

	enclosing := ci.Closure.Proto
	cl.Upvalues = make([]*Upvalue, proto.NumUpvalues)
	for i := 0; i < proto.NumUpvalues; i++ {
		desc := enclosing.Code[ci.PC]
		ci.PC++
		if desc.Op == OpMove {
			cl.Upvalues[i] = th.findOrCreateOpenUpvalue(ci, desc.B)
		} else {
			cl.Upvalues[i] = ci.Closure.Upvalues[desc.B]
		}
	}

	return value.Value{Type: value.TypeFunction, Ref: cl}
}

// findOrCreateOpenUpvalue returns the single shared open Upvalue over
// ci's local register localReg, creating it on first capture so that
// multiple closures over the same local observe each other's writes.
func (th *Thread) findOrCreateOpenUpvalue(ci *CallInfo, localReg int) *Upvalue {
	abs := ci.Base + localReg
	if th.openUpvals == nil {
		th.openUpvals = make(map[int]*Upvalue)
	}
	if u, ok := th.openUpvals[abs]; ok {
		return u
	}
	u := newOpenUpvalue(th, abs)
	th.openUpvals[abs] = u
	return u
}

// closeUpvalsFrom closes every open upvalue at or above register idx of
// the current frame (CLOSE, and implicitly on frame return), detaching
// them from the stack so they survive the frame's slots being reused.
func (th *Thread) closeUpvalsFrom(ci *CallInfo, idx int) {
	floor := ci.Base + idx
	for abs, u := range th.openUpvals {
		if abs >= floor {
			u.Close()
			delete(th.openUpvals, abs)
		}
	}
}

// loadImmediate applies the Immediate write-barrier rule (spec §4.E) to
// a raw constant-pool value being loaded into a register: it carries no
// source value taint of its own, so the destination is stamped with the
// thread's ambient write-masked taint.
func loadImmediate(v value.Value, th *Thread) value.Value {
	dst := v
	dst.Taint = nil
	barrier.Immediate(&dst, th.taint)
	return dst
}

func immediateBool(b bool, th *Thread) value.Value {
	return loadImmediate(value.Boolean(b), th)
}

func immediateNil(th *Thread) value.Value {
	return loadImmediate(value.Nil, th)
}

func immediateNum(n float64, th *Thread) value.Value {
	return loadImmediate(value.Num(n), th)
}
