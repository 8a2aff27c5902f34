package compiler

import (
	"github.com/taintscript/seclua/bytecode"
	"github.com/taintscript/seclua/value"
	"github.com/taintscript/seclua/vm"
)

// localVar is one in-scope local variable: its name and the register it
// occupies.
type localVar struct {
	name string
	reg  int
}

// upvalDesc records how one of a function's upvalues is bound in its
// enclosing function: either a parent local register (fromLocal=true,
// emitted as an OpMove pseudo-instruction) or a parent upvalue index
// (emitted as OpGetUpval), matching buildClosure's expectations exactly.
type upvalDesc struct {
	name      string
	fromLocal bool
	index     int
}

// funcState is one function's compile-time state: the reference
// language's own FuncState/register-allocator shape, collapsed to what
// this deliberately small compiler needs.
type funcState struct {
	parent *funcState

	source   string
	isVararg bool

	locals  []localVar
	freeReg int
	maxReg  int

	code  []vm.Instr
	lines []int

	constants   []value.Value
	constIndex  map[any]int

	upvals []upvalDesc

	children []*funcState
	protos   []*vm.Proto

	breakJumps [][]int // one slice of pending JMP patch points per enclosing loop
}

func newFuncState(parent *funcState, source string) *funcState {
	return &funcState{
		parent:     parent,
		source:     source,
		constIndex: make(map[any]int),
	}
}

// reserve allocates n fresh temporary registers and returns the first,
// tracking the high-water mark for Proto.MaxStackSize.
func (fs *funcState) reserve(n int) int {
	r := fs.freeReg
	fs.freeReg += n
	if fs.freeReg > fs.maxReg {
		fs.maxReg = fs.freeReg
	}
	return r
}

// freeTo releases every temporary register at or above r.
func (fs *funcState) freeTo(r int) {
	fs.freeReg = r
}

func (fs *funcState) emit(op vm.Opcode, a, b, c int) int {
	fs.code = append(fs.code, vm.Instr{Op: op, A: a, B: b, C: c})
	fs.lines = append(fs.lines, 0)
	return len(fs.code) - 1
}

func (fs *funcState) emitBx(op vm.Opcode, a, bx int) int {
	b := bx >> 9
	c := bx & 0x1FF
	return fs.emit(op, a, b, c)
}

func (fs *funcState) emitSBx(op vm.Opcode, a, sbx int) int {
	const bias = (1<<18 - 1) >> 1
	return fs.emitBx(op, a, sbx+bias)
}

// emitJumpTo emits a jump-family instruction (JMP/FORPREP/FORLOOP) whose
// target is already known (a backward branch), computing sbx directly
// rather than patching later.
func (fs *funcState) emitJumpTo(op vm.Opcode, a, targetPC int) int {
	pcAfter := len(fs.code) + 1
	return fs.emitSBx(op, a, targetPC-pcAfter)
}

func (fs *funcState) patchJumpHere(pc int) {
	target := len(fs.code) - pc - 1
	instr := fs.code[pc]
	const bias = (1<<18 - 1) >> 1
	bx := target + bias
	instr.B = bx >> 9
	instr.C = bx & 0x1FF
	fs.code[pc] = instr
}

func (fs *funcState) addConstant(key any, v value.Value) int {
	if idx, ok := fs.constIndex[key]; ok {
		return idx
	}
	idx := len(fs.constants)
	fs.constants = append(fs.constants, v)
	fs.constIndex[key] = idx
	return idx
}

func (fs *funcState) constK(idx int) int {
	return idx | rkConstBit
}

const rkConstBit = 1 << 8

// declareLocal allocates reg for name, shadowing any local of the same
// name already in scope.
func (fs *funcState) declareLocal(name string, reg int) {
	fs.locals = append(fs.locals, localVar{name: name, reg: reg})
}

// resolveLocal looks up name among fs's own locals, most recently
// declared first (shadowing).
func (fs *funcState) resolveLocal(name string) (reg int, ok bool) {
	for i := len(fs.locals) - 1; i >= 0; i-- {
		if fs.locals[i].name == name {
			return fs.locals[i].reg, true
		}
	}
	return 0, false
}

// resolveUpval finds or creates an upvalue in fs bound to name, searching
// fs.parent's locals first and then fs.parent's own upvalues
// recursively — the reference language's singlevaraux walk.
func (fs *funcState) resolveUpval(name string) (index int, ok bool) {
	for i, u := range fs.upvals {
		if u.name == name {
			return i, true
		}
	}
	if fs.parent == nil {
		return 0, false
	}
	if reg, ok := fs.parent.resolveLocal(name); ok {
		fs.upvals = append(fs.upvals, upvalDesc{name: name, fromLocal: true, index: reg})
		return len(fs.upvals) - 1, true
	}
	if idx, ok := fs.parent.resolveUpval(name); ok {
		fs.upvals = append(fs.upvals, upvalDesc{name: name, fromLocal: false, index: idx})
		return len(fs.upvals) - 1, true
	}
	return 0, false
}

// toProto converts the accumulated function state into a runtime
// vm.Proto, recursing into already-compiled children.
func (fs *funcState) toProto(numParams int, isVararg bool, lineDefined int) *vm.Proto {
	p := &vm.Proto{
		Source:       fs.source,
		LineDefined:  lineDefined,
		NumParams:    numParams,
		IsVararg:     isVararg,
		MaxStackSize: fs.maxReg + 2,
		NumUpvalues:  len(fs.upvals),
		Code:         fs.code,
		Lines:        fs.lines,
		Constants:    fs.constants,
		Prototypes:   fs.protos,
		UpvalueNames: upvalNames(fs.upvals),
		Locals:       []bytecode.LocalVar{},
	}
	return p
}

func upvalNames(ds []upvalDesc) []string {
	names := make([]string, len(ds))
	for i, d := range ds {
		names[i] = d.name
	}
	return names
}
