package compiler

import (
	"github.com/taintscript/seclua/value"
	"github.com/taintscript/seclua/vm"
)

// varTarget is an assignable place: a local register, an upvalue slot, a
// global name, or a table field. Every assignment statement and funcname
// desugaring resolves to one of these before emitting its read/write.
type varTarget interface {
	read(fs *funcState, dest int)
	write(fs *funcState, src int)
}

type localTarget struct{ reg int }

func (t localTarget) read(fs *funcState, dest int)  { fs.emit(vm.OpMove, dest, t.reg, 0) }
func (t localTarget) write(fs *funcState, src int) { fs.emit(vm.OpMove, t.reg, src, 0) }

type upvalTarget struct{ index int }

func (t upvalTarget) read(fs *funcState, dest int)  { fs.emit(vm.OpGetUpval, dest, t.index, 0) }
func (t upvalTarget) write(fs *funcState, src int) { fs.emit(vm.OpSetUpval, src, t.index, 0) }

type globalTarget struct{ name string }

func (t globalTarget) read(fs *funcState, dest int) {
	idx := fs.addConstant(constKey{"s", t.name}, value.Str(t.name))
	fs.emitBx(vm.OpGetGlobal, dest, idx)
}

func (t globalTarget) write(fs *funcState, src int) {
	idx := fs.addConstant(constKey{"s", t.name}, value.Str(t.name))
	fs.emitBx(vm.OpSetGlobal, src, idx)
}

// fieldTarget is t[key] where tableReg already holds t and key is an
// RK-encoded operand (either a register index or a constant-pool index
// with rkConstBit set).
type fieldTarget struct {
	tableReg int
	key      int
}

func (t fieldTarget) read(fs *funcState, dest int) {
	fs.emit(vm.OpGetTable, dest, t.tableReg, t.key)
}

func (t fieldTarget) write(fs *funcState, src int) {
	fs.emit(vm.OpSetTable, t.tableReg, t.key, src)
}

// constKey is the dedup key for funcState.constIndex; kind distinguishes
// number/string constants of equal Go value from colliding.
type constKey struct {
	kind string
	val  any
}

// resolveVarTarget classifies name as a local, an upvalue (creating the
// capture chain as needed), or a global — the reference language's own
// singlevaraux resolution order.
func (p *parser) resolveVarTarget(name string) varTarget {
	if reg, ok := p.fs.resolveLocal(name); ok {
		return localTarget{reg: reg}
	}
	if idx, ok := p.fs.resolveUpval(name); ok {
		return upvalTarget{index: idx}
	}
	return globalTarget{name: name}
}
