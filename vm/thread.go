package vm

import (
	"github.com/taintscript/seclua/object"
	"github.com/taintscript/seclua/value"
	"github.com/taintscript/seclua/vmstate"
)

// ThreadStatus mirrors the reference language's coroutine status values.
type ThreadStatus uint8

const (
	StatusRunning ThreadStatus = iota
	StatusSuspended
	StatusNormal
	StatusDead
)

// CallInfo is one activation record (spec §4.D "per-frame savedtaint").
type CallInfo struct {
	vmstate.Frame
	Closure  *Closure
	PC       int
	Base     int // index into Thread.stack of this frame's register 0
	NumVarargs int
	Insecure bool // this frame's closure had object taint at call time
}

// Thread is one coroutine: a value stack, a call-frame stack, and the
// taint substate vmstate.Thread tracks (spec components D, F, G, J). It
// embeds object.Header so a coroutine can be wrapped as a script-visible
// value.Value (TypeThread) the same way Table and Closure are.
type Thread struct {
	object.Header

	taint   *vmstate.Thread
	state   *State
	stack   []value.Value
	frames  []CallInfo
	varargs [][]value.Value
	status  ThreadStatus

	// openUpvals maps an absolute stack index to the single shared
	// Upvalue open over it, so that two closures capturing the same
	// local see each other's writes until the frame closes (spec §4.F
	// CLOSURE, the reference language's open-upvalue sharing).
	openUpvals map[int]*Upvalue

	// resumer is the thread that resumed this one, nil for the main
	// thread or a thread that has never been resumed.
	resumer *Thread

	// entry, resumeCh, yieldCh, and started back Resume/Yield (spec
	// component J): this interpreter has no native suspension point
	// inside run(), so a coroutine's body executes on its own goroutine
	// and Resume/Yield rendezvous across a pair of unbuffered channels —
	// at most one of {resumer-goroutine, coroutine-goroutine} is ever
	// runnable at a time, so this never introduces real concurrency, only
	// suspension.
	entry    value.Value
	resumeCh chan []value.Value
	yieldCh  chan yieldMsg
	started  bool
}

type yieldMsg struct {
	values []value.Value
	err    *Error
	done   bool
}

// NewThread creates a fresh coroutine with absent stacktaint and its
// read/write gate fully open (spec §4.J: "new thread starts with an
// absent stacktaint and... masks inherited from default (fully open)");
// see vmstate.NewThread's doc comment for why the gate defaults open
// rather than disabled.
func NewThread(st *State) *Thread {
	taint := vmstate.NewThread()
	return &Thread{Header: object.Alloc(object.KindThread, taint), taint: taint, state: st, status: StatusSuspended}
}

// Taint exposes the thread's taint substate to collaborating packages
// (secure, query, stdlib) without re-exporting every vmstate method on
// Thread itself.
func (t *Thread) Taint() *vmstate.Thread { return t.taint }

// State returns the owning thread group.
func (t *Thread) State() *State { return t.state }

// Status reports the coroutine's current lifecycle state.
func (t *Thread) Status() ThreadStatus { return t.status }

// CanYield reports whether t is a coroutine body currently running on its
// own goroutine under Resume (and so has somewhere to send a Yield to).
// The main thread, and a coroutine that has never been started, cannot
// yield.
func (t *Thread) CanYield() bool { return t.yieldCh != nil }

// Push appends a value to the end of the stack, returning its index.
func (t *Thread) Push(v value.Value) int {
	t.stack = append(t.stack, v)
	return len(t.stack) - 1
}

// Get returns the value at absolute stack index idx, or Nil if idx is
// out of range (spec §8 boundary behavior: "empty stack read returns the
// 'none' type with absent taint").
func (t *Thread) Get(idx int) value.Value {
	if idx < 0 || idx >= len(t.stack) {
		return value.Nil
	}
	return t.stack[idx]
}

// Set overwrites the value at absolute stack index idx, growing the
// stack with Nil values if necessary.
func (t *Thread) Set(idx int, v value.Value) {
	for len(t.stack) <= idx {
		t.stack = append(t.stack, value.Nil)
	}
	t.stack[idx] = v
}

// Top returns the current stack length.
func (t *Thread) Top() int { return len(t.stack) }

// SetTop truncates or extends the stack to exactly n slots.
func (t *Thread) SetTop(n int) {
	if n <= len(t.stack) {
		t.stack = t.stack[:n]
		return
	}
	for len(t.stack) < n {
		t.stack = append(t.stack, value.Nil)
	}
}

// CurrentFrame returns the active call frame, or nil if the thread is
// not currently executing a Lua closure.
func (t *Thread) CurrentFrame() *CallInfo {
	return t.FrameAt(0)
}

// FrameAt returns the call frame depth levels below the current one (0
// is the current frame, 1 its caller, and so on), or nil past the
// bottom of the stack — used by the security-query surface to inspect a
// live call frame's saved taint (spec §4.I "taint of ... a live call
// frame").
func (t *Thread) FrameAt(depth int) *CallInfo {
	idx := len(t.frames) - 1 - depth
	if idx < 0 || idx >= len(t.frames) {
		return nil
	}
	return &t.frames[idx]
}

// NewTableValue allocates a table stamped from this thread's allocation
// substate and wraps it as a value.Value.
func (t *Thread) NewTableValue() value.Value {
	tbl := NewTable(t.taint)
	return value.Value{Type: value.TypeTable, Ref: tbl}
}

var _ object.AllocState = (*vmstate.Thread)(nil)
