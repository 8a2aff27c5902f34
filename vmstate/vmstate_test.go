package vmstate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taintscript/seclua/label"
)

func TestModeStringRoundTrip(t *testing.T) {
	for _, m := range []Mode{ModeDisabled, ModeReadOnly, ModeWriteOnly, ModeReadWrite} {
		parsed, ok := ParseMode(m.String())
		assert.True(t, ok)
		assert.Equal(t, m, parsed)
	}
}

func TestParseMode_Unknown(t *testing.T) {
	_, ok := ParseMode("bogus")
	assert.False(t, ok)
}

func TestWriteTaint_GatedByMode(t *testing.T) {
	store := label.NewStore()
	taint := store.Intern("x")

	th := NewThread()
	th.SetMode(ModeDisabled)
	th.SetStackTaint(taint)

	assert.Nil(t, th.WriteTaint(), "write gate closed in ModeDisabled")

	th.SetMode(ModeWriteOnly)
	assert.Same(t, taint, th.WriteTaint())

	th.SetMode(ModeReadOnly)
	assert.Nil(t, th.WriteTaint())
}

func TestTaintStack_RequiresReadGateAndNotFixed(t *testing.T) {
	store := label.NewStore()
	taint := store.Intern("x")

	th := NewThread()
	th.SetMode(ModeDisabled)
	th.TaintStack(taint)
	assert.Nil(t, th.StackTaint(), "read gate closed in ModeDisabled")

	th.SetMode(ModeReadOnly)
	th.TaintStack(taint)
	assert.Same(t, taint, th.StackTaint())

	th.SetFixed(true)
	th.TaintStack(nil) // no-op regardless
	other := store.Intern("y")
	th.TaintStack(other)
	assert.Same(t, taint, th.StackTaint(), "fixedtaint must freeze further stack taint updates")
}

func TestVMExecMask_ForcesReadGateRegardlessOfMode(t *testing.T) {
	store := label.NewStore()
	taint := store.Intern("x")

	th := NewThread()
	th.SetMode(ModeDisabled)
	th.SetVMExecMask(true)
	th.TaintStack(taint)

	assert.Same(t, taint, th.StackTaint())
	assert.True(t, th.TaintExpected())
}

func TestMaskAllocTaint_PriorityOrder(t *testing.T) {
	store := label.NewStore()
	newgc := store.Intern("newgc")
	stack := store.Intern("stack")
	newcl := store.Intern("newcl")

	th := NewThread()
	th.SetMode(ModeWriteOnly)

	th.SetNewClosureTaint(newcl)
	assert.Same(t, newcl, th.MaskAllocTaint(true), "newcl only applies to closures")
	assert.Nil(t, th.MaskAllocTaint(false))

	th.SetStackTaint(stack)
	assert.Same(t, stack, th.MaskAllocTaint(true), "stacktaint outranks newcl")

	th.SetNewGCTaint(newgc)
	assert.Same(t, newgc, th.MaskAllocTaint(true), "newgc outranks everything")
}

func TestMaskAllocTaint_GatedByWriteMode(t *testing.T) {
	store := label.NewStore()
	th := NewThread()
	th.SetNewGCTaint(store.Intern("newgc"))
	th.SetMode(ModeReadOnly)

	assert.Nil(t, th.MaskAllocTaint(false), "write gate closed, no allocation taint")
}

func TestSaveRestoreRoundTrip(t *testing.T) {
	store := label.NewStore()
	th := NewThread()
	th.SetMode(ModeReadWrite)
	th.SetStackTaint(store.Intern("a"))
	th.SetNewGCTaint(store.Intern("b"))
	th.SetNewClosureTaint(store.Intern("c"))

	cp := th.Save()

	th.SetMode(ModeDisabled)
	th.SetStackTaint(nil)
	th.SetNewGCTaint(nil)
	th.SetNewClosureTaint(nil)

	th.Restore(cp)

	assert.Equal(t, cp, th.Save())
}

func TestExchange_SwapsAndReturnsPrevious(t *testing.T) {
	store := label.NewStore()
	th := NewThread()
	th.SetMode(ModeReadWrite)
	th.SetStackTaint(store.Intern("a"))
	before := th.Save()

	next := Checkpoint{Mode: ModeReadOnly, StackTaint: store.Intern("b")}
	old := th.Exchange(next)

	assert.Equal(t, before, old)
	assert.Equal(t, next, th.Save())
}

func TestFork_CopiesSubstateFromParent(t *testing.T) {
	store := label.NewStore()
	parent := NewThread()
	parent.SetMode(ModeReadWrite)
	parent.SetStackTaint(store.Intern("a"))

	child := NewThread()
	child.Fork(parent)

	assert.Equal(t, parent.Save(), child.Save())
}
