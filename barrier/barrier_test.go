package barrier

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taintscript/seclua/label"
	"github.com/taintscript/seclua/value"
	"github.com/taintscript/seclua/vmstate"
)

func TestFreshSlot_CopiesSourceTaintVerbatim(t *testing.T) {
	store := label.NewStore()
	taint := store.Intern("x")
	src := value.Num(1)
	src.Taint = taint

	var dst value.Value
	FreshSlot(&dst, src)

	assert.Same(t, taint, dst.Taint)
}

func TestImmediate_StampsAmbientWriteTaint(t *testing.T) {
	store := label.NewStore()
	taint := store.Intern("x")
	th := vmstate.NewThread()
	th.SetMode(vmstate.ModeWriteOnly)
	th.SetStackTaint(taint)

	var dst value.Value
	Immediate(&dst, th)

	assert.Same(t, taint, dst.Taint)
}

func TestImmediate_NoWriteGateLeavesSecure(t *testing.T) {
	store := label.NewStore()
	th := vmstate.NewThread()
	th.SetMode(vmstate.ModeReadOnly)
	th.SetStackTaint(store.Intern("x"))
	var dst value.Value
	Immediate(&dst, th)
	assert.Nil(t, dst.Taint)
}

func TestStackMove_CleanSourceGetsAmbientWriteTaint(t *testing.T) {
	store := label.NewStore()
	ambient := store.Intern("ambient")
	th := vmstate.NewThread()
	th.SetMode(vmstate.ModeWriteOnly)
	th.SetStackTaint(ambient)

	var dst value.Value
	StackMove(&dst, value.Num(7), th)

	assert.Same(t, ambient, dst.Taint)
}

func TestStackMove_TaintedSourcePropagatesToStackAndKeepsOwnTaint(t *testing.T) {
	store := label.NewStore()
	src := value.Num(7)
	src.Taint = store.Intern("src")

	th := vmstate.NewThread()
	th.SetMode(vmstate.ModeReadOnly)

	var dst value.Value
	StackMove(&dst, src, th)

	assert.Same(t, src.Taint, dst.Taint)
	assert.Same(t, src.Taint, th.StackTaint())
}

func TestTableStore_CopiesSourceTaintVerbatim(t *testing.T) {
	store := label.NewStore()
	src := value.Str("v")
	src.Taint = store.Intern("x")

	var dst value.Value
	TableStore(&dst, src)

	assert.Same(t, src.Taint, dst.Taint)
}

func TestTableDelete_ClearsValueAndTaint(t *testing.T) {
	store := label.NewStore()
	dst := value.Str("v")
	dst.Taint = store.Intern("x")

	TableDelete(&dst)

	assert.True(t, dst.IsNil())
	assert.Nil(t, dst.Taint)
}

func TestRawSet_MatchesTableStore(t *testing.T) {
	store := label.NewStore()
	src := value.Num(3)
	src.Taint = store.Intern("x")

	var dst value.Value
	RawSet(&dst, src)

	assert.Same(t, src.Taint, dst.Taint)
}

func TestUpvalueStore_CopiesSourceTaintVerbatim(t *testing.T) {
	store := label.NewStore()
	src := value.Num(3)
	src.Taint = store.Intern("x")

	var dst value.Value
	UpvalueStore(&dst, src)

	assert.Same(t, src.Taint, dst.Taint)
}

func TestDebugLocalStore_CopiesSourceTaintOnlyNoAmbientLeak(t *testing.T) {
	store := label.NewStore()
	ambient := store.Intern("ambient")
	th := vmstate.NewThread()
	th.SetMode(vmstate.ModeWriteOnly)
	th.SetStackTaint(ambient)

	src := value.Num(1) // carries no taint of its own
	var dst value.Value
	DebugLocalStore(&dst, src)

	// Unlike StackMove, an untainted source must not pick up the ambient
	// write taint: the debug-API local store is source's-taint-only.
	assert.Nil(t, dst.Taint)
}

func TestDebugLocalStore_CopiesSourceTaintVerbatim(t *testing.T) {
	store := label.NewStore()
	src := value.Num(1)
	src.Taint = store.Intern("x")

	var dst value.Value
	DebugLocalStore(&dst, src)

	assert.Same(t, src.Taint, dst.Taint)
}

type fakeRef struct {
	taint *label.Label
}

func (f *fakeRef) ObjectTaint() *label.Label     { return f.taint }
func (f *fakeRef) SetObjectTaint(l *label.Label) { f.taint = l }

func TestTaintObjectHeader_GatedByWriteMode(t *testing.T) {
	store := label.NewStore()
	taint := store.Intern("x")
	th := vmstate.NewThread()
	th.SetMode(vmstate.ModeReadOnly)
	th.SetStackTaint(taint)
	ref := &fakeRef{}

	TaintObjectHeader(ref, th)
	assert.Nil(t, ref.taint)

	th.SetMode(vmstate.ModeWriteOnly)
	th.SetStackTaint(taint)
	TaintObjectHeader(ref, th)
	assert.Same(t, taint, ref.taint)
}

func TestForceObjectTaint_BypassesGate(t *testing.T) {
	store := label.NewStore()
	taint := store.Intern("x")
	ref := &fakeRef{}

	ForceObjectTaint(ref, taint)
	assert.Same(t, taint, ref.taint)
}
