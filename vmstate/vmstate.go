// Package vmstate implements the per-thread taint state (spec component
// D): the read/write mode gate, the ambient stacktaint, the allocation
// overrides (newgctaint/newcltaint), the checkpoint mechanism used by
// protected calls and secure execution, and the fixedtaint freeze used
// while a checkpoint is being restored.
//
// Grounded on _examples/original_source/src/lstate.h (the TaintState
// struct and the luaE_mask*/luaE_taint* inline family) and
// src/liblua/lapi.c's lua_savetaint/lua_restoretaint/lua_exchangetaint
// (the Save/Restore/Exchange trio) and lua_getcalltaint (the
// per-CallInfo savedtaint field, here Frame.Saved).
package vmstate

import "github.com/taintscript/seclua/label"

// Mode is the read/write taint-propagation gate (spec §4.D), matching
// seclib_taintmodes's four-entry enumeration in the original security
// library exactly.
type Mode uint8

const (
	ModeDisabled Mode = iota
	ModeReadOnly
	ModeWriteOnly
	ModeReadWrite
)

// String names the mode the way gettaintmode/settaintmode's script-facing
// string table does.
func (m Mode) String() string {
	switch m {
	case ModeDisabled:
		return "disabled"
	case ModeReadOnly:
		return "r"
	case ModeWriteOnly:
		return "w"
	case ModeReadWrite:
		return "rw"
	default:
		return "disabled"
	}
}

// ParseMode is the inverse of String, matching luaL_checkoption against
// seclib_taintmodes.
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "disabled":
		return ModeDisabled, true
	case "r":
		return ModeReadOnly, true
	case "w":
		return ModeWriteOnly, true
	case "rw":
		return ModeReadWrite, true
	default:
		return ModeDisabled, false
	}
}

func (m Mode) readEnabled() bool  { return m == ModeReadOnly || m == ModeReadWrite }
func (m Mode) writeEnabled() bool { return m == ModeWriteOnly || m == ModeReadWrite }

// Checkpoint is a snapshot of a thread's taint substate, the payload type
// moved around by Save/Restore/Exchange (spec §4.D, lua_TaintState in the
// original). securecall and protected-call error recovery both round-trip
// through this type.
type Checkpoint struct {
	Mode        Mode
	StackTaint  *label.Label
	NewGCTaint  *label.Label
	NewClTaint  *label.Label
}

// Frame is the per-call-frame taint bookkeeping a vm.CallInfo embeds
// (spec §4.D "per-frame saved taint"): the stacktaint in effect at the
// moment this frame was entered, used by lua_getcalltaint to answer "what
// taint applied to this still-on-the-stack caller" without having to
// unwind to it.
type Frame struct {
	Saved *label.Label
}

// Thread is one coroutine's taint substate (spec §4.D). A vm.State's main
// coroutine and every coroutine it spawns each own one Thread.
type Thread struct {
	mode Mode

	readmask    bool
	writemask   bool
	vmexecmask  bool // forced read-enabled while running an insecure closure
	fixedtaint  bool // frozen: stacktaint writes from reads are suppressed

	stacktaint *label.Label
	newgc      *label.Label
	newcl      *label.Label
}

// NewThread creates a thread with no ambient taint and its read/write
// gate fully open (spec §4.J requires a new thread's masks to default
// fully open: propagation in §8.1 is stated "assuming default masks",
// and Scenario 1 requires forceinsecure() followed by a plain assignment
// to taint without any settaintmode call in between).
func NewThread() *Thread {
	t := &Thread{}
	t.SetMode(ModeReadWrite)
	return t
}

// Mode reports the thread's current read/write gate.
func (t *Thread) Mode() Mode { return t.mode }

// SetMode installs a new read/write gate, recomputing the derived
// readmask/writemask booleans exactly as luaR_settaintmode does.
func (t *Thread) SetMode(m Mode) {
	t.mode = m
	t.readmask = m.readEnabled()
	t.writemask = m.writeEnabled()
}

// StackTaint returns the thread's current ambient (stack) taint.
func (t *Thread) StackTaint() *label.Label { return t.stacktaint }

// SetStackTaint installs l as the thread's ambient taint directly,
// bypassing the read gate — used by the embedder API (lua_setstacktaint)
// and by checkpoint restore, both of which set taint unconditionally
// rather than through the VM's own propagation path.
func (t *Thread) SetStackTaint(l *label.Label) { t.stacktaint = l }

// NewGCTaint returns the allocation-taint override for all fresh objects.
func (t *Thread) NewGCTaint() *label.Label { return t.newgc }

// SetNewGCTaint installs the allocation-taint override.
func (t *Thread) SetNewGCTaint(l *label.Label) { t.newgc = l }

// NewClosureTaint returns the allocation-taint override for fresh
// closures specifically.
func (t *Thread) NewClosureTaint() *label.Label { return t.newcl }

// SetNewClosureTaint installs the closure-specific allocation-taint
// override.
func (t *Thread) SetNewClosureTaint(l *label.Label) { t.newcl = l }

// SetVMExecMask forces the read gate on (or releases that force),
// independent of the user-controlled mode, for the duration of executing
// an insecure closure (spec §4.D, §4.H — the execution mask the VM
// dispatch loop pushes/pops around CALL of an insecure function).
func (t *Thread) SetVMExecMask(on bool) { t.vmexecmask = on }

// VMExecMask reports whether the execution-forced read gate is active.
func (t *Thread) VMExecMask() bool { return t.vmexecmask }

func (t *Thread) readGate() bool  { return t.readmask || t.vmexecmask }
func (t *Thread) writeGate() bool { return t.writemask }

// WriteTaint returns the write-masked ambient taint used by the object
// allocation hook and by every "fresh value" write-barrier entry point:
// the current stacktaint if the write gate is open, nil otherwise
// (luaE_maskwritetaint).
func (t *Thread) WriteTaint() *label.Label {
	if t.writeGate() {
		return t.stacktaint
	}
	return nil
}

// MaskAllocTaint implements luaE_maskalloctaint's priority order (newgc >
// stacktaint > newcl-if-closure) filtered through the write gate, for
// callers that need the single combined allocation decision rather than
// object.Alloc's three-field AllocState view.
func (t *Thread) MaskAllocTaint(isClosure bool) *label.Label {
	var taint *label.Label
	switch {
	case t.newgc != nil:
		taint = t.newgc
	case t.stacktaint != nil:
		taint = t.stacktaint
	case isClosure:
		taint = t.newcl
	}
	if !t.writeGate() {
		return nil
	}
	return taint
}

// TaintExpected reports whether ordinary running code should expect to
// observe taint right now — false only while no read gate (user or
// execution-forced) is open (luaE_istaintexpected). Anomaly-detecting
// embedder tooling uses this to decide whether a surprise taint label is
// noteworthy.
func (t *Thread) TaintExpected() bool { return t.readGate() }

// TaintStack applies a read to the thread's ambient taint: if the
// candidate label is non-nil, the read gate is open, and the thread is
// not mid-checkpoint-restore (fixedtaint), the ambient taint becomes
// (at least) taint. Every GETGLOBAL/GETUPVAL/GETTABLE/CALL-return path
// in the VM dispatch loop funnels its source operand's taint through this
// one entry point (luaE_taintstack).
func (t *Thread) TaintStack(taint *label.Label) {
	if taint == nil || t.fixedtaint || !t.readGate() {
		return
	}
	t.stacktaint = taint
}

// TaintValue stamps the write-masked ambient taint onto o if the write
// gate is open (luaE_taintvalue) — used by write barriers that taint a
// Value's own slot rather than a referenced object's header.
func (t *Thread) TaintValue(o TaintTarget) {
	if taint := t.WriteTaint(); taint != nil {
		o.SetObjectTaint(taint)
	}
}

// TaintTarget is satisfied by any value/object carrying a settable taint
// slot; value.Ref and value.Value (by a thin adapter) both qualify.
type TaintTarget interface {
	SetObjectTaint(*label.Label)
}

// SetFixed freezes (or unfreezes) the thread's stacktaint against further
// TaintStack updates. Checkpoint restore holds this true for the
// duration of re-stamping the saved substate so that the act of reading
// back the checkpoint's own fields cannot itself taint the stack (spec
// §4.G "checkpoint restore ... fixedtaint").
func (t *Thread) SetFixed(on bool) { t.fixedtaint = on }

// Fixed reports whether the thread is currently frozen.
func (t *Thread) Fixed() bool { return t.fixedtaint }

// Save captures the thread's taint substate (lua_savetaint).
func (t *Thread) Save() Checkpoint {
	return Checkpoint{
		Mode:       t.mode,
		StackTaint: t.stacktaint,
		NewGCTaint: t.newgc,
		NewClTaint: t.newcl,
	}
}

// Restore installs a previously captured substate verbatim
// (lua_restoretaint). The caller is responsible for holding SetFixed(true)
// around the restore if it must be atomic with respect to concurrent
// reads triggered by the individual field writes, matching the original's
// "batch them upfront... to ensure the load operation is atomic" comment
// at the lua_restoretaint call site.
func (t *Thread) Restore(cp Checkpoint) {
	t.SetMode(cp.Mode)
	t.stacktaint = cp.StackTaint
	t.newgc = cp.NewGCTaint
	t.newcl = cp.NewClTaint
}

// Exchange swaps the thread's current taint substate for cp, returning
// what was previously installed (lua_exchangetaint): save the old one,
// restore the new one, hand back the old one.
func (t *Thread) Exchange(cp Checkpoint) Checkpoint {
	old := t.Save()
	t.Restore(cp)
	return old
}

// Fork initializes a freshly spawned coroutine's taint substate by
// copying from its creator (spec §4.J "new thread starts with ... absent
// stacktaint" — the embedding API's explicit lua_newthread path, as
// opposed to resume-time transfer, leaves the new thread at defaults; Fork
// is provided for embedders that instead want lua_copytaint's "inherit
// from parent" semantics at creation time, mirroring luaE_taintthread).
func (t *Thread) Fork(from *Thread) {
	t.mode = from.mode
	t.readmask = from.readmask
	t.writemask = from.writemask
	t.stacktaint = from.stacktaint
	t.newgc = from.newgc
	t.newcl = from.newcl
}
