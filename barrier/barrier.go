// Package barrier implements the write-barrier family (spec component
// E): one setter per destination kind, each differing only in what taint
// ends up stamped on the destination.
//
// Grounded file-for-rule on
// _examples/original_source/src/liblua/lmanip.h's setobj/setobj2s/
// setobj2t/setnilvalue2t family, plus lapi.c's lua_rawset (raw set reuses
// setobj2t), lua_setupvalue (reuses plain setobj) and lauxlib.c's
// luaL_setlocaltaint (debug-API local store, which wraps lua_setlocal in
// a taint save/restore and so keeps the source's taint only, the same
// rule as an upvalue store; see DebugLocalStore).
package barrier

import (
	"github.com/taintscript/seclua/label"
	"github.com/taintscript/seclua/value"
	"github.com/taintscript/seclua/vmstate"
)

// FreshSlot implements setobj/setobj2n: copying src into a brand-new slot
// (a table constructor's array part, a newly captured upvalue, a return
// value marshaled into freshly reserved space) carries src's taint
// across verbatim, with no masking and no ambient-stack side effect.
func FreshSlot(dst *value.Value, src value.Value) {
	*dst = src
}

// Immediate implements setnilvalue/setnvalue/setbvalue/setpvalue/
// setsvalue/...: constructing a value from a raw constant (a LOADK
// constant-pool entry, LOADNIL, LOADBOOL) has no source taint to copy, so
// the destination is stamped with the thread's current write-masked
// ambient taint instead.
func Immediate(dst *value.Value, t *vmstate.Thread) {
	dst.Taint = t.WriteTaint()
}

// StackMove implements setobj2s: moving a value onto a stack slot that is
// not aliased with its source (a register MOVE, a call argument/return
// marshal). If the source carried no taint, the
// destination is stamped with the ambient write taint, matching
// Immediate's rule for "this slot now holds whatever this execution
// context is allowed to write." If the source did carry taint, the
// destination keeps it unchanged and that taint becomes (at least) the
// thread's new ambient stacktaint — reading a tainted value off the stack
// contaminates the stack, per luaE_taintstack's read gating.
func StackMove(dst *value.Value, src value.Value, t *vmstate.Thread) {
	*dst = src
	if dst.Taint == nil {
		dst.Taint = t.WriteTaint()
	} else {
		t.TaintStack(src.Taint)
	}
}

// TableStore implements setobj2t / setobjt2t: SETTABLE (and the raw C-API
// set, lua_rawset, which reuses the identical setobj2t call) storing a
// non-nil value into a table slot copies the stored value's taint
// verbatim, exactly like FreshSlot — a table slot's taint is the value's
// own, never re-derived from ambient state.
func TableStore(dst *value.Value, src value.Value) {
	*dst = src
}

// TableDelete implements setnilvalue2t: SETTABLE with a nil value clears
// both the slot's value and its taint unconditionally, discarding
// whatever taint the removed entry carried.
func TableDelete(dst *value.Value) {
	dst.Type = value.TypeNil
	dst.Taint = nil
}

// RawSet is TableStore under its C-API name (lua_rawset/lua_rawseti both
// call setobj2t, identically to the bytecode SETTABLE path).
func RawSet(dst *value.Value, src value.Value) {
	TableStore(dst, src)
}

// UpvalueStore implements lua_setupvalue's direct setobj call: writing a
// new value into an existing (possibly closed) upvalue slot copies the
// source's taint verbatim, with no ambient-stack side effect — the same
// rule as FreshSlot/TableStore.
func UpvalueStore(dst *value.Value, src value.Value) {
	*dst = src
}

// DebugLocalStore implements the debug-API local-variable store reachable
// via luaL_setlocaltaint -> lua_setlocal: the original wraps this write in
// lua_savetaint/lua_restoretaint precisely so no ambient taint leaks in,
// leaving source's taint as the only thing that ends up on the slot — the
// same rule as UpvalueStore, not StackMove's ambient-write/taint-the-stack
// behavior.
func DebugLocalStore(dst *value.Value, src value.Value) {
	UpvalueStore(dst, src)
}

// TaintObjectHeader stamps the ambient write taint onto a heap object's
// header directly (luaE_taintobject), used by setters that mutate an
// existing referent in place (e.g. table rehash bookkeeping) rather than
// overwriting a TValue slot.
func TaintObjectHeader(o value.Ref, t *vmstate.Thread) {
	if taint := t.WriteTaint(); taint != nil {
		o.SetObjectTaint(taint)
	}
}

// ForceObjectTaint stamps l unconditionally onto o's header, bypassing
// the write gate entirely — used by the embedder API's lua_setobjecttaint
// and by allocation (object.Alloc already does this internally; this
// entry point exists for post-hoc relabeling, e.g. the security library's
// setobjecttaint).
func ForceObjectTaint(o value.Ref, l *label.Label) {
	o.SetObjectTaint(l)
}
