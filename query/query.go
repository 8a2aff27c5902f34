// Package query implements the security-query surface (spec component
// I): predicates and introspection over taint — is-secure, is-secure-
// variable, the taint of a table field / a named local / an upvalue /
// a live call frame's saved taint.
//
// Grounded on spec §4.I's description of each query, in particular the
// "table field query is distinguished: it performs the lookup with reads
// disabled so that merely asking does not taint the asker" rule, which
// every table/global lookup here follows by toggling the mode around the
// read.
package query

import (
	"github.com/taintscript/seclua/value"
	"github.com/taintscript/seclua/vm"
	"github.com/taintscript/seclua/vmstate"
)

// IsSecure reports whether th's ambient stacktaint is absent.
func IsSecure(th *vm.Thread) bool { return th.Taint().StackTaint() == nil }

// IsSecureValue reports whether v's own value taint is absent.
func IsSecureValue(v value.Value) bool { return v.IsSecure() }

// IsSecureObject reports whether a heap referent's object taint is
// absent.
func IsSecureObject(o value.Ref) bool { return o.ObjectTaint() == nil }

// withReadsDisabled runs f with th's read mask forced off (preserving
// the write bit) so that f's own lookups cannot taint th, then restores
// the prior mode.
func withReadsDisabled(th *vm.Thread, f func()) {
	saved := th.Taint().Mode()
	next := vmstate.ModeDisabled
	if saved == vmstate.ModeReadWrite || saved == vmstate.ModeWriteOnly {
		next = vmstate.ModeWriteOnly
	}
	th.Taint().SetMode(next)
	f()
	th.Taint().SetMode(saved)
}

// IsSecureVariable is `issecurevariable`: reads tbl[name] (globals if
// tbl is nil) with reads disabled and reports whether the stored value
// is secure, plus the taint label's name when it is not.
func IsSecureVariable(th *vm.Thread, tbl *vm.Table, name string) (bool, string) {
	if tbl == nil {
		tbl = th.State().Globals()
	}
	var v value.Value
	withReadsDisabled(th, func() {
		v = tbl.Get(value.Str(name))
	})
	if v.IsSecure() {
		return true, ""
	}
	return false, v.Taint.Name
}

// FieldTaint is the general-key sibling of IsSecureVariable, for table
// fields keyed by an arbitrary value.Value rather than a string name.
func FieldTaint(th *vm.Thread, tbl *vm.Table, key value.Value) (bool, string) {
	var v value.Value
	withReadsDisabled(th, func() {
		v = tbl.Get(key)
	})
	if v.IsSecure() {
		return true, ""
	}
	return false, v.Taint.Name
}

// LocalTaint answers the taint of a named local in the frame at
// frameDepth (0 = the currently executing frame), where localSlot is
// that local's register index within the frame. Frame/local inspection
// never routes through StackMove, so it cannot itself contaminate the
// reader.
func LocalTaint(th *vm.Thread, frameDepth, localSlot int) (bool, string) {
	ci := th.FrameAt(frameDepth)
	if ci == nil {
		return true, ""
	}
	v := th.Get(ci.Base + localSlot)
	if v.IsSecure() {
		return true, ""
	}
	return false, v.Taint.Name
}

// UpvalueTaint answers the taint of upvalue idx of a closure value.
func UpvalueTaint(fn value.Value, idx int) (bool, string) {
	cl, ok := fn.Ref.(*vm.Closure)
	if !ok || idx < 0 || idx >= len(cl.Upvalues) {
		return true, ""
	}
	v := cl.Upvalues[idx].Get()
	if v.IsSecure() {
		return true, ""
	}
	return false, v.Taint.Name
}

// CallFrameTaint answers the saved stacktaint of the frame at depth
// (0 = current), the `lua_getcalltaint` query (spec §4.D, §4.I).
func CallFrameTaint(th *vm.Thread, depth int) (bool, string) {
	ci := th.FrameAt(depth)
	if ci == nil || ci.Saved == nil {
		return true, ""
	}
	return false, ci.Saved.Name
}
