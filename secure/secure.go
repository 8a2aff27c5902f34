// Package secure implements the secure execution primitives (spec
// component H): securecall and its relatives, secure/insecure delegate
// closures, the secure post-hook wrapper, and forceinsecure/scrub.
//
// Grounded on spec §4.H's prose description of each primitive (no single
// original_source file covers this surface end to end; it is spread
// across the reference security library's Lua-level bootstrap code,
// which is not part of the retrieval pack) and on vmstate's checkpoint
// trio and Mode gate, which every primitive here is built from.
package secure

import (
	"github.com/taintscript/seclua/value"
	"github.com/taintscript/seclua/vm"
	"github.com/taintscript/seclua/vmstate"
)

// IsSecure reports whether th's ambient stacktaint is currently absent.
func IsSecure(th *vm.Thread) bool { return th.Taint().StackTaint() == nil }

// ForceInsecure sets th's stacktaint to the well-known ForceInsecure
// label if the thread is currently secure; it is a no-op otherwise (spec
// §8 invariant 5).
func ForceInsecure(th *vm.Thread) {
	if th.Taint().StackTaint() == nil {
		th.Taint().SetStackTaint(th.State().Labels.ForceInsecure())
	}
}

// Scrub replaces every non-scalar argument (table, function, userdata,
// thread) with nil and returns all arguments, scalar ones untouched.
func Scrub(args []value.Value) []value.Value {
	out := make([]value.Value, len(args))
	for i, a := range args {
		switch a.Type {
		case value.TypeNil, value.TypeBoolean, value.TypeNumber, value.TypeString:
			out[i] = a
		default:
			out[i] = value.Nil
		}
	}
	return out
}

func resolveFn(th *vm.Thread, fnOrName value.Value) value.Value {
	if fnOrName.Type == value.TypeString {
		return th.State().Globals().Get(fnOrName)
	}
	return fnOrName
}

// Call is `securecall`/`securecallfunction` (spec §4.H): resolves fn by
// name or value, snapshots taint, runs it, restores the snapshot, and on
// success re-stamps every returned value with the taint that was ambient
// right after the call completed (before the restore) — so the caller's
// own taint is never affected by a successful secure call, but the
// *results* still reflect what the callee touched. On failure, the
// installed global error handler is invoked with the error value and no
// error or result ever reaches the caller (spec: "never propagates an
// error to the caller's stack").
func Call(th *vm.Thread, fnOrName value.Value, args []value.Value) []value.Value {
	fn := resolveFn(th, fnOrName)
	cp := th.Save()

	results, err := th.Call(fn, args)
	postCallTaint := th.Taint().StackTaint()
	th.Restore(cp)

	if err != nil {
		invokeErrorHandler(th, err)
		return nil
	}

	for i := range results {
		results[i].Taint = postCallTaint
	}
	return results
}

func invokeErrorHandler(th *vm.Thread, err *vm.Error) {
	handler := th.State().ErrorHandler
	if handler.Type != value.TypeFunction {
		return
	}
	// The handler's own failure must not escape either; securecall
	// swallows errors unconditionally.
	_, _ = th.Call(handler, []value.Value{err.Value})
}

// ExecuteRange is `secureexecuterange` (spec §6): iterates tbl's pairs,
// calling fn(k, v, extra...) once per entry, restoring a single snapshot
// taken before the loop ahead of every entry so that taint picked up by
// one entry's call never contaminates the next.
func ExecuteRange(th *vm.Thread, tbl *vm.Table, fn value.Value, extra []value.Value) {
	cp := th.Save()
	tbl.Range(func(k, v value.Value) {
		th.Restore(cp)
		args := append([]value.Value{k, v}, extra...)
		_, _ = th.Call(fn, args)
	})
}

// NewSecureDelegate wraps original in a closure that, on each
// invocation, clears the caller's read mask for the duration of the
// call (so the delegate's body runs unaffected by the caller's taint),
// recursively wraps any function arguments in delegates of the same
// kind, and stamps every returned value with the caller's ambient taint
// captured on entry (spec §4.H "secure delegate").
func NewSecureDelegate(original value.Value) value.Value {
	native := func(th *vm.Thread, args []value.Value) ([]value.Value, error) {
		callerTaint := th.Taint().StackTaint()

		wrapped := make([]value.Value, len(args))
		for i, a := range args {
			if a.Type == value.TypeFunction {
				wrapped[i] = NewSecureDelegate(a)
			} else {
				wrapped[i] = a
			}
		}

		savedMode := th.Taint().Mode()
		th.Taint().SetMode(readMaskCleared(savedMode))

		results, err := th.Call(original, wrapped)
		th.Taint().SetMode(savedMode)

		for i := range results {
			results[i].Taint = callerTaint
		}
		return results, asGoError(err)
	}
	return value.Value{Type: value.TypeFunction, Ref: &vm.Closure{Native: native}}
}

// readMaskCleared drops the read bit from m while preserving its write
// bit, matching "clears the thread's read mask" rather than disabling
// taint tracking outright.
func readMaskCleared(m vmstate.Mode) vmstate.Mode {
	if m == vmstate.ModeReadWrite || m == vmstate.ModeWriteOnly {
		return vmstate.ModeWriteOnly
	}
	return vmstate.ModeDisabled
}

// NewInsecureDelegate wraps original in a closure that forwards
// arguments to it untouched, with no taint manipulation at all — used by
// the debug library to expose native functions to scripts without
// granting them secure-delegate treatment (spec §4.H "insecure
// delegate").
func NewInsecureDelegate(original value.Value) value.Value {
	native := func(th *vm.Thread, args []value.Value) ([]value.Value, error) {
		results, err := th.Call(original, args)
		return results, asGoError(err)
	}
	return value.Value{Type: value.TypeFunction, Ref: &vm.Closure{Native: native}}
}

// NewSecurePostHook builds the closure `hooksecurefunc` installs: it
// calls original first, propagating taint normally, then calls hook
// under its own taint snapshot (restored unconditionally afterward, even
// if hook itself errors) so the hook can never leave the caller tainted
// (spec §4.H "secure post-hook", §8 invariant 6).
func NewSecurePostHook(original, hook value.Value) value.Value {
	native := func(th *vm.Thread, args []value.Value) ([]value.Value, error) {
		results, err := th.Call(original, args)

		cp := th.Save()
		_, _ = th.Call(hook, args)
		th.Restore(cp)

		return results, asGoError(err)
	}
	return value.Value{Type: value.TypeFunction, Ref: &vm.Closure{Native: native}}
}

// HookSecureFunc is `hooksecurefunc`: it rebinds tbl[name] (the globals
// table if tbl is nil) to a secure post-hook wrapping whatever was
// previously bound there.
func HookSecureFunc(th *vm.Thread, tbl *vm.Table, name string, hook value.Value) {
	if tbl == nil {
		tbl = th.State().Globals()
	}
	key := value.Str(name)
	original := tbl.Get(key)
	tbl.RawSet(key, NewSecurePostHook(original, hook))
}

func asGoError(err *vm.Error) error {
	if err == nil {
		return nil
	}
	return err
}
