// Call, protected-call, and taint-checkpoint machinery (spec component
// G), grounded on _examples/original_source/src/liblua/lapi.c's
// f_PTcall/lua_pcall family (snapshot-run-restore shape) and
// src/liblua/lmanip.h/lsec.h for the savedtaint/checkpoint fields
// referenced below.
package vm

import (
	"github.com/taintscript/seclua/label"
	"github.com/taintscript/seclua/value"
	"github.com/taintscript/seclua/vmstate"
)

// Call invokes fn with args, running it to completion (no yield across
// this entry point; Resume is the coroutine-aware sibling). It implements
// the CALL/RETURN taint rule in full: savedtaint capture on entry, the VM
// execution mask around an insecure closure's activation, and the
// caller-cannot-be-cleaned rule on return.
func (th *Thread) Call(fn value.Value, args []value.Value) ([]value.Value, *Error) {
	cl, ok := fn.Ref.(*Closure)
	if !ok {
		return nil, newRuntimeError("attempt to call a %s value", fn.Type)
	}

	entryTaint := th.taint.StackTaint()

	if hook := th.state.Profile; hook != nil {
		leave := hook.Enter(closureSource(cl), closureName(cl))
		defer leave()
	}

	if cl.IsNative() {
		results, err := callNative(th, cl, args)
		th.taint.SetStackTaint(maxTaint(entryTaint, th.taint.StackTaint()))
		return results, err
	}

	wasExecMask := th.taint.VMExecMask()
	insecure := cl.Header.Taint != nil
	if insecure {
		th.taint.SetVMExecMask(true)
	}

	results, err := th.callLua(cl, args, entryTaint)

	th.taint.SetVMExecMask(wasExecMask)
	th.taint.SetStackTaint(maxTaint(entryTaint, th.taint.StackTaint()))

	return results, err
}

// closureSource and closureName feed the profile hook; native closures
// report "[native]" since they have no chunk source.
func closureSource(cl *Closure) string {
	if cl.IsNative() {
		return "[native]"
	}
	return cl.Proto.Source
}

func closureName(cl *Closure) string {
	if cl.Name != "" {
		return cl.Name
	}
	return "?"
}

func callNative(th *Thread, cl *Closure, args []value.Value) ([]value.Value, *Error) {
	results, err := cl.Native(th, args)
	if err != nil {
		if e, ok := err.(*Error); ok {
			return nil, e
		}
		return nil, newRuntimeError("%s", err.Error())
	}
	return results, nil
}

// maxTaint implements the "callee can taint the caller but never clean
// it" rule (spec §4.F, §4.J): if the callee ended up tainted, that wins;
// otherwise the taint present before the call is restored.
func maxTaint(before, after *label.Label) *label.Label {
	if after != nil {
		return after
	}
	return before
}

// PCall is the protected-call entry point (lua_pcall): it snapshots the
// taint substate, runs fn, and on error restores the snapshot and stamps
// the error value with the snapshot's stacktaint before returning it
// (spec §4.G).
func (th *Thread) PCall(fn value.Value, args []value.Value) ([]value.Value, *Error) {
	cp := th.taint.Save()

	results, callErr := th.Call(fn, args)
	if callErr == nil {
		return results, nil
	}

	th.taint.Restore(cp)
	callErr.Value.Taint = cp.StackTaint
	return nil, callErr
}

// ProtectTaint runs fn(ud) under an automatic taint snapshot (spec §6
// "protecttaint"): on error, the substate is restored before the error
// propagates and the error value's own taint slot is cleared so that
// whichever catcher is further out re-stamps it with its own ambient
// taint, rather than inheriting the inner snapshot's.
func (th *Thread) ProtectTaint(fn func() *Error) *Error {
	cp := th.taint.Save()

	err := fn()
	if err == nil {
		return nil
	}

	th.taint.Restore(cp)
	err.Value.Taint = nil
	return err
}

// Checkpoint, Save, Restore, and Exchange expose vmstate.Thread's
// checkpoint trio directly on Thread for convenience (spec §4.D, the
// round-trip laws tested in §8).
type Checkpoint = vmstate.Checkpoint

func (th *Thread) Save() Checkpoint             { return th.taint.Save() }
func (th *Thread) Restore(cp Checkpoint)        { th.taint.Restore(cp) }
func (th *Thread) Exchange(cp Checkpoint) Checkpoint { return th.taint.Exchange(cp) }
