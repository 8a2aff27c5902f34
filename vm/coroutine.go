// Coroutine resume/yield (spec component J): cross-thread value transfer,
// plus two taint rules that only apply because a coroutine is a distinct
// Thread with its own independent stacktaint rather than another frame on
// the same stack (spec §4.J): (1) at the resume boundary the resumer's
// stacktaint is copied into the destination's stacktaint snapshot, and
// restored at yield, so the coroutine always starts a fresh slice from its
// own last known state rather than accumulating every past resumer's
// context forever; (2) the "callee can taint the caller but never clean
// it" rule already used at the CALL/RETURN boundary applies symmetrically
// here — a coroutine can make its resumer more tainted on return, never
// less.
//
// This interpreter's run() loop has no native suspension point, so a
// coroutine's body executes on its own goroutine and Resume/Yield
// rendezvous across a pair of unbuffered channels (see Thread.resumeCh/
// yieldCh): at any instant at most one of the resuming thread and the
// resumed coroutine is actually making progress, so this introduces
// suspension, not real concurrency.
package vm

import "github.com/taintscript/seclua/value"

// Resume starts (on first call) or continues (on a later call) co,
// passing args as either the coroutine body's arguments (first resume)
// or the values a pending Yield call inside co should return (every
// later resume). It blocks until co yields or its body returns, and
// reports co's own error if its body raised one.
func (th *Thread) Resume(co *Thread, args []value.Value) ([]value.Value, *Error) {
	if co.status == StatusDead {
		return nil, newRuntimeError("cannot resume dead coroutine")
	}
	if co.status == StatusRunning || co.status == StatusNormal {
		return nil, newRuntimeError("cannot resume non-suspended coroutine")
	}

	preTaint := th.taint.StackTaint()

	// Cross-thread handoff (spec §4.J): the resumer's ambient stacktaint is
	// copied into the destination's stacktaint snapshot for the duration of
	// this slice, and co's own snapshot is restored once it yields back —
	// only the resumer accumulates taint across the boundary (below), co's
	// own persistent stacktaint is never permanently altered by a one-time
	// resumer's context.
	coOwn := co.taint.StackTaint()
	co.taint.SetStackTaint(maxTaint(coOwn, preTaint))

	if !co.started {
		co.started = true
		co.resumeCh = make(chan []value.Value)
		co.yieldCh = make(chan yieldMsg)
		co.resumer = th
		go func() {
			first := <-co.resumeCh
			results, err := co.Call(co.entry, first)
			co.yieldCh <- yieldMsg{values: results, err: err, done: true}
		}()
	} else {
		co.resumer = th
	}

	co.status = StatusRunning
	th.status = StatusNormal

	co.resumeCh <- args
	msg := <-co.yieldCh

	th.status = StatusRunning
	if msg.done {
		co.status = StatusDead
	} else {
		co.status = StatusSuspended
	}

	finalTaint := co.taint.StackTaint()
	co.taint.SetStackTaint(coOwn)

	th.taint.SetStackTaint(maxTaint(preTaint, finalTaint))
	return msg.values, msg.err
}

// Yield suspends th (which must be running as some other thread's
// resumed coroutine) at the point of the native coroutine.yield call,
// handing values back to whoever called Resume, and returns whatever
// arguments the next Resume call supplies.
func (th *Thread) Yield(values []value.Value) []value.Value {
	th.yieldCh <- yieldMsg{values: values}
	return <-th.resumeCh
}
