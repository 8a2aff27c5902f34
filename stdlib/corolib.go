package stdlib

import (
	"fmt"

	"github.com/taintscript/seclua/value"
	"github.com/taintscript/seclua/vm"
)

// registerCoroutineLib installs the `coroutine` table (spec §4.J, spec.md
// Scenario 4 "coroutine cannot clean caller"): create/resume/yield/status
// over vm.State.NewCoroutine and vm.Thread.Resume/Yield, the script-facing
// entry points that exercise the cross-thread taint handoff those two
// methods implement.
func registerCoroutineLib(tbl *vm.Table) {
	register(tbl, "create", func(th *vm.Thread, args []value.Value) ([]value.Value, error) {
		fn := arg(args, 0)
		if fn.Type != value.TypeFunction {
			return nil, fmt.Errorf("coroutine.create: argument #1 must be a function")
		}
		co := th.State().NewCoroutine(fn)
		return []value.Value{{Type: value.TypeThread, Ref: co}}, nil
	})

	register(tbl, "resume", func(th *vm.Thread, args []value.Value) ([]value.Value, error) {
		co, ok := argThread(args, 0)
		if !ok {
			return []value.Value{value.Boolean(false), value.Str("bad argument #1 to 'resume' (coroutine expected)")}, nil
		}
		var rest []value.Value
		if len(args) > 1 {
			rest = args[1:]
		}
		results, cerr := th.Resume(co, rest)
		if cerr != nil {
			return []value.Value{value.Boolean(false), errorValue(cerr)}, nil
		}
		return append([]value.Value{value.Boolean(true)}, results...), nil
	})

	register(tbl, "yield", func(th *vm.Thread, args []value.Value) ([]value.Value, error) {
		if !th.CanYield() {
			return nil, fmt.Errorf("attempt to yield from outside a coroutine")
		}
		return th.Yield(args), nil
	})

	register(tbl, "status", func(th *vm.Thread, args []value.Value) ([]value.Value, error) {
		co, ok := argThread(args, 0)
		if !ok {
			return []value.Value{value.Str("dead")}, nil
		}
		return []value.Value{value.Str(statusName(co.Status()))}, nil
	})
}

func argThread(args []value.Value, i int) (*vm.Thread, bool) {
	v := arg(args, i)
	co, ok := v.Ref.(*vm.Thread)
	if v.Type != value.TypeThread || !ok {
		return nil, false
	}
	return co, true
}

func statusName(s vm.ThreadStatus) string {
	switch s {
	case vm.StatusRunning:
		return "running"
	case vm.StatusSuspended:
		return "suspended"
	case vm.StatusNormal:
		return "normal"
	default:
		return "dead"
	}
}
