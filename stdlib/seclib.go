package stdlib

import (
	"github.com/taintscript/seclua/barrier"
	"github.com/taintscript/seclua/label"
	"github.com/taintscript/seclua/query"
	"github.com/taintscript/seclua/value"
	"github.com/taintscript/seclua/vm"
	"github.com/taintscript/seclua/vmstate"
)

// registerSecLib installs the `security` table's script-visible surface
// (spec SUPPLEMENTED FEATURES item 2): the full taint-mode and per-kind
// allocation-taint get/set pair, plus the query-surface predicates that
// aren't already in the base library (gettabletaint, getupvaluetaint,
// getlocaltaint, getcalltaint).
func registerSecLib(tbl *vm.Table) {
	register(tbl, "gettaintmode", func(th *vm.Thread, args []value.Value) ([]value.Value, error) {
		return []value.Value{value.Str(th.Taint().Mode().String())}, nil
	})
	register(tbl, "settaintmode", func(th *vm.Thread, args []value.Value) ([]value.Value, error) {
		s, _ := argString(args, 0)
		mode, ok := vmstate.ParseMode(s)
		if !ok {
			return []value.Value{value.Boolean(false)}, nil
		}
		th.Taint().SetMode(mode)
		return []value.Value{value.Boolean(true)}, nil
	})

	register(tbl, "getnewobjecttaint", getNamedTaint(func(th *vm.Thread) string {
		return labelName(th.Taint().NewGCTaint())
	}))
	register(tbl, "setnewobjecttaint", setNamedTaint(func(th *vm.Thread, l *labelHandle) {
		th.Taint().SetNewGCTaint(l.resolve(th))
	}))

	register(tbl, "getnewclosuretaint", getNamedTaint(func(th *vm.Thread) string {
		return labelName(th.Taint().NewClosureTaint())
	}))
	register(tbl, "setnewclosuretaint", setNamedTaint(func(th *vm.Thread, l *labelHandle) {
		th.Taint().SetNewClosureTaint(l.resolve(th))
	}))

	register(tbl, "getcalltaint", func(th *vm.Thread, args []value.Value) ([]value.Value, error) {
		depth := 0
		if n, ok := argNumber(args, 0); ok {
			depth = int(n)
		}
		secureResult, name := query.CallFrameTaint(th, depth)
		return []value.Value{value.Boolean(secureResult), value.Str(name)}, nil
	})

	register(tbl, "gettabletaint", func(th *vm.Thread, args []value.Value) ([]value.Value, error) {
		t, ok := argTable(args, 0)
		if !ok {
			return []value.Value{value.Boolean(true)}, nil
		}
		secureResult, name := query.FieldTaint(th, t, arg(args, 1))
		return []value.Value{value.Boolean(secureResult), value.Str(name)}, nil
	})

	register(tbl, "getupvaluetaint", func(th *vm.Thread, args []value.Value) ([]value.Value, error) {
		idx := 0
		if n, ok := argNumber(args, 1); ok {
			idx = int(n)
		}
		secureResult, name := query.UpvalueTaint(arg(args, 0), idx)
		return []value.Value{value.Boolean(secureResult), value.Str(name)}, nil
	})

	register(tbl, "getlocaltaint", func(th *vm.Thread, args []value.Value) ([]value.Value, error) {
		depth, slot := 0, 0
		if n, ok := argNumber(args, 0); ok {
			depth = int(n)
		}
		if n, ok := argNumber(args, 1); ok {
			slot = int(n)
		}
		secureResult, name := query.LocalTaint(th, depth, slot)
		return []value.Value{value.Boolean(secureResult), value.Str(name)}, nil
	})

	// setlocaltaint is luaL_setlocaltaint's script-visible counterpart to
	// getlocaltaint: it re-stamps a live local's taint in place (source's
	// taint only, per barrier.DebugLocalStore — no ambient stacktaint
	// leaks in), leaving the local's value untouched.
	register(tbl, "setlocaltaint", func(th *vm.Thread, args []value.Value) ([]value.Value, error) {
		depth, slot := 0, 0
		if n, ok := argNumber(args, 0); ok {
			depth = int(n)
		}
		if n, ok := argNumber(args, 1); ok {
			slot = int(n)
		}
		ci := th.FrameAt(depth)
		if ci == nil {
			return []value.Value{value.Boolean(false)}, nil
		}
		idx := ci.Base + slot
		src := th.Get(idx)
		if s, ok := argString(args, 2); ok && s != "" {
			src.Taint = th.State().Labels.Intern(s)
		} else {
			src.Taint = nil
		}
		var dst value.Value
		barrier.DebugLocalStore(&dst, src)
		th.Set(idx, dst)
		return []value.Value{value.Boolean(true)}, nil
	})
}

func labelName(l *label.Label) string {
	if l == nil {
		return ""
	}
	return l.Name
}

// labelHandle defers interning a taint label name until resolve is
// called with a thread, so setNamedTaint's wrapper doesn't need its own
// access to the owning vm.State's label.Store.
type labelHandle struct{ name string }

func (h *labelHandle) resolve(th *vm.Thread) *label.Label {
	if h.name == "" {
		return nil
	}
	return th.State().Labels.Intern(h.name)
}

func getNamedTaint(get func(th *vm.Thread) string) vm.GoFunction {
	return func(th *vm.Thread, args []value.Value) ([]value.Value, error) {
		name := get(th)
		if name == "" {
			return []value.Value{value.Boolean(true)}, nil
		}
		return []value.Value{value.Boolean(false), value.Str(name)}, nil
	}
}

func setNamedTaint(set func(th *vm.Thread, l *labelHandle)) vm.GoFunction {
	return func(th *vm.Thread, args []value.Value) ([]value.Value, error) {
		name, _ := argString(args, 0)
		set(th, &labelHandle{name: name})
		return nil, nil
	}
}
