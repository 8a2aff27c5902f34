package stdlib

import (
	"sort"

	"github.com/taintscript/seclua/value"
	"github.com/taintscript/seclua/vm"
)

// registerTableLib installs the `table` table: insert/remove/concat/sort,
// the small fixed set of array-style operations a scripting environment
// needs even though spec.md's core component table has no table-library
// component of its own (table.* is ordinary language surface, not part
// of the taint machinery).
func registerTableLib(tbl *vm.Table) {
	register(tbl, "insert", func(th *vm.Thread, args []value.Value) ([]value.Value, error) {
		t, ok := argTable(args, 0)
		if !ok {
			return nil, nil
		}
		if len(args) >= 3 {
			pos, _ := argNumber(args, 1)
			shiftInsert(t, int(pos), args[2])
		} else {
			t.SetTable(value.Num(float64(t.Len()+1)), arg(args, 1))
		}
		return nil, nil
	})
	register(tbl, "remove", func(th *vm.Thread, args []value.Value) ([]value.Value, error) {
		t, ok := argTable(args, 0)
		if !ok {
			return []value.Value{value.Nil}, nil
		}
		n := t.Len()
		pos := n
		if p, ok := argNumber(args, 1); ok {
			pos = int(p)
		}
		if pos < 1 || pos > n {
			return []value.Value{value.Nil}, nil
		}
		removed := t.Get(value.Num(float64(pos)))
		for i := pos; i < n; i++ {
			t.SetTable(value.Num(float64(i)), t.Get(value.Num(float64(i+1))))
		}
		t.SetTable(value.Num(float64(n)), value.Nil)
		return []value.Value{removed}, nil
	})
	register(tbl, "concat", func(th *vm.Thread, args []value.Value) ([]value.Value, error) {
		t, ok := argTable(args, 0)
		if !ok {
			return []value.Value{value.Str("")}, nil
		}
		sep := ""
		if s, ok := argString(args, 1); ok {
			sep = s
		}
		out := ""
		n := t.Len()
		for i := 1; i <= n; i++ {
			if i > 1 {
				out += sep
			}
			out += toString(t.Get(value.Num(float64(i))))
		}
		return []value.Value{value.Str(out)}, nil
	})
	register(tbl, "getn", func(th *vm.Thread, args []value.Value) ([]value.Value, error) {
		t, ok := argTable(args, 0)
		if !ok {
			return []value.Value{value.Num(0)}, nil
		}
		return []value.Value{value.Num(float64(t.Len()))}, nil
	})
	register(tbl, "sort", func(th *vm.Thread, args []value.Value) ([]value.Value, error) {
		t, ok := argTable(args, 0)
		if !ok {
			return nil, nil
		}
		return nil, sortTable(th, t, arg(args, 1))
	})
}

// shiftInsert implements table.insert's 3-argument form: shift elements
// at pos..n up by one, then store v at pos.
func shiftInsert(t *vm.Table, pos int, v value.Value) {
	n := t.Len()
	for i := n; i >= pos; i-- {
		t.SetTable(value.Num(float64(i+1)), t.Get(value.Num(float64(i))))
	}
	t.SetTable(value.Num(float64(pos)), v)
}

// sortTable sorts t's array part in place, using less (a Lua-callable
// comparator) when provided, or the default < ordering over numbers and
// strings otherwise.
func sortTable(th *vm.Thread, t *vm.Table, less value.Value) error {
	n := t.Len()
	elems := make([]value.Value, n)
	for i := range elems {
		elems[i] = t.Get(value.Num(float64(i + 1)))
	}

	var sortErr error
	sort.SliceStable(elems, func(i, j int) bool {
		if sortErr != nil {
			return false
		}
		if less.Type == value.TypeFunction {
			results, err := th.Call(less, []value.Value{elems[i], elems[j]})
			if err != nil {
				sortErr = err
				return false
			}
			return len(results) > 0 && results[0].Truthy()
		}
		return defaultLess(elems[i], elems[j])
	})
	if sortErr != nil {
		return sortErr
	}

	for i, v := range elems {
		t.SetTable(value.Num(float64(i+1)), v)
	}
	return nil
}

func defaultLess(a, b value.Value) bool {
	if a.Type == value.TypeNumber && b.Type == value.TypeNumber {
		return a.Number < b.Number
	}
	if a.Type == value.TypeString && b.Type == value.TypeString {
		return a.Str < b.Str
	}
	return false
}
