package stdlib

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/taintscript/seclua/value"
	"github.com/taintscript/seclua/vm"
)

// registerStringLib installs the `string` table. string.upper/string.lower
// use golang.org/x/text/cases for Unicode-aware case folding (spec
// DOMAIN STACK table) rather than a byte-wise ASCII toupper/tolower,
// matching how a production embeddable scripting language handles
// non-ASCII script source — a concern the reference C implementation's
// ctype-table approach doesn't have to face the same way Go does.
func registerStringLib(tbl *vm.Table) {
	upper := cases.Upper(language.Und)
	lower := cases.Lower(language.Und)

	register(tbl, "upper", func(th *vm.Thread, args []value.Value) ([]value.Value, error) {
		s, ok := argString(args, 0)
		if !ok {
			return nil, fmt.Errorf("string.upper: argument 1 must be a string")
		}
		return []value.Value{value.Str(upper.String(s))}, nil
	})
	register(tbl, "lower", func(th *vm.Thread, args []value.Value) ([]value.Value, error) {
		s, ok := argString(args, 0)
		if !ok {
			return nil, fmt.Errorf("string.lower: argument 1 must be a string")
		}
		return []value.Value{value.Str(lower.String(s))}, nil
	})
	register(tbl, "len", func(th *vm.Thread, args []value.Value) ([]value.Value, error) {
		s, ok := argString(args, 0)
		if !ok {
			return nil, fmt.Errorf("string.len: argument 1 must be a string")
		}
		return []value.Value{value.Num(float64(len(s)))}, nil
	})
	register(tbl, "sub", func(th *vm.Thread, args []value.Value) ([]value.Value, error) {
		s, ok := argString(args, 0)
		if !ok {
			return nil, fmt.Errorf("string.sub: argument 1 must be a string")
		}
		i, j := subRange(args, len(s))
		if i > j {
			return []value.Value{value.Str("")}, nil
		}
		return []value.Value{value.Str(s[i:j])}, nil
	})
	register(tbl, "rep", func(th *vm.Thread, args []value.Value) ([]value.Value, error) {
		s, _ := argString(args, 0)
		n, _ := argNumber(args, 1)
		if n < 0 {
			n = 0
		}
		return []value.Value{value.Str(strings.Repeat(s, int(n)))}, nil
	})
	register(tbl, "find", func(th *vm.Thread, args []value.Value) ([]value.Value, error) {
		s, _ := argString(args, 0)
		pattern, _ := argString(args, 1)
		idx := strings.Index(s, pattern)
		if idx < 0 {
			return []value.Value{value.Nil}, nil
		}
		return []value.Value{value.Num(float64(idx + 1)), value.Num(float64(idx + len(pattern)))}, nil
	})
	register(tbl, "format", func(th *vm.Thread, args []value.Value) ([]value.Value, error) {
		f, ok := argString(args, 0)
		if !ok {
			return nil, fmt.Errorf("string.format: argument 1 must be a string")
		}
		return []value.Value{value.Str(formatString(f, args[1:]))}, nil
	})
}

// subRange implements Lua's 1-based, negative-indexes-from-the-end
// string.sub index convention, clamped to [0, length].
func subRange(args []value.Value, length int) (int, int) {
	i, j := 1.0, -1.0
	if n, ok := argNumber(args, 1); ok {
		i = n
	}
	if n, ok := argNumber(args, 2); ok {
		j = n
	}
	return clampIndex(int(i), length), clampIndex(int(j), length) + 1
}

func clampIndex(i, length int) int {
	if i < 0 {
		i = length + i + 1
	}
	if i < 1 {
		i = 1
	}
	if i > length {
		i = length
	}
	return i - 1
}

// formatString implements the small subset of string.format's directives
// (%d, %s, %f, %%) the standard library's own callers need, applying Go's
// fmt verbs underneath since the directive set is a near-direct subset of
// them.
func formatString(f string, args []value.Value) string {
	var out strings.Builder
	argi := 0
	for i := 0; i < len(f); i++ {
		c := f[i]
		if c != '%' || i == len(f)-1 {
			out.WriteByte(c)
			continue
		}
		i++
		switch f[i] {
		case '%':
			out.WriteByte('%')
		case 'd', 'i':
			out.WriteString(fmt.Sprintf("%d", int64(numArg(args, &argi))))
		case 'f':
			out.WriteString(fmt.Sprintf("%f", numArg(args, &argi)))
		case 's':
			out.WriteString(toString(arg(args, argi)))
			argi++
		default:
			out.WriteByte('%')
			out.WriteByte(f[i])
		}
	}
	return out.String()
}

func numArg(args []value.Value, i *int) float64 {
	n, _ := argNumber(args, *i)
	*i++
	return n
}
