package stdlib

import (
	"fmt"

	"github.com/taintscript/seclua/compiler"
	"github.com/taintscript/seclua/query"
	"github.com/taintscript/seclua/secure"
	"github.com/taintscript/seclua/value"
	"github.com/taintscript/seclua/vm"
)

// openBase installs the base-library functions directly into globals:
// the ordinary language primitives (type, tostring, tonumber, assert,
// error, pcall, xpcall, print) alongside the security-aware primitives
// spec §6 lists for the base library (issecure, issecurevariable,
// securecall, securecallfunction, hooksecurefunc, forceinsecure, scrub,
// loadstring/loadstring_untainted, geterrorhandler/seterrorhandler).
func openBase(st *vm.State, globals *vm.Table, cache Cache) {
	register(globals, "type", baseType)
	register(globals, "tostring", baseToString)
	register(globals, "tonumber", baseToNumber)
	register(globals, "assert", baseAssert)
	register(globals, "error", baseError)
	register(globals, "pcall", basePCall)
	register(globals, "xpcall", baseXPCall)
	register(globals, "print", basePrint)

	register(globals, "issecure", func(th *vm.Thread, args []value.Value) ([]value.Value, error) {
		return []value.Value{value.Boolean(secure.IsSecure(th))}, nil
	})
	register(globals, "issecurevariable", func(th *vm.Thread, args []value.Value) ([]value.Value, error) {
		tbl, name := resolveTblName(args)
		ok, labelName := query.IsSecureVariable(th, tbl, name)
		if ok {
			return []value.Value{value.Boolean(true)}, nil
		}
		return []value.Value{value.Boolean(false), value.Str(labelName)}, nil
	})
	register(globals, "securecall", func(th *vm.Thread, args []value.Value) ([]value.Value, error) {
		if len(args) == 0 {
			return nil, nil
		}
		return secure.Call(th, args[0], args[1:]), nil
	})
	register(globals, "securecallfunction", func(th *vm.Thread, args []value.Value) ([]value.Value, error) {
		if len(args) == 0 {
			return nil, nil
		}
		return secure.Call(th, args[0], args[1:]), nil
	})
	register(globals, "hooksecurefunc", func(th *vm.Thread, args []value.Value) ([]value.Value, error) {
		tbl, name, hook := resolveTblNameFn(args)
		secure.HookSecureFunc(th, tbl, name, hook)
		return nil, nil
	})
	register(globals, "forceinsecure", func(th *vm.Thread, args []value.Value) ([]value.Value, error) {
		secure.ForceInsecure(th)
		return nil, nil
	})
	register(globals, "scrub", func(th *vm.Thread, args []value.Value) ([]value.Value, error) {
		return secure.Scrub(args), nil
	})
	register(globals, "newsecurefunction", func(th *vm.Thread, args []value.Value) ([]value.Value, error) {
		if len(args) == 0 || args[0].Type != value.TypeFunction {
			return nil, fmt.Errorf("newsecurefunction: argument must be a function")
		}
		return []value.Value{secure.NewSecureDelegate(args[0])}, nil
	})
	register(globals, "geterrorhandler", func(th *vm.Thread, args []value.Value) ([]value.Value, error) {
		return []value.Value{th.State().ErrorHandler}, nil
	})
	register(globals, "seterrorhandler", func(th *vm.Thread, args []value.Value) ([]value.Value, error) {
		th.State().ErrorHandler = arg(args, 0)
		return nil, nil
	})

	register(globals, "loadstring", func(th *vm.Thread, args []value.Value) ([]value.Value, error) {
		return loadstring(th, cache, args, true)
	})
	register(globals, "loadstring_untainted", func(th *vm.Thread, args []value.Value) ([]value.Value, error) {
		return loadstring(th, cache, args, false)
	})
}

// resolveTblName implements the `[tbl,] name` optional-leading-table
// convention several security functions share: when the first argument
// is actually a table, it names the table to operate on (nil meaning
// globals); otherwise it's absent and the first argument is the name.
func resolveTblName(args []value.Value) (*vm.Table, string) {
	if tbl, ok := argTable(args, 0); ok {
		name, _ := argString(args, 1)
		return tbl, name
	}
	name, _ := argString(args, 0)
	return nil, name
}

func resolveTblNameFn(args []value.Value) (*vm.Table, string, value.Value) {
	if tbl, ok := argTable(args, 0); ok {
		name, _ := argString(args, 1)
		return tbl, name, arg(args, 2)
	}
	name, _ := argString(args, 0)
	return nil, name, arg(args, 1)
}

// loadstring is shared by the tainted and _untainted variants (spec
// SUPPLEMENTED FEATURES item 1): both compile identically, they differ
// only in whether the resulting closure is stamped ForceInsecure before
// being handed back.
func loadstring(th *vm.Thread, cache Cache, args []value.Value, taint bool) ([]value.Value, error) {
	source, ok := argString(args, 0)
	if !ok {
		return nil, fmt.Errorf("loadstring: argument 1 must be a string")
	}
	chunkName, ok := argString(args, 1)
	if !ok {
		chunkName = source
	}

	var proto *vm.Proto
	var err error
	if cache != nil {
		proto, err = cache.Compile(source, chunkName)
	} else {
		proto, err = compiler.Parse(source, chunkName)
	}
	if err != nil {
		return []value.Value{value.Nil, value.Str(err.Error())}, nil
	}

	cl := &vm.Closure{Proto: proto, Name: chunkName}
	if taint {
		cl.Header.SetObjectTaint(th.State().Labels.ForceInsecure())
	}
	return []value.Value{{Type: value.TypeFunction, Ref: cl}}, nil
}

func baseType(th *vm.Thread, args []value.Value) ([]value.Value, error) {
	return []value.Value{value.Str(arg(args, 0).Type.String())}, nil
}

func baseToString(th *vm.Thread, args []value.Value) ([]value.Value, error) {
	return []value.Value{value.Str(toString(arg(args, 0)))}, nil
}

func toString(v value.Value) string {
	switch v.Type {
	case value.TypeNil:
		return "nil"
	case value.TypeBoolean:
		if v.Bool {
			return "true"
		}
		return "false"
	case value.TypeNumber:
		return formatNumber(v.Number)
	case value.TypeString:
		return v.Str
	default:
		return fmt.Sprintf("%s: %p", v.Type, v.Ref)
	}
}

func formatNumber(n float64) string {
	if n == float64(int64(n)) {
		return fmt.Sprintf("%d", int64(n))
	}
	return fmt.Sprintf("%g", n)
}

func baseToNumber(th *vm.Thread, args []value.Value) ([]value.Value, error) {
	v := arg(args, 0)
	switch v.Type {
	case value.TypeNumber:
		return []value.Value{v}, nil
	case value.TypeString:
		var f float64
		if _, err := fmt.Sscanf(v.Str, "%g", &f); err == nil {
			return []value.Value{value.Num(f)}, nil
		}
	}
	return []value.Value{value.Nil}, nil
}

func baseAssert(th *vm.Thread, args []value.Value) ([]value.Value, error) {
	v := arg(args, 0)
	if v.Truthy() {
		return args, nil
	}
	msg := "assertion failed!"
	if len(args) >= 2 {
		msg = toString(args[1])
	}
	return nil, fmt.Errorf("%s", msg)
}

func baseError(th *vm.Thread, args []value.Value) ([]value.Value, error) {
	v := arg(args, 0)
	if v.Type == value.TypeString {
		return nil, &vm.Error{Kind: vm.StatusRuntimeError, Message: v.Str, Value: v}
	}
	return nil, &vm.Error{Kind: vm.StatusRuntimeError, Message: toString(v), Value: v}
}

// basePCall is `pcall`: calls args[0] with the rest, returning (true,
// results...) on success or (false, err) on failure — script-level
// protected call never lets a runtime error escape (spec §6 "User-
// visible behavior").
func basePCall(th *vm.Thread, args []value.Value) ([]value.Value, error) {
	if len(args) == 0 {
		return []value.Value{value.Boolean(false), value.Str("bad argument #1 to 'pcall' (value expected)")}, nil
	}
	results, err := th.PCall(args[0], args[1:])
	if err != nil {
		return []value.Value{value.Boolean(false), errorValue(err)}, nil
	}
	return append([]value.Value{value.Boolean(true)}, results...), nil
}

// baseXPCall is `xpcall`: like pcall but runs args[1] (a message handler)
// on failure, substituting its single return value for err.
func baseXPCall(th *vm.Thread, args []value.Value) ([]value.Value, error) {
	if len(args) < 2 {
		return []value.Value{value.Boolean(false), value.Str("bad argument #2 to 'xpcall' (value expected)")}, nil
	}
	fn, handler := args[0], args[1]
	results, err := th.PCall(fn, args[2:])
	if err == nil {
		return append([]value.Value{value.Boolean(true)}, results...), nil
	}
	handled, herr := th.Call(handler, []value.Value{errorValue(err)})
	if herr != nil {
		return []value.Value{value.Boolean(false), errorValue(herr)}, nil
	}
	return append([]value.Value{value.Boolean(false)}, handled...), nil
}

func errorValue(err *vm.Error) value.Value {
	if err.Value.Type != value.TypeNil {
		return err.Value
	}
	return value.Str(err.Error())
}

func basePrint(th *vm.Thread, args []value.Value) ([]value.Value, error) {
	out := ""
	for i, a := range args {
		if i > 0 {
			out += "\t"
		}
		out += toString(a)
	}
	fmt.Println(out)
	return nil, nil
}
