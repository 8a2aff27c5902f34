// Package stdlib implements the script-visible standard library surface
// spec.md §6 names and SPEC_FULL.md's SUPPLEMENTED FEATURES section
// enriches: the base library's security-aware primitives (issecure,
// securecall, loadstring, pcall/xpcall, error/assert/type/tostring), the
// `security` table exposing the full taint-mode and taint-query surface
// as script-callable functions rather than embedder-only ones, and
// thin string/math/table/stats libraries rounding out a minimally
// complete language environment.
//
// Grounded on spec.md §6's per-function list together with
// original_source/liblua/lbaselib.c and liblua/lseclib.c (named directly
// in SPEC_FULL.md §4) for exact argument order and the base-library vs.
// security-library split; none of this package's own logic is novel,
// it is a thin script-calling-convention adapter over the already-built
// `secure` and `query` packages.
package stdlib

import (
	"github.com/taintscript/seclua/value"
	"github.com/taintscript/seclua/vm"
)

// native adapts a Go function into a *vm.Closure of the shape
// vm.GoFunction expects.
func native(fn vm.GoFunction) value.Value {
	return value.Value{Type: value.TypeFunction, Ref: &vm.Closure{Native: fn}}
}

func register(tbl *vm.Table, name string, fn vm.GoFunction) {
	tbl.RawSet(value.Str(name), native(fn))
}

// arg returns args[i], or nil if the script omitted it — every library
// function here uses positional optional arguments the way the
// reference implementation's lauxlib helpers do.
func arg(args []value.Value, i int) value.Value {
	if i < 0 || i >= len(args) {
		return value.Nil
	}
	return args[i]
}

func argString(args []value.Value, i int) (string, bool) {
	v := arg(args, i)
	if v.Type != value.TypeString {
		return "", false
	}
	return v.Str, true
}

func argTable(args []value.Value, i int) (*vm.Table, bool) {
	v := arg(args, i)
	tbl, ok := v.Ref.(*vm.Table)
	if v.Type != value.TypeTable || !ok {
		return nil, false
	}
	return tbl, true
}

func argNumber(args []value.Value, i int) (float64, bool) {
	v := arg(args, i)
	if v.Type != value.TypeNumber {
		return 0, false
	}
	return v.Number, true
}

// Cache is the subset of *compiler.Cache the base library's loadstring
// pair needs; declared as an interface here rather than importing
// compiler directly, so stdlib and compiler don't form an import cycle
// if compiler ever needs a stdlib-registered function in the future.
type Cache interface {
	Compile(source, chunkName string) (*vm.Proto, error)
}

// Open installs every library this package provides into st's globals
// table: the base library's functions at global scope, and the
// `security`/`string`/`math`/`table`/`coroutine` library tables (the
// `stats` table is installed separately by OpenStats). cache may
// be nil, in which case loadstring compiles without memoization.
func Open(st *vm.State, cache Cache) {
	globals := st.Globals()
	openBase(st, globals, cache)
	globals.RawSet(value.Str("security"), value.Value{Type: value.TypeTable, Ref: newSecLib(st)})
	globals.RawSet(value.Str("string"), value.Value{Type: value.TypeTable, Ref: newStringLib(st)})
	globals.RawSet(value.Str("math"), value.Value{Type: value.TypeTable, Ref: newMathLib(st)})
	globals.RawSet(value.Str("table"), value.Value{Type: value.TypeTable, Ref: newTableLib(st)})
	globals.RawSet(value.Str("coroutine"), value.Value{Type: value.TypeTable, Ref: newCoroutineLib(st)})
}

func newSecLib(st *vm.State) *vm.Table {
	tbl := vm.NewTable(st.Main().Taint())
	registerSecLib(tbl)
	return tbl
}

func newStringLib(st *vm.State) *vm.Table {
	tbl := vm.NewTable(st.Main().Taint())
	registerStringLib(tbl)
	return tbl
}

func newMathLib(st *vm.State) *vm.Table {
	tbl := vm.NewTable(st.Main().Taint())
	registerMathLib(tbl)
	return tbl
}

func newTableLib(st *vm.State) *vm.Table {
	tbl := vm.NewTable(st.Main().Taint())
	registerTableLib(tbl)
	return tbl
}

func newCoroutineLib(st *vm.State) *vm.Table {
	tbl := vm.NewTable(st.Main().Taint())
	registerCoroutineLib(tbl)
	return tbl
}

// OpenStats installs the `stats` library backed by collector (spec
// SUPPLEMENTED FEATURES item 6); split from Open since a collector is
// only available when the embedder actually wants profiling, unlike the
// rest of the standard library which is unconditional.
func OpenStats(st *vm.State, collector StatsSource) {
	tbl := vm.NewTable(st.Main().Taint())
	registerStatsLib(tbl, collector)
	st.Globals().RawSet(value.Str("stats"), value.Value{Type: value.TypeTable, Ref: tbl})
}
