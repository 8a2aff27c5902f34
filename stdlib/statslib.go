package stdlib

import (
	"github.com/taintscript/seclua/profile"
	"github.com/taintscript/seclua/value"
	"github.com/taintscript/seclua/vm"
)

// StatsSource is the subset of *profile.Collector the `stats` library
// needs, declared here so stdlib depends on profile's exported report
// types without profile needing to know stdlib exists.
type StatsSource interface {
	FuncStats(source, name string) profile.FuncStats
	SourceStatsFor(source string) profile.SourceStats
	AllFuncStats() []profile.FuncEntry
	AllSourceStats() []profile.SourceEntry
}

// registerStatsLib installs the `stats` table (spec SUPPLEMENTED
// FEATURES item 6): per-source byte/tick accounting and per-function
// call/tick counts, surfaced to scripts as plain tables rather than only
// an embedder-internal counter.
func registerStatsLib(tbl *vm.Table, collector StatsSource) {
	register(tbl, "getfuncstats", func(th *vm.Thread, args []value.Value) ([]value.Value, error) {
		source, _ := argString(args, 0)
		name, _ := argString(args, 1)
		fs := collector.FuncStats(source, name)
		return []value.Value{value.Num(float64(fs.Calls)), value.Num(float64(fs.Ticks))}, nil
	})
	register(tbl, "getsourcestats", func(th *vm.Thread, args []value.Value) ([]value.Value, error) {
		source, _ := argString(args, 0)
		ss := collector.SourceStatsFor(source)
		return []value.Value{value.Num(float64(ss.Bytes)), value.Num(float64(ss.Ticks))}, nil
	})
	register(tbl, "getall", func(th *vm.Thread, args []value.Value) ([]value.Value, error) {
		result := vm.NewTable(th.Taint())
		for i, e := range collector.AllFuncStats() {
			row := vm.NewTable(th.Taint())
			row.RawSet(value.Str("source"), value.Str(e.Source))
			row.RawSet(value.Str("name"), value.Str(e.Name))
			row.RawSet(value.Str("calls"), value.Num(float64(e.Calls)))
			row.RawSet(value.Str("ticks"), value.Num(float64(e.Ticks)))
			result.RawSet(value.Num(float64(i+1)), value.Value{Type: value.TypeTable, Ref: row})
		}
		return []value.Value{{Type: value.TypeTable, Ref: result}}, nil
	})
}
