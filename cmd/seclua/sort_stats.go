package main

import (
	"cmp"
	"slices"

	"github.com/taintscript/seclua/profile"
)

// sortFuncStats sorts fns by descending ticks, breaking ties by call
// count, then source, then name (all descending) — the same "severity
// first, then a deterministic tiebreak" shape the teacher's own
// sortIssues uses for issue.Severity, adapted from comparing issue.Issue
// fields to comparing profile.FuncEntry's tick/call/source/name fields.
func sortFuncStats(fns []profile.FuncEntry) {
	slices.SortFunc(fns, func(a, b profile.FuncEntry) int {
		return -cmp.Or(
			cmp.Compare(a.Ticks, b.Ticks),
			cmp.Compare(a.Calls, b.Calls),
			cmp.Compare(a.Source, b.Source),
			cmp.Compare(a.Name, b.Name),
		)
	})
}
