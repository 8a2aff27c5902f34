package vm

import (
	"github.com/google/uuid"

	"github.com/taintscript/seclua/label"
	"github.com/taintscript/seclua/value"
)

// State is one thread group (spec §5): it owns a label intern table, a
// string intern table, a globals table, and the main coroutine. Every
// heap object created under this state belongs to it for its lifetime;
// thread groups share nothing with each other.
//
// Grounded on _examples/original_source/src/lstate.h's global_State
// (owns the GC heap, string table, registry, main thread) with GC-
// specific fields dropped per spec.md's Non-goals (the real incremental
// collector's design is out of scope; Go's own GC reclaims the Go heap
// this State's objects live in).
type State struct {
	ID uuid.UUID

	Labels  *label.Store
	strings map[string]*StringObj
	globals *Table
	main    *Thread

	// ErrorHandler is the script-installed global error handler used by
	// securecall and the default uncaught-error path (spec §6
	// "geterrorhandler/seterrorhandler").
	ErrorHandler value.Value

	// Profile, when non-nil, observes every closure activation (component
	// K). Budget, when non-nil, is polled from the dispatch loop and can
	// abort execution with a timeout error.
	Profile ProfileHook
	Budget  Budget
}

// NewState creates an empty thread group with one (main) thread and an
// empty globals table. The main thread's read/write gate defaults fully
// open per spec §4.J; a security-library settaintmode call can still
// narrow or disable it later.
func NewState() *State {
	st := &State{
		ID:      uuid.New(),
		Labels:  label.NewStore(),
		strings: make(map[string]*StringObj),
	}
	st.main = NewThread(st)
	st.globals = NewTable(st.main.taint)
	return st
}

// Main returns the thread group's main coroutine.
func (st *State) Main() *Thread { return st.main }

// Globals returns the globals table (spec §4.F: "Globals are stored as
// entries in the globals table, so they obey the table-store rule").
func (st *State) Globals() *Table { return st.globals }

// Intern returns a value.Value wrapping the interned string s, allocated
// (if new) against th's taint substate.
func (st *State) Intern(th *Thread, s string) value.Value {
	return StrValue(st, th, s)
}

// NewCoroutine spawns a fresh, suspended coroutine bound to run entry
// once resumed, per spec §4.J's default (absent stacktaint, read/write
// gate fully open until the security library narrows it).
func (st *State) NewCoroutine(entry value.Value) *Thread {
	co := NewThread(st)
	co.entry = entry
	return co
}
