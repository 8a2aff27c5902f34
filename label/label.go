// Package label implements the taint label store (spec component A): a
// process-wide, per-state intern table that produces a single canonical
// *Label for each distinct name. Label identity, not name content, is what
// taint comparisons use everywhere else in this module.
//
// Grounded on _examples/original_source/liblua/lsec.h (TString *stacktaint
// etc. are interned string references in the original; here a Label plays
// the same role as an interned TString used purely for its identity) and
// styled after the teacher's (securego/gosec) taint.Config/indexing
// pattern in taint/taint.go (map-backed lookup tables keyed by a formatted
// string key).
package label

import "sync"

// ForceInsecureName is the well-known label a script gets when it calls
// forceinsecure() without attributing a source (spec §3, §6).
const ForceInsecureName = "*** ForceInsecure ***"

// Label is an interned, immutable taint identity. Two labels are equal iff
// they were interned with the same Name; callers must compare *Label
// pointers (or use Equal), never Name strings, since name equality does
// not imply the runtime treats them as the same provenance once
// Store.Release has dropped a name from the table.
type Label struct {
	Name string
}

// Equal reports whether two (possibly absent, i.e. nil) labels represent
// the same taint identity. Identity, never string content, is what
// matters (spec invariant §3.2).
func Equal(a, b *Label) bool {
	return a == b
}

// IsForceInsecure reports whether l is the well-known ForceInsecure label
// (spec §3 invariant 6: "not expected" by anomaly-detecting tooling).
func IsForceInsecure(l *Label) bool {
	return l != nil && l.Name == ForceInsecureName
}

// Store is a process-wide-per-state intern table. The first Intern call for
// a given name allocates the canonical *Label; subsequent calls return the
// same pointer. Store is safe for concurrent use.
type Store struct {
	mu   sync.Mutex
	refs map[string]*entry
}

type entry struct {
	label *Label
	count int
}

// NewStore creates an empty label intern table, ready for use by a single
// vm.State (one "thread group", spec §5).
func NewStore() *Store {
	return &Store{refs: make(map[string]*entry)}
}

// Intern returns the canonical Label for name, allocating it on first use.
// An empty name is rejected — the "absent" (secure) taint is represented
// by a nil *Label, never by a Label with an empty Name.
func (s *Store) Intern(name string) *Label {
	if name == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.refs[name]
	if !ok {
		e = &entry{label: &Label{Name: name}}
		s.refs[name] = e
	}
	e.count++
	return e.label
}

// Release drops one reference to the label interned under name. Labels are
// "marked non-collectable while referenced" (spec §4.A); once the
// reference count reaches zero the entry is removed from the table so a
// later Intern of the same name allocates a fresh Label rather than
// resurrecting the old identity. This mirrors the source string's own
// reference-counted interning in the host Lua runtime, adapted to Go where
// there is no tracing collector to ask.
func (s *Store) Release(name string) {
	if name == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.refs[name]
	if !ok {
		return
	}
	e.count--
	if e.count <= 0 {
		delete(s.refs, name)
	}
}

// ForceInsecure returns the canonical ForceInsecure label, interning it if
// this is the first use in this store.
func (s *Store) ForceInsecure() *Label {
	return s.Intern(ForceInsecureName)
}

// Len reports how many distinct labels are currently interned. Exposed for
// tests and for embedder diagnostics (e.g. leak-hunting long-running
// states).
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.refs)
}
