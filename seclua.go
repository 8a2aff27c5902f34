// Package seclua is the embedding API (spec §6): a thin Go-native
// façade that wires vm.State, compiler.Cache, and stdlib together the
// way an embedder actually wants to use them — one constructor, the
// DoString/Load entry points, and pass-through access to the
// underlying *vm.State for callers that need the lower-level stack API
// (vm.Thread.Push/Get/Set/Top, spec §6's embedding primitives).
//
// Grounded on the teacher's top-level gosec.Analyzer (cmd/gosec's own
// entry point bundles an *analysis.Analyzer, a ruleset, and a Config
// into one object with a small method surface): State here plays the
// same "one constructor, a few driving methods" role over *vm.State,
// *compiler.Cache, and *profile.Collector.
package seclua

import (
	"strings"

	"github.com/taintscript/seclua/compiler"
	"github.com/taintscript/seclua/profile"
	"github.com/taintscript/seclua/stdlib"
	"github.com/taintscript/seclua/value"
	"github.com/taintscript/seclua/vm"
)

// State bundles one vm.State thread group with its compile cache,
// profiling collector, and timeout budget — everything one embedder
// normally wants to construct together and share across DoString calls.
type State struct {
	VM    *vm.State
	Cache *compiler.Cache

	collector *profile.Collector
	budget    *profile.TimeoutBudget
	cfg       Config
}

// New creates a State from cfg: a fresh vm.State with stdlib installed,
// the taint mode cfg.Mode() selects, a shared compiler.Cache, a
// profile.Collector wired as both the VM's profiling hook and the
// `stats` library's data source, and (if cfg.ScriptTimeout is positive)
// a profile.TimeoutBudget wired as the VM's execution budget.
func New(cfg Config) *State {
	vst := vm.NewState()
	vst.Main().Taint().SetMode(cfg.Mode())

	collector := profile.NewCollector()
	vst.Profile = collector

	var budget *profile.TimeoutBudget
	if cfg.ScriptTimeout > 0 {
		budget = &profile.TimeoutBudget{Limit: cfg.ScriptTimeout}
		vst.Budget = budget
	}

	cache := compiler.NewCache(128)
	stdlib.Open(vst, cache)
	stdlib.OpenStats(vst, collector)

	return &State{VM: vst, Cache: cache, collector: collector, budget: budget, cfg: cfg}
}

// NewDefault is New(DefaultConfig()), the zero-configuration entry point.
// cmd/seclua calls New with its loaded Config instead.
func NewDefault() *State {
	return New(DefaultConfig())
}

// Load compiles source (via the shared cache) into a callable function
// value without running it.
func (s *State) Load(source, chunkName string) (value.Value, error) {
	if chunkName == "" {
		chunkName = defaultChunkName(source)
	}
	proto, err := s.Cache.Compile(source, chunkName)
	if err != nil {
		return value.Value{}, newCompileError(chunkName, err)
	}
	return value.Value{Type: value.TypeFunction, Ref: &vm.Closure{Proto: proto, Name: chunkName}}, nil
}

// DoString compiles and runs source on the main thread, returning
// whatever values the chunk's top-level return statement produced.
func (s *State) DoString(source, chunkName string) ([]value.Value, error) {
	fn, err := s.Load(source, chunkName)
	if err != nil {
		return nil, err
	}
	if s.budget != nil {
		s.budget.Start()
		defer s.budget.Reset()
	}
	results, cerr := s.VM.Main().Call(fn, nil)
	if cerr != nil {
		return nil, fromVMError(cerr)
	}
	return results, nil
}

// Collector exposes the profiling collector directly, for embedders
// that want to read stats without going through the `stats` library.
func (s *State) Collector() *profile.Collector { return s.collector }

func defaultChunkName(source string) string {
	const max = 32
	line := source
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	if len(line) > max {
		line = line[:max]
	}
	return "=(load)[" + line + "]"
}
