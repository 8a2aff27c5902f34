package seclua

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/taintscript/seclua/vmstate"
)

// Config holds the embedder-facing settings every seclua.State is built
// from: default taint mode, GC tuning knobs, and the script-timeout
// duration. The force-insecure label name is not configurable here.
// Adapted from the teacher's gas.Config, which was a bare
// map[string]interface{} keyed by rule ID; this runtime has a small,
// fixed set of settings, so a struct loaded through yaml.v3 (the
// teacher's own config serialization library in its modern form) fits
// better than an untyped map.
type Config struct {
	// TaintMode is the thread's default vmstate.Mode, parsed with
	// vmstate.ParseMode ("disabled", "r", "w", "rw").
	TaintMode string `yaml:"taint_mode"`

	// GCPause and GCStepMul mirror Lua's collectgarbage("setpause"/
	// "setstepmul") knobs. They are loaded, saved and validated, but
	// New does not pass them to anything.
	GCPause   int `yaml:"gc_pause"`
	GCStepMul int `yaml:"gc_step_mul"`

	// ScriptTimeout bounds one top-level script invocation; zero
	// disables the budget. Fed to profile.TimeoutBudget.
	ScriptTimeout time.Duration `yaml:"script_timeout"`
}

// DefaultConfig returns the settings a freshly embedded state uses
// absent any configuration file: full read-write taint tracking, Lua's
// stock GC knobs, and no timeout.
func DefaultConfig() Config {
	return Config{
		TaintMode: vmstate.ModeReadWrite.String(),
		GCPause:   200,
		GCStepMul: 200,
	}
}

// ReadFrom decodes YAML settings from r, leaving any field not present
// in the document at its current value.
func (c *Config) ReadFrom(r io.Reader) (int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return int64(len(data)), err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return int64(len(data)), err
	}
	return int64(len(data)), nil
}

// WriteTo encodes c as YAML to w.
func (c Config) WriteTo(w io.Writer) (int64, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	return int64(n), err
}

// Mode parses TaintMode, falling back to vmstate.ModeReadWrite if the
// field is empty or unrecognized.
func (c Config) Mode() vmstate.Mode {
	if c.TaintMode == "" {
		return vmstate.ModeReadWrite
	}
	m, ok := vmstate.ParseMode(c.TaintMode)
	if !ok {
		return vmstate.ModeReadWrite
	}
	return m
}

// Validate reports a *Error for settings that can't be applied as-is,
// rather than failing silently at first use.
func (c Config) Validate() error {
	if c.TaintMode != "" {
		if _, ok := vmstate.ParseMode(c.TaintMode); !ok {
			return &Error{Kind: StatusFileError, Message: fmt.Sprintf("invalid taint_mode %q", c.TaintMode)}
		}
	}
	if c.GCPause < 0 || c.GCStepMul < 0 {
		return &Error{Kind: StatusFileError, Message: "gc_pause and gc_step_mul must be non-negative"}
	}
	return nil
}
