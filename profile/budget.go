package profile

import (
	"fmt"
	"time"
)

// TimeoutBudget is the script-timeout policy named in spec §6: a wall-
// clock ceiling on one top-level script invocation, checked from the
// dispatch loop via the vm.Budget interface. The reference
// implementation counts VM instructions; this runtime uses elapsed time
// instead; it polls time.Now() at the same cadence the dispatch loop
// already pays for one extra field read per instruction, rather than
// threading an instruction counter through every opcode case.
type TimeoutBudget struct {
	Limit time.Duration

	deadline time.Time
	started  bool
}

// Start arms the budget; call it immediately before the top-level Call
// that should be subject to the timeout.
func (b *TimeoutBudget) Start() {
	b.deadline = time.Now().Add(b.Limit)
	b.started = true
}

// Tick implements vm.Budget.
func (b *TimeoutBudget) Tick() error {
	if !b.started || b.Limit <= 0 {
		return nil
	}
	if time.Now().After(b.deadline) {
		return fmt.Errorf("script exceeded its time budget of %s", b.Limit)
	}
	return nil
}

// Reset disarms the budget so Tick becomes a no-op until Start is called
// again.
func (b *TimeoutBudget) Reset() {
	b.started = false
}
