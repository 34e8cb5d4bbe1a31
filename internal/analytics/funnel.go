package analytics

import (
	"errors"
	"time"
)

// ErrInvalidFunnel rejects funnels with fewer than two steps before any
// aggregation runs.
var ErrInvalidFunnel = errors.New("a funnel needs at least 2 steps")

// ValidateFunnel checks a funnel step list is meaningful.
func ValidateFunnel(steps []string) error {
	if len(steps) < 2 {
		return ErrInvalidFunnel
	}
	return nil
}

// funnelTracker holds per-user funnel progression for one aggregation run.
//
// Advancement is strict, ordered and first-touch: step 0 is recorded at a
// user's first matching event; step i>0 only when step i-1 is already
// recorded at a strictly earlier timestamp and step i is still unset.
// Later matching events for an already-recorded step are ignored, so a
// user's step counts are non-increasing across steps by construction.
type funnelTracker struct {
	steps []string
	// stepIndex maps an event name to every step position it occupies.
	stepIndex map[string][]int
	// reached is user -> first-touch timestamp per step; the zero time
	// means not reached.
	reached map[string][]time.Time
}

func newFunnelTracker(steps []string) *funnelTracker {
	idx := make(map[string][]int, len(steps))
	for i, name := range steps {
		idx[name] = append(idx[name], i)
	}
	return &funnelTracker{
		steps:     steps,
		stepIndex: idx,
		reached:   make(map[string][]time.Time),
	}
}

func (t *funnelTracker) observe(user, name string, at time.Time) {
	positions, ok := t.stepIndex[name]
	if !ok {
		return
	}

	state := t.reached[user]
	if state == nil {
		state = make([]time.Time, len(t.steps))
		t.reached[user] = state
	}

	for _, i := range positions {
		if !state[i].IsZero() {
			continue
		}
		if i == 0 {
			state[0] = at
			continue
		}
		if prev := state[i-1]; !prev.IsZero() && at.After(prev) {
			state[i] = at
		}
	}
}

// counts returns the number of distinct users that reached each step.
func (t *funnelTracker) counts() []int {
	counts := make([]int, len(t.steps))
	for _, state := range t.reached {
		for i, ts := range state {
			if !ts.IsZero() {
				counts[i]++
			}
		}
	}
	return counts
}
