// Package policy defines account-selection strategies for the simulator.
// A policy maps (state, matches remaining) to the canonical index of the
// account to play next, or to stopping for the rest of the season.
package policy

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"lukechampine.com/frand"

	"github.com/pyran19/multi-account/dp"
	"github.com/pyran19/multi-account/state"
)

// Policy chooses the next account to play. The second return value is false
// when the policy stops. The RNG is owned by the calling episode worker so
// that shared policy values stay race-free.
type Policy interface {
	Name() string
	SelectAccount(st state.State, remaining int, rng *frand.RNG) (int, bool)
}

// Optimal plays whatever the value-function engine says is best.
type Optimal struct {
	Solver *dp.Solver
}

func (p Optimal) Name() string { return "optimal" }

func (p Optimal) SelectAccount(st state.State, remaining int, _ *frand.RNG) (int, bool) {
	a, err := p.Solver.BestAction(remaining, st)
	if err != nil {
		// The engine only fails on inputs outside its operating range;
		// stopping is the safe fallback mid-episode.
		log.Err(err).Int("remaining", remaining).Msg("best-action failed; stopping episode")
		return 0, false
	}
	if a.IsStop() {
		return 0, false
	}
	return int(a), true
}

// Random picks a uniformly random account, stopping early with probability
// StopProb at each step.
type Random struct {
	StopProb float64
}

func (p Random) Name() string { return "random" }

func (p Random) SelectAccount(st state.State, remaining int, rng *frand.RNG) (int, bool) {
	if remaining <= 0 {
		return 0, false
	}
	if p.StopProb > 0 && rng.Float64() < p.StopProb {
		return 0, false
	}
	return rng.Intn(st.Accounts()), true
}

// Fixed always plays the account at one canonical rank. An index past the
// last account plays the last (lowest-rated) one.
type Fixed struct {
	Index int
}

func (p Fixed) Name() string { return fmt.Sprintf("fixed(%d)", p.Index) }

func (p Fixed) SelectAccount(st state.State, remaining int, _ *frand.RNG) (int, bool) {
	if remaining <= 0 {
		return 0, false
	}
	if p.Index >= st.Accounts() {
		return st.Accounts() - 1, true
	}
	return p.Index, true
}

// Greedy always plays the lowest-rated account, which has the highest win
// probability. With canonical descending order that is the last index.
type Greedy struct{}

func (p Greedy) Name() string { return "greedy" }

func (p Greedy) SelectAccount(st state.State, remaining int, _ *frand.RNG) (int, bool) {
	if remaining <= 0 {
		return 0, false
	}
	return st.Accounts() - 1, true
}

// Func adapts an injected closure as a policy.
type Func struct {
	Label  string
	Select func(st state.State, remaining int) (int, bool)
}

func (p Func) Name() string { return p.Label }

func (p Func) SelectAccount(st state.State, remaining int, _ *frand.RNG) (int, bool) {
	return p.Select(st, remaining)
}
