// Package dp implements the value-function engine: an exact expectation
// computation over (matches remaining, canonical rating state), with
// best-action extraction.
//
// The recurrence is
//
//	P(0, v) = v[0]
//	P(n, v) = max( v[0], max_i  p(v[i])*P(n-1, v+i) + (1-p(v[i]))*P(n-1, v-i) )
//
// where v+i / v-i are the canonicalized win/loss successors of playing
// account i. Rather than recursing, the solver expands the reachable state
// frontier breadth-first from the query root and then fills values
// level-ordered from zero matches remaining upward, so the call stack never
// grows with the horizon.
package dp

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/pbnjay/memory"
	"github.com/rs/zerolog/log"

	"github.com/pyran19/multi-account/rating"
	"github.com/pyran19/multi-account/state"
)

var (
	ErrStateSpaceTooLarge = errors.New("state space exceeds memo memory budget")
	ErrEmptyState         = errors.New("state must have at least one account")
	ErrNegativeHorizon    = errors.New("matches remaining must be non-negative")
)

// Action is the outcome of best-action extraction: an account index into the
// canonical state, or Stop.
type Action int8

const Stop Action = -1

func (a Action) IsStop() bool { return a < 0 }

func (a Action) String() string {
	if a.IsStop() {
		return "stop"
	}
	return strconv.Itoa(int(a))
}

type entry struct {
	value  float64
	action Action
}

// Rough per-state footprint in the memo: key, entry and map overhead.
const entryFootprint = 64

// Solver owns the per-process memo table. Values are exact for a given
// (matches remaining, canonical state) regardless of which query first
// computed them, so the memo grows monotonically across queries and is never
// evicted within a run. A mutex serializes public methods; Monte Carlo
// workers may share one Solver.
type Solver struct {
	mu     sync.Mutex
	params rating.Parameters

	// levels[m] holds values for m matches remaining.
	levels  []map[state.Key]entry
	entries uint64

	maxTableBytes uint64

	nodes    atomic.Uint64
	memoHits atomic.Uint64
	solves   atomic.Uint64
}

type Option func(*Solver)

// WithMaxTableBytes overrides the memo memory budget. The default is a
// quarter of physical memory.
func WithMaxTableBytes(b uint64) Option {
	return func(s *Solver) { s.maxTableBytes = b }
}

func NewSolver(params rating.Parameters, opts ...Option) *Solver {
	s := &Solver{
		params:        params,
		maxTableBytes: memory.TotalMemory() / 4,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Solve returns the expected terminal rating (in integer-rating units) and
// the best first action for n matches remaining from st.
func (s *Solver) Solve(n int, st state.State) (float64, Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.solve(n, st)
	if err != nil {
		return 0, Stop, err
	}
	return e.value, e.action, nil
}

// Expectation returns only the expected terminal rating.
func (s *Solver) Expectation(n int, st state.State) (float64, error) {
	v, _, err := s.Solve(n, st)
	return v, err
}

// BestAction returns only the best action. Ties prefer stop over any play,
// and among plays the lowest canonical index.
func (s *Solver) BestAction(n int, st state.State) (Action, error) {
	_, a, err := s.Solve(n, st)
	return a, err
}

// Nodes returns the number of states expanded so far.
func (s *Solver) Nodes() uint64 { return s.nodes.Load() }

// MemoHits returns the number of lookups answered from the memo.
func (s *Solver) MemoHits() uint64 { return s.memoHits.Load() }

// Solves returns the number of queries that required fresh computation.
func (s *Solver) Solves() uint64 { return s.solves.Load() }

// Entries returns the number of memoized (m, state) pairs.
func (s *Solver) Entries() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries
}

// Reset drops the memo table.
func (s *Solver) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.levels = nil
	s.entries = 0
}

func (s *Solver) ensureLevels(n int) {
	for len(s.levels) <= n {
		s.levels = append(s.levels, make(map[state.Key]entry))
	}
}

// solve runs with s.mu held.
func (s *Solver) solve(n int, st state.State) (entry, error) {
	if n < 0 {
		return entry{}, fmt.Errorf("%w: %d", ErrNegativeHorizon, n)
	}
	if st.Accounts() == 0 {
		return entry{}, ErrEmptyState
	}
	s.ensureLevels(n)
	if e, ok := s.levels[n][st.Key()]; ok {
		s.memoHits.Add(1)
		return e, nil
	}
	s.solves.Add(1)

	// Expand the reachable frontier from the root. frontiers[t] holds the
	// states t matches deep that still need a value at n-t remaining;
	// anything already memoized is pruned and not expanded further.
	frontiers := make([]map[state.Key]state.State, n+1)
	frontiers[0] = map[state.Key]state.State{st.Key(): st}

	pending := uint64(1)
	for t := 0; t < n; t++ {
		rem := n - t
		next := make(map[state.Key]state.State)
		for _, s0 := range frontiers[t] {
			s.nodes.Add(1)
			for i := 0; i < s0.Accounts(); i++ {
				for _, won := range [2]bool{true, false} {
					ns := s0.AfterMatch(i, won)
					k := ns.Key()
					if _, done := s.levels[rem-1][k]; done {
						s.memoHits.Add(1)
						continue
					}
					next[k] = ns
				}
			}
		}
		frontiers[t+1] = next
		pending += uint64(len(next))
		if (s.entries+pending)*entryFootprint > s.maxTableBytes {
			log.Warn().Int("n", n).Int("depth", t+1).
				Uint64("pendingStates", pending).
				Uint64("budgetBytes", s.maxTableBytes).
				Msg("solve aborted; state space over memory budget")
			return entry{}, fmt.Errorf("%w: n=%d accounts=%d", ErrStateSpaceTooLarge, n, st.Accounts())
		}
	}

	// Fill values level-ordered: deepest frontier first (0 matches
	// remaining), each level built only from the one below it.
	for t := n; t >= 0; t-- {
		rem := n - t
		for k, s0 := range frontiers[t] {
			if rem == 0 {
				s.levels[0][k] = entry{value: float64(s0.Best()), action: Stop}
				continue
			}
			best := entry{value: float64(s0.Best()), action: Stop}
			for i := 0; i < s0.Accounts(); i++ {
				p := s.params.WinProb(s0.At(i))
				win := s.levels[rem-1][s0.AfterMatch(i, true).Key()]
				lose := s.levels[rem-1][s0.AfterMatch(i, false).Key()]
				ev := p*win.value + (1-p)*lose.value
				if ev > best.value {
					best = entry{value: ev, action: Action(i)}
				}
			}
			s.levels[rem][k] = best
		}
		s.entries += uint64(len(frontiers[t]))
	}

	e := s.levels[n][st.Key()]
	log.Debug().Int("n", n).Str("state", st.String()).
		Float64("value", e.value).Str("action", e.action.String()).
		Uint64("memoEntries", s.entries).
		Msg("solved")
	return e, nil
}
