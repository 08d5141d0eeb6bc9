// Package analyzer is the query boundary over the solver core. It owns input
// validation, the rating codec at the edges, and the wiring between the
// persistent result cache and the value-function engine. CLI and server
// frontends wrap these two operations and nothing else.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/pyran19/multi-account/dp"
	"github.com/pyran19/multi-account/montecarlo"
	"github.com/pyran19/multi-account/policy"
	"github.com/pyran19/multi-account/rating"
	"github.com/pyran19/multi-account/rescache"
	"github.com/pyran19/multi-account/state"
)

// ErrInvalidRequest marks input-validation failures; callers can classify
// them with errors.Is before any computation has started.
var ErrInvalidRequest = errors.New("invalid request")

// Analyzer answers Solve and Simulate queries. It is safe for concurrent
// use: the solver and store synchronize internally.
type Analyzer struct {
	params rating.Parameters
	solver *dp.Solver
	store  *rescache.Store

	threads   int
	seed      uint64
	logStream io.Writer

	engineCalls atomic.Uint64
}

type Option func(*Analyzer)

// WithStore attaches a persistent result cache. Without one, every Solve
// invokes the engine (subject to its in-memory memo).
func WithStore(store *rescache.Store) Option {
	return func(a *Analyzer) { a.store = store }
}

// WithThreads sets the simulation worker count.
func WithThreads(n int) Option {
	return func(a *Analyzer) { a.threads = n }
}

// WithSeed fixes the simulation RNG seed.
func WithSeed(seed uint64) Option {
	return func(a *Analyzer) { a.seed = seed }
}

func New(params rating.Parameters, opts ...Option) *Analyzer {
	a := &Analyzer{
		params: params,
		solver: dp.NewSolver(params),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// EngineCalls reports how many Solve queries actually invoked the engine
// (cache hits do not).
func (a *Analyzer) EngineCalls() uint64 { return a.engineCalls.Load() }

// Solver exposes the underlying engine so callers can share its memo.
func (a *Analyzer) Solver() *dp.Solver { return a.solver }

// SetThreads changes the simulation worker count for subsequent runs.
func (a *Analyzer) SetThreads(n int) { a.threads = n }

// SetSeed changes the simulation seed for subsequent runs.
func (a *Analyzer) SetSeed(seed uint64) { a.seed = seed }

// SetLogStream streams per-episode YAML logs of subsequent runs to w; nil
// disables logging.
func (a *Analyzer) SetLogStream(w io.Writer) { a.logStream = w }

// SolveRequest asks for the optimal value and first action.
type SolveRequest struct {
	// N is the number of matches remaining in the season.
	N int
	// Accounts is the number of rating-tracked accounts.
	Accounts int
	// Initial holds external ratings, one per account; nil means every
	// account starts at mu.
	Initial []float64
}

type SolveResponse struct {
	// Expectation is the expected terminal max rating, external scale.
	Expectation float64
	// BestAction is the canonical account index to play next, or stop.
	BestAction dp.Action
	// IntegerState is the canonical integer-rating vector.
	IntegerState []int
	// DecodedState is IntegerState on the external scale.
	DecodedState []float64
}

func (a *Analyzer) validateInitial(accounts int, initial []float64) (state.State, error) {
	if initial != nil && len(initial) != accounts {
		return state.State{}, fmt.Errorf("%w: %d initial ratings for %d accounts",
			ErrInvalidRequest, len(initial), accounts)
	}
	ints := make([]int, accounts)
	for i := range ints {
		if initial == nil {
			ints[i] = 0
		} else {
			ints[i] = a.params.Encode(initial[i])
		}
	}
	st, err := state.New(ints)
	if err != nil {
		return state.State{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return st, nil
}

// Solve validates the request, consults the persistent cache, and computes
// on a miss.
func (a *Analyzer) Solve(req SolveRequest) (*SolveResponse, error) {
	if req.N < 0 {
		return nil, fmt.Errorf("%w: n must be non-negative, got %d", ErrInvalidRequest, req.N)
	}
	if req.Accounts < 1 {
		return nil, fmt.Errorf("%w: need at least one account, got %d", ErrInvalidRequest, req.Accounts)
	}
	st, err := a.validateInitial(req.Accounts, req.Initial)
	if err != nil {
		return nil, err
	}

	var rec rescache.Record
	hit := false
	if a.store != nil {
		rec, hit, err = a.store.Lookup(req.N, req.Accounts, st)
		if err != nil {
			return nil, err
		}
	}
	if !hit {
		a.engineCalls.Add(1)
		value, action, err := a.solver.Solve(req.N, st)
		if err != nil {
			return nil, err
		}
		rec = rescache.Record{Expectation: value, Action: action}
		if a.store != nil {
			if err := a.store.Append(req.N, req.Accounts, st, rec); err != nil {
				// a failed append only costs a recomputation later
				log.Err(err).Int("n", req.N).Msg("could not persist result")
			}
		}
	}

	return &SolveResponse{
		Expectation:  a.params.DecodeValue(rec.Expectation),
		BestAction:   rec.Action,
		IntegerState: st.Ratings(),
		DecodedState: lo.Map(st.Ratings(), func(r int, _ int) float64 {
			return a.params.Decode(r)
		}),
	}, nil
}

// Policy names accepted by Simulate.
const (
	PolicyOptimal = "optimal"
	PolicyRandom  = "random"
	PolicyFixed   = "fixed"
	PolicyGreedy  = "greedy"
)

// SimulateRequest asks for a Monte Carlo run under a named policy.
type SimulateRequest struct {
	N        int
	Accounts int
	Initial  []float64
	Episodes int
	// Policy is one of optimal, random, fixed, greedy.
	Policy string
	// FixedIndex selects the account for the fixed policy.
	FixedIndex int
}

func (a *Analyzer) buildPolicy(req SimulateRequest) (policy.Policy, error) {
	switch req.Policy {
	case PolicyOptimal:
		return policy.Optimal{Solver: a.solver}, nil
	case PolicyRandom:
		return policy.Random{}, nil
	case PolicyGreedy:
		return policy.Greedy{}, nil
	case PolicyFixed:
		if req.FixedIndex < 0 || req.FixedIndex >= req.Accounts {
			return nil, fmt.Errorf("%w: fixed index %d outside [0, %d)",
				ErrInvalidRequest, req.FixedIndex, req.Accounts)
		}
		return policy.Fixed{Index: req.FixedIndex}, nil
	default:
		return nil, fmt.Errorf("%w: unknown policy %q", ErrInvalidRequest, req.Policy)
	}
}

// Simulate validates the request and runs the Monte Carlo verifier.
func (a *Analyzer) Simulate(ctx context.Context, req SimulateRequest) (*montecarlo.SimulationResult, error) {
	if req.N < 0 {
		return nil, fmt.Errorf("%w: n must be non-negative, got %d", ErrInvalidRequest, req.N)
	}
	if req.Accounts < 1 {
		return nil, fmt.Errorf("%w: need at least one account, got %d", ErrInvalidRequest, req.Accounts)
	}
	if req.Episodes < 1 {
		return nil, fmt.Errorf("%w: episodes must be at least 1, got %d", ErrInvalidRequest, req.Episodes)
	}
	st, err := a.validateInitial(req.Accounts, req.Initial)
	if err != nil {
		return nil, err
	}
	pol, err := a.buildPolicy(req)
	if err != nil {
		return nil, err
	}

	opts := []montecarlo.Option{}
	if a.threads > 0 {
		opts = append(opts, montecarlo.WithThreads(a.threads))
	}
	if a.seed != 0 {
		opts = append(opts, montecarlo.WithSeed(a.seed))
	}
	if a.logStream != nil {
		opts = append(opts, montecarlo.WithLogStream(a.logStream))
	}
	simmer := montecarlo.NewSimmer(a.params, pol, opts...)
	return simmer.Run(ctx, st, req.N, req.Episodes)
}
