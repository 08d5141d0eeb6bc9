package montecarlo

import (
	"bytes"
	"context"
	"math"
	"strings"
	"testing"

	"github.com/matryer/is"

	"github.com/pyran19/multi-account/dp"
	"github.com/pyran19/multi-account/policy"
	"github.com/pyran19/multi-account/rating"
	"github.com/pyran19/multi-account/state"
)

func TestRunValidation(t *testing.T) {
	is := is.New(t)
	s := NewSimmer(rating.Default(), policy.Greedy{})
	_, err := s.Run(context.Background(), state.MustNew(0), 10, 0)
	is.True(err != nil)
	_, err = s.Run(context.Background(), state.MustNew(0), -1, 10)
	is.True(err != nil)
	_, err = s.Run(context.Background(), state.State{}, 10, 10)
	is.True(err != nil)
}

func TestSeededRunsReproduce(t *testing.T) {
	is := is.New(t)
	run := func() *SimulationResult {
		s := NewSimmer(rating.Default(), policy.Random{}, WithSeed(7), WithThreads(2))
		res, err := s.Run(context.Background(), state.MustNew(0, 0), 20, 200)
		is.NoErr(err)
		return res
	}
	a, b := run(), run()
	is.Equal(a.Mean, b.Mean)
	is.Equal(a.Ratings, b.Ratings)
}

func TestOptimalStopsImmediatelyAbovePar(t *testing.T) {
	is := is.New(t)
	solver := dp.NewSolver(rating.Default())
	s := NewSimmer(rating.Default(), policy.Optimal{Solver: solver}, WithSeed(1))
	// p(5) < 0.5 with a single account: the engine stops at once
	res, err := s.Run(context.Background(), state.MustNew(5), 10, 50)
	is.NoErr(err)
	is.Equal(res.Mean, 1580.0)
	is.Equal(res.Min, 1580.0)
	is.Equal(res.Max, 1580.0)
	is.Equal(s.Matches(), uint64(0))
}

func TestGreedyPlaysFullSeason(t *testing.T) {
	is := is.New(t)
	s := NewSimmer(rating.Default(), policy.Greedy{}, WithSeed(3), WithThreads(2))
	res, err := s.Run(context.Background(), state.MustNew(0, 0), 15, 40)
	is.NoErr(err)
	is.Equal(res.Episodes, 40)
	is.Equal(len(res.Ratings), 40)
	is.Equal(s.Matches(), uint64(15*40))
	// terminal ratings stay on the step grid
	for _, r := range res.Ratings {
		is.True(math.Mod(r-1500, 16) == 0)
	}
}

func TestOptimalMeanMatchesEngine(t *testing.T) {
	if testing.Short() {
		t.Skip("long monte carlo check")
	}
	is := is.New(t)
	params := rating.Default()
	solver := dp.NewSolver(params)

	initial := state.MustNew(0, 0)
	const n = 50
	const episodes = 10000

	v, _, err := solver.Solve(n, initial)
	is.NoErr(err)
	want := params.DecodeValue(v)

	s := NewSimmer(params, policy.Optimal{Solver: solver}, WithSeed(42), WithThreads(4))
	res, err := s.Run(context.Background(), initial, n, episodes)
	is.NoErr(err)

	// the sample mean must land within a few standard errors of the
	// analytical expectation
	tol := 5 * res.StdErr
	if diff := math.Abs(res.Mean - want); diff > tol {
		t.Fatalf("mean %v too far from expectation %v (tol %v)", res.Mean, want, tol)
	}
}

func TestEpisodeLogStream(t *testing.T) {
	is := is.New(t)
	var buf bytes.Buffer
	s := NewSimmer(rating.Default(), policy.Greedy{}, WithSeed(9), WithThreads(1), WithLogStream(&buf))
	_, err := s.Run(context.Background(), state.MustNew(0), 3, 5)
	is.NoErr(err)
	out := buf.String()
	is.True(strings.Contains(out, "episode:"))
	is.True(strings.Contains(out, "final:"))
}

func TestConfidenceInterval(t *testing.T) {
	is := is.New(t)
	s := NewSimmer(rating.Default(), policy.Random{}, WithSeed(11), WithThreads(2))
	res, err := s.Run(context.Background(), state.MustNew(0, 0), 10, 500)
	is.NoErr(err)
	lo, hi := res.ConfidenceInterval(99)
	is.True(lo < res.Mean)
	is.True(hi > res.Mean)
	is.True(strings.Contains(res.String(), "Policy: random"))
}
