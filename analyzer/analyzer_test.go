package analyzer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyran19/multi-account/dp"
	"github.com/pyran19/multi-account/rating"
	"github.com/pyran19/multi-account/rescache"
)

func TestSolveValidation(t *testing.T) {
	a := New(rating.Default())
	cases := []SolveRequest{
		{N: -1, Accounts: 2},
		{N: 1, Accounts: 0},
		{N: 1, Accounts: 2, Initial: []float64{1500}},
	}
	for _, req := range cases {
		_, err := a.Solve(req)
		assert.ErrorIs(t, err, ErrInvalidRequest, "%+v", req)
	}
	// validation happens before any computation
	assert.Equal(t, uint64(0), a.EngineCalls())
}

func TestSolveDefaultsInitialToMu(t *testing.T) {
	a := New(rating.Default())
	res, err := a.Solve(SolveRequest{N: 0, Accounts: 3})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 0}, res.IntegerState)
	assert.Equal(t, []float64{1500, 1500, 1500}, res.DecodedState)
	assert.Equal(t, 1500.0, res.Expectation)
	assert.Equal(t, dp.Stop, res.BestAction)
}

func TestSolveConcreteScenario(t *testing.T) {
	// mu=1500, d=16, k=1/800, two fresh accounts, one match:
	// expectation is p(0)*1516 + (1-p(0))*1500 = 1508.
	a := New(rating.Default())
	res, err := a.Solve(SolveRequest{N: 1, Accounts: 2, Initial: []float64{1500, 1500}})
	require.NoError(t, err)
	assert.InDelta(t, 1508.0, res.Expectation, 1e-9)
	assert.Equal(t, dp.Action(0), res.BestAction)
}

func TestSolveCanonicalizesInput(t *testing.T) {
	a := New(rating.Default())
	res, err := a.Solve(SolveRequest{N: 0, Accounts: 2, Initial: []float64{1400, 1600}})
	require.NoError(t, err)
	assert.Equal(t, []float64{1600, 1400}, res.DecodedState)
	assert.Equal(t, 1600.0, res.Expectation)
}

func TestCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()
	params := rating.Default()

	warm := New(params, WithStore(rescache.NewStore(dir)))
	req := SolveRequest{N: 12, Accounts: 2, Initial: []float64{1500, 1468}}
	first, err := warm.Solve(req)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), warm.EngineCalls())

	// a cold process must answer from the persisted file alone
	cold := New(params, WithStore(rescache.NewStore(dir)))
	second, err := cold.Solve(req)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), cold.EngineCalls())
	assert.Equal(t, first.Expectation, second.Expectation)
	assert.Equal(t, first.BestAction, second.BestAction)
}

func TestCacheScopedPerHorizon(t *testing.T) {
	dir := t.TempDir()
	a := New(rating.Default(), WithStore(rescache.NewStore(dir)))
	_, err := a.Solve(SolveRequest{N: 4, Accounts: 2})
	require.NoError(t, err)
	// a different horizon is a different store; the engine runs again
	_, err = a.Solve(SolveRequest{N: 5, Accounts: 2})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), a.EngineCalls())
}

func TestSimulateValidation(t *testing.T) {
	a := New(rating.Default())
	ctx := context.Background()
	cases := []SimulateRequest{
		{N: 10, Accounts: 2, Episodes: 0, Policy: PolicyGreedy},
		{N: 10, Accounts: 2, Episodes: 10, Policy: "clever"},
		{N: 10, Accounts: 2, Episodes: 10, Policy: PolicyFixed, FixedIndex: 2},
		{N: 10, Accounts: 2, Episodes: 10, Policy: PolicyFixed, FixedIndex: -1},
		{N: -1, Accounts: 2, Episodes: 10, Policy: PolicyGreedy},
		{N: 10, Accounts: 0, Episodes: 10, Policy: PolicyGreedy},
	}
	for _, req := range cases {
		_, err := a.Simulate(ctx, req)
		assert.ErrorIs(t, err, ErrInvalidRequest, "%+v", req)
	}
}

func TestSimulatePolicies(t *testing.T) {
	a := New(rating.Default(), WithThreads(2), WithSeed(5))
	ctx := context.Background()
	for _, pol := range []string{PolicyOptimal, PolicyRandom, PolicyGreedy, PolicyFixed} {
		res, err := a.Simulate(ctx, SimulateRequest{
			N: 8, Accounts: 2, Episodes: 50, Policy: pol,
		})
		require.NoError(t, err, pol)
		assert.Equal(t, 50, res.Episodes)
		assert.True(t, res.Min <= res.Mean && res.Mean <= res.Max)
	}
}
