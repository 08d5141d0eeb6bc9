package experiments

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyran19/multi-account/dp"
	"github.com/pyran19/multi-account/montecarlo"
	"github.com/pyran19/multi-account/rating"
	"github.com/pyran19/multi-account/state"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(filepath.Join(t.TempDir(), "experiments.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndListRuns(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	res := &montecarlo.SimulationResult{
		PolicyName:     "greedy",
		InitialRatings: []float64{1500, 1500},
		MaxMatches:     30,
		Episodes:       100,
		Mean:           1531.5,
		Stdev:          42.0,
		Min:            1404,
		Max:            1660,
	}
	id, err := s.SaveResult(ctx, res)
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))

	runs, err := s.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "greedy", runs[0].Policy)
	assert.Equal(t, 2, runs[0].Accounts)
	assert.Equal(t, 30, runs[0].MaxMatches)
	assert.Equal(t, 1531.5, runs[0].Mean)
	assert.False(t, runs[0].CreatedAt.IsZero())
}

func TestComparePoliciesRecordsEachRun(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()
	params := rating.Default()
	solver := dp.NewSolver(params)

	results, err := ComparePolicies(ctx, params, solver, s, Scenario{
		Initial:    state.MustNew(0, 0),
		MaxMatches: 5,
		Episodes:   20,
		Threads:    2,
		Seed:       13,
	})
	require.NoError(t, err)
	// optimal, random, greedy, fixed(0), fixed(1)
	require.Len(t, results, 5)

	runs, err := s.Runs(ctx)
	require.NoError(t, err)
	assert.Len(t, runs, 5)
	// the optimal policy cannot trail the baselines by construction
	for _, r := range results[1:] {
		assert.LessOrEqual(t, r.Mean, results[0].Mean+3*16.0,
			"optimal should not be far behind %s", r.PolicyName)
	}
}
