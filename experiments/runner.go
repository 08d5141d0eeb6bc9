package experiments

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/pyran19/multi-account/dp"
	"github.com/pyran19/multi-account/montecarlo"
	"github.com/pyran19/multi-account/policy"
	"github.com/pyran19/multi-account/rating"
	"github.com/pyran19/multi-account/state"
)

// Scenario is one policy-comparison setup.
type Scenario struct {
	Initial    state.State
	MaxMatches int
	Episodes   int
	Threads    int
	Seed       uint64
}

// ComparePolicies simulates the standard policy set (optimal, random,
// greedy, fixed per rank) against one scenario, records each summary when a
// store is given, and returns the results in run order.
func ComparePolicies(ctx context.Context, params rating.Parameters, solver *dp.Solver,
	store *Store, sc Scenario) ([]*montecarlo.SimulationResult, error) {

	policies := []policy.Policy{
		policy.Optimal{Solver: solver},
		policy.Random{},
		policy.Greedy{},
	}
	for i := 0; i < sc.Initial.Accounts(); i++ {
		policies = append(policies, policy.Fixed{Index: i})
	}

	opts := []montecarlo.Option{}
	if sc.Threads > 0 {
		opts = append(opts, montecarlo.WithThreads(sc.Threads))
	}
	if sc.Seed != 0 {
		opts = append(opts, montecarlo.WithSeed(sc.Seed))
	}

	results := make([]*montecarlo.SimulationResult, 0, len(policies))
	for _, pol := range policies {
		simmer := montecarlo.NewSimmer(params, pol, opts...)
		res, err := simmer.Run(ctx, sc.Initial, sc.MaxMatches, sc.Episodes)
		if err != nil {
			return results, err
		}
		results = append(results, res)
		if store != nil {
			if _, err := store.SaveResult(ctx, res); err != nil {
				return results, err
			}
		}
		log.Info().Str("policy", pol.Name()).Float64("mean", res.Mean).Msg("policy compared")
	}
	return results, nil
}
