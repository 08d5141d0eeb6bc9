package shell

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/aybabtme/uniplot/histogram"

	"github.com/pyran19/multi-account/analyzer"
	"github.com/pyran19/multi-account/experiments"
	"github.com/pyran19/multi-account/state"
)

// parseRatings interprets trailing args as external ratings. No trailing args
// means count accounts all starting at mu.
func parseRatings(args []string, count int) ([]float64, error) {
	if len(args) == 0 {
		return nil, nil
	}
	if len(args) != count {
		return nil, fmt.Errorf("got %d ratings for %d accounts", len(args), count)
	}
	out := make([]float64, len(args))
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, fmt.Errorf("bad rating %q: %w", a, err)
		}
		out[i] = v
	}
	return out, nil
}

func (sc *ShellController) solve(cmd *shellcmd) (*Response, error) {
	if len(cmd.args) < 1 {
		return nil, errors.New("need at least a match count; try `help solve`")
	}
	n, err := strconv.Atoi(cmd.args[0])
	if err != nil {
		return nil, fmt.Errorf("bad match count %q: %w", cmd.args[0], err)
	}
	accounts, err := cmd.options.IntDefault("accounts", max(1, len(cmd.args)-1))
	if err != nil {
		return nil, err
	}
	initial, err := parseRatings(cmd.args[1:], accounts)
	if err != nil {
		return nil, err
	}

	resp, err := sc.analyzer.Solve(analyzer.SolveRequest{
		N: n, Accounts: accounts, Initial: initial,
	})
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "State: %v (integer %v)\n", resp.DecodedState, resp.IntegerState)
	fmt.Fprintf(&sb, "Expected final rating: %.4f\n", resp.Expectation)
	if resp.BestAction.IsStop() {
		sb.WriteString("Best action: stop playing")
	} else {
		fmt.Fprintf(&sb, "Best action: play account %d (rating %.0f)",
			resp.BestAction, resp.DecodedState[resp.BestAction])
	}
	return msg(sb.String()), nil
}

func (sc *ShellController) sim(cmd *shellcmd) (*Response, error) {
	if len(cmd.args) >= 1 && cmd.args[0] == "log" {
		f, err := os.Create("/tmp/ladder_simlog")
		if err != nil {
			return nil, err
		}
		sc.simLogFile = f
		sc.analyzer.SetLogStream(f)
		return msg("sim will log to /tmp/ladder_simlog"), nil
	}

	if len(cmd.args) < 3 {
		return nil, errors.New("need policy, match count, and episodes; try `help sim`")
	}
	pol := cmd.args[0]
	n, err := strconv.Atoi(cmd.args[1])
	if err != nil {
		return nil, fmt.Errorf("bad match count %q: %w", cmd.args[1], err)
	}
	episodes, err := strconv.Atoi(cmd.args[2])
	if err != nil {
		return nil, fmt.Errorf("bad episode count %q: %w", cmd.args[2], err)
	}
	accounts, err := cmd.options.IntDefault("accounts", max(1, len(cmd.args)-3))
	if err != nil {
		return nil, err
	}
	fixedIndex, err := cmd.options.IntDefault("index", 0)
	if err != nil {
		return nil, err
	}
	initial, err := parseRatings(cmd.args[3:], accounts)
	if err != nil {
		return nil, err
	}

	res, err := sc.analyzer.Simulate(context.Background(), analyzer.SimulateRequest{
		N: n, Accounts: accounts, Initial: initial,
		Episodes: episodes, Policy: pol, FixedIndex: fixedIndex,
	})
	if err != nil {
		return nil, err
	}
	sc.lastSim = res
	return msg(res.String()), nil
}

func (sc *ShellController) hist(cmd *shellcmd) (*Response, error) {
	if sc.lastSim == nil {
		return nil, errors.New("no simulation yet; run `sim` first")
	}
	bins, err := cmd.options.IntDefault("bins", 15)
	if err != nil {
		return nil, err
	}
	h := histogram.Hist(bins, sc.lastSim.Ratings)
	var sb strings.Builder
	fmt.Fprintf(&sb, "Final rating distribution (%s, %d episodes):\n",
		sc.lastSim.PolicyName, sc.lastSim.Episodes)
	if err := histogram.Fprint(&sb, h, histogram.Linear(40)); err != nil {
		return nil, err
	}
	return msg(sb.String()), nil
}

func (sc *ShellController) compare(cmd *shellcmd) (*Response, error) {
	if len(cmd.args) < 2 {
		return nil, errors.New("need match count and episodes; try `help compare`")
	}
	n, err := strconv.Atoi(cmd.args[0])
	if err != nil {
		return nil, fmt.Errorf("bad match count %q: %w", cmd.args[0], err)
	}
	episodes, err := strconv.Atoi(cmd.args[1])
	if err != nil {
		return nil, fmt.Errorf("bad episode count %q: %w", cmd.args[1], err)
	}
	accounts, err := cmd.options.IntDefault("accounts", max(1, len(cmd.args)-2))
	if err != nil {
		return nil, err
	}
	initial, err := parseRatings(cmd.args[2:], accounts)
	if err != nil {
		return nil, err
	}
	ints := make([]int, accounts)
	for i := range ints {
		if initial != nil {
			ints[i] = sc.params.Encode(initial[i])
		}
	}
	st, err := state.New(ints)
	if err != nil {
		return nil, err
	}

	store, err := sc.experimentStore()
	if err != nil {
		return nil, err
	}
	results, err := experiments.ComparePolicies(context.Background(), sc.params,
		sc.analyzer.Solver(), store, experiments.Scenario{
			Initial:    st,
			MaxMatches: n,
			Episodes:   episodes,
			Threads:    sc.threads,
			Seed:       sc.seed,
		})
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%-12s%-12s%-12s%-10s%-10s\n", "Policy", "Mean", "Stdev", "Min", "Max")
	for _, r := range results {
		fmt.Fprintf(&sb, "%-12s%-12.2f%-12.2f%-10.1f%-10.1f\n",
			r.PolicyName, r.Mean, r.Stdev, r.Min, r.Max)
	}
	return msg(strings.TrimRight(sb.String(), "\n")), nil
}

func (sc *ShellController) runs(cmd *shellcmd) (*Response, error) {
	store, err := sc.experimentStore()
	if err != nil {
		return nil, err
	}
	runs, err := store.Runs(context.Background())
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return msg("no recorded runs"), nil
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%-5s%-21s%-12s%-6s%-9s%-10s%-10s\n",
		"ID", "When", "Policy", "Accts", "Matches", "Episodes", "Mean")
	for _, r := range runs {
		fmt.Fprintf(&sb, "%-5d%-21s%-12s%-6d%-9d%-10d%-10.2f\n",
			r.ID, r.CreatedAt.Format("2006-01-02 15:04:05"), r.Policy,
			r.Accounts, r.MaxMatches, r.Episodes, r.Mean)
	}
	return msg(strings.TrimRight(sb.String(), "\n")), nil
}

func (sc *ShellController) set(cmd *shellcmd) (*Response, error) {
	if len(cmd.args) == 0 {
		return msg(fmt.Sprintf("threads: %d\nseed: %d", sc.threads, sc.seed)), nil
	}
	if len(cmd.args) != 2 {
		return nil, errors.New("usage: set <option> <value>")
	}
	switch cmd.args[0] {
	case "threads":
		n, err := strconv.Atoi(cmd.args[1])
		if err != nil || n < 0 {
			return nil, fmt.Errorf("bad thread count %q", cmd.args[1])
		}
		sc.threads = n
		sc.analyzer.SetThreads(n)
	case "seed":
		s, err := strconv.ParseUint(cmd.args[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad seed %q", cmd.args[1])
		}
		sc.seed = s
		sc.analyzer.SetSeed(s)
	default:
		return nil, errors.New("unknown option " + cmd.args[0])
	}
	return msg(cmd.args[0] + " set to " + cmd.args[1]), nil
}

func (sc *ShellController) showParams(cmd *shellcmd) (*Response, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "rating step:  %d\n", sc.params.Step)
	fmt.Fprintf(&sb, "win slope k:  %g\n", sc.params.K)
	fmt.Fprintf(&sb, "baseline mu:  %g\n", sc.params.Mu)
	fmt.Fprintf(&sb, "cache dir:    %s\n", sc.cfg.CacheDir)
	fmt.Fprintf(&sb, "results db:   %s\n", sc.cfg.ResultsDB)
	fmt.Fprintf(&sb, "engine calls: %d", sc.analyzer.EngineCalls())
	return msg(sb.String()), nil
}
