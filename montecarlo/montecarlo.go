// Package montecarlo verifies the value-function engine statistically by
// simulating many independent seasons under a chosen policy and aggregating
// the terminal max ratings.
package montecarlo

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"runtime"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
	"lukechampine.com/frand"

	"github.com/pyran19/multi-account/policy"
	"github.com/pyran19/multi-account/rating"
	"github.com/pyran19/multi-account/state"
	"github.com/pyran19/multi-account/stats"
)

var ErrBadEpisodes = errors.New("episodes must be at least 1")

// EpisodeLog is one simulated season, serialized to the optional log stream.
type EpisodeLog struct {
	Episode int     `yaml:"episode" json:"episode"`
	Matches int     `yaml:"matches" json:"matches"`
	Final   float64 `yaml:"final" json:"final"`
	Stopped bool    `yaml:"stopped,omitempty" json:"stopped,omitempty"`
	Thread  int     `yaml:"thread" json:"thread"`
}

// SimulationResult aggregates the terminal ratings of all episodes, on the
// external rating scale.
type SimulationResult struct {
	PolicyName     string
	InitialRatings []float64
	MaxMatches     int
	Episodes       int
	Mean           float64
	Stdev          float64
	StdErr         float64
	Min            float64
	Max            float64
	// Ratings holds every episode's terminal rating, indexed by episode.
	Ratings []float64
}

// ConfidenceInterval returns the two-tailed interval around the mean at the
// given confidence level (in percent).
func (r *SimulationResult) ConfidenceInterval(level float64) (float64, float64) {
	half := stats.ZVal(level) * r.StdErr
	return r.Mean - half, r.Mean + half
}

func (r *SimulationResult) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Policy: %s\n", r.PolicyName)
	fmt.Fprintf(&sb, "Initial ratings: %v\n", r.InitialRatings)
	fmt.Fprintf(&sb, "Max matches: %d\n", r.MaxMatches)
	fmt.Fprintf(&sb, "Results over %d episodes:\n", r.Episodes)
	fmt.Fprintf(&sb, "  Mean final rating: %.2f ± %.2f (99%% CI)\n", r.Mean, stats.Z99*r.StdErr)
	fmt.Fprintf(&sb, "  Std dev: %.2f\n", r.Stdev)
	fmt.Fprintf(&sb, "  Min: %.2f\n", r.Min)
	fmt.Fprintf(&sb, "  Max: %.2f", r.Max)
	return sb.String()
}

// Simmer runs seasons in parallel. Episodes are statically partitioned
// across workers and each worker owns an RNG derived from (seed, worker), so
// a run with the same seed and thread count reproduces exactly.
type Simmer struct {
	params  rating.Parameters
	policy  policy.Policy
	threads int
	seed    uint64

	logStream io.Writer

	episodeCount atomic.Uint64
	matchCount   atomic.Uint64
}

type Option func(*Simmer)

// WithThreads sets the number of episode workers.
func WithThreads(n int) Option {
	return func(s *Simmer) {
		if n > 0 {
			s.threads = n
		}
	}
}

// WithSeed fixes the RNG seed; zero means draw a fresh random seed per run.
func WithSeed(seed uint64) Option {
	return func(s *Simmer) { s.seed = seed }
}

// WithLogStream streams a YAML document per episode to w.
func WithLogStream(w io.Writer) Option {
	return func(s *Simmer) { s.logStream = w }
}

func NewSimmer(params rating.Parameters, pol policy.Policy, opts ...Option) *Simmer {
	s := &Simmer{
		params:  params,
		policy:  pol,
		threads: max(1, runtime.NumCPU()),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Episodes returns the number of episodes completed so far.
func (s *Simmer) Episodes() uint64 { return s.episodeCount.Load() }

// Matches returns the number of matches simulated so far.
func (s *Simmer) Matches() uint64 { return s.matchCount.Load() }

func workerRNG(seed uint64, worker int) *frand.RNG {
	key := make([]byte, 32)
	binary.LittleEndian.PutUint64(key[0:], seed)
	binary.LittleEndian.PutUint64(key[8:], uint64(worker))
	return frand.NewCustom(key, 1024, 12)
}

// Run simulates episodes independent seasons from initial with at most
// maxMatches matches each, and aggregates the terminal ratings.
func (s *Simmer) Run(ctx context.Context, initial state.State, maxMatches, episodes int) (*SimulationResult, error) {
	if episodes < 1 {
		return nil, fmt.Errorf("%w: %d", ErrBadEpisodes, episodes)
	}
	if maxMatches < 0 {
		return nil, fmt.Errorf("max matches must be non-negative: %d", maxMatches)
	}
	if initial.Accounts() == 0 {
		return nil, errors.New("initial state must have at least one account")
	}

	seed := s.seed
	if seed == 0 {
		seed = frand.Uint64n(math.MaxUint64)
	}
	threads := min(s.threads, episodes)

	samples := make([]float64, episodes)

	logChan := make(chan []byte, threads)
	logDone := make(chan struct{})
	writer := errgroup.Group{}
	if s.logStream != nil {
		writer.Go(func() error {
			for {
				select {
				case b := <-logChan:
					s.logStream.Write(b)
				case <-logDone:
					// drain the channel
					for len(logChan) > 0 {
						s.logStream.Write(<-logChan)
					}
					return nil
				}
			}
		})
	}

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < threads; w++ {
		g.Go(func() error {
			rng := workerRNG(seed, w)
			for ep := w; ep < episodes; ep += threads {
				if err := ctx.Err(); err != nil {
					return err
				}
				final, matches, stopped := s.runEpisode(initial, maxMatches, rng)
				samples[ep] = final
				s.episodeCount.Add(1)
				s.matchCount.Add(uint64(matches))
				if s.logStream != nil {
					out, err := yaml.Marshal([]EpisodeLog{{
						Episode: ep, Matches: matches, Final: final,
						Stopped: stopped, Thread: w,
					}})
					if err != nil {
						return err
					}
					logChan <- out
				}
			}
			return nil
		})
	}
	err := g.Wait()
	if s.logStream != nil {
		close(logDone)
		writer.Wait()
	}
	if err != nil {
		return nil, err
	}

	stat := &stats.Statistic{}
	for _, v := range samples {
		stat.Push(v)
	}

	res := &SimulationResult{
		PolicyName:     s.policy.Name(),
		InitialRatings: decodeAll(s.params, initial),
		MaxMatches:     maxMatches,
		Episodes:       episodes,
		Mean:           stat.Mean(),
		Stdev:          stat.Stdev(),
		StdErr:         stat.StandardError(),
		Min:            stat.Min(),
		Max:            stat.Max(),
		Ratings:        samples,
	}
	log.Info().Str("policy", s.policy.Name()).Int("episodes", episodes).
		Int("maxMatches", maxMatches).Float64("mean", res.Mean).
		Float64("stdev", res.Stdev).Msg("sim-ended")
	return res, nil
}

// runEpisode plays one season to its end and returns the terminal max
// rating on the external scale.
func (s *Simmer) runEpisode(initial state.State, maxMatches int, rng *frand.RNG) (float64, int, bool) {
	st := initial
	remaining := maxMatches
	stopped := false
	for remaining > 0 {
		idx, play := s.policy.SelectAccount(st, remaining, rng)
		if !play {
			stopped = true
			break
		}
		won := rng.Float64() < s.params.WinProb(st.At(idx))
		st = st.AfterMatch(idx, won)
		remaining--
	}
	return s.params.Decode(st.Best()), maxMatches - remaining, stopped
}

func decodeAll(p rating.Parameters, st state.State) []float64 {
	out := make([]float64, st.Accounts())
	for i, r := range st.Ratings() {
		out[i] = p.Decode(r)
	}
	return out
}
