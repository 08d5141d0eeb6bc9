// Package rating converts between player-visible ratings and the integer
// representation used by the solver. Internally a rating is the signed number
// of net wins above the player's true rating mu, at step size d per match.
// Keeping all solver state in integers makes memoization and the on-disk
// cache exact and reproducible across runs.
package rating

import (
	"errors"
	"math"
)

const (
	// DefaultStep is the rating delta per match.
	DefaultStep = 16
	// DefaultK is the slope of the linear win-probability approximation.
	DefaultK = 1.0 / 800
	// DefaultMu is the player's true (mean) rating.
	DefaultMu = 1500
)

var ErrBadSlope = errors.New("win probability slope must be positive")

// Parameters is the shared, read-only parameter set for one computation.
type Parameters struct {
	Step int     // rating change per match (d)
	K    float64 // win probability slope (k)
	Mu   float64 // true rating (mu)
}

func Default() Parameters {
	return Parameters{Step: DefaultStep, K: DefaultK, Mu: DefaultMu}
}

func New(step int, k, mu float64) (Parameters, error) {
	if k <= 0 {
		return Parameters{}, ErrBadSlope
	}
	if step <= 0 {
		return Parameters{}, errors.New("rating step must be positive")
	}
	return Parameters{Step: step, K: k, Mu: mu}, nil
}

// Encode snaps an external rating to the nearest integer rating. Lossless
// only when the rating is an exact multiple of Step away from Mu.
func (p Parameters) Encode(rating float64) int {
	return int(math.Round((rating - p.Mu) / float64(p.Step)))
}

// Decode converts an integer rating back to the external scale.
func (p Parameters) Decode(i int) float64 {
	return p.Mu + float64(i)*float64(p.Step)
}

// DecodeValue converts an expectation expressed in integer-rating units
// (a real number of steps above Mu) to the external scale.
func (p Parameters) DecodeValue(v float64) float64 {
	return p.Mu + v*float64(p.Step)
}

// WinProb returns the win probability for an account at integer rating i:
// p = 0.5 - k*d*i, clamped to [0, 1]. The linear approximation is only valid
// near Mu, so the clamp is mandatory.
func (p Parameters) WinProb(i int) float64 {
	pr := 0.5 - p.K*float64(p.Step)*float64(i)
	if pr < 0 {
		return 0
	}
	if pr > 1 {
		return 1
	}
	return pr
}
