// Package state represents the ratings of all accounts as a canonical,
// descending-sorted vector of integer ratings. Two permutations of the same
// ratings are the same state; canonical order is restored on every
// transition, never lazily, so a state can always be used directly as a
// memo or cache key.
package state

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// MaxAccounts bounds the fixed-size key representation. The documented
// operating range is 5 accounts; 8 leaves headroom without growing the key.
const MaxAccounts = 8

var (
	ErrTooManyAccounts = errors.New("too many accounts")
	ErrRatingRange     = errors.New("integer rating out of range")
)

// keyUnused marks empty key slots. MinInt16 is never a legal rating because
// legal ratings must survive a ±1 transition within int16.
const keyUnused = math.MinInt16

// Key is a comparable, fixed-size canonical representation, suitable as a
// map key.
type Key [MaxAccounts]int16

// State is a canonical rating vector. The zero value is an empty state;
// construct with New.
type State struct {
	ratings []int
}

// New builds a canonical state from integer ratings, sorting descending.
// The input slice is not retained.
func New(ratings []int) (State, error) {
	if len(ratings) > MaxAccounts {
		return State{}, fmt.Errorf("%w: %d > %d", ErrTooManyAccounts, len(ratings), MaxAccounts)
	}
	rs := make([]int, len(ratings))
	copy(rs, ratings)
	for _, r := range rs {
		if r <= math.MinInt16+1 || r >= math.MaxInt16 {
			return State{}, fmt.Errorf("%w: %d", ErrRatingRange, r)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(rs)))
	return State{ratings: rs}, nil
}

// MustNew is New for known-good literals, mostly in tests.
func MustNew(ratings ...int) State {
	st, err := New(ratings)
	if err != nil {
		panic(err)
	}
	return st
}

// Accounts returns the number of accounts.
func (s State) Accounts() int {
	return len(s.ratings)
}

// Best returns the current maximum rating (the first canonical element).
func (s State) Best() int {
	return s.ratings[0]
}

// At returns the rating of the account at canonical index idx.
func (s State) At(idx int) int {
	return s.ratings[idx]
}

// Ratings returns a copy of the canonical rating vector.
func (s State) Ratings() []int {
	out := make([]int, len(s.ratings))
	copy(out, s.ratings)
	return out
}

// AfterMatch returns the canonical state after the account at idx wins or
// loses one match.
func (s State) AfterMatch(idx int, won bool) State {
	rs := make([]int, len(s.ratings))
	copy(rs, s.ratings)
	if won {
		rs[idx]++
	} else {
		rs[idx]--
	}
	// A single ±1 only needs a local re-sort; bubble the changed element.
	if won {
		for i := idx; i > 0 && rs[i] > rs[i-1]; i-- {
			rs[i], rs[i-1] = rs[i-1], rs[i]
		}
	} else {
		for i := idx; i < len(rs)-1 && rs[i] < rs[i+1]; i++ {
			rs[i], rs[i+1] = rs[i+1], rs[i]
		}
	}
	return State{ratings: rs}
}

// Key returns the fixed-size comparable key for this state.
func (s State) Key() Key {
	var k Key
	for i := range k {
		if i < len(s.ratings) {
			k[i] = int16(s.ratings[i])
		} else {
			k[i] = keyUnused
		}
	}
	return k
}

// KeyBytes serializes the key for hashing (little-endian int16s).
func (k Key) Bytes() []byte {
	b := make([]byte, 2*MaxAccounts)
	for i, v := range k {
		u := uint16(v)
		b[2*i] = byte(u)
		b[2*i+1] = byte(u >> 8)
	}
	return b
}

func (s State) String() string {
	parts := make([]string, len(s.ratings))
	for i, r := range s.ratings {
		parts[i] = fmt.Sprintf("%d", r)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
