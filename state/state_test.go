package state

import (
	"testing"

	"github.com/matryer/is"
)

func TestCanonicalOrder(t *testing.T) {
	is := is.New(t)
	st, err := New([]int{-2, 5, 0})
	is.NoErr(err)
	is.Equal(st.Ratings(), []int{5, 0, -2})
	is.Equal(st.Best(), 5)
	is.Equal(st.Accounts(), 3)
}

func TestPermutationsShareKey(t *testing.T) {
	is := is.New(t)
	a := MustNew(1, -3, 2)
	b := MustNew(2, 1, -3)
	c := MustNew(-3, 2, 1)
	is.Equal(a.Key(), b.Key())
	is.Equal(b.Key(), c.Key())
}

func TestDifferentLengthsDiffer(t *testing.T) {
	is := is.New(t)
	a := MustNew(0, 0)
	b := MustNew(0, 0, 0)
	is.True(a.Key() != b.Key())
}

func TestAfterMatchCanonicalizes(t *testing.T) {
	is := is.New(t)
	st := MustNew(3, 3, 1)
	// the last account wins twice; after the second win it passes nobody
	won := st.AfterMatch(2, true)
	is.Equal(won.Ratings(), []int{3, 3, 2})
	won = won.AfterMatch(2, true)
	is.Equal(won.Ratings(), []int{3, 3, 3})
	// a loss by the leader drops it behind the second account
	lost := MustNew(3, 3, 1).AfterMatch(0, false)
	is.Equal(lost.Ratings(), []int{3, 2, 1})
}

func TestAfterMatchDoesNotMutate(t *testing.T) {
	is := is.New(t)
	st := MustNew(0, 0)
	_ = st.AfterMatch(1, true)
	is.Equal(st.Ratings(), []int{0, 0})
}

func TestTooManyAccounts(t *testing.T) {
	is := is.New(t)
	_, err := New(make([]int, MaxAccounts+1))
	is.True(err != nil)
}

func TestRatingRange(t *testing.T) {
	is := is.New(t)
	_, err := New([]int{40000})
	is.True(err != nil)
}

func TestKeyBytesDistinct(t *testing.T) {
	is := is.New(t)
	a := MustNew(1, 0).Key().Bytes()
	b := MustNew(0, 1).Key().Bytes()
	// same canonical state, same bytes
	is.Equal(a, b)
	c := MustNew(1, 1).Key().Bytes()
	is.True(string(a) != string(c))
}

func TestString(t *testing.T) {
	is := is.New(t)
	is.Equal(MustNew(-1, 4).String(), "(4, -1)")
}
