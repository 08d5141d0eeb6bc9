package rating

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	p := Default()
	// exact multiples of the step survive a round trip
	for _, r := range []float64{1500, 1516, 1484, 1900, 1100} {
		assert.Equal(t, r, p.Decode(p.Encode(r)))
	}
}

func TestEncodeSnaps(t *testing.T) {
	p := Default()
	assert.Equal(t, 0, p.Encode(1503))
	assert.Equal(t, 1, p.Encode(1510))
	assert.Equal(t, -1, p.Encode(1490))
	// snapping loses information, round trip lands on the grid
	assert.Equal(t, 1516.0, p.Decode(p.Encode(1512.3)))
}

func TestWinProb(t *testing.T) {
	p := Default()
	assert.Equal(t, 0.5, p.WinProb(0))
	// k*d = 16/800 = 0.02 per step
	assert.InDelta(t, 0.52, p.WinProb(-1), 1e-12)
	assert.InDelta(t, 0.48, p.WinProb(1), 1e-12)
}

func TestWinProbClamped(t *testing.T) {
	p := Default()
	assert.Equal(t, 0.0, p.WinProb(100))
	assert.Equal(t, 1.0, p.WinProb(-100))
}

func TestNewValidatesSlope(t *testing.T) {
	_, err := New(16, 0, 1500)
	assert.ErrorIs(t, err, ErrBadSlope)
	_, err = New(16, -0.1, 1500)
	assert.ErrorIs(t, err, ErrBadSlope)
	_, err = New(0, 0.01, 1500)
	assert.Error(t, err)
}

func TestDecodeValue(t *testing.T) {
	p := Default()
	assert.Equal(t, 1508.0, p.DecodeValue(0.5))
	assert.Equal(t, 1500.0, p.DecodeValue(0))
}
