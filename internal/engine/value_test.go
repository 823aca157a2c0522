package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMateScoreEncoding(t *testing.T) {
	// Mate scores store as plies-from-root; decode restores the
	// plies-from-node form.
	for _, ply := range []int{0, 1, 10, 100} {
		v := MateIn(ply + 3)
		enc := valueToTT(v, ply)
		assert.Equal(t, v, valueFromTT(enc, ply, 0), "mate round trip at ply %d", ply)

		v = MatedIn(ply + 3)
		enc = valueToTT(v, ply)
		assert.Equal(t, v, valueFromTT(enc, ply, 0), "mated round trip at ply %d", ply)
	}

	// Ordinary scores pass through untouched.
	for _, v := range []int{0, 17, -333, ValueKnownWin} {
		assert.Equal(t, v, valueFromTT(valueToTT(v, 12), 12, 50))
	}
}

func TestMateScoreClampNearClock(t *testing.T) {
	// A mate farther away than the remaining 50-move budget must clamp
	// to the edge of the mate band instead of decoding as a real mate.
	v := MateIn(40) // mate in 40 plies from root
	enc := valueToTT(v, 0)
	got := valueFromTT(enc, 0, 95) // only 5 plies of clock left
	assert.Equal(t, ValueMateInMaxPly-1, got)
}

func TestMateHelpers(t *testing.T) {
	assert.Equal(t, ValueMate, MateIn(0))
	assert.Equal(t, -ValueMate, MatedIn(0))
	assert.True(t, MateIn(5) > MateIn(6), "closer mates score higher")
	assert.True(t, MatedIn(5) < MatedIn(6), "closer mates against score lower")
	assert.True(t, IsWin(MateIn(10)))
	assert.True(t, IsLoss(MatedIn(10)))
	assert.False(t, IsWin(ValueKnownWin))
}
