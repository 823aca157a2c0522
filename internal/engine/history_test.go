package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hailam/krait/internal/board"
)

func TestGravityUpdateSaturates(t *testing.T) {
	var h Histories
	m := board.NewMove(board.E2, board.E4)

	// Repeated positive bonuses converge below the cap instead of
	// overflowing the int16 counter.
	for i := 0; i < 10000; i++ {
		h.Butterfly.Update(board.White, m, 1500)
	}
	v := h.Butterfly.Get(board.White, m)
	assert.Greater(t, v, 0)
	assert.LessOrEqual(t, v, butterflyCap)

	// Negative updates pull back toward and past zero symmetrically.
	for i := 0; i < 10000; i++ {
		h.Butterfly.Update(board.White, m, -1500)
	}
	v = h.Butterfly.Get(board.White, m)
	assert.Less(t, v, 0)
	assert.GreaterOrEqual(t, v, -butterflyCap)
}

func TestStatBonusShape(t *testing.T) {
	prev := 0
	for d := 1; d <= 20; d++ {
		b := statBonus(d)
		assert.GreaterOrEqual(t, b, prev, "bonus must not decrease with depth")
		prev = b
	}
	assert.LessOrEqual(t, statBonus(64), 1654)
}

func TestLowPlyHistory(t *testing.T) {
	var h Histories
	m := board.NewMove(board.D2, board.D4)

	h.LowPly.Update(0, m, 500)
	assert.Greater(t, h.LowPly.Get(0, m), 0)

	// Updates beyond the horizon are dropped, reads return zero.
	h.LowPly.Update(MaxLowPly, m, 500)
	assert.Equal(t, 0, h.LowPly.Get(MaxLowPly, m))
}

func TestCounterMoveAndContinuation(t *testing.T) {
	var h Histories

	prev := board.NewMove(board.E7, board.E5)
	counter := board.NewMove(board.G1, board.F3)
	h.CounterMove.Set(board.BlackPawn, prev.To(), counter)
	assert.Equal(t, counter, h.CounterMove.Get(board.BlackPawn, prev.To()))

	tbl := h.Continuation.Table(false, false, board.BlackPawn, board.E5)
	tbl.Update(board.WhiteKnight, board.F3, 800)
	assert.Greater(t, tbl.Get(board.WhiteKnight, board.F3), 0)

	h.Clear()
	assert.Equal(t, 0, tbl.Get(board.WhiteKnight, board.F3))
	assert.Equal(t, board.MoveNone, h.CounterMove.Get(board.BlackPawn, prev.To()))
}
