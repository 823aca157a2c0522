package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hailam/krait/internal/board"
)

func pickAll(mp *MovePicker, pos *board.Position) []board.Move {
	var out []board.Move
	for m := mp.Next(); m != board.MoveNone; m = mp.Next() {
		if pos.Legal(m) {
			out = append(out, m)
		}
	}
	return out
}

func TestMovePickerYieldsTTMoveFirst(t *testing.T) {
	pos := board.MustPosition("r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1")

	ttMove, err := board.ParseMove("e2a6", pos)
	require.NoError(t, err)

	var hist Histories
	contHist := [4]*PieceToHistory{}
	mp := NewMovePicker(pos, &hist, contHist, ttMove,
		[2]board.Move{}, board.MoveNone, 8, 0)

	first := mp.Next()
	assert.Equal(t, ttMove, first)
}

func TestMovePickerCoversAllLegalMoves(t *testing.T) {
	fens := []string{
		board.StartFEN,
		"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1",
		"rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3", // in check
	}

	for _, fen := range fens {
		pos := board.MustPosition(fen)

		var hist Histories
		mp := NewMovePicker(pos, &hist, [4]*PieceToHistory{}, board.MoveNone,
			[2]board.Move{}, board.MoveNone, 8, 0)

		picked := pickAll(mp, pos)
		seen := make(map[board.Move]int)
		for _, m := range picked {
			seen[m]++
		}

		var legal board.MoveList
		pos.GenerateLegal(&legal)

		assert.Equal(t, legal.Len(), len(picked), "%s: picker count mismatch", fen)
		for i := 0; i < legal.Len(); i++ {
			m := legal.Get(i)
			assert.Equal(t, 1, seen[m], "%s: move %v yielded %d times", fen, m, seen[m])
		}
	}
}

func TestMovePickerSkipQuiets(t *testing.T) {
	pos := board.MustPosition("r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1")

	var hist Histories
	mp := NewMovePicker(pos, &hist, [4]*PieceToHistory{}, board.MoveNone,
		[2]board.Move{}, board.MoveNone, 8, 0)
	mp.SkipQuiets()

	for m := mp.Next(); m != board.MoveNone; m = mp.Next() {
		assert.True(t, pos.IsCaptureOrPromotion(m),
			"with quiets skipped, %v should be noisy", m)
	}
}

func TestQMovePickerCapturesOnly(t *testing.T) {
	pos := board.MustPosition("r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1")

	var hist Histories
	mp := NewQMovePicker(pos, &hist, board.MoveNone, depthQSNoCheck)

	for m := mp.Next(); m != board.MoveNone; m = mp.Next() {
		assert.True(t, pos.IsCaptureOrPromotion(m),
			"quiescence move %v should be noisy", m)
	}
}

func TestPartialSort(t *testing.T) {
	vms := []board.ValMove{
		{Move: 1, Value: 10},
		{Move: 2, Value: -500},
		{Move: 3, Value: 300},
		{Move: 4, Value: 5},
		{Move: 5, Value: -200},
	}

	partialSort(vms, -100)

	// Everything above the limit is sorted descending at the front.
	assert.Equal(t, int32(300), vms[0].Value)
	assert.Equal(t, int32(10), vms[1].Value)
	assert.Equal(t, int32(5), vms[2].Value)
}
