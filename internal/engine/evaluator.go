package engine

import (
	"github.com/hailam/krait/internal/board"
)

// Evaluator produces the static evaluation the search consumes. The
// contract: callers never evaluate while in check, the result is from the
// side to move's point of view, and |v| stays below the mate band.
// Implementations must be safe for concurrent use; per-worker mutable
// state lives in the EvalContext each worker owns.
type Evaluator interface {
	// NewContext returns a per-worker evaluation context.
	NewContext() EvalContext
}

// EvalContext is the per-worker half of an Evaluator: it follows the
// worker's make/undo flow so incremental state (NNUE accumulators) stays
// in sync with the position.
type EvalContext interface {
	// Reset re-anchors the context on a fresh root position.
	Reset(pos *board.Position)

	// Push is called immediately before DoMove with the move about to be
	// played; PushNull before DoNullMove; Pop after every undo.
	Push(pos *board.Position, m board.Move)
	PushNull()
	Pop()

	// Evaluate returns the static evaluation of pos for the side to move.
	Evaluate(pos *board.Position, optimism int) int
}

// MaterialEvaluator is the fallback evaluator used when no NNUE networks
// are loaded: the position's incremental piece-square score tapered by
// game phase, plus tempo.
type MaterialEvaluator struct{}

type materialContext struct{}

// NewContext returns a stateless context.
func (MaterialEvaluator) NewContext() EvalContext { return materialContext{} }

func (materialContext) Reset(*board.Position)            {}
func (materialContext) Push(*board.Position, board.Move) {}
func (materialContext) PushNull()                        {}
func (materialContext) Pop()                             {}

// Phase bounds for tapering, in non-pawn material.
const (
	midgameCap = 15258
	endgameCap = 3915
)

func (materialContext) Evaluate(pos *board.Position, optimism int) int {
	psq := pos.PSQ()

	npm := pos.NonPawnMaterial(board.White) + pos.NonPawnMaterial(board.Black)
	phase := clamp(npm, endgameCap, midgameCap)

	v := (psq.MG()*(phase-endgameCap) + psq.EG()*(midgameCap-phase)) /
		(midgameCap - endgameCap)

	if pos.SideToMove() == board.Black {
		v = -v
	}
	v += Tempo + optimism/8

	// Damp toward zero as the 50-move clock runs down.
	v -= v * pos.Rule50() / 212

	return clamp(v, -ValueTBWinInMaxPly+1, ValueTBWinInMaxPly-1)
}
