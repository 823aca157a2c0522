package engine

import (
	"math/bits"

	"github.com/hailam/chessplay/sfnnue"
	"github.com/hailam/chessplay/sfnnue/features"

	"github.com/hailam/krait/internal/board"
)

// NNUEEvaluator is the production evaluator: the sfnnue dual-network
// stack (big + small) with incrementally updated accumulators. Networks
// are immutable after load and shared by every worker; each worker's
// context owns its own accumulator stack.
type NNUEEvaluator struct {
	nets *sfnnue.Networks
}

// LoadNNUE reads the two network files and returns an evaluator.
func LoadNNUE(bigPath, smallPath string) (*NNUEEvaluator, error) {
	nets, err := sfnnue.LoadNetworks(bigPath, smallPath)
	if err != nil {
		return nil, err
	}
	return &NNUEEvaluator{nets: nets}, nil
}

// NewContext returns a per-worker accumulator context.
func (e *NNUEEvaluator) NewContext() EvalContext {
	return &nnueContext{
		nets: e.nets,
		acc:  sfnnue.NewAccumulatorStack(),
	}
}

// DirtyPiece tracks one piece change for incremental accumulator updates.
// FromSq = -1 means the piece appeared (promotion); ToSq = -1 means it
// left the board (capture).
type DirtyPiece struct {
	Piece  int // sfnnue piece encoding (1-14)
	FromSq int
	ToSq   int
}

// maxDirtyPieces: simple move 1, capture / en passant 2, capture-promotion 3.
const maxDirtyPieces = 3

type dirtyState struct {
	pieces    [maxDirtyPieces]DirtyPiece
	count     int
	kingMoved [2]bool
	computed  bool
}

// sfnnuePieceTable maps [color][pieceType] to the sfnnue piece encoding:
// W_PAWN=1 .. W_KING=6, B_PAWN=9 .. B_KING=14.
var sfnnuePieceTable = [2][6]int{
	{1, 2, 3, 4, 5, 6},
	{9, 10, 11, 12, 13, 14},
}

type nnueContext struct {
	nets  *sfnnue.Networks
	acc   *sfnnue.AccumulatorStack
	dirty dirtyState

	// scratch for feature indices; 32 removed + 32 added upper bound
	indexBuffer [64]int
}

func (c *nnueContext) Reset(pos *board.Position) {
	c.acc.Reset()
	c.dirty = dirtyState{}
}

// Push records the feature changes of m; must run before DoMove while the
// position still has its pre-move state.
func (c *nnueContext) Push(pos *board.Position, m board.Move) {
	c.computeDirtyPieces(pos, m)
	c.pushAccumulators()
}

func (c *nnueContext) PushNull() {
	c.dirty = dirtyState{}
	c.pushAccumulators()
}

func (c *nnueContext) Pop() {
	c.acc.Pop()
}

// computeDirtyPieces fills the dirty state for the move. King moves and
// castling force a full refresh of that perspective.
func (c *nnueContext) computeDirtyPieces(pos *board.Position, m board.Move) {
	c.dirty = dirtyState{}

	from := m.From()
	to := m.To()
	pc := pos.PieceOn(from)
	if pc == board.NoPiece {
		return
	}

	us := int(pc.Color())
	pt := pc.Type()

	if pt == board.King || m.IsCastle() {
		c.dirty.kingMoved[us] = true
		c.dirty.computed = true
		return
	}

	sfPiece := sfnnuePieceTable[us][pt]
	c.dirty.pieces[c.dirty.count] = DirtyPiece{Piece: sfPiece, FromSq: int(from), ToSq: int(to)}
	c.dirty.count++

	if m.IsEnPassant() {
		capSq := board.NewSquare(to.File(), from.Rank())
		c.dirty.pieces[c.dirty.count] = DirtyPiece{
			Piece:  sfnnuePieceTable[1-us][board.Pawn],
			FromSq: int(capSq),
			ToSq:   -1,
		}
		c.dirty.count++
	} else if captured := pos.PieceOn(to); captured != board.NoPiece {
		c.dirty.pieces[c.dirty.count] = DirtyPiece{
			Piece:  sfnnuePieceTable[captured.Color()][captured.Type()],
			FromSq: int(to),
			ToSq:   -1,
		}
		c.dirty.count++
	}

	if m.IsPromotion() {
		// Rewrite the pawn delta as a removal, then add the new piece.
		c.dirty.pieces[0] = DirtyPiece{Piece: sfPiece, FromSq: int(from), ToSq: -1}
		c.dirty.pieces[c.dirty.count] = DirtyPiece{
			Piece:  sfnnuePieceTable[us][m.Promotion()],
			FromSq: -1,
			ToSq:   int(to),
		}
		c.dirty.count++
	}

	c.dirty.computed = true
}

// pushAccumulators advances the stack, marking perspectives that need a
// full recomputation versus an incremental delta.
func (c *nnueContext) pushAccumulators() {
	c.acc.Push()

	bigAcc := c.acc.CurrentBig()
	smallAcc := c.acc.CurrentSmall()

	for p := 0; p < 2; p++ {
		refresh := !c.dirty.computed || c.dirty.kingMoved[p]
		bigAcc.NeedsRefresh[p] = refresh
		smallAcc.NeedsRefresh[p] = refresh
		bigAcc.Computed[p] = false
		smallAcc.Computed[p] = false
	}
}

// Evaluate runs the dual-network evaluation: the big network's positional
// term plus the averaged PSQT of both networks, adjusted by optimism and
// damped by the 50-move clock.
func (c *nnueContext) Evaluate(pos *board.Position, optimism int) int {
	pieceCount := pos.Occupied().PopCount()
	stm := 0
	if pos.SideToMove() == board.Black {
		stm = 1
	}

	bigAcc := c.acc.CurrentBig()
	smallAcc := c.acc.CurrentSmall()
	c.ensureComputed(c.nets.Big, bigAcc, pos, false)
	c.ensureComputed(c.nets.Small, smallAcc, pos, true)

	bigPsqt, bigPositional := c.nets.Big.Evaluate(
		bigAcc.Accumulation, bigAcc.PSQTAccumulation,
		stm, pieceCount, c.acc.TransformBuffer[:])

	smallPsqt, _ := c.nets.Small.Evaluate(
		smallAcc.Accumulation, smallAcc.PSQTAccumulation,
		stm, pieceCount, c.acc.TransformBuffer[:])

	v := int(bigPositional) + int(smallPsqt+bigPsqt)/2

	// Optimism scaled by material on the board.
	pawnCount := pos.PiecesKind(board.Pawn).PopCount()
	material := 534*pawnCount + nonPawnMaterialBoth(pos)
	v += optimism * (7191 + material) / 77871

	// Rule50 dampening keeps scores honest near the clock.
	v -= v * pos.Rule50() / 199

	return clamp(v, -ValueTBWinInMaxPly+1, ValueTBWinInMaxPly-1)
}

// ensureComputed refreshes or incrementally updates one accumulator.
func (c *nnueContext) ensureComputed(net *sfnnue.Network, acc *sfnnue.Accumulator, pos *board.Position, small bool) {
	var prev *sfnnue.Accumulator
	if small {
		prev = c.acc.PreviousSmall()
	} else {
		prev = c.acc.PreviousBig()
	}

	for perspective := 0; perspective < 2; perspective++ {
		if acc.Computed[perspective] {
			continue
		}

		canIncremental := prev != nil &&
			prev.Computed[perspective] &&
			!acc.NeedsRefresh[perspective] &&
			c.dirty.computed && c.dirty.count > 0

		ksq := int(pos.KingSquare(board.Color(perspective)))

		if canIncremental {
			removed, added := c.featureDeltas(perspective, ksq)
			net.FeatureTransformer.UpdateAccumulator(
				removed, added,
				acc.Accumulation[perspective],
				acc.PSQTAccumulation[perspective],
			)
		} else {
			c.computeAccumulator(net, pos, acc, perspective)
		}
		acc.Computed[perspective] = true
		acc.KingSq[perspective] = ksq
	}
}

// featureDeltas expands the dirty pieces into removed/added feature lists.
func (c *nnueContext) featureDeltas(perspective, ksq int) (removed, added []int) {
	removedBuf := c.indexBuffer[0:32]
	addedBuf := c.indexBuffer[32:64]
	nr, na := 0, 0

	for i := 0; i < c.dirty.count; i++ {
		dp := &c.dirty.pieces[i]
		if dp.FromSq >= 0 {
			removedBuf[nr] = features.MakeIndex(perspective, dp.FromSq, dp.Piece, ksq)
			nr++
		}
		if dp.ToSq >= 0 {
			addedBuf[na] = features.MakeIndex(perspective, dp.ToSq, dp.Piece, ksq)
			na++
		}
	}

	return removedBuf[:nr], addedBuf[:na]
}

// computeAccumulator rebuilds one perspective from scratch by walking the
// piece bitboards directly.
func (c *nnueContext) computeAccumulator(net *sfnnue.Network, pos *board.Position, acc *sfnnue.Accumulator, perspective int) {
	ksq := int(pos.KingSquare(board.Color(perspective)))

	var active features.IndexList
	for col := board.White; col <= board.Black; col++ {
		for pt := board.Pawn; pt <= board.King; pt++ {
			sfPiece := sfnnuePieceTable[col][pt]
			bb := uint64(pos.Pieces(col, pt))
			for bb != 0 {
				sq := bits.TrailingZeros64(bb)
				bb &= bb - 1
				active.Push(features.MakeIndex(perspective, sq, sfPiece, ksq))
			}
		}
	}

	indices := c.indexBuffer[:active.Size]
	for i := 0; i < active.Size; i++ {
		indices[i] = active.Values[i]
	}

	net.FeatureTransformer.ComputeAccumulator(
		indices,
		acc.Accumulation[perspective],
		acc.PSQTAccumulation[perspective],
	)
}

// nonPawnMaterialBoth sums both sides' non-pawn material.
func nonPawnMaterialBoth(pos *board.Position) int {
	return pos.NonPawnMaterial(board.White) + pos.NonPawnMaterial(board.Black)
}
