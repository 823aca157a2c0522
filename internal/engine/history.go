package engine

import (
	"github.com/hailam/krait/internal/board"
)

// History tables. Every worker owns a private set; nothing here is shared
// between goroutines. All counters use the saturating "gravity" update
//
//	stat += bonus - stat*|bonus|/cap
//
// which pulls values back toward zero so stale preferences decay.

const (
	butterflyCap    = 7183
	captureCap      = 10692
	continuationCap = 29952
	lowPlyCap       = 7183

	// MaxLowPly is the ply horizon of the low-ply history.
	MaxLowPly = 4
)

// statBonus is the depth-quadratic history bonus.
func statBonus(depth int) int {
	b := (17*depth+134)*depth - 134
	if b > 1654 {
		b = 1654
	}
	return b
}

// statMalus is the penalty applied to quiet moves that failed to cut.
func statMalus(depth int) int {
	m := 24*depth - 32
	if m > 1200 {
		m = 1200
	}
	if m < 0 {
		m = 0
	}
	return m
}

// gravity applies the saturating-shift update to a 16-bit counter.
func gravity(entry *int16, bonus, cap int) {
	*entry += int16(bonus - int(*entry)*abs(bonus)/cap)
}

// fromTo packs a move's origin and destination into a 12-bit index.
func fromTo(m board.Move) int {
	return int(m.From())<<6 | int(m.To())
}

// ButterflyHistory scores quiet moves by color and from-to square pair.
type ButterflyHistory [2][64 * 64]int16

// Get returns the butterfly score for a move of the given color.
func (h *ButterflyHistory) Get(c board.Color, m board.Move) int {
	return int(h[c][fromTo(m)])
}

// Update applies a gravity bonus.
func (h *ButterflyHistory) Update(c board.Color, m board.Move, bonus int) {
	gravity(&h[c][fromTo(m)], bonus, butterflyCap)
}

// LowPlyHistory gives quiet moves near the root an extra, quickly-decaying
// preference keyed by ply.
type LowPlyHistory [MaxLowPly][64 * 64]int16

// Get returns the low-ply score; zero beyond the horizon.
func (h *LowPlyHistory) Get(ply int, m board.Move) int {
	if ply >= MaxLowPly {
		return 0
	}
	return int(h[ply][fromTo(m)])
}

// Update applies a gravity bonus within the horizon.
func (h *LowPlyHistory) Update(ply int, m board.Move, bonus int) {
	if ply < MaxLowPly {
		gravity(&h[ply][fromTo(m)], bonus, lowPlyCap)
	}
}

// CaptureHistory scores captures by moving piece, destination and victim.
type CaptureHistory [12][64][6]int16

// Get returns the capture-history score.
func (h *CaptureHistory) Get(pc board.Piece, to board.Square, victim board.PieceType) int {
	if victim >= board.King {
		return 0
	}
	return int(h[pc][to][victim])
}

// Update applies a gravity bonus.
func (h *CaptureHistory) Update(pc board.Piece, to board.Square, victim board.PieceType, bonus int) {
	if victim < board.King {
		gravity(&h[pc][to][victim], bonus, captureCap)
	}
}

// PieceToHistory is one continuation-history slice: scores for a
// (piece, to) pair following some earlier (piece, to) pair.
type PieceToHistory [12][64]int16

// ContinuationHistory is indexed by [inCheck][capture] at the parent,
// then by the parent's (piece, to), yielding the PieceToHistory the child
// consults for its own (piece, to).
type ContinuationHistory [2][2][13][64]PieceToHistory

// Table returns the child table for a parent move.
func (h *ContinuationHistory) Table(inCheck, capture bool, pc board.Piece, to board.Square) *PieceToHistory {
	return &h[b2i(inCheck)][b2i(capture)][pc][to]
}

// Sentinel returns the table used when there is no parent move.
func (h *ContinuationHistory) Sentinel() *PieceToHistory {
	return &h[0][0][12][0]
}

// Update applies a gravity bonus to a child entry.
func (t *PieceToHistory) Update(pc board.Piece, to board.Square, bonus int) {
	gravity(&t[pc][to], bonus, continuationCap)
}

// Get returns the continuation score for a (piece, to) pair.
func (t *PieceToHistory) Get(pc board.Piece, to board.Square) int {
	return int(t[pc][to])
}

// CounterMoveHistory stores the refutation move per (piece, to) of the
// previous move.
type CounterMoveHistory [13][64]board.Move

// Get returns the stored counter move.
func (h *CounterMoveHistory) Get(pc board.Piece, to board.Square) board.Move {
	return h[pc][to]
}

// Set records a refutation.
func (h *CounterMoveHistory) Set(pc board.Piece, to board.Square, m board.Move) {
	h[pc][to] = m
}

// Histories bundles every per-worker table.
type Histories struct {
	Butterfly    ButterflyHistory
	LowPly       LowPlyHistory
	Capture      CaptureHistory
	Continuation ContinuationHistory
	CounterMove  CounterMoveHistory
}

// Clear zeroes every table; called on ucinewgame.
func (h *Histories) Clear() {
	*h = Histories{}
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
