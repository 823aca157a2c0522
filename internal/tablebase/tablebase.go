// Package tablebase defines the endgame-tablebase probe contract the
// search consumes, plus a remote prober and a persistent probe cache.
// The search only probes positions with few pieces, a zeroed 50-move
// clock and no castling rights; the caller converts WDL/DTZ results to
// search values.
package tablebase

import (
	"github.com/hailam/krait/internal/board"
)

// WDL is a win/draw/loss classification from the side to move's view.
type WDL int

const (
	WDLLoss        WDL = -2
	WDLBlessedLoss WDL = -1 // loss, but the 50-move rule saves it
	WDLDraw        WDL = 0
	WDLCursedWin   WDL = 1 // win, but the 50-move rule spoils it
	WDLWin         WDL = 2
)

// ProbeState reports how a probe went.
type ProbeState int

const (
	// Failure: the position is not covered; fall back to search.
	Failure ProbeState = iota
	// Success: the result is valid.
	Success
	// ZeroingBest: a winning zeroing move (capture or pawn move) exists
	// and should be preferred.
	ZeroingBest
	// OppositeSide: the table stores the position from the other side;
	// the caller must negate.
	OppositeSide
)

// RootResult carries the tablebase-preferred move at the root.
type RootResult struct {
	State ProbeState
	Move  board.Move
	WDL   WDL
	DTZ   int
}

// Prober is the tablebase probe contract.
type Prober interface {
	// ProbeWDL classifies the position.
	ProbeWDL(pos *board.Position) (ProbeState, WDL)

	// ProbeDTZ returns the distance to the next zeroing move.
	ProbeDTZ(pos *board.Position) (ProbeState, int)

	// ProbeRoot ranks the root position's moves and returns the best.
	ProbeRoot(pos *board.Position) RootResult

	// MaxPieces returns the largest piece count the tables cover.
	MaxPieces() int

	// Available reports whether probing can succeed at all.
	Available() bool
}

// NoopProber answers Failure to everything; the placeholder when no
// tablebases are configured.
type NoopProber struct{}

func (NoopProber) ProbeWDL(*board.Position) (ProbeState, WDL) { return Failure, WDLDraw }
func (NoopProber) ProbeDTZ(*board.Position) (ProbeState, int) { return Failure, 0 }
func (NoopProber) ProbeRoot(*board.Position) RootResult       { return RootResult{State: Failure} }
func (NoopProber) MaxPieces() int                             { return 0 }
func (NoopProber) Available() bool                            { return false }
