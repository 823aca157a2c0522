package engine

import (
	"sort"

	"github.com/hailam/krait/internal/board"
)

// RootMove is one root move with its principal variation and the scores
// of the current and previous iteration.
type RootMove struct {
	PV        []board.Move
	Value     int
	PrevValue int
	AvgValue  int
	SelDepth  int
	TBRank    int
	TBValue   int
}

// NewRootMove wraps a bare move as a root move.
func NewRootMove(m board.Move) *RootMove {
	return &RootMove{
		PV:        []board.Move{m},
		Value:     -ValueInfinite,
		PrevValue: -ValueInfinite,
		AvgValue:  -ValueInfinite,
	}
}

// Move returns the first move of the PV.
func (rm *RootMove) Move() board.Move {
	return rm.PV[0]
}

// RootMoves is the ordered root move list of one worker.
type RootMoves []*RootMove

// NewRootMoves builds the root move list, optionally restricted to the
// searchmoves filter.
func NewRootMoves(pos *board.Position, searchMoves []board.Move) RootMoves {
	var ml board.MoveList
	pos.GenerateLegal(&ml)

	rms := make(RootMoves, 0, ml.Len())
	for i := 0; i < ml.Len(); i++ {
		m := ml.Get(i)
		if len(searchMoves) > 0 && !containsMove(searchMoves, m) {
			continue
		}
		rms = append(rms, NewRootMove(m))
	}
	return rms
}

// Find returns the root move starting with m, or nil.
func (rms RootMoves) Find(m board.Move) *RootMove {
	for _, rm := range rms {
		if rm.Move() == m {
			return rm
		}
	}
	return nil
}

// IndexOf returns the position of the root move starting with m, or -1.
func (rms RootMoves) IndexOf(m board.Move) int {
	for i, rm := range rms {
		if rm.Move() == m {
			return i
		}
	}
	return -1
}

// Sort stably orders the slice from index first on by this iteration's
// value, breaking ties with the previous iteration's.
func (rms RootMoves) Sort(first int) {
	sort.SliceStable(rms[first:], func(i, j int) bool {
		a, b := rms[first+i], rms[first+j]
		if a.Value != b.Value {
			return a.Value > b.Value
		}
		return a.PrevValue > b.PrevValue
	})
}

// SortByTBRank orders root moves by tablebase rank, best first.
func (rms RootMoves) SortByTBRank() {
	sort.SliceStable(rms, func(i, j int) bool {
		return rms[i].TBRank > rms[j].TBRank
	})
}

func containsMove(ms []board.Move, m board.Move) bool {
	for _, x := range ms {
		if x == m {
			return true
		}
	}
	return false
}
