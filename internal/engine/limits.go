package engine

import (
	"time"

	"github.com/hailam/krait/internal/board"
)

// Clock is one side's remaining time and increment.
type Clock struct {
	Time time.Duration
	Inc  time.Duration
}

// Limits constrains a search, mirroring the UCI "go" parameters. Zero
// values mean "no limit" for their field.
type Limits struct {
	Clocks      [2]Clock
	MovesToGo   int
	MoveTime    time.Duration
	Depth       int
	Nodes       uint64
	Mate        int
	Infinite    bool
	Ponder      bool
	SearchMoves []board.Move

	// Start is stamped when the controller issues "go", so elapsed time
	// includes parsing overhead.
	Start time.Time
}

// UseTimeManagement reports whether the search should budget its own time
// rather than run to a fixed bound.
func (l *Limits) UseTimeManagement() bool {
	return !l.Infinite && l.MoveTime == 0 && l.Depth == 0 &&
		l.Nodes == 0 && l.Mate == 0 &&
		(l.Clocks[board.White].Time > 0 || l.Clocks[board.Black].Time > 0)
}
