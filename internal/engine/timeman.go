package engine

import (
	"time"

	"github.com/hailam/krait/internal/board"
)

// TimeManager allocates thinking time for one search: an optimum target
// the iteration loop aims for, and a hard maximum the node poll enforces.
// The optimum shrinks while the best move stays stable and stretches when
// the PV keeps flipping or the evaluation drops.
type TimeManager struct {
	start       time.Time
	optimumTime time.Duration
	maximumTime time.Duration

	overhead time.Duration
}

// NewTimeManager creates a time manager with the given per-move overhead
// reserve (network and output latency).
func NewTimeManager(overhead time.Duration) *TimeManager {
	return &TimeManager{overhead: overhead}
}

// Init computes the time budget for this move. ply is the game ply.
func (tm *TimeManager) Init(limits *Limits, us board.Color, ply int) {
	tm.start = limits.Start
	if tm.start.IsZero() {
		tm.start = time.Now()
	}

	if limits.MoveTime > 0 {
		tm.optimumTime = limits.MoveTime
		tm.maximumTime = limits.MoveTime
		return
	}

	if !limits.UseTimeManagement() {
		tm.optimumTime = time.Hour
		tm.maximumTime = time.Hour
		return
	}

	timeLeft := limits.Clocks[us].Time - tm.overhead
	if timeLeft < time.Millisecond {
		timeLeft = time.Millisecond
	}
	inc := limits.Clocks[us].Inc

	// Estimate how many moves the budget has to cover.
	mtg := limits.MovesToGo
	if mtg == 0 {
		mtg = 50 - ply/4
		if mtg < 10 {
			mtg = 10
		}
	}

	base := timeLeft/time.Duration(mtg) + inc*9/10

	tm.optimumTime = base
	if ply < 8 {
		// Keep a buffer during the opening
		tm.optimumTime = base * 85 / 100
	}

	tm.maximumTime = minDuration(tm.optimumTime*5, timeLeft*8/10)

	if tm.optimumTime < 10*time.Millisecond {
		tm.optimumTime = 10 * time.Millisecond
	}
	if tm.maximumTime < 50*time.Millisecond {
		tm.maximumTime = 50 * time.Millisecond
	}
	if tm.maximumTime > timeLeft {
		tm.maximumTime = timeLeft
	}
}

// Elapsed returns the time since the search started.
func (tm *TimeManager) Elapsed() time.Duration {
	return time.Since(tm.start)
}

// Optimum returns the current target time.
func (tm *TimeManager) Optimum() time.Duration {
	return tm.optimumTime
}

// Maximum returns the hard limit.
func (tm *TimeManager) Maximum() time.Duration {
	return tm.maximumTime
}

// ShouldStop reports whether the hard limit is exhausted.
func (tm *TimeManager) ShouldStop() bool {
	return tm.Elapsed() >= tm.maximumTime
}

// AdjustedOptimum scales the target by best-move stability, the rate of
// PV changes across workers, and the evaluation trend against the
// previous iteration.
func (tm *TimeManager) AdjustedOptimum(stability int, pvChangeRate float64, evalDrop int) time.Duration {
	opt := tm.optimumTime

	switch {
	case stability >= 6:
		opt = opt * 50 / 100
	case stability >= 4:
		opt = opt * 70 / 100
	case stability >= 2:
		opt = opt * 85 / 100
	}

	// An unstable PV or a falling score buys more time.
	opt += time.Duration(float64(tm.optimumTime) * pvChangeRate * 0.8)
	if evalDrop > 12 {
		extra := evalDrop
		if extra > 150 {
			extra = 150
		}
		opt += tm.optimumTime * time.Duration(extra) / 300
	}

	if opt > tm.maximumTime {
		opt = tm.maximumTime
	}
	return opt
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
