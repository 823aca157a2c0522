package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hailam/krait/internal/board"
)

func testPool(t *testing.T, threads int) *Pool {
	t.Helper()
	p, err := NewPool(threads, 16, MaterialEvaluator{})
	require.NoError(t, err)
	return p
}

func searchPosition(t *testing.T, p *Pool, fen string, limits Limits) (board.Move, int) {
	t.Helper()

	pos, err := board.NewPosition(fen)
	require.NoError(t, err)

	lastValue := 0
	p.OnInfo = func(info Info) {
		if info.MultiPV == 1 {
			lastValue = info.Value
		}
	}

	limits.Start = time.Now()
	p.StartSearch(pos, limits)
	best, _ := p.WaitSearch()
	return best, lastValue
}

// TestMateInOne: the rook mates on e8.
func TestMateInOne(t *testing.T) {
	p := testPool(t, 1)

	best, value := searchPosition(t, p,
		"6k1/5ppp/8/8/8/8/5PPP/4R1K1 w - - 0 1",
		Limits{Depth: 4})

	assert.Equal(t, "e1e8", best.String())
	assert.Equal(t, MateIn(1), value, "score should be mate in 1 ply")
}

// TestNoLegalMoves: a stalemate at the root answers no move.
func TestNoLegalMoves(t *testing.T) {
	p := testPool(t, 1)

	// Stalemate: no legal move, search yields MoveNone.
	best, _ := searchPosition(t, p, "7k/5Q2/6K1/8/8/8/8/8 b - - 0 1", Limits{Depth: 3})
	assert.Equal(t, board.MoveNone, best)
}

// TestThreefoldScoresDraw: the knight-shuffle repetition searches to a
// draw score (the draw value dithers by one centipawn).
func TestThreefoldScoresDraw(t *testing.T) {
	p := testPool(t, 1)

	pos := board.StartPosition()
	for _, s := range []string{"g1f3", "g8f6", "f3g1", "f6g8", "g1f3", "g8f6", "f3g1", "f6g8"} {
		m, err := board.ParseMove(s, pos)
		require.NoError(t, err)
		pos.DoMove(m, &board.StateInfo{})
	}

	lastValue := ValueInfinite
	p.OnInfo = func(info Info) {
		if info.MultiPV == 1 {
			lastValue = info.Value
		}
	}
	p.StartSearch(pos, Limits{Depth: 4, Start: time.Now()})
	best, _ := p.WaitSearch()

	require.NotEqual(t, board.MoveNone, best)
	assert.LessOrEqual(t, absInt(lastValue), 1, "repetition position should score a draw")
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// TestStopTerminatesSearch: an infinite search unwinds promptly on stop
// and still reports a legal move from the completed iterations.
func TestStopTerminatesSearch(t *testing.T) {
	p := testPool(t, 2)

	pos := board.StartPosition()
	p.StartSearch(pos, Limits{Infinite: true, Start: time.Now()})

	time.Sleep(100 * time.Millisecond)
	p.Stop()

	done := make(chan board.Move, 1)
	go func() {
		best, _ := p.WaitSearch()
		done <- best
	}()

	select {
	case best := <-done:
		var legal board.MoveList
		pos.GenerateLegal(&legal)
		assert.True(t, legal.Contains(best), "best move %v must be legal", best)
	case <-time.After(5 * time.Second):
		t.Fatal("search did not stop")
	}
}

// TestNodeLimit: the node budget bounds the search within a sane factor
// (the poll runs every 1024 nodes per worker).
func TestNodeLimit(t *testing.T) {
	p := testPool(t, 1)

	best, _ := searchPosition(t, p, board.StartFEN, Limits{Nodes: 20000})
	assert.NotEqual(t, board.MoveNone, best)
	assert.Less(t, p.NodesSearched(), uint64(200000))
}

// TestMultiPV: three distinct lines, sorted best first.
func TestMultiPV(t *testing.T) {
	p := testPool(t, 1)
	p.SetMultiPV(3)

	var infos []Info
	pos := board.StartPosition()
	p.OnInfo = func(info Info) {
		infos = append(infos, info)
	}
	p.StartSearch(pos, Limits{Depth: 5, Start: time.Now()})
	best, _ := p.WaitSearch()
	require.NotEqual(t, board.MoveNone, best)

	// Collect the final iteration's lines.
	byLine := make(map[int]Info)
	maxDepth := 0
	for _, info := range infos {
		if info.Depth > maxDepth {
			maxDepth = info.Depth
		}
	}
	for _, info := range infos {
		if info.Depth == maxDepth {
			byLine[info.MultiPV] = info
		}
	}

	require.Len(t, byLine, 3)
	assert.GreaterOrEqual(t, byLine[1].Value, byLine[2].Value)
	assert.GreaterOrEqual(t, byLine[2].Value, byLine[3].Value)

	moves := map[board.Move]bool{}
	for _, info := range byLine {
		require.NotEmpty(t, info.PV)
		moves[info.PV[0]] = true
	}
	assert.Len(t, moves, 3, "PV lines must start with distinct moves")
}

// TestParallelSearchConsistent: a multi-worker search still returns a
// legal move and a sane score. Run with -race to exercise the shared
// transposition table discipline.
func TestParallelSearchConsistent(t *testing.T) {
	p := testPool(t, 4)

	for _, fen := range []string{
		board.StartFEN,
		"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1",
	} {
		best, value := searchPosition(t, p, fen, Limits{Depth: 6})

		pos := board.MustPosition(fen)
		var legal board.MoveList
		pos.GenerateLegal(&legal)
		assert.True(t, legal.Contains(best), "%s: best %v not legal", fen, best)
		assert.Less(t, absInt(value), ValueMateInMaxPly, "%s: unexpected mate score", fen)
	}
}

// TestMateLimitStops: "go mate 1" ends as soon as the mate is proven.
func TestMateLimitStops(t *testing.T) {
	p := testPool(t, 1)

	best, value := searchPosition(t, p,
		"6k1/5ppp/8/8/8/8/5PPP/4R1K1 w - - 0 1",
		Limits{Mate: 1})

	assert.Equal(t, "e1e8", best.String())
	assert.GreaterOrEqual(t, value, ValueMateInMaxPly)
}
