package engine

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/op/go-logging"
	"golang.org/x/sync/errgroup"

	"github.com/hailam/krait/internal/board"
	"github.com/hailam/krait/internal/tablebase"
)

var log = logging.MustGetLogger("engine")

// Info is one search progress record, emitted once per completed
// iteration per PV line.
type Info struct {
	Depth    int
	SelDepth int
	MultiPV  int
	Value    int
	Bound    Bound // BoundNone for exact scores
	Nodes    uint64
	NPS      uint64
	Time     time.Duration
	Hashfull int
	TBHits   uint64
	PV       []board.Move
}

// Pool owns the Lazy-SMP worker fleet and everything they share: the
// transposition table, the thread-mark table, the evaluator networks and
// the stop/ponder atomics. Workers otherwise touch nothing of each other.
type Pool struct {
	workers []*Worker

	tt        *TranspositionTable
	mark      *ThreadMark
	evaluator Evaluator

	tb           tablebase.Prober
	tbPieceLimit int
	tbProbeDepth int

	multiPV     int
	bindThreads bool

	stop   atomic.Bool
	ponder atomic.Bool

	limits      Limits
	timeman     *TimeManager
	timeManaged bool

	group *errgroup.Group

	// OnInfo receives progress records during search; may be nil.
	OnInfo func(Info)
}

// NewPool creates a pool of n workers sharing a table of hashMB megabytes.
func NewPool(n, hashMB int, evaluator Evaluator) (*Pool, error) {
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}

	tt, err := NewTranspositionTable(hashMB)
	if err != nil {
		return nil, err
	}

	p := &Pool{
		tt:        tt,
		mark:      &ThreadMark{},
		evaluator: evaluator,
		multiPV:   1,
		timeman:   NewTimeManager(30 * time.Millisecond),
	}
	p.mark.Clear()

	p.workers = make([]*Worker, n)
	for i := 0; i < n; i++ {
		p.workers[i] = newWorker(i, p)
	}

	log.Debugf("pool: %d workers, %d MB hash", n, tt.SizeMB())
	return p, nil
}

// SetEvaluator swaps the evaluator; only valid while idle.
func (p *Pool) SetEvaluator(e Evaluator) {
	p.evaluator = e
}

// SetMultiPV sets the number of principal variations to search.
func (p *Pool) SetMultiPV(n int) {
	if n < 1 {
		n = 1
	}
	p.multiPV = n
}

// SetTablebase wires a tablebase prober into the search.
func (p *Pool) SetTablebase(tb tablebase.Prober, pieceLimit, probeDepth int) {
	p.tb = tb
	p.tbPieceLimit = pieceLimit
	p.tbProbeDepth = probeDepth
}

// SetBindThreads enables pinning workers to CPUs for the next search.
func (p *Pool) SetBindThreads(bind bool) {
	p.bindThreads = bind
}

// SetMoveOverhead adjusts the per-move time reserve.
func (p *Pool) SetMoveOverhead(d time.Duration) {
	p.timeman = NewTimeManager(d)
}

// TT exposes the shared transposition table (for hashfull and resize).
func (p *Pool) TT() *TranspositionTable {
	return p.tt
}

// ResizeTT reallocates the transposition table; only valid while idle.
func (p *Pool) ResizeTT(sizeMB int) error {
	return p.tt.Resize(sizeMB)
}

// SetThreads resizes the worker fleet; only valid while idle.
func (p *Pool) SetThreads(n int) {
	if n < 1 {
		n = 1
	}
	p.workers = make([]*Worker, n)
	for i := 0; i < n; i++ {
		p.workers[i] = newWorker(i, p)
	}
}

func (p *Pool) threadCount() int {
	return len(p.workers)
}

// Clear resets the shared table and every worker's histories; only valid
// while idle (ucinewgame).
func (p *Pool) Clear() {
	p.tt.Clear()
	p.mark.Clear()
	for _, w := range p.workers {
		w.hist.Clear()
	}
}

// StartSearch fires the fleet on a position. Each worker searches an
// independent clone; the call returns immediately.
func (p *Pool) StartSearch(pos *board.Position, limits Limits) {
	p.limits = limits
	p.stop.Store(false)
	p.ponder.Store(limits.Ponder)
	p.timeManaged = limits.UseTimeManagement()
	p.timeman.Init(&p.limits, pos.SideToMove(), pos.GamePly())

	p.tt.NewSearch()
	p.mark.Clear()

	for _, w := range p.workers {
		w.prepare(pos, limits.SearchMoves)
	}

	p.group = &errgroup.Group{}
	for _, w := range p.workers {
		w := w
		p.group.Go(func() error {
			if p.bindThreads {
				bindToCPU(w.id)
			}
			w.iterativeDeepening()
			// The first worker to finish takes the others down with it.
			p.stop.Store(true)
			return nil
		})
	}
}

// Stop raises the shared stop flag.
func (p *Pool) Stop() {
	p.stop.Store(true)
}

// PonderHit converts a ponder search into a normal one: the clock starts
// counting against the engine.
func (p *Pool) PonderHit() {
	p.ponder.Store(false)
	if p.timeManaged && p.timeman.ShouldStop() {
		p.stop.Store(true)
	}
}

// WaitSearch blocks until the fleet drains and returns the best and
// ponder moves of the winning worker. With no legal moves both are
// MoveNone.
func (p *Pool) WaitSearch() (best, ponderMove board.Move) {
	if p.group != nil {
		_ = p.group.Wait()
		p.group = nil
	}

	w := p.bestWorker()
	if w == nil || len(w.rootMoves) == 0 {
		return board.MoveNone, board.MoveNone
	}

	rm := w.rootMoves[0]
	best = rm.Move()
	if len(rm.PV) > 1 {
		ponderMove = rm.PV[1]
	}
	return best, ponderMove
}

// Searching reports whether a search is in flight.
func (p *Pool) Searching() bool {
	return p.group != nil
}

// bestWorker runs the vote: each worker's best move collects
// (value - floor + 14) * completedDepth votes; deterministic tie-break by
// finished depth, then value.
func (p *Pool) bestWorker() *Worker {
	var candidates []*Worker
	for _, w := range p.workers {
		if len(w.rootMoves) > 0 && w.completedDepth > 0 {
			candidates = append(candidates, w)
		}
	}
	if len(candidates) == 0 {
		for _, w := range p.workers {
			if len(w.rootMoves) > 0 {
				return w
			}
		}
		return nil
	}

	floor := ValueInfinite
	for _, w := range candidates {
		if v := w.rootMoves[0].Value; v < floor {
			floor = v
		}
	}

	votes := make(map[board.Move]int64)
	for _, w := range candidates {
		votes[w.rootMoves[0].Move()] +=
			int64(w.rootMoves[0].Value-floor+14) * int64(w.completedDepth)
	}

	best := candidates[0]
	for _, w := range candidates[1:] {
		bv, wv := best.rootMoves[0].Value, w.rootMoves[0].Value

		// A proven mate outranks any vote.
		if bv >= ValueMateInMaxPly {
			if wv > bv {
				best = w
			}
			continue
		}
		if wv >= ValueMateInMaxPly {
			best = w
			continue
		}

		switch {
		case votes[w.rootMoves[0].Move()] > votes[best.rootMoves[0].Move()]:
			best = w
		case votes[w.rootMoves[0].Move()] == votes[best.rootMoves[0].Move()]:
			if w.completedDepth > best.completedDepth ||
				(w.completedDepth == best.completedDepth && wv > bv) {
				best = w
			}
		}
	}
	return best
}

// NodesSearched aggregates node counters over the fleet.
func (p *Pool) NodesSearched() uint64 {
	var n uint64
	for _, w := range p.workers {
		n += w.Nodes()
	}
	return n
}

// TBHits aggregates tablebase hits over the fleet.
func (p *Pool) TBHits() uint64 {
	var n uint64
	for _, w := range p.workers {
		n += w.TBHits()
	}
	return n
}

// checkLimits is polled by the main worker every few thousand nodes. The
// search never stops on its own while pondering.
func (p *Pool) checkLimits() {
	if p.stop.Load() || p.ponder.Load() || p.limits.Infinite {
		return
	}

	if p.limits.MoveTime > 0 && p.timeman.Elapsed() >= p.limits.MoveTime {
		p.stop.Store(true)
		return
	}
	if p.timeManaged && p.timeman.ShouldStop() {
		p.stop.Store(true)
		return
	}
	if p.limits.Nodes > 0 && p.NodesSearched() >= p.limits.Nodes {
		p.stop.Store(true)
	}
}

// reportIteration emits one Info record per PV line of the main worker.
func (p *Pool) reportIteration(w *Worker) {
	if p.OnInfo == nil {
		return
	}

	elapsed := p.timeman.Elapsed()
	nodes := p.NodesSearched()
	nps := uint64(0)
	if elapsed > 0 {
		nps = uint64(float64(nodes) / elapsed.Seconds())
	}

	for i := 0; i < w.multiPV && i < len(w.rootMoves); i++ {
		rm := w.rootMoves[i]
		v := rm.Value
		if v == -ValueInfinite {
			v = rm.PrevValue
		}

		p.OnInfo(Info{
			Depth:    w.completedDepth,
			SelDepth: rm.SelDepth,
			MultiPV:  i + 1,
			Value:    v,
			Nodes:    nodes,
			NPS:      nps,
			Time:     elapsed,
			Hashfull: p.tt.Hashfull(),
			TBHits:   p.TBHits(),
			PV:       rm.PV,
		})
	}
}

// ValueString renders a search value in UCI score syntax.
func ValueString(v int) string {
	if v >= ValueMateInMaxPly {
		return fmt.Sprintf("mate %d", (ValueMate-v+1)/2)
	}
	if v <= -ValueMateInMaxPly {
		return fmt.Sprintf("mate %d", -(ValueMate+v+1)/2)
	}
	return fmt.Sprintf("cp %d", v)
}
