package engine

import (
	"math"
	"sync/atomic"

	"github.com/hailam/krait/internal/board"
	"github.com/hailam/krait/internal/tablebase"
)

// Quiescence depth categories: checks are generated only at the first
// quiescence ply.
const (
	depthQSCheck   = 0
	depthQSNoCheck = -1
)

// stackOffset leaves room above the frame array so continuation-history
// lookups up to six plies back never index below zero.
const stackOffset = 7

// lmrTable holds the base late-move reductions by depth and move count.
var lmrTable [64][64]int

func init() {
	for d := 1; d < 64; d++ {
		for m := 1; m < 64; m++ {
			lmrTable[d][m] = int(0.85 + math.Log(float64(d))*math.Log(float64(m))/2.2)
		}
	}
}

// searchStack is one frame of per-ply search state.
type searchStack struct {
	pv           []board.Move
	killers      [2]board.Move
	currentMove  board.Move
	excludedMove board.Move
	movedPiece   board.Piece
	contHist     *PieceToHistory
	staticEval   int
	statScore    int
	moveCount    int
	cutoffCnt    int
	inCheck      bool
	ttPV         bool
}

// Worker is one Lazy-SMP search thread: its own position clone, root move
// list, history tables and evaluation context, sharing only the
// transposition table, the thread-mark table and the stop/ponder atomics
// through the pool.
type Worker struct {
	id   int
	pool *Pool

	rootPos   *board.Position
	rootMoves RootMoves
	rootDepth int

	completedDepth int
	selDepth       int
	rootDelta      int
	nmpMinPly      int
	nmpColor       board.Color

	pvIdx      int
	multiPV    int
	rootIsDraw bool

	optimism [2]int
	avgValue int

	nodes  atomic.Uint64
	tbHits atomic.Uint64

	hist    Histories
	evalCtx EvalContext

	states [MaxPly + stackOffset + 2]board.StateInfo
	stack  [MaxPly + stackOffset + 2]searchStack

	bestMoveChanges float64
}

func newWorker(id int, pool *Pool) *Worker {
	return &Worker{id: id, pool: pool}
}

// Nodes returns this worker's node counter.
func (w *Worker) Nodes() uint64 { return w.nodes.Load() }

// TBHits returns this worker's tablebase hit counter.
func (w *Worker) TBHits() uint64 { return w.tbHits.Load() }

// prepare resets the worker for a new search on its own position clone.
func (w *Worker) prepare(pos *board.Position, searchMoves []board.Move) {
	w.rootPos = pos.Copy()
	w.rootMoves = NewRootMoves(w.rootPos, searchMoves)
	w.rootIsDraw = w.rootPos.IsDraw(0)
	w.rankRootMovesTB()
	w.rootDepth = 0
	w.completedDepth = 0
	w.selDepth = 0
	w.nmpMinPly = 0
	w.nodes.Store(0)
	w.tbHits.Store(0)
	w.bestMoveChanges = 0
	w.avgValue = -ValueInfinite
	w.optimism = [2]int{}

	w.evalCtx = w.pool.evaluator.NewContext()
	w.evalCtx.Reset(w.rootPos)

	for i := range w.stack {
		w.stack[i] = searchStack{staticEval: ValueNone}
	}
	for i := 0; i < stackOffset; i++ {
		w.stack[i].contHist = w.hist.Continuation.Sentinel()
	}
}

// updateOptimism derives the per-side optimism term from the running
// average of root scores.
func (w *Worker) updateOptimism() {
	if w.avgValue == -ValueInfinite {
		w.optimism = [2]int{}
		return
	}
	us := w.rootPos.SideToMove()
	w.optimism[us] = 142 * w.avgValue / (abs(w.avgValue) + 91)
	w.optimism[us.Other()] = -w.optimism[us]
}

// iterativeDeepening is the worker main loop: deepen until a limit or the
// shared stop flag ends the search.
func (w *Worker) iterativeDeepening() {
	p := w.pool

	w.multiPV = p.multiPV
	if w.multiPV > len(w.rootMoves) {
		w.multiPV = len(w.rootMoves)
	}

	if len(w.rootMoves) == 0 {
		return
	}

	// Helper workers start deeper to diversify the shallow work.
	startDepth := 1
	switch {
	case w.id >= 6:
		startDepth = 4
	case w.id >= 3:
		startDepth = 3
	case w.id >= 1:
		startDepth = 2
	}

	mainWorker := w.id == 0
	lastBestMove := board.MoveNone
	stability := 0

	for w.rootDepth = startDepth; w.rootDepth < MaxPly; w.rootDepth++ {
		if p.stop.Load() {
			break
		}
		if mainWorker && p.limits.Depth > 0 && w.rootDepth > p.limits.Depth {
			break
		}

		w.bestMoveChanges *= 0.5
		for _, rm := range w.rootMoves {
			rm.PrevValue = rm.Value
		}

		w.updateOptimism()

		for w.pvIdx = 0; w.pvIdx < w.multiPV && !p.stop.Load(); w.pvIdx++ {
			w.selDepth = 0
			w.aspirationSearch()
			w.rootMoves.Sort(w.pvIdx)
		}

		if p.stop.Load() {
			break
		}

		w.rootMoves.Sort(0)
		w.completedDepth = w.rootDepth
		best := w.rootMoves[0]

		if w.avgValue == -ValueInfinite {
			w.avgValue = best.Value
		} else {
			w.avgValue = (best.Value + w.avgValue) / 2
		}

		if mainWorker {
			if best.Move() == lastBestMove {
				stability++
			} else {
				stability = 0
				lastBestMove = best.Move()
			}

			p.reportIteration(w)

			// A proven mate-in-N satisfies the mate limit.
			if p.limits.Mate > 0 && best.Value >= ValueMateInMaxPly &&
				ValueMate-best.Value <= 2*p.limits.Mate {
				p.stop.Store(true)
			}

			if p.timeManaged && !p.ponder.Load() {
				evalDrop := 0
				if len(w.rootMoves) > 0 && best.PrevValue != -ValueInfinite {
					evalDrop = best.PrevValue - best.Value
				}
				pvRate := w.bestMoveChanges / float64(max(1, p.threadCount()))
				if p.timeman.Elapsed() > p.timeman.AdjustedOptimum(stability, pvRate, evalDrop) {
					p.stop.Store(true)
				}
			}
		}
	}
}

// aspirationSearch runs one root search for the current PV line inside a
// window around the previous score, widening geometrically on failure.
func (w *Worker) aspirationSearch() {
	p := w.pool
	si := stackOffset

	alpha, beta := -ValueInfinite, ValueInfinite
	delta := 17
	avg := w.rootMoves[w.pvIdx].AvgValue

	if w.rootDepth >= 4 && avg != -ValueInfinite {
		alpha = max(avg-delta, -ValueInfinite)
		beta = min(avg+delta, ValueInfinite)
	}

	failedHighCnt := 0
	for {
		w.rootDelta = beta - alpha
		adjustedDepth := max(1, w.rootDepth-failedHighCnt)
		value := w.search(true, si, alpha, beta, adjustedDepth, false)

		w.rootMoves.Sort(w.pvIdx)

		// The game on the board is already drawn (repetition or clock):
		// the score is a draw no matter what the tree says.
		if w.rootIsDraw {
			rm := w.rootMoves[w.pvIdx]
			rm.Value = ValueDraw
			rm.AvgValue = ValueDraw
			return
		}

		if p.stop.Load() {
			return
		}

		if value <= alpha {
			beta = (alpha + beta) / 2
			alpha = max(value-delta, -ValueInfinite)
			failedHighCnt = 0
		} else if value >= beta {
			beta = min(value+delta, ValueInfinite)
			failedHighCnt++
		} else {
			rm := w.rootMoves[w.pvIdx]
			if rm.AvgValue == -ValueInfinite {
				rm.AvgValue = value
			} else {
				rm.AvgValue = (value + rm.AvgValue) / 2
			}
			return
		}

		delta += delta/3 + 5
	}
}

// ply converts a stack index back to the search ply.
func ply(si int) int { return si - stackOffset }

// search is the principal-variation search recursion.
func (w *Worker) search(pvNode bool, si, alpha, beta, depth int, cutNode bool) int {
	p := w.pool
	pos := w.rootPos
	rootNode := pvNode && si == stackOffset
	curPly := ply(si)

	if depth <= 0 {
		return w.qsearch(pvNode, si, alpha, beta, depthQSCheck)
	}

	ss := &w.stack[si]
	ss.inCheck = pos.InCheck()
	ss.moveCount = 0
	w.stack[si+1].excludedMove = board.MoveNone
	w.stack[si+1].killers = [2]board.Move{}
	w.stack[si+2].cutoffCnt = 0

	if n := w.nodes.Add(1); n&1023 == 0 && w.id == 0 {
		p.checkLimits()
	}

	if p.stop.Load() {
		return 0
	}

	if pvNode && curPly+1 > w.selDepth {
		w.selDepth = curPly + 1
	}

	if !rootNode {
		// Draw, cycle and horizon gates
		if pos.IsDraw(curPly) {
			return drawValue(w.nodes.Load())
		}
		if alpha < ValueDraw && pos.HasCycle(curPly) {
			alpha = drawValue(w.nodes.Load())
			if alpha >= beta {
				return alpha
			}
		}
		if curPly >= MaxPly {
			if ss.inCheck {
				return ValueDraw
			}
			return w.evalCtx.Evaluate(pos, w.optimism[pos.SideToMove()])
		}

		// Mate-distance pruning
		alpha = max(alpha, MatedIn(curPly))
		beta = min(beta, MateIn(curPly+1))
		if alpha >= beta {
			return alpha
		}
	}

	excluded := ss.excludedMove

	// Mark the node so other workers can widen their reductions when they
	// arrive at the same position.
	otherMarked := false
	if depth >= 5 && depth <= 19 && excluded == board.MoveNone {
		otherMarked = p.mark.Mark(pos.Key(), w.id)
		defer p.mark.Unmark(pos.Key(), w.id)
	}

	// Transposition probe; an excluded move perturbs the key so singular
	// searches do not poison the main entry.
	posKey := pos.Key()
	if excluded != board.MoveNone {
		posKey ^= uint64(excluded) << 1
	}
	tte, ttHit := p.tt.Probe(posKey)
	ttValue := ValueNone
	ttMove := board.MoveNone
	ttDepth := 0
	ttBound := BoundNone
	ttIsPV := false
	if ttHit {
		ttValue = valueFromTT(tte.Value(), curPly, pos.Rule50())
		ttMove = tte.Move()
		ttDepth = tte.Depth()
		ttBound = tte.Bound()
		ttIsPV = tte.IsPV()
	}
	if rootNode {
		ttMove = w.rootMoves[w.pvIdx].Move()
	}
	ss.ttPV = pvNode || (ttHit && ttIsPV)

	// Non-PV TT cutoff; disabled when the 50-move clock could flip the
	// result underneath a cached score.
	if !pvNode && ttHit && excluded == board.MoveNone &&
		ttDepth >= depth && ttValue != ValueNone &&
		boundMatches(ttBound, ttValue, beta) &&
		pos.Rule50() < 90 {

		if ttMove != board.MoveNone && ttValue >= beta && !pos.IsCapture(ttMove) {
			w.updateQuietCutoffStats(si, ttMove, statBonus(depth))
		}
		return ttValue
	}

	// Tablebase probe
	if !rootNode && excluded == board.MoveNone && p.tb != nil {
		if v, bound, ok := w.probeTB(si, depth); ok {
			if boundMatches(bound, v, beta) || bound == BoundExact {
				p.tt.Save(tte, posKey, board.MoveNone, valueToTT(v, curPly), ValueNone,
					min(depth+6, MaxPly-1), bound, ss.ttPV)
				return v
			}
			if pvNode && bound == BoundLower {
				alpha = max(alpha, v)
			}
		}
	}

	// Static evaluation; none while in check.
	var rawEval int
	improving := false
	if ss.inCheck {
		ss.staticEval = ValueNone
		goto movesLoop
	}

	if ttHit && tte.Eval() != ValueNone {
		rawEval = tte.Eval()
	} else {
		rawEval = w.evalCtx.Evaluate(pos, w.optimism[pos.SideToMove()])
	}
	ss.staticEval = rawEval
	if ttValue != ValueNone && boundMatches(ttBound, ttValue, rawEval+1) {
		// The stored search value is a better guess than the raw eval
		ss.staticEval = ttValue
	}

	improving = w.improvingAt(si)

	// Razoring: hopeless positions drop straight into quiescence.
	if !pvNode && depth <= 4 && ss.staticEval+426+252*depth*depth <= alpha {
		v := w.qsearch(false, si, alpha, alpha+1, depthQSCheck)
		if v <= alpha {
			return v
		}
	}

	// Reverse futility: a comfortable static margin over beta fails high.
	if !pvNode && depth <= 8 && excluded == board.MoveNone &&
		ss.staticEval-futilityMargin(depth, improving) >= beta &&
		ss.staticEval < ValueKnownWin && beta > -ValueKnownWin {
		return ss.staticEval
	}

	// Null-move pruning with verification at high depth.
	if !pvNode && excluded == board.MoveNone &&
		w.stack[si-1].currentMove != board.MoveNull &&
		ss.staticEval >= beta &&
		pos.NonPawnMaterial(pos.SideToMove()) > 0 &&
		(curPly >= w.nmpMinPly || pos.SideToMove() != w.nmpColor) &&
		beta > -ValueKnownWin {

		r := (982+85*depth)/256 + min((ss.staticEval-beta)/192, 3)

		ss.currentMove = board.MoveNull
		ss.contHist = w.hist.Continuation.Sentinel()

		w.evalCtx.PushNull()
		pos.DoNullMove(&w.states[si])
		nullValue := -w.search(false, si+1, -beta, -beta+1, depth-r, !cutNode)
		pos.UndoNullMove()
		w.evalCtx.Pop()

		if p.stop.Load() {
			return 0
		}

		if nullValue >= beta && nullValue < ValueMateInMaxPly {
			if w.nmpMinPly != 0 || depth < 13 {
				return nullValue
			}

			// Verification: re-search with null move disabled for us.
			w.nmpMinPly = curPly + 3*(depth-r)/4
			w.nmpColor = pos.SideToMove()
			v := w.search(false, si, beta-1, beta, depth-r, false)
			w.nmpMinPly = 0

			if v >= beta {
				return nullValue
			}
		}
	}

	// ProbCut: a good capture beating beta by a margin at reduced depth
	// is near-certain to hold at full depth.
	if !pvNode && depth > 4 && excluded == board.MoveNone &&
		abs(beta) < ValueTBWinInMaxPly {

		probCutBeta := beta + 168 - 61*b2i(improving)
		if !(ttHit && ttDepth >= depth-3 && ttValue != ValueNone && ttValue < probCutBeta) {
			mp := NewProbCutMovePicker(pos, &w.hist, ttMove, probCutBeta-ss.staticEval)
			for m := mp.Next(); m != board.MoveNone; m = mp.Next() {
				if m == excluded || !pos.Legal(m) {
					continue
				}

				ss.currentMove = m
				ss.movedPiece = pos.PieceOn(m.From())
				ss.contHist = w.hist.Continuation.Table(ss.inCheck, true, ss.movedPiece, m.To())

				w.evalCtx.Push(pos, m)
				pos.DoMove(m, &w.states[si])

				v := -w.qsearch(false, si+1, -probCutBeta, -probCutBeta+1, depthQSCheck)
				if v >= probCutBeta {
					v = -w.search(false, si+1, -probCutBeta, -probCutBeta+1, depth-4, !cutNode)
				}

				pos.UndoMove(m)
				w.evalCtx.Pop()

				if p.stop.Load() {
					return 0
				}

				if v >= probCutBeta {
					p.tt.Save(tte, posKey, m, valueToTT(v, curPly), rawEval,
						depth-3, BoundLower, ss.ttPV)
					return v
				}
			}
		}
	}

	// Internal iterative reduction: a PV node without a TT move is not
	// worth its nominal depth yet.
	if pvNode && ttMove == board.MoveNone && depth >= 6 {
		depth -= 2
	}
	if cutNode && ttMove == board.MoveNone && depth >= 9 {
		depth--
	}

movesLoop:

	contHist := [4]*PieceToHistory{
		w.stack[si-1].contHist,
		w.stack[si-2].contHist,
		w.stack[si-4].contHist,
		w.stack[si-6].contHist,
	}

	counter := board.MoveNone
	if prev := w.stack[si-1].currentMove; prev.OK() {
		counter = w.hist.CounterMove.Get(w.stack[si-1].movedPiece, prev.To())
	}

	mp := NewMovePicker(pos, &w.hist, contHist, ttMove, ss.killers, counter, depth, curPly)

	bestValue := -ValueInfinite
	bestMove := board.MoveNone
	moveCount := 0

	var quietsSearched []board.Move
	var capturesSearched []board.Move

	improving2 := improving // captured for the pruning thresholds below

	for m := mp.Next(); m != board.MoveNone; m = mp.Next() {
		if m == excluded {
			continue
		}
		if !pos.Legal(m) {
			continue
		}

		// In MultiPV mode the root only searches the moves of the
		// current and later PV lines.
		if rootNode {
			idx := w.rootMoves.IndexOf(m)
			if idx < w.pvIdx || idx >= len(w.rootMoves) {
				continue
			}
		}

		moveCount++
		ss.moveCount = moveCount

		capture := pos.IsCapture(m)
		movedPiece := pos.PieceOn(m.From())
		givesCheck := pos.GivesCheck(m)

		lmrDepth := max(0, depth-lmrTable[min(depth, 63)][min(moveCount, 63)])

		// Shallow-depth pruning, once one line is safely banked.
		if !rootNode && bestValue > ValueMatedInMaxPly {
			// Move-count pruning flips the picker to noise-only.
			if moveCount >= (3+depth*depth)/(2-b2i(improving2)) {
				mp.SkipQuiets()
			}

			if capture || givesCheck {
				if !pos.SEE(m, -203*depth) {
					continue
				}
			} else {
				// Continuation-history pruning
				if lmrDepth < 5 &&
					contHist[0].Get(movedPiece, m.To())+contHist[1].Get(movedPiece, m.To()) < -3000*depth {
					continue
				}
				// Futility
				if lmrDepth < 9 && !ss.inCheck &&
					ss.staticEval+77+124*lmrDepth <= alpha {
					mp.SkipQuiets()
					continue
				}
				// SEE pruning for quiets
				if !pos.SEE(m, -27*lmrDepth*lmrDepth) {
					continue
				}
			}
		}

		// Extensions
		extension := 0
		if curPly < 2*w.rootDepth {
			// Singular extension: is the TT move much better than all
			// alternatives? A fail-high of the exclusion search instead
			// proves multiple good moves: multi-cut.
			if !rootNode && depth >= 7 && m == ttMove && excluded == board.MoveNone &&
				ttValue != ValueNone && abs(ttValue) < ValueKnownWin &&
				ttBound&BoundLower != 0 && ttDepth >= depth-3 {

				singularBeta := ttValue - 3*depth
				singularDepth := (depth - 1) / 2

				ss.excludedMove = m
				v := w.search(false, si, singularBeta-1, singularBeta, singularDepth, cutNode)
				ss.excludedMove = board.MoveNone

				if v < singularBeta {
					extension = 1
					if !pvNode && v < singularBeta-17 {
						extension = 2
					}
				} else if singularBeta >= beta {
					return singularBeta // multi-cut
				} else if ttValue >= beta {
					extension = -2
				} else if cutNode {
					extension = -1
				}
			} else if givesCheck && depth > 6 &&
				pos.BlockersForKing(pos.SideToMove().Other())&board.SquareBB(m.From()) != 0 {
				// A discovered check is worth a closer look
				extension = 1
			} else if w.stack[si-1].currentMove.OK() && pos.Captured() != board.NoPiece &&
				board.PieceValue[pos.Captured().Type()] > 900 {
				extension = 1
			} else if pos.Rule50() > 90 && (capture || movedPiece.Type() == board.Pawn) {
				// An irreversible move close to the 50-move wall resets
				// the draw horizon
				extension = 2
			}
		}

		newDepth := depth - 1 + extension

		ss.currentMove = m
		ss.movedPiece = movedPiece
		ss.contHist = w.hist.Continuation.Table(ss.inCheck, capture, movedPiece, m.To())

		w.evalCtx.Push(pos, m)
		pos.DoMove(m, &w.states[si])

		var value int

		// Late-move reduction: search late moves shallower with a null
		// window, re-searching at full depth only on promise.
		doFullDepth := false
		if depth >= 2 && moveCount > 1+b2i(rootNode) &&
			(!ss.ttPV || !capture) {

			r := lmrTable[min(depth, 63)][min(moveCount, 63)]

			if otherMarked {
				r++
			}
			if ss.ttPV {
				r -= 2
			}
			if improving2 {
				r--
			}
			if cutNode {
				r += 2
			}
			if ttMove != board.MoveNone && pos.IsCapture(ttMove) {
				r++
			}
			if extension == 1 && m == ttMove {
				r--
			}

			us := pos.SideToMove().Other() // mover's color; side already flipped
			statScore := 2*w.hist.Butterfly.Get(us, m) +
				contHist[0].Get(movedPiece, m.To()) +
				contHist[1].Get(movedPiece, m.To())
			ss.statScore = statScore
			r -= statScore / 14884

			d := clamp(newDepth-r, 1, newDepth)
			value = -w.search(false, si+1, -(alpha + 1), -alpha, d, true)

			doFullDepth = value > alpha && d < newDepth
		} else {
			doFullDepth = !pvNode || moveCount > 1
		}

		if doFullDepth {
			value = -w.search(false, si+1, -(alpha + 1), -alpha, newDepth, !cutNode)
		}

		if pvNode && (moveCount == 1 || (value > alpha && (rootNode || value < beta))) {
			w.stack[si+1].pv = w.stack[si+1].pv[:0]
			value = -w.search(true, si+1, -beta, -alpha, newDepth, false)
		}

		pos.UndoMove(m)
		w.evalCtx.Pop()

		if p.stop.Load() {
			return 0
		}

		if rootNode {
			rm := w.rootMoves.Find(m)
			if moveCount == 1 || value > alpha {
				rm.Value = value
				rm.SelDepth = w.selDepth
				rm.PV = rm.PV[:1]
				rm.PV = append(rm.PV, w.stack[si+1].pv...)
				if moveCount > 1 {
					w.bestMoveChanges++
				}
			} else {
				rm.Value = -ValueInfinite
			}
		}

		if value > bestValue {
			bestValue = value
			if value > alpha {
				bestMove = m
				if pvNode && !rootNode {
					ss.pv = append(ss.pv[:0], m)
					ss.pv = append(ss.pv, w.stack[si+1].pv...)
				}
				if value >= beta {
					ss.cutoffCnt++
					break
				}
				alpha = value
			}
		}

		if m != bestMove {
			if capture && len(capturesSearched) < 32 {
				capturesSearched = append(capturesSearched, m)
			} else if !capture && len(quietsSearched) < 64 {
				quietsSearched = append(quietsSearched, m)
			}
		}
	}

	// No legal move: in a singular exclusion the window answer is alpha;
	// otherwise checkmate or stalemate.
	if moveCount == 0 {
		if excluded != board.MoveNone {
			return alpha
		}
		if ss.inCheck {
			return MatedIn(curPly)
		}
		return ValueDraw
	}

	if bestMove != board.MoveNone {
		w.updateStats(si, bestMove, depth, quietsSearched, capturesSearched)
	} else if prev := w.stack[si-1].currentMove; prev.OK() &&
		pos.Captured() == board.NoPiece && w.stack[si-1].movedPiece != board.NoPiece {
		// Fail low after a quiet parent move: reward the parent line a little.
		w.updateContinuation(si-1, w.stack[si-1].movedPiece, prev.To(), statBonus(depth)/2)
	}

	if excluded == board.MoveNone && !(rootNode && w.pvIdx > 0) {
		bound := BoundUpper
		if bestValue >= beta {
			bound = BoundLower
		} else if pvNode && bestMove != board.MoveNone {
			bound = BoundExact
		}
		p.tt.Save(tte, posKey, bestMove, valueToTT(bestValue, curPly), ss.staticEval,
			depth, bound, ss.ttPV)
	}

	return bestValue
}

// qsearch resolves tactical noise at the horizon: stand pat on the static
// eval, then captures (and checks at the first quiescence ply) only.
func (w *Worker) qsearch(pvNode bool, si, alpha, beta, depth int) int {
	p := w.pool
	pos := w.rootPos
	curPly := ply(si)

	ss := &w.stack[si]
	ss.inCheck = pos.InCheck()

	if n := w.nodes.Add(1); n&1023 == 0 && w.id == 0 {
		p.checkLimits()
	}
	if p.stop.Load() {
		return 0
	}

	if pvNode && curPly+1 > w.selDepth {
		w.selDepth = curPly + 1
	}

	if pos.IsDraw(curPly) {
		return drawValue(w.nodes.Load())
	}
	if curPly >= MaxPly {
		if ss.inCheck {
			return ValueDraw
		}
		return w.evalCtx.Evaluate(pos, w.optimism[pos.SideToMove()])
	}

	ttDepthWanted := depthQSNoCheck
	if ss.inCheck || depth == depthQSCheck {
		ttDepthWanted = depthQSCheck
	}

	posKey := pos.Key()
	tte, ttHit := p.tt.Probe(posKey)
	ttValue := ValueNone
	ttMove := board.MoveNone
	if ttHit {
		ttValue = valueFromTT(tte.Value(), curPly, pos.Rule50())
		ttMove = tte.Move()
	}

	if !pvNode && ttHit && tte.Depth() >= ttDepthWanted && ttValue != ValueNone &&
		boundMatches(tte.Bound(), ttValue, beta) {
		return ttValue
	}

	var bestValue, futilityBase int
	rawEval := ValueNone

	if ss.inCheck {
		bestValue = -ValueInfinite
		futilityBase = -ValueInfinite
	} else {
		if ttHit && tte.Eval() != ValueNone {
			rawEval = tte.Eval()
		} else {
			rawEval = w.evalCtx.Evaluate(pos, w.optimism[pos.SideToMove()])
		}
		bestValue = rawEval
		if ttValue != ValueNone && boundMatches(tte.Bound(), ttValue, bestValue+1) {
			bestValue = ttValue
		}

		// Stand pat
		if bestValue >= beta {
			if !ttHit {
				p.tt.Save(tte, posKey, board.MoveNone, valueToTT(bestValue, curPly),
					rawEval, depthQSNoCheck, BoundLower, false)
			}
			return bestValue
		}
		if bestValue > alpha {
			alpha = bestValue
		}

		futilityBase = bestValue + 155
	}

	ss.staticEval = rawEval

	mp := NewQMovePicker(pos, &w.hist, ttMove, depth)

	bestMove := board.MoveNone
	moveCount := 0

	for m := mp.Next(); m != board.MoveNone; m = mp.Next() {
		if !pos.Legal(m) {
			continue
		}
		moveCount++

		capture := pos.IsCapture(m)
		givesCheck := pos.GivesCheck(m)

		if !ss.inCheck && capture && bestValue > ValueMatedInMaxPly {
			// Futility: even winning this piece cannot reach alpha.
			if !givesCheck && !m.IsPromotion() {
				futilityValue := futilityBase + board.PieceValue[pos.CapturedType(m)]
				if futilityValue <= alpha {
					if futilityValue > bestValue {
						bestValue = futilityValue
					}
					continue
				}
				if futilityBase <= alpha && !pos.SEE(m, 1) {
					if futilityBase > bestValue {
						bestValue = futilityBase
					}
					continue
				}
			}

			// Losing captures are not worth resolving.
			if !pos.SEE(m, -78) {
				continue
			}
		}

		ss.currentMove = m
		ss.movedPiece = pos.PieceOn(m.From())
		ss.contHist = w.hist.Continuation.Table(ss.inCheck, capture, ss.movedPiece, m.To())

		w.evalCtx.Push(pos, m)
		pos.DoMove(m, &w.states[si])
		value := -w.qsearch(pvNode, si+1, -beta, -alpha, depthQSNoCheck)
		pos.UndoMove(m)
		w.evalCtx.Pop()

		if p.stop.Load() {
			return 0
		}

		if value > bestValue {
			bestValue = value
			if value > alpha {
				bestMove = m
				if value >= beta {
					break
				}
				alpha = value
			}
		}
	}

	if ss.inCheck && moveCount == 0 {
		return MatedIn(curPly)
	}

	bound := BoundUpper
	if bestValue >= beta {
		bound = BoundLower
	}
	p.tt.Save(tte, posKey, bestMove, valueToTT(bestValue, curPly), rawEval,
		ttDepthWanted, bound, false)

	return bestValue
}

// improvingAt compares the static eval against two, four or six plies
// back, skipping frames without an evaluation (in check or off the root).
func (w *Worker) improvingAt(si int) bool {
	cur := w.stack[si].staticEval
	for _, back := range []int{2, 4, 6} {
		if si-back < 0 {
			break
		}
		if prev := w.stack[si-back].staticEval; prev != ValueNone {
			return cur > prev
		}
	}
	return true
}

// updateStats applies the history updates after a best move is found:
// reward the cutoff move, penalize the alternatives that were searched.
func (w *Worker) updateStats(si int, bestMove board.Move, depth int,
	quiets, captures []board.Move) {

	pos := w.rootPos
	bonus := statBonus(depth)
	malus := statMalus(depth)

	if !pos.IsCapture(bestMove) {
		w.updateQuietCutoffStats(si, bestMove, bonus)

		ss := &w.stack[si]
		if ss.killers[0] != bestMove {
			ss.killers[1] = ss.killers[0]
			ss.killers[0] = bestMove
		}

		if prev := w.stack[si-1].currentMove; prev.OK() && w.stack[si-1].movedPiece != board.NoPiece {
			w.hist.CounterMove.Set(w.stack[si-1].movedPiece, prev.To(), bestMove)
		}

		us := pos.SideToMove()
		for _, m := range quiets {
			w.hist.Butterfly.Update(us, m, -malus)
			w.updateContinuation(si, pos.PieceOn(m.From()), m.To(), -malus)
		}
	} else {
		w.hist.Capture.Update(pos.PieceOn(bestMove.From()), bestMove.To(),
			pos.CapturedType(bestMove), bonus)
	}

	for _, m := range captures {
		w.hist.Capture.Update(pos.PieceOn(m.From()), m.To(), pos.CapturedType(m), -malus)
	}
}

// updateQuietCutoffStats rewards a quiet move that produced (or would
// produce) a beta cutoff.
func (w *Worker) updateQuietCutoffStats(si int, m board.Move, bonus int) {
	pos := w.rootPos
	us := pos.SideToMove()
	pc := pos.PieceOn(m.From())

	w.hist.Butterfly.Update(us, m, bonus)
	w.hist.LowPly.Update(ply(si), m, bonus)
	w.updateContinuation(si, pc, m.To(), bonus)
}

// updateContinuation feeds the continuation tables at offsets
// {-1, -2, -4, -6}, halving the bonus past two plies.
func (w *Worker) updateContinuation(si int, pc board.Piece, to board.Square, bonus int) {
	for _, back := range []int{1, 2, 4, 6} {
		frame := &w.stack[si-back]
		if !frame.currentMove.OK() || frame.contHist == nil {
			continue
		}
		b := bonus
		if back > 2 {
			b /= 2
		}
		frame.contHist.Update(pc, to, b)
	}
}

// rankRootMovesTB orders the root moves by tablebase result when the
// root position qualifies: TB-winning moves come first and keep their
// rank for the duration of the search.
func (w *Worker) rankRootMovesTB() {
	p := w.pool
	pos := w.rootPos

	if p.tb == nil ||
		pos.Occupied().PopCount() > p.tbPieceLimit ||
		pos.Rule50() != 0 ||
		pos.CastlingRights() != board.NoCastling {
		return
	}

	ranked := false
	var st board.StateInfo
	for _, rm := range w.rootMoves {
		pos.DoMove(rm.Move(), &st)
		if state, wdl := p.tb.ProbeWDL(pos); state == tablebase.Success {
			// The child's WDL is from the opponent's view.
			rm.TBRank = -int(wdl)
			switch {
			case rm.TBRank > 0:
				rm.TBValue = ValueTBWinInMaxPly
			case rm.TBRank < 0:
				rm.TBValue = -ValueTBWinInMaxPly
			}
			ranked = true
			w.tbHits.Add(1)
		}
		pos.UndoMove(rm.Move())
	}

	if ranked {
		w.rootMoves.SortByTBRank()
	}
}

// probeTB consults the tablebases when the position qualifies.
func (w *Worker) probeTB(si, depth int) (value int, bound Bound, ok bool) {
	p := w.pool
	pos := w.rootPos

	if pos.Occupied().PopCount() > p.tbPieceLimit ||
		pos.Rule50() != 0 ||
		pos.CastlingRights() != board.NoCastling ||
		depth < p.tbProbeDepth {
		return 0, BoundNone, false
	}

	state, wdl := p.tb.ProbeWDL(pos)
	if state != tablebase.Success {
		return 0, BoundNone, false
	}

	w.tbHits.Add(1)
	curPly := ply(si)

	drawScore := 1
	switch {
	case int(wdl) < -drawScore:
		value = -ValueTBWin + curPly + pos.Occupied().PopCount()
		bound = BoundUpper
	case int(wdl) > drawScore:
		value = ValueTBWin - curPly - pos.Occupied().PopCount()
		bound = BoundLower
	default:
		value = ValueDraw + 2*int(wdl)*drawScore
		bound = BoundExact
	}
	return value, bound, true
}

// boundMatches reports whether a stored bound proves v relative to the
// comparison value: lower bounds prove v >= cmp, upper bounds v < cmp.
func boundMatches(b Bound, v, cmp int) bool {
	if v >= cmp {
		return b&BoundLower != 0
	}
	return b&BoundUpper != 0
}

// drawValue dithers the draw score by a node-count bit so repetition
// lines do not all collapse onto exactly zero.
func drawValue(nodes uint64) int {
	return ValueDraw - 1 + int(nodes&2)
}

func futilityMargin(depth int, improving bool) int {
	m := 165 * depth
	if improving {
		m -= 165
	}
	return m
}
