package engine

import (
	"github.com/hailam/krait/internal/board"
)

// MovePicker yields the moves of one node lazily, in stages: the
// transposition-table move first, then winning captures, killers and the
// counter move, scored quiets, and finally losing captures. Generating
// quiets is skipped entirely once the search decides it only wants noise.
type MovePicker struct {
	pos  *board.Position
	hist *Histories

	// Continuation history slices of the plies behind this node, in the
	// {-1, -2, -4, -6} order.
	contHist [4]*PieceToHistory

	ttMove  board.Move
	killers [2]board.Move
	counter board.Move

	stage      pickStage
	moves      board.MoveList
	badCaps    board.MoveList
	cur        int
	depth      int
	ply        int
	threshold  int
	skipQuiets bool
}

type pickStage uint8

const (
	stageTTMove pickStage = iota
	stageCaptureInit
	stageGoodCapture
	stageKiller1
	stageKiller2
	stageCounter
	stageQuietInit
	stageQuiet
	stageBadCapture

	stageEvasionTT
	stageEvasionInit
	stageEvasion

	stageQSearchTT
	stageQSCaptureInit
	stageQSCapture
	stageQSCheckInit
	stageQSCheck

	stageProbCutTT
	stageProbCutInit
	stageProbCut

	stageDone
)

// NewMovePicker builds a picker for the main search.
func NewMovePicker(pos *board.Position, hist *Histories, contHist [4]*PieceToHistory,
	ttMove board.Move, killers [2]board.Move, counter board.Move, depth, ply int) *MovePicker {

	mp := &MovePicker{
		pos:      pos,
		hist:     hist,
		contHist: contHist,
		killers:  killers,
		counter:  counter,
		depth:    depth,
		ply:      ply,
	}

	if pos.InCheck() {
		mp.stage = stageEvasionTT
	} else {
		mp.stage = stageTTMove
	}
	if ttMove != board.MoveNone && pos.PseudoLegal(ttMove) {
		mp.ttMove = ttMove
	} else if mp.stage == stageTTMove {
		mp.stage = stageCaptureInit
	} else {
		mp.stage = stageEvasionInit
	}

	return mp
}

// NewQMovePicker builds a picker for quiescence: TT move, captures, and
// quiet checks at the first quiescence ply.
func NewQMovePicker(pos *board.Position, hist *Histories, ttMove board.Move, depth int) *MovePicker {
	mp := &MovePicker{
		pos:   pos,
		hist:  hist,
		depth: depth,
	}

	if pos.InCheck() {
		mp.stage = stageEvasionTT
	} else {
		mp.stage = stageQSearchTT
	}
	if ttMove != board.MoveNone && pos.PseudoLegal(ttMove) {
		mp.ttMove = ttMove
	} else if pos.InCheck() {
		mp.stage = stageEvasionInit
	} else {
		mp.stage = stageQSCaptureInit
	}

	return mp
}

// NewProbCutMovePicker yields captures whose static exchange clears the
// given threshold.
func NewProbCutMovePicker(pos *board.Position, hist *Histories, ttMove board.Move, threshold int) *MovePicker {
	mp := &MovePicker{
		pos:       pos,
		hist:      hist,
		threshold: threshold,
		stage:     stageProbCutTT,
	}

	if ttMove != board.MoveNone && pos.PseudoLegal(ttMove) &&
		pos.IsCapture(ttMove) && pos.SEE(ttMove, threshold) {
		mp.ttMove = ttMove
	} else {
		mp.stage = stageProbCutInit
	}

	return mp
}

// SkipQuiets tells the picker to stop yielding quiet moves; used when
// move-count pruning kicks in.
func (mp *MovePicker) SkipQuiets() {
	mp.skipQuiets = true
}

// Next returns the next move, or MoveNone when exhausted. Yielded moves
// are pseudo-legal; the caller still runs the legality check.
func (mp *MovePicker) Next() board.Move {
	for {
		switch mp.stage {
		case stageTTMove, stageEvasionTT, stageQSearchTT, stageProbCutTT:
			mp.stage++
			return mp.ttMove

		case stageCaptureInit, stageQSCaptureInit, stageProbCutInit:
			mp.moves.Clear()
			mp.pos.Generate(&mp.moves, board.GenCaptures)
			mp.scoreCaptures()
			sortMoves(mp.moves.Slice())
			mp.cur = 0
			mp.stage++

		case stageGoodCapture:
			for mp.cur < mp.moves.Len() {
				vm := mp.moves.At(mp.cur)
				mp.cur++
				if vm.Move == mp.ttMove {
					continue
				}
				// Losing captures wait for the final stage.
				if !mp.pos.SEE(vm.Move, -int(vm.Value)/18) {
					mp.badCaps.Add(vm.Move)
					continue
				}
				return vm.Move
			}
			mp.stage = stageKiller1

		case stageKiller1:
			mp.stage++
			m := mp.killers[0]
			if m != board.MoveNone && m != mp.ttMove &&
				!mp.pos.IsCapture(m) && mp.pos.PseudoLegal(m) {
				return m
			}

		case stageKiller2:
			mp.stage++
			m := mp.killers[1]
			if m != board.MoveNone && m != mp.ttMove &&
				!mp.pos.IsCapture(m) && mp.pos.PseudoLegal(m) {
				return m
			}

		case stageCounter:
			mp.stage++
			m := mp.counter
			if m != board.MoveNone && m != mp.ttMove &&
				m != mp.killers[0] && m != mp.killers[1] &&
				!mp.pos.IsCapture(m) && mp.pos.PseudoLegal(m) {
				return m
			}

		case stageQuietInit:
			if mp.skipQuiets {
				mp.cur = 0
				mp.stage = stageBadCapture
				continue
			}
			mp.moves.Clear()
			mp.pos.Generate(&mp.moves, board.GenQuiets)
			mp.scoreQuiets()
			partialSort(mp.moves.Slice(), int32(-3560*mp.depth))
			mp.cur = 0
			mp.stage = stageQuiet

		case stageQuiet:
			for !mp.skipQuiets && mp.cur < mp.moves.Len() {
				m := mp.moves.Get(mp.cur)
				mp.cur++
				if m == mp.ttMove || m == mp.killers[0] ||
					m == mp.killers[1] || m == mp.counter {
					continue
				}
				return m
			}
			mp.cur = 0
			mp.stage = stageBadCapture

		case stageBadCapture:
			if mp.cur < mp.badCaps.Len() {
				m := mp.badCaps.Get(mp.cur)
				mp.cur++
				return m
			}
			mp.stage = stageDone

		case stageEvasionInit:
			mp.moves.Clear()
			mp.pos.Generate(&mp.moves, board.GenEvasions)
			mp.scoreEvasions()
			sortMoves(mp.moves.Slice())
			mp.cur = 0
			mp.stage = stageEvasion

		case stageEvasion:
			for mp.cur < mp.moves.Len() {
				m := mp.moves.Get(mp.cur)
				mp.cur++
				if m != mp.ttMove {
					return m
				}
			}
			mp.stage = stageDone

		case stageQSCapture:
			for mp.cur < mp.moves.Len() {
				m := mp.moves.Get(mp.cur)
				mp.cur++
				if m != mp.ttMove {
					return m
				}
			}
			if mp.depth < depthQSCheck {
				mp.stage = stageDone
				continue
			}
			mp.stage = stageQSCheckInit

		case stageQSCheckInit:
			mp.moves.Clear()
			mp.pos.Generate(&mp.moves, board.GenQuietChecks)
			mp.cur = 0
			mp.stage = stageQSCheck

		case stageQSCheck:
			for mp.cur < mp.moves.Len() {
				m := mp.moves.Get(mp.cur)
				mp.cur++
				if m != mp.ttMove {
					return m
				}
			}
			mp.stage = stageDone

		case stageProbCut:
			for mp.cur < mp.moves.Len() {
				vm := mp.moves.At(mp.cur)
				mp.cur++
				if vm.Move != mp.ttMove && mp.pos.SEE(vm.Move, mp.threshold) {
					return vm.Move
				}
			}
			mp.stage = stageDone

		case stageDone:
			return board.MoveNone
		}
	}
}

// scoreCaptures orders noisy moves by victim value plus capture history.
func (mp *MovePicker) scoreCaptures() {
	for i := 0; i < mp.moves.Len(); i++ {
		vm := mp.moves.At(i)
		m := vm.Move
		victim := mp.pos.CapturedType(m)
		pc := mp.pos.PieceOn(m.From())
		vm.Value = int32(7*board.PieceValue[victim] +
			mp.hist.Capture.Get(pc, m.To(), victim))
	}
}

// scoreQuiets orders quiet moves by butterfly, continuation {-1,-2,-4,-6}
// and low-ply history.
func (mp *MovePicker) scoreQuiets() {
	us := mp.pos.SideToMove()
	for i := 0; i < mp.moves.Len(); i++ {
		vm := mp.moves.At(i)
		m := vm.Move
		pc := mp.pos.PieceOn(m.From())
		to := m.To()

		v := 2 * mp.hist.Butterfly.Get(us, m)
		for _, ch := range mp.contHist {
			if ch != nil {
				v += ch.Get(pc, to)
			}
		}
		v += 2 * mp.hist.LowPly.Get(mp.ply, m)
		vm.Value = int32(v)
	}
}

// scoreEvasions puts checker captures first, then quiet evasions by history.
func (mp *MovePicker) scoreEvasions() {
	us := mp.pos.SideToMove()
	for i := 0; i < mp.moves.Len(); i++ {
		vm := mp.moves.At(i)
		m := vm.Move
		if mp.pos.IsCapture(m) {
			vm.Value = int32(1 << 28)
			vm.Value += int32(board.PieceValue[mp.pos.CapturedType(m)] -
				board.PieceValue[mp.pos.PieceOn(m.From()).Type()]/16)
		} else {
			vm.Value = int32(mp.hist.Butterfly.Get(us, m))
		}
	}
}

// sortMoves fully sorts a scored move slice, best first.
func sortMoves(vms []board.ValMove) {
	for i := 1; i < len(vms); i++ {
		v := vms[i]
		j := i - 1
		for j >= 0 && vms[j].Value < v.Value {
			vms[j+1] = vms[j]
			j--
		}
		vms[j+1] = v
	}
}

// partialSort insertion-sorts only the moves scoring above limit; the
// rest stay behind in arbitrary order, which is all the picker needs.
func partialSort(vms []board.ValMove, limit int32) {
	sorted := 0
	for i := 0; i < len(vms); i++ {
		if vms[i].Value <= limit {
			continue
		}
		v := vms[i]
		vms[i] = vms[sorted]
		j := sorted - 1
		for j >= 0 && vms[j].Value < v.Value {
			vms[j+1] = vms[j]
			j--
		}
		vms[j+1] = v
		sorted++
	}
}
