// Package uci implements the Universal Chess Interface front end: it
// parses controller commands, owns the game position and its state chain,
// and drives the engine pool.
package uci

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/op/go-logging"

	"github.com/hailam/krait/internal/board"
	"github.com/hailam/krait/internal/book"
	"github.com/hailam/krait/internal/config"
	"github.com/hailam/krait/internal/engine"
	"github.com/hailam/krait/internal/tablebase"
)

var log = logging.MustGetLogger("uci")

// Handler is the UCI protocol loop.
type Handler struct {
	pool     *engine.Pool
	settings config.Settings

	position *board.Position
	states   []*board.StateInfo

	book  *book.Book
	state *badger.DB // optional persistent store for caches

	out        io.Writer
	searchDone chan struct{}
}

// New creates a handler around an engine pool with the given settings.
func New(pool *engine.Pool, settings config.Settings) *Handler {
	h := &Handler{
		pool:     pool,
		settings: settings,
		out:      os.Stdout,
	}
	h.resetPosition()
	h.pool.OnInfo = h.sendInfo
	h.applySettings()
	return h
}

func (h *Handler) resetPosition() {
	h.position = board.StartPosition()
	h.states = nil
}

// Run reads commands until quit or EOF.
func (h *Handler) Run() {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 1<<16), 1<<20)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "uci":
			h.handleUCI()
		case "isready":
			fmt.Fprintln(h.out, "readyok")
		case "ucinewgame":
			h.handleNewGame()
		case "position":
			h.handlePosition(args)
		case "go":
			h.handleGo(args)
		case "stop":
			h.handleStop()
		case "ponderhit":
			h.pool.PonderHit()
		case "setoption":
			h.handleSetOption(args)
		case "quit":
			h.handleStop()
			return
		// Debug commands
		case "d":
			fmt.Fprintln(h.out, h.position.String())
		case "perft":
			h.handlePerft(args)
		}
	}
}

func (h *Handler) handleUCI() {
	fmt.Fprintln(h.out, "id name krait")
	fmt.Fprintln(h.out, "id author hailam")
	fmt.Fprintln(h.out)
	fmt.Fprintln(h.out, "option name Hash type spin default 64 min 1 max 33554432")
	fmt.Fprintln(h.out, "option name Threads type spin default 1 min 1 max 1024")
	fmt.Fprintln(h.out, "option name MultiPV type spin default 1 min 1 max 256")
	fmt.Fprintln(h.out, "option name Move Overhead type spin default 30 min 0 max 5000")
	fmt.Fprintln(h.out, "option name Ponder type check default false")
	fmt.Fprintln(h.out, "option name BindThreads type check default false")
	fmt.Fprintln(h.out, "option name UseNNUE type check default false")
	fmt.Fprintln(h.out, "option name EvalFile type string default <empty>")
	fmt.Fprintln(h.out, "option name EvalFileSmall type string default <empty>")
	fmt.Fprintln(h.out, "option name BookFile type string default <empty>")
	fmt.Fprintln(h.out, "option name SyzygyPath type string default <empty>")
	fmt.Fprintln(h.out, "option name SyzygyProbeDepth type spin default 1 min 1 max 100")
	fmt.Fprintln(h.out, "option name SyzygyProbeLimit type spin default 7 min 0 max 7")
	fmt.Fprintln(h.out, "option name StateDir type string default <empty>")
	fmt.Fprintln(h.out, "uciok")
}

func (h *Handler) handleNewGame() {
	h.waitSearch()
	h.pool.Clear()
	h.resetPosition()
}

// handlePosition rebuilds the game position and its state chain:
//
//	position startpos [moves ...]
//	position fen <fen> [moves ...]
func (h *Handler) handlePosition(args []string) {
	if len(args) == 0 {
		return
	}

	var pos *board.Position
	moveStart := len(args)

	switch args[0] {
	case "startpos":
		pos = board.StartPosition()
		for i, arg := range args {
			if arg == "moves" {
				moveStart = i + 1
				break
			}
		}
	case "fen":
		fenEnd := len(args)
		for i, arg := range args {
			if arg == "moves" {
				fenEnd = i
				moveStart = i + 1
				break
			}
		}
		p, err := board.NewPosition(strings.Join(args[1:fenEnd], " "))
		if err != nil {
			fmt.Fprintf(os.Stderr, "info string %v\n", err)
			return
		}
		pos = p
	default:
		return
	}

	states := make([]*board.StateInfo, 0, len(args)-moveStart)
	for _, moveStr := range args[moveStart:] {
		m, err := board.ParseMove(moveStr, pos)
		if err != nil {
			fmt.Fprintf(os.Stderr, "info string %v\n", err)
			return
		}
		st := &board.StateInfo{}
		pos.DoMove(m, st)
		states = append(states, st)
	}

	h.position = pos
	h.states = states
}

func (h *Handler) handleGo(args []string) {
	h.waitSearch()

	limits := h.parseGoArgs(args)
	limits.Start = time.Now()

	// No legal move: answer immediately with
	// "bestmove (none)" and a terminal score.
	var legal board.MoveList
	h.position.GenerateLegal(&legal)
	if legal.Len() == 0 {
		if h.position.InCheck() {
			fmt.Fprintln(h.out, "info depth 0 score mate 0")
		} else {
			fmt.Fprintln(h.out, "info depth 0 score cp 0")
		}
		fmt.Fprintln(h.out, "bestmove (none)")
		return
	}

	// Book probe before firing the pool.
	if h.book != nil && !limits.Infinite && len(limits.SearchMoves) == 0 {
		if m, ok := h.book.Probe(h.position); ok {
			fmt.Fprintf(h.out, "bestmove %s\n", h.moveString(m))
			return
		}
	}

	h.searchDone = make(chan struct{})
	h.pool.StartSearch(h.position, limits)

	go func() {
		defer close(h.searchDone)
		best, ponder := h.pool.WaitSearch()
		if best == board.MoveNone {
			fmt.Fprintln(h.out, "bestmove (none)")
			return
		}
		if ponder != board.MoveNone {
			fmt.Fprintf(h.out, "bestmove %s ponder %s\n", h.moveString(best), h.moveString(ponder))
		} else {
			fmt.Fprintf(h.out, "bestmove %s\n", h.moveString(best))
		}
	}()
}

// moveString renders a move for the controller; classical castle form
// unless the position is Chess960.
func (h *Handler) moveString(m board.Move) string {
	if h.position.Chess960() {
		return m.String()
	}
	return m.StringStd()
}

func (h *Handler) parseGoArgs(args []string) engine.Limits {
	var limits engine.Limits

	ms := func(s string) time.Duration {
		n, _ := strconv.Atoi(s)
		return time.Duration(n) * time.Millisecond
	}

	for i := 0; i < len(args); i++ {
		hasNext := i+1 < len(args)
		switch args[i] {
		case "depth":
			if hasNext {
				limits.Depth, _ = strconv.Atoi(args[i+1])
				i++
			}
		case "nodes":
			if hasNext {
				limits.Nodes, _ = strconv.ParseUint(args[i+1], 10, 64)
				i++
			}
		case "mate":
			if hasNext {
				limits.Mate, _ = strconv.Atoi(args[i+1])
				i++
			}
		case "movetime":
			if hasNext {
				limits.MoveTime = ms(args[i+1])
				i++
			}
		case "wtime":
			if hasNext {
				limits.Clocks[board.White].Time = ms(args[i+1])
				i++
			}
		case "btime":
			if hasNext {
				limits.Clocks[board.Black].Time = ms(args[i+1])
				i++
			}
		case "winc":
			if hasNext {
				limits.Clocks[board.White].Inc = ms(args[i+1])
				i++
			}
		case "binc":
			if hasNext {
				limits.Clocks[board.Black].Inc = ms(args[i+1])
				i++
			}
		case "movestogo":
			if hasNext {
				limits.MovesToGo, _ = strconv.Atoi(args[i+1])
				i++
			}
		case "infinite":
			limits.Infinite = true
		case "ponder":
			limits.Ponder = true
		case "searchmoves":
			for i+1 < len(args) {
				m, err := board.ParseMove(args[i+1], h.position)
				if err != nil {
					break
				}
				limits.SearchMoves = append(limits.SearchMoves, m)
				i++
			}
		}
	}

	return limits
}

func (h *Handler) handleStop() {
	h.pool.Stop()
	h.waitSearch()
}

func (h *Handler) waitSearch() {
	if h.searchDone != nil {
		<-h.searchDone
		h.searchDone = nil
	}
}

func (h *Handler) sendInfo(info engine.Info) {
	var sb strings.Builder

	fmt.Fprintf(&sb, "info depth %d seldepth %d multipv %d score %s",
		info.Depth, info.SelDepth, info.MultiPV, engine.ValueString(info.Value))
	fmt.Fprintf(&sb, " nodes %d nps %d time %d hashfull %d",
		info.Nodes, info.NPS, info.Time.Milliseconds(), info.Hashfull)
	if info.TBHits > 0 {
		fmt.Fprintf(&sb, " tbhits %d", info.TBHits)
	}

	if len(info.PV) > 0 {
		sb.WriteString(" pv")
		for _, m := range info.PV {
			sb.WriteByte(' ')
			sb.WriteString(h.moveString(m))
		}
	}

	fmt.Fprintln(h.out, sb.String())
}

func (h *Handler) handleSetOption(args []string) {
	// Format: setoption name <name> value <value>
	var name, value string
	target := (*string)(nil)
	for _, arg := range args {
		switch arg {
		case "name":
			target = &name
		case "value":
			target = &value
		default:
			if target != nil {
				if *target != "" {
					*target += " "
				}
				*target += arg
			}
		}
	}

	if err := h.settings.Set(name, value); err != nil {
		fmt.Fprintf(os.Stderr, "info string %v\n", err)
		return
	}
	h.applySettings()
}

// applySettings pushes the registry into the engine components. Runs only
// while the pool is idle.
func (h *Handler) applySettings() {
	s := &h.settings

	if h.pool.TT().SizeMB() != s.Hash {
		if err := h.pool.ResizeTT(s.Hash); err != nil {
			fmt.Fprintf(os.Stderr, "info string %v\n", err)
		}
	}
	if s.Threads > 0 {
		h.pool.SetThreads(s.Threads)
	}
	h.pool.SetMultiPV(s.MultiPV)
	h.pool.SetMoveOverhead(s.MoveOverheadDuration())
	h.pool.SetBindThreads(s.BindThreads)

	if s.StateDir != "" && h.state == nil {
		opts := badger.DefaultOptions(s.StateDir)
		opts.Logger = nil
		db, err := badger.Open(opts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "info string state dir: %v\n", err)
		} else {
			h.state = db
		}
	}

	if s.UseNNUE && s.EvalFile != "" && s.EvalFileSmall != "" {
		ev, err := engine.LoadNNUE(s.EvalFile, s.EvalFileSmall)
		if err != nil {
			fmt.Fprintf(os.Stderr, "info string NNUE load failed: %v\n", err)
		} else {
			h.pool.SetEvaluator(ev)
			log.Infof("NNUE networks loaded: %s, %s", s.EvalFile, s.EvalFileSmall)
		}
	} else if !s.UseNNUE {
		h.pool.SetEvaluator(engine.MaterialEvaluator{})
	}

	if s.BookFile != "" {
		b, err := book.LoadPolyglot(s.BookFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "info string book: %v\n", err)
		} else {
			h.book = b
			log.Infof("book loaded: %s (%d positions)", s.BookFile, b.Size())
		}
	} else {
		h.book = nil
	}

	if s.SyzygyPath != "" {
		var prober tablebase.Prober = tablebase.NewLichessProber()
		if h.state != nil {
			prober = tablebase.NewPersistentCachedProber(prober, 100000, h.state)
		} else {
			prober = tablebase.NewCachedProber(prober, 100000)
		}
		h.pool.SetTablebase(prober, s.SyzygyProbeLimit, s.SyzygyProbeDepth)
	}
}

// Close releases the persistent store.
func (h *Handler) Close() {
	if h.state != nil {
		_ = h.state.Close()
		h.state = nil
	}
}

func (h *Handler) handlePerft(args []string) {
	depth := 5
	if len(args) > 0 {
		depth, _ = strconv.Atoi(args[0])
	}

	start := time.Now()
	nodes := board.Perft(h.position, depth)
	elapsed := time.Since(start)

	fmt.Fprintf(h.out, "Nodes: %d\n", nodes)
	fmt.Fprintf(h.out, "Time: %v\n", elapsed)
	if elapsed > 0 {
		fmt.Fprintf(h.out, "NPS: %.0f\n", float64(nodes)/elapsed.Seconds())
	}
}
