package tablebase

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hailam/krait/internal/board"
)

// LichessProber resolves probes against the Lichess tablebase API.
// Network bound and rate limited, so it should always sit behind a
// CachedProber in the search path.
type LichessProber struct {
	client    *http.Client
	baseURL   string
	maxPieces int
}

// NewLichessProber creates a remote prober with a short request timeout.
func NewLichessProber() *LichessProber {
	return &LichessProber{
		client:    &http.Client{Timeout: 5 * time.Second},
		baseURL:   "https://tablebase.lichess.ovh/standard",
		maxPieces: 7,
	}
}

type lichessResponse struct {
	Category string `json:"category"`
	DTZ      int    `json:"dtz"`
	Moves    []struct {
		UCI      string `json:"uci"`
		Category string `json:"category"`
		DTZ      int    `json:"dtz"`
	} `json:"moves"`
}

func (lp *LichessProber) fetch(pos *board.Position) (*lichessResponse, bool) {
	if pos.Occupied().PopCount() > lp.maxPieces {
		return nil, false
	}

	fen := strings.ReplaceAll(pos.FEN(), " ", "_")
	resp, err := lp.client.Get(fmt.Sprintf("%s?fen=%s", lp.baseURL, fen))
	if err != nil {
		return nil, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, false
	}

	var result lichessResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, false
	}
	return &result, true
}

// ProbeWDL classifies the position via the remote API.
func (lp *LichessProber) ProbeWDL(pos *board.Position) (ProbeState, WDL) {
	result, ok := lp.fetch(pos)
	if !ok {
		return Failure, WDLDraw
	}
	return Success, categoryToWDL(result.Category)
}

// ProbeDTZ returns the distance to the next zeroing move.
func (lp *LichessProber) ProbeDTZ(pos *board.Position) (ProbeState, int) {
	result, ok := lp.fetch(pos)
	if !ok {
		return Failure, 0
	}
	if result.DTZ == 0 && categoryToWDL(result.Category) != WDLDraw {
		return ZeroingBest, 0
	}
	return Success, result.DTZ
}

// ProbeRoot picks the tablebase-best root move.
func (lp *LichessProber) ProbeRoot(pos *board.Position) RootResult {
	result, ok := lp.fetch(pos)
	if !ok || len(result.Moves) == 0 {
		return RootResult{State: Failure}
	}

	// Lichess sorts moves best-first for the side to move.
	best := result.Moves[0]
	m, err := board.ParseMove(best.UCI, pos)
	if err != nil {
		return RootResult{State: Failure}
	}

	return RootResult{
		State: Success,
		Move:  m,
		WDL:   -categoryToWDL(best.Category), // child category is from the opponent's view
		DTZ:   best.DTZ,
	}
}

// MaxPieces returns the API's coverage limit.
func (lp *LichessProber) MaxPieces() int {
	return lp.maxPieces
}

// Available reports true; failures degrade to Failure per probe.
func (lp *LichessProber) Available() bool {
	return true
}

func categoryToWDL(category string) WDL {
	switch category {
	case "win":
		return WDLWin
	case "cursed-win", "maybe-win":
		return WDLCursedWin
	case "blessed-loss", "maybe-loss":
		return WDLBlessedLoss
	case "loss":
		return WDLLoss
	default:
		return WDLDraw
	}
}
