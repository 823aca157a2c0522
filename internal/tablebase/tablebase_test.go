package tablebase

import (
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hailam/krait/internal/board"
)

// fakeProber returns a fixed result and counts probes.
type fakeProber struct {
	state  ProbeState
	wdl    WDL
	probes int
}

func (f *fakeProber) ProbeWDL(*board.Position) (ProbeState, WDL) {
	f.probes++
	return f.state, f.wdl
}
func (f *fakeProber) ProbeDTZ(*board.Position) (ProbeState, int) { return f.state, 4 }
func (f *fakeProber) ProbeRoot(*board.Position) RootResult       { return RootResult{State: f.state} }
func (f *fakeProber) MaxPieces() int                             { return 7 }
func (f *fakeProber) Available() bool                            { return true }

func TestNoopProber(t *testing.T) {
	var p NoopProber
	state, _ := p.ProbeWDL(board.StartPosition())
	assert.Equal(t, Failure, state)
	assert.False(t, p.Available())
	assert.Equal(t, 0, p.MaxPieces())
}

func TestCachedProberMemoizes(t *testing.T) {
	inner := &fakeProber{state: Success, wdl: WDLWin}
	cp := NewCachedProber(inner, 100)

	pos := board.MustPosition("4k3/8/8/8/8/8/4P3/4K3 w - - 0 1")

	state, wdl := cp.ProbeWDL(pos)
	assert.Equal(t, Success, state)
	assert.Equal(t, WDLWin, wdl)
	assert.Equal(t, 1, inner.probes)

	// Second probe of the same position comes from the cache.
	state, wdl = cp.ProbeWDL(pos)
	assert.Equal(t, Success, state)
	assert.Equal(t, WDLWin, wdl)
	assert.Equal(t, 1, inner.probes)
	assert.Greater(t, cp.HitRate(), 0.0)
}

func TestCachedProberDoesNotCacheFailures(t *testing.T) {
	inner := &fakeProber{state: Failure}
	cp := NewCachedProber(inner, 100)

	pos := board.MustPosition("4k3/8/8/8/8/8/4P3/4K3 w - - 0 1")

	cp.ProbeWDL(pos)
	cp.ProbeWDL(pos)
	assert.Equal(t, 2, inner.probes, "failures must stay retryable")
}

func TestPersistentCacheSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	require.NoError(t, err)

	inner := &fakeProber{state: Success, wdl: WDLCursedWin}
	cp := NewPersistentCachedProber(inner, 100, db)

	pos := board.MustPosition("4k3/8/8/8/8/8/4P3/4K3 w - - 0 1")
	cp.ProbeWDL(pos)
	require.NoError(t, db.Close())

	// Fresh store, fresh memory cache: the persisted result answers
	// without touching the inner prober.
	db2, err := badger.Open(opts)
	require.NoError(t, err)
	defer db2.Close()

	inner2 := &fakeProber{state: Failure}
	cp2 := NewPersistentCachedProber(inner2, 100, db2)

	state, wdl := cp2.ProbeWDL(pos)
	assert.Equal(t, Success, state)
	assert.Equal(t, WDLCursedWin, wdl)
	assert.Equal(t, 0, inner2.probes)
}

func TestCategoryToWDL(t *testing.T) {
	cases := map[string]WDL{
		"win":          WDLWin,
		"cursed-win":   WDLCursedWin,
		"draw":         WDLDraw,
		"blessed-loss": WDLBlessedLoss,
		"loss":         WDLLoss,
		"unknown":      WDLDraw,
	}
	for cat, want := range cases {
		assert.Equal(t, want, categoryToWDL(cat), "category %q", cat)
	}
}
