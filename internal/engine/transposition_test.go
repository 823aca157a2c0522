package engine

import (
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hailam/krait/internal/board"
)

func TestTTRoundTrip(t *testing.T) {
	tt, err := NewTranspositionTable(1)
	require.NoError(t, err)

	key := uint64(0x123456789ABCDEF0)
	move := board.NewMove(board.E2, board.E4)

	e, hit := tt.Probe(key)
	assert.False(t, hit, "fresh table must miss")

	tt.Save(e, key, move, 123, 45, 10, BoundExact, true)

	e, hit = tt.Probe(key)
	require.True(t, hit)
	assert.Equal(t, move, e.Move())
	assert.Equal(t, 123, e.Value())
	assert.Equal(t, 45, e.Eval())
	assert.Equal(t, 10, e.Depth())
	assert.Equal(t, BoundExact, e.Bound())
	assert.True(t, e.IsPV())
}

func TestTTMovePreservedOnNoMoveSave(t *testing.T) {
	tt, err := NewTranspositionTable(1)
	require.NoError(t, err)

	key := uint64(0xCAFEBABE12345678)
	move := board.NewMove(board.G1, board.F3)

	e, _ := tt.Probe(key)
	tt.Save(e, key, move, 50, 40, 8, BoundLower, false)

	// A keyed save without a move must keep the stored move.
	e, hit := tt.Probe(key)
	require.True(t, hit)
	tt.Save(e, key, board.MoveNone, 60, 40, 9, BoundLower, false)

	e, hit = tt.Probe(key)
	require.True(t, hit)
	assert.Equal(t, move, e.Move())
	assert.Equal(t, 60, e.Value())
}

func TestTTShallowSaveKept(t *testing.T) {
	tt, err := NewTranspositionTable(1)
	require.NoError(t, err)

	key := uint64(0x1111222233334444)

	e, _ := tt.Probe(key)
	tt.Save(e, key, board.MoveNone, 100, 0, 20, BoundLower, false)

	// A much shallower non-exact save must not clobber the deep entry.
	e, hit := tt.Probe(key)
	require.True(t, hit)
	tt.Save(e, key, board.MoveNone, -5, 0, 2, BoundUpper, false)

	e, hit = tt.Probe(key)
	require.True(t, hit)
	assert.Equal(t, 20, e.Depth())
	assert.Equal(t, 100, e.Value())
}

func TestTTGenerationAging(t *testing.T) {
	tt, err := NewTranspositionTable(1)
	require.NoError(t, err)

	// Hashfull samples the first 1000 clusters in permille, so fill the
	// three slots of cluster 0 (small keys map there) to register 1.
	keys := []uint64{1, 2, 3}
	for _, key := range keys {
		e, _ := tt.Probe(key)
		tt.Save(e, key, board.MoveNone, 10, 0, 5, BoundExact, false)
	}

	assert.Greater(t, tt.Hashfull(), 0)

	// After a generation bump the old entries no longer count as current.
	tt.NewSearch()
	full := tt.Hashfull()
	assert.Equal(t, 0, full)

	// Probing refreshes the entries into the current generation.
	for _, key := range keys {
		_, hit := tt.Probe(key)
		require.True(t, hit)
	}
	assert.Greater(t, tt.Hashfull(), 0)
}

func TestTTClearAndResize(t *testing.T) {
	tt, err := NewTranspositionTable(2)
	require.NoError(t, err)
	assert.Equal(t, 2, tt.SizeMB())

	key := uint64(0x5555AAAA5555AAAA)
	e, _ := tt.Probe(key)
	tt.Save(e, key, board.MoveNone, 1, 1, 1, BoundExact, false)

	tt.Clear()
	_, hit := tt.Probe(key)
	assert.False(t, hit)

	require.NoError(t, tt.Resize(4))
	assert.Equal(t, 4, tt.SizeMB())
}

func TestTTSnapshotRoundTrip(t *testing.T) {
	tt, err := NewTranspositionTable(1)
	require.NoError(t, err)

	keys := []uint64{0x1, 0xABCDEF, 0x123123123, 0xFFFF0000FFFF0000}
	for i, k := range keys {
		e, _ := tt.Probe(k)
		tt.Save(e, k, board.NewMove(board.A2, board.A4), 10+i, i, 6+i, BoundExact, false)
	}

	opts := badger.DefaultOptions(t.TempDir())
	opts.Logger = nil
	db, err := badger.Open(opts)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, tt.SaveSnapshot(db))

	restored, err := NewTranspositionTable(1)
	require.NoError(t, err)
	require.NoError(t, restored.LoadSnapshot(db))

	for i, k := range keys {
		e, hit := restored.Probe(k)
		require.True(t, hit, "key %x lost in snapshot", k)
		assert.Equal(t, 10+i, e.Value())
		assert.Equal(t, 6+i, e.Depth())
	}
}
