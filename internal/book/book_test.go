package book

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hailam/krait/internal/board"
)

// polyglotEntry assembles one raw 16-byte book record.
func polyglotEntry(key uint64, from, to board.Square, weight uint16) []byte {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[0:8], key)

	moveData := uint16(to.File()) | uint16(to.Rank())<<3 |
		uint16(from.File())<<6 | uint16(from.Rank())<<9
	binary.BigEndian.PutUint16(buf[8:10], moveData)
	binary.BigEndian.PutUint16(buf[10:12], weight)
	return buf[:]
}

func TestLoadAndProbe(t *testing.T) {
	pos := board.StartPosition()
	key := pos.PolyglotHash()

	var raw bytes.Buffer
	raw.Write(polyglotEntry(key, board.E2, board.E4, 100))
	raw.Write(polyglotEntry(key, board.D2, board.D4, 50))
	raw.Write(polyglotEntry(0xDEAD, board.A2, board.A3, 10)) // other position

	b, err := LoadPolyglotReader(&raw)
	require.NoError(t, err)
	assert.Equal(t, 2, b.Size())

	m, ok := b.Probe(pos)
	require.True(t, ok)
	assert.Contains(t, []string{"e2e4", "d2d4"}, m.String())

	all := b.ProbeAll(pos)
	require.Len(t, all, 2)
	assert.Equal(t, "e2e4", all[0].Move.String(), "entries sorted by weight")
}

func TestProbeOutOfBook(t *testing.T) {
	b := New()
	pos := board.StartPosition()

	m, ok := b.Probe(pos)
	assert.False(t, ok)
	assert.Equal(t, board.MoveNone, m)
}

func TestProbeRejectsIllegalBookMove(t *testing.T) {
	pos := board.StartPosition()
	key := pos.PolyglotHash()

	var raw bytes.Buffer
	raw.Write(polyglotEntry(key, board.E2, board.E5, 100)) // impossible pawn jump

	b, err := LoadPolyglotReader(&raw)
	require.NoError(t, err)

	m, ok := b.Probe(pos)
	assert.False(t, ok, "illegal book move must not surface")
	assert.Equal(t, board.MoveNone, m)
}

func TestTruncatedBook(t *testing.T) {
	raw := bytes.NewBuffer([]byte{1, 2, 3})
	_, err := LoadPolyglotReader(raw)
	assert.Error(t, err)
}
