// Package book implements Polyglot opening-book probing.
package book

import (
	"encoding/binary"
	"io"
	"math/rand"
	"os"
	"sort"

	"github.com/hailam/krait/internal/board"
)

// Entry is a single book move with its weight.
type Entry struct {
	Move   board.Move
	Weight uint16
}

// Book is an opening book indexed by Polyglot position key.
type Book struct {
	entries map[uint64][]Entry
}

// New creates an empty book.
func New() *Book {
	return &Book{entries: make(map[uint64][]Entry)}
}

// LoadPolyglot loads a Polyglot-format book from a file.
func LoadPolyglot(filename string) (*Book, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return LoadPolyglotReader(file)
}

// LoadPolyglotReader loads a Polyglot-format book from a reader.
// Entry layout: 8-byte key, 2-byte move, 2-byte weight, 4-byte learn
// field (ignored), all big-endian.
func LoadPolyglotReader(r io.Reader) (*Book, error) {
	book := New()

	var entry [16]byte
	for {
		_, err := io.ReadFull(r, entry[:])
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		key := binary.BigEndian.Uint64(entry[0:8])
		moveData := binary.BigEndian.Uint16(entry[8:10])
		weight := binary.BigEndian.Uint16(entry[10:12])

		if move := decodePolyglotMove(moveData); move != board.MoveNone {
			book.entries[key] = append(book.entries[key], Entry{Move: move, Weight: weight})
		}
	}

	return book, nil
}

// decodePolyglotMove unpacks the Polyglot move encoding:
// bits 0-5 to, 6-11 from, 12-14 promotion (0=none, 1=N .. 4=Q).
// Polyglot already encodes castling king-takes-rook, matching our own
// castle representation directly.
func decodePolyglotMove(data uint16) board.Move {
	toFile := data & 7
	toRank := (data >> 3) & 7
	fromFile := (data >> 6) & 7
	fromRank := (data >> 9) & 7
	promo := (data >> 12) & 7

	from := board.NewSquare(int(fromFile), int(fromRank))
	to := board.NewSquare(int(toFile), int(toRank))

	if promo > 0 && promo <= 4 {
		promoTypes := [5]board.PieceType{0, board.Knight, board.Bishop, board.Rook, board.Queen}
		return board.NewPromotion(from, to, promoTypes[promo])
	}

	return board.NewMove(from, to)
}

// Probe returns a book move for the position using weighted random
// selection among the stored entries, or false when out of book.
func (b *Book) Probe(pos *board.Position) (board.Move, bool) {
	if b == nil {
		return board.MoveNone, false
	}

	entries, ok := b.entries[pos.PolyglotHash()]
	if !ok || len(entries) == 0 {
		return board.MoveNone, false
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Weight > entries[j].Weight
	})

	totalWeight := uint32(0)
	for _, e := range entries {
		totalWeight += uint32(e.Weight)
	}
	if totalWeight == 0 {
		return matchLegal(pos, entries[0].Move)
	}

	r := rand.Uint32() % totalWeight
	cumulative := uint32(0)
	for _, e := range entries {
		cumulative += uint32(e.Weight)
		if r < cumulative {
			return matchLegal(pos, e.Move)
		}
	}

	return matchLegal(pos, entries[0].Move)
}

// ProbeAll returns every book move for the position, best weight first.
func (b *Book) ProbeAll(pos *board.Position) []Entry {
	if b == nil {
		return nil
	}

	entries, ok := b.entries[pos.PolyglotHash()]
	if !ok {
		return nil
	}

	result := make([]Entry, len(entries))
	copy(result, entries)
	sort.Slice(result, func(i, j int) bool {
		return result[i].Weight > result[j].Weight
	})
	return result
}

// matchLegal resolves a raw book move against the legal move list so the
// returned move carries the right special-move flags.
func matchLegal(pos *board.Position, move board.Move) (board.Move, bool) {
	var legal board.MoveList
	pos.GenerateLegal(&legal)

	from, to := move.From(), move.To()
	for i := 0; i < legal.Len(); i++ {
		lm := legal.Get(i)
		if lm.From() != from || lm.To() != to {
			continue
		}
		if move.IsPromotion() != lm.IsPromotion() {
			continue
		}
		if move.IsPromotion() && move.Promotion() != lm.Promotion() {
			continue
		}
		return lm, true
	}

	return board.MoveNone, false
}

// Size returns the number of distinct positions in the book.
func (b *Book) Size() int {
	if b == nil {
		return 0
	}
	return len(b.entries)
}
