package board

import "fmt"

// Move encodes a chess move in 16 bits:
// bits 0-5:   from square (0-63)
// bits 6-11:  to square (0-63)
// bits 12-13: promotion piece (0=Knight, 1=Bishop, 2=Rook, 3=Queen)
// bits 14-15: move type (0=simple, 1=promotion, 2=en passant, 3=castle)
//
// Castling is encoded as "king captures own rook": from is the king
// square, to is the rook square. This makes standard chess and Chess960
// castling share a single representation.
type Move uint16

// MoveType is the special-move discriminator stored in the top two bits.
type MoveType uint16

const (
	Simple    MoveType = 0 << 14
	Promote   MoveType = 1 << 14
	EnPassant MoveType = 2 << 14
	Castle    MoveType = 3 << 14
)

// MoveNone is the absent move; MoveNull passes the turn (org == dst).
const (
	MoveNone Move = 0
	MoveNull Move = Move(B1) | Move(B1)<<6
)

// NewMove creates a simple move.
func NewMove(from, to Square) Move {
	return Move(from) | Move(to)<<6
}

// NewPromotion creates a promotion move.
func NewPromotion(from, to Square, promo PieceType) Move {
	return Move(from) | Move(to)<<6 | Move(promo-Knight)<<12 | Move(Promote)
}

// NewEnPassant creates an en passant capture move.
func NewEnPassant(from, to Square) Move {
	return Move(from) | Move(to)<<6 | Move(EnPassant)
}

// NewCastle creates a castling move: king square to rook square.
func NewCastle(kingSq, rookSq Square) Move {
	return Move(kingSq) | Move(rookSq)<<6 | Move(Castle)
}

// From returns the origin square.
func (m Move) From() Square {
	return Square(m & 0x3F)
}

// To returns the destination square.
func (m Move) To() Square {
	return Square((m >> 6) & 0x3F)
}

// Type returns the move type.
func (m Move) Type() MoveType {
	return MoveType(m) & 0xC000
}

// Promotion returns the promotion piece type (only meaningful for Promote moves).
func (m Move) Promotion() PieceType {
	return PieceType((m>>12)&3) + Knight
}

// IsPromotion returns true if this is a promotion move.
func (m Move) IsPromotion() bool {
	return m.Type() == Promote
}

// IsCastle returns true if this is a castling move.
func (m Move) IsCastle() bool {
	return m.Type() == Castle
}

// IsEnPassant returns true if this is an en passant capture.
func (m Move) IsEnPassant() bool {
	return m.Type() == EnPassant
}

// OK reports whether the move is a usable move, i.e. neither MoveNone nor MoveNull.
func (m Move) OK() bool {
	return m.From() != m.To()
}

// String returns the UCI form of the move (e.g., "e2e4", "e7e8q").
// Castling prints the king-to-rook squares, matching the Chess960 wire form.
func (m Move) String() string {
	if m == MoveNone {
		return "(none)"
	}
	if m == MoveNull {
		return "0000"
	}

	s := m.From().String() + m.To().String()

	if m.IsPromotion() {
		promoChars := []byte{'n', 'b', 'r', 'q'}
		s += string(promoChars[m.Promotion()-Knight])
	}

	return s
}

// StringStd is like String but prints castling in the classical
// two-square king form (e1g1) used by standard-chess UCI controllers.
func (m Move) StringStd() string {
	if m.IsCastle() {
		kingTo := G1
		if m.To() < m.From() {
			kingTo = C1
		}
		if m.From().Rank() == 7 {
			kingTo = kingTo.Mirror()
		}
		return m.From().String() + kingTo.String()
	}
	return m.String()
}

// ParseMove parses a UCI move string against the position's legal moves,
// so special flags (castle, en passant, promotion) come back correct.
// Accepts both e1g1 and king-takes-rook castling forms.
func ParseMove(s string, pos *Position) (Move, error) {
	if len(s) < 4 || len(s) > 5 {
		return MoveNone, fmt.Errorf("invalid move string: %s", s)
	}

	from, err := ParseSquare(s[0:2])
	if err != nil {
		return MoveNone, err
	}
	to, err := ParseSquare(s[2:4])
	if err != nil {
		return MoveNone, err
	}

	var promo PieceType = NoPieceType
	if len(s) == 5 {
		switch s[4] {
		case 'n':
			promo = Knight
		case 'b':
			promo = Bishop
		case 'r':
			promo = Rook
		case 'q':
			promo = Queen
		default:
			return MoveNone, fmt.Errorf("invalid promotion piece: %c", s[4])
		}
	}

	var ml MoveList
	pos.GenerateLegal(&ml)
	for i := 0; i < ml.Len(); i++ {
		m := ml.Get(i)
		if m.IsPromotion() {
			if m.From() == from && m.To() == to && m.Promotion() == promo {
				return m, nil
			}
			continue
		}
		if promo != NoPieceType {
			continue
		}
		if m.From() == from && m.To() == to {
			return m, nil
		}
		// Classical castle notation: king hops two files
		if m.IsCastle() && m.From() == from {
			kingTo := G1
			if m.To() < m.From() {
				kingTo = C1
			}
			if from.Rank() == 7 {
				kingTo = kingTo.Mirror()
			}
			if to == kingTo {
				return m, nil
			}
		}
	}

	return MoveNone, fmt.Errorf("illegal move: %s", s)
}

// MaxMoves bounds the number of moves in any reachable position.
const MaxMoves = 256

// ValMove is a move plus its ordering score.
type ValMove struct {
	Move  Move
	Value int32
}

// MoveList is a fixed-size list of scored moves to avoid allocations.
type MoveList struct {
	moves [MaxMoves]ValMove
	count int
}

// Add appends a move with zero score.
func (ml *MoveList) Add(m Move) {
	ml.moves[ml.count].Move = m
	ml.moves[ml.count].Value = 0
	ml.count++
}

// Len returns the number of moves in the list.
func (ml *MoveList) Len() int {
	return ml.count
}

// Get returns the move at index i.
func (ml *MoveList) Get(i int) Move {
	return ml.moves[i].Move
}

// At returns a pointer to the scored move at index i.
func (ml *MoveList) At(i int) *ValMove {
	return &ml.moves[i]
}

// Swap swaps two moves in the list.
func (ml *MoveList) Swap(i, j int) {
	ml.moves[i], ml.moves[j] = ml.moves[j], ml.moves[i]
}

// Clear empties the list.
func (ml *MoveList) Clear() {
	ml.count = 0
}

// Contains returns true if the list contains the move.
func (ml *MoveList) Contains(m Move) bool {
	for i := 0; i < ml.count; i++ {
		if ml.moves[i].Move == m {
			return true
		}
	}
	return false
}

// Slice returns the scored moves as a slice backed by the list.
func (ml *MoveList) Slice() []ValMove {
	return ml.moves[:ml.count]
}
