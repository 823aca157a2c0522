package board

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// StartFEN is the FEN string for the starting position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// ErrInvalidFEN is wrapped by all position-setup failures.
var ErrInvalidFEN = errors.New("invalid FEN")

// NewPosition parses a FEN string into a Position with a fresh root
// StateInfo. Supports standard castling letters (KQkq) and Chess960
// rook-file letters (AHah / A-H a-h).
func NewPosition(fen string) (*Position, error) {
	parts := strings.Fields(fen)
	if len(parts) < 4 {
		return nil, fmt.Errorf("%w: need at least 4 fields, got %d", ErrInvalidFEN, len(parts))
	}

	pos := &Position{
		st:       &StateInfo{epSquare: NoSquare},
		fullMove: 1,
	}
	for sq := A1; sq <= H8; sq++ {
		pos.board[sq] = NoPiece
	}
	pos.castleRook = [2][2]Square{{NoSquare, NoSquare}, {NoSquare, NoSquare}}

	if err := pos.parsePlacement(parts[0]); err != nil {
		return nil, err
	}

	switch parts[1] {
	case "w":
		pos.sideToMove = White
	case "b":
		pos.sideToMove = Black
	default:
		return nil, fmt.Errorf("%w: side to move %q", ErrInvalidFEN, parts[1])
	}

	// King placement must be sane before castling geometry is derived.
	if pos.Count(White, King) != 1 || pos.Count(Black, King) != 1 {
		return nil, fmt.Errorf("%w: each side needs exactly one king", ErrInvalidFEN)
	}

	if err := pos.parseCastling(parts[2]); err != nil {
		return nil, err
	}

	if parts[3] != "-" {
		sq, err := ParseSquare(parts[3])
		if err != nil {
			return nil, fmt.Errorf("%w: en passant square %q", ErrInvalidFEN, parts[3])
		}
		// Accept the ep square only when a capture is actually possible:
		// one of our pawns attacks it and the double-pushed pawn is there.
		them := pos.sideToMove.Other()
		capSq := sq - 8
		if pos.sideToMove == Black {
			capSq = sq + 8
		}
		if pawnAttacks[them][sq]&pos.byColorType[pos.sideToMove][Pawn] != 0 &&
			pos.byColorType[them][Pawn]&SquareBB(capSq) != 0 {
			pos.st.epSquare = sq
		}
	}

	if len(parts) > 4 {
		hmc, err := strconv.Atoi(parts[4])
		if err != nil || hmc < 0 {
			return nil, fmt.Errorf("%w: halfmove clock %q", ErrInvalidFEN, parts[4])
		}
		pos.st.rule50 = hmc
	}

	if len(parts) > 5 {
		fmn, err := strconv.Atoi(parts[5])
		if err != nil || fmn < 1 {
			return nil, fmt.Errorf("%w: fullmove number %q", ErrInvalidFEN, parts[5])
		}
		pos.fullMove = fmn
	}

	if pos.PiecesKind(Pawn)&(Rank1|Rank8) != 0 {
		return nil, fmt.Errorf("%w: pawn on back rank", ErrInvalidFEN)
	}

	// The side not to move must not be in check.
	them := pos.sideToMove.Other()
	if pos.attackersTo(pos.KingSquare(them), pos.all)&pos.occupied[pos.sideToMove] != 0 {
		return nil, fmt.Errorf("%w: side not to move is in check", ErrInvalidFEN)
	}

	st := pos.st
	st.key = pos.computeKey()
	st.pawnKey = pos.computePawnKey()
	st.materialKey = pos.computeMaterialKey()
	st.psq = pos.computePSQ()
	for c := White; c <= Black; c++ {
		npm := 0
		for pt := Knight; pt <= Queen; pt++ {
			npm += pos.Count(c, pt) * PieceValue[pt]
		}
		st.nonPawnMaterial[c] = npm
	}
	pos.setCheckInfo()

	return pos, nil
}

// MustPosition parses a FEN string and panics on failure; test helper.
func MustPosition(fen string) *Position {
	pos, err := NewPosition(fen)
	if err != nil {
		panic(err)
	}
	return pos
}

// StartPosition returns the standard starting position.
func StartPosition() *Position {
	return MustPosition(StartFEN)
}

func (p *Position) parsePlacement(placement string) error {
	ranks := strings.Split(placement, "/")
	if len(ranks) != 8 {
		return fmt.Errorf("%w: need 8 ranks, got %d", ErrInvalidFEN, len(ranks))
	}

	for i, rankStr := range ranks {
		rank := 7 - i
		file := 0

		for _, c := range rankStr {
			if file > 7 {
				return fmt.Errorf("%w: too many squares in rank %d", ErrInvalidFEN, rank+1)
			}

			if c >= '1' && c <= '8' {
				file += int(c - '0')
			} else {
				pc := PieceFromChar(byte(c))
				if pc == NoPiece {
					return fmt.Errorf("%w: piece character %q", ErrInvalidFEN, c)
				}
				p.putPiece(pc, NewSquare(file, rank))
				file++
			}
		}

		if file != 8 {
			return fmt.Errorf("%w: rank %d has %d squares", ErrInvalidFEN, rank+1, file)
		}
	}

	return nil
}

func (p *Position) parseCastling(castling string) error {
	if castling == "-" {
		return nil
	}

	for _, c := range castling {
		var us Color
		var rookSq Square

		switch {
		case c >= 'A' && c <= 'Z':
			us = White
		case c >= 'a' && c <= 'z':
			us = Black
		default:
			return fmt.Errorf("%w: castling character %q", ErrInvalidFEN, c)
		}

		ksq := p.KingSquare(us)
		rooks := p.byColorType[us][Rook] & RankMask[ksq.Rank()]

		switch {
		case c == 'K' || c == 'k':
			// Outermost rook on the king's right
			rookSq = (rooks &^ (SquareBB(ksq+1) - 1)).MSB()
		case c == 'Q' || c == 'q':
			// Outermost rook on the king's left
			rookSq = (rooks & (SquareBB(ksq) - 1)).LSB()
		default:
			// Chess960 rook-file letter
			lower := c | 0x20
			f := int(lower - 'a')
			if f < 0 || f > 7 {
				return fmt.Errorf("%w: castling character %q", ErrInvalidFEN, c)
			}
			rookSq = NewSquare(f, ksq.Rank())
			if p.board[rookSq] != NewPiece(Rook, us) {
				return fmt.Errorf("%w: no rook for castling right %q", ErrInvalidFEN, c)
			}
			p.chess960 = true
		}

		if rookSq == NoSquare {
			return fmt.Errorf("%w: no rook for castling right %q", ErrInvalidFEN, c)
		}

		p.setCastlingRight(us, ksq, rookSq)
	}

	// A king off its classical square means a Chess960 setup even when
	// expressed with KQkq letters.
	if p.st.castlingRights != 0 {
		for c := White; c <= Black; c++ {
			if p.st.castlingRights&(castleRight(c, 0)|castleRight(c, 1)) != 0 &&
				p.KingSquare(c) != Relative(c, E1) {
				p.chess960 = true
			}
		}
	}

	return nil
}

// setCastlingRight records one castling right with its rook square and
// precomputes the empty-path and king-path masks.
func (p *Position) setCastlingRight(us Color, ksq, rookSq Square) {
	side := 1 // queenside
	if rookSq > ksq {
		side = 0
	}
	right := castleRight(us, side)

	p.st.castlingRights |= right
	p.castleRook[us][side] = rookSq
	p.castleRightMask[ksq] |= castleRight(us, 0) | castleRight(us, 1)
	p.castleRightMask[rookSq] |= right

	kingTo, rookTo := castleDestinations(us, ksq, rookSq)

	kingSpan := Between(ksq, kingTo) | SquareBB(kingTo)
	rookSpan := Between(rookSq, rookTo) | SquareBB(rookTo)
	p.castlePath[us][side] = (kingSpan | rookSpan) &^ (SquareBB(ksq) | SquareBB(rookSq))
	p.kingPath[us][side] = kingSpan | SquareBB(ksq)
}

// FEN returns the FEN representation of the position.
func (p *Position) FEN() string {
	var sb strings.Builder

	for rank := 7; rank >= 0; rank-- {
		empty := 0
		for file := 0; file < 8; file++ {
			sq := NewSquare(file, rank)
			if pc := p.board[sq]; pc == NoPiece {
				empty++
			} else {
				if empty > 0 {
					sb.WriteString(strconv.Itoa(empty))
					empty = 0
				}
				sb.WriteString(pc.String())
			}
		}
		if empty > 0 {
			sb.WriteString(strconv.Itoa(empty))
		}
		if rank > 0 {
			sb.WriteByte('/')
		}
	}

	sb.WriteByte(' ')
	if p.sideToMove == White {
		sb.WriteByte('w')
	} else {
		sb.WriteByte('b')
	}

	sb.WriteByte(' ')
	if p.st.castlingRights == NoCastling {
		sb.WriteByte('-')
	} else if p.chess960 {
		for c := White; c <= Black; c++ {
			for side := 0; side < 2; side++ {
				if p.st.castlingRights&castleRight(c, side) != 0 {
					ch := byte('A' + p.castleRook[c][side].File())
					if c == Black {
						ch |= 0x20
					}
					sb.WriteByte(ch)
				}
			}
		}
	} else {
		sb.WriteString(p.st.castlingRights.String())
	}

	sb.WriteByte(' ')
	sb.WriteString(p.st.epSquare.String())

	sb.WriteByte(' ')
	sb.WriteString(strconv.Itoa(p.st.rule50))
	sb.WriteByte(' ')
	sb.WriteString(strconv.Itoa(p.fullMove))

	return sb.String()
}
