package board

// GenKind selects which class of pseudo-legal moves to generate.
type GenKind uint8

const (
	GenCaptures    GenKind = iota // captures (every capturing promotion) and queen push promotions
	GenQuiets                     // non-captures, including under-promotions by push
	GenNormal                     // union of both; only valid when not in check
	GenEvasions                   // only valid when in check
	GenQuietChecks                // quiet moves that give check
)

// Generate appends the pseudo-legal moves of the given kind to ml.
func (p *Position) Generate(ml *MoveList, kind GenKind) {
	us := p.sideToMove

	if kind == GenEvasions {
		p.generateEvasions(ml)
		return
	}

	if kind == GenQuietChecks {
		var quiets MoveList
		p.Generate(&quiets, GenQuiets)
		for i := 0; i < quiets.Len(); i++ {
			if m := quiets.Get(i); p.GivesCheck(m) {
				ml.Add(m)
			}
		}
		return
	}

	var target Bitboard
	switch kind {
	case GenCaptures:
		target = p.occupied[us.Other()]
	case GenQuiets:
		target = ^p.all
	case GenNormal:
		target = ^p.occupied[us]
	}

	p.generatePawnMoves(ml, us, kind, target)
	p.generatePieceMoves(ml, us, target)

	from := p.KingSquare(us)
	attacks := kingAttacks[from] & target
	for attacks != 0 {
		ml.Add(NewMove(from, attacks.PopLSB()))
	}

	if kind != GenCaptures {
		p.generateCastling(ml, us)
	}
}

// GenerateLegal appends all fully legal moves to ml.
func (p *Position) GenerateLegal(ml *MoveList) {
	var pseudo MoveList
	if p.st.checkers != 0 {
		p.Generate(&pseudo, GenEvasions)
	} else {
		p.Generate(&pseudo, GenNormal)
	}
	for i := 0; i < pseudo.Len(); i++ {
		if m := pseudo.Get(i); p.Legal(m) {
			ml.Add(m)
		}
	}
}

// generatePieceMoves emits knight through queen moves toward target squares.
func (p *Position) generatePieceMoves(ml *MoveList, us Color, target Bitboard) {
	for pt := Knight; pt <= Queen; pt++ {
		pieces := p.byColorType[us][pt]
		for pieces != 0 {
			from := pieces.PopLSB()
			attacks := PieceAttacks(pt, from, p.all) & target
			for attacks != 0 {
				ml.Add(NewMove(from, attacks.PopLSB()))
			}
		}
	}
}

// generatePawnMoves emits pawn moves of the requested kind, restricted to
// the target destinations (used for check evasions).
func (p *Position) generatePawnMoves(ml *MoveList, us Color, kind GenKind, target Bitboard) {
	them := us.Other()
	pawns := p.byColorType[us][Pawn]
	enemies := p.occupied[them]
	empty := ^p.all

	var push1, push2, attackL, attackR Bitboard
	var promotionRank Bitboard
	var pushDir int

	if us == White {
		push1 = pawns.North() & empty
		push2 = (push1 & Rank3).North() & empty
		attackL = pawns.NorthWest() & enemies
		attackR = pawns.NorthEast() & enemies
		promotionRank = Rank8
		pushDir = 8
	} else {
		push1 = pawns.South() & empty
		push2 = (push1 & Rank6).South() & empty
		attackL = pawns.SouthWest() & enemies
		attackR = pawns.SouthEast() & enemies
		promotionRank = Rank1
		pushDir = -8
	}

	// Push promotions land on empty squares, so under GenCaptures they are
	// taken before the enemy-occupied target trims push1.
	promoPush := push1 & promotionRank
	if kind != GenCaptures {
		promoPush &= target
	}

	push1 &= target
	push2 &= target
	attackL &= target
	attackR &= target

	wantQuiet := kind != GenCaptures
	wantNoisy := kind != GenQuiets

	if wantQuiet {
		nonPromo := push1 & ^promotionRank
		for nonPromo != 0 {
			to := nonPromo.PopLSB()
			ml.Add(NewMove(Square(int(to)-pushDir), to))
		}
		for push2 != 0 {
			to := push2.PopLSB()
			ml.Add(NewMove(Square(int(to)-2*pushDir), to))
		}
	}

	if wantNoisy {
		nonPromoL := attackL & ^promotionRank
		for nonPromoL != 0 {
			to := nonPromoL.PopLSB()
			ml.Add(NewMove(Square(int(to)-pushDir+1), to))
		}
		nonPromoR := attackR & ^promotionRank
		for nonPromoR != 0 {
			to := nonPromoR.PopLSB()
			ml.Add(NewMove(Square(int(to)-pushDir-1), to))
		}
	}

	// Push promotions: the queen counts as noisy, the rest as quiet.
	// Capturing promotions are captures, so all four come with the noisy set.
	for promoPush != 0 {
		to := promoPush.PopLSB()
		addPromotions(ml, Square(int(to)-pushDir), to, wantNoisy, wantQuiet)
	}
	promoL := attackL & promotionRank
	for promoL != 0 {
		to := promoL.PopLSB()
		addPromotions(ml, Square(int(to)-pushDir+1), to, wantNoisy, wantNoisy)
	}
	promoR := attackR & promotionRank
	for promoR != 0 {
		to := promoR.PopLSB()
		addPromotions(ml, Square(int(to)-pushDir-1), to, wantNoisy, wantNoisy)
	}

	if wantNoisy && p.st.epSquare != NoSquare {
		epSq := p.st.epSquare
		capSq := Square(int(epSq) - pushDir)

		// During evasions the en passant capture only helps when the
		// double-pushed pawn is the checker.
		if kind == GenEvasions && p.st.checkers&SquareBB(capSq) == 0 {
			return
		}

		epAttackers := pawnAttacks[them][epSq] & pawns
		for epAttackers != 0 {
			ml.Add(NewEnPassant(epAttackers.PopLSB(), epSq))
		}
	}
}

// addPromotions adds promotion moves, splitting queen (noisy) from
// under-promotions (quiet).
func addPromotions(ml *MoveList, from, to Square, wantNoisy, wantQuiet bool) {
	if wantNoisy {
		ml.Add(NewPromotion(from, to, Queen))
	}
	if wantQuiet {
		ml.Add(NewPromotion(from, to, Rook))
		ml.Add(NewPromotion(from, to, Bishop))
		ml.Add(NewPromotion(from, to, Knight))
	}
}

// generateEvasions emits check evasions: king steps, and for single check
// captures of the checker or interpositions.
func (p *Position) generateEvasions(ml *MoveList) {
	us := p.sideToMove
	ksq := p.KingSquare(us)
	checkers := p.st.checkers

	// King steps along a checking slider's line stay attacked once the
	// king has moved, so they are dropped here.
	sliderAttacks := Empty
	sliders := checkers &^ (p.PiecesKind(Knight) | p.PiecesKind(Pawn))
	for sliders != 0 {
		sq := sliders.PopLSB()
		sliderAttacks |= Line(sq, ksq) &^ SquareBB(sq)
	}

	attacks := kingAttacks[ksq] & ^p.occupied[us] &^ sliderAttacks
	for attacks != 0 {
		ml.Add(NewMove(ksq, attacks.PopLSB()))
	}

	if checkers.More() {
		return // double check: king moves only
	}

	checker := checkers.LSB()
	target := Between(ksq, checker) | checkers

	p.generatePawnMoves(ml, us, GenEvasions, target)
	p.generatePieceMoves(ml, us, target)
}

// generateCastling emits castle moves whose rights are set and whose path
// is clear; attack legality is verified by Legal.
func (p *Position) generateCastling(ml *MoveList, us Color) {
	if p.st.checkers != 0 {
		return
	}
	for side := 0; side < 2; side++ {
		if p.st.castlingRights&castleRight(us, side) == 0 {
			continue
		}
		rookSq := p.castleRook[us][side]
		if rookSq == NoSquare || p.castlePath[us][side]&p.all != 0 {
			continue
		}
		ml.Add(NewCastle(p.KingSquare(us), rookSq))
	}
}
