package board

// SEE runs a static exchange evaluation: does the swap-off value of the
// move meet the threshold? Attackers are iterated least-valuable first,
// with x-ray attackers revealed by toggling occupancy as pieces leave the
// board. Castling never loses material; en passant and promotions are
// folded into the first exchange.
func (p *Position) SEE(m Move, threshold int) bool {
	if m.IsCastle() {
		return threshold <= 0
	}

	from := m.From()
	to := m.To()

	swap := PieceValue[p.CapturedType(m)] - threshold
	if m.IsPromotion() {
		swap += PieceValue[m.Promotion()] - PieceValue[Pawn]
	}
	if swap < 0 {
		return false
	}

	// First re-capture takes the moving piece (or the promoted piece).
	nextVictim := p.board[from].Type()
	if m.IsPromotion() {
		nextVictim = m.Promotion()
	}
	swap = PieceValue[nextVictim] - swap
	if swap <= 0 {
		return true
	}

	occ := (p.all ^ SquareBB(from)) | SquareBB(to)
	if m.IsEnPassant() {
		occ ^= SquareBB(NewSquare(to.File(), from.Rank()))
	}

	stm := p.sideToMove
	attackers := p.attackersTo(to, occ)
	res := 1

	diagSliders := p.PiecesKind(Bishop) | p.PiecesKind(Queen)
	lineSliders := p.PiecesKind(Rook) | p.PiecesKind(Queen)

	for {
		stm = stm.Other()
		attackers &= occ

		stmAttackers := attackers & p.occupied[stm]
		if stmAttackers == 0 {
			break
		}

		// Pinned pieces may only take part once their pinner has left.
		if p.st.pinners[stm.Other()]&occ != 0 {
			stmAttackers &^= p.st.blockersForKing[stm]
			if stmAttackers == 0 {
				break
			}
		}

		res ^= 1

		// Capture with the least valuable attacker and reveal any x-ray
		// attacker standing behind it.
		if bb := stmAttackers & p.byColorType[stm][Pawn]; bb != 0 {
			swap = PieceValue[Pawn] - swap
			if swap < res {
				break
			}
			occ ^= SquareBB(bb.LSB())
			attackers |= BishopAttacks(to, occ) & diagSliders
		} else if bb := stmAttackers & p.byColorType[stm][Knight]; bb != 0 {
			swap = PieceValue[Knight] - swap
			if swap < res {
				break
			}
			occ ^= SquareBB(bb.LSB())
		} else if bb := stmAttackers & p.byColorType[stm][Bishop]; bb != 0 {
			swap = PieceValue[Bishop] - swap
			if swap < res {
				break
			}
			occ ^= SquareBB(bb.LSB())
			attackers |= BishopAttacks(to, occ) & diagSliders
		} else if bb := stmAttackers & p.byColorType[stm][Rook]; bb != 0 {
			swap = PieceValue[Rook] - swap
			if swap < res {
				break
			}
			occ ^= SquareBB(bb.LSB())
			attackers |= RookAttacks(to, occ) & lineSliders
		} else if bb := stmAttackers & p.byColorType[stm][Queen]; bb != 0 {
			swap = PieceValue[Queen] - swap
			if swap < res {
				break
			}
			occ ^= SquareBB(bb.LSB())
			attackers |= (BishopAttacks(to, occ) & diagSliders) |
				(RookAttacks(to, occ) & lineSliders)
		} else {
			// King takes last: legal only if the other side is out of
			// attackers, otherwise the exchange flips back.
			if attackers&^p.occupied[stm] != 0 {
				res ^= 1
			}
			return res != 0
		}
	}

	return res != 0
}
