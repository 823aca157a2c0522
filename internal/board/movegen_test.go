package board

import "testing"

// TestStalemateNoLegalMoves: black has
// no legal move and is not in check.
func TestStalemateNoLegalMoves(t *testing.T) {
	pos := MustPosition("7k/5Q2/6K1/8/8/8/8/8 b - - 0 1")

	var ml MoveList
	pos.GenerateLegal(&ml)

	if ml.Len() != 0 {
		t.Errorf("expected no legal moves, got %d", ml.Len())
	}
	if pos.InCheck() {
		t.Errorf("stalemated side must not be in check")
	}
	if !pos.IsStalemate() {
		t.Errorf("IsStalemate should be true")
	}
}

// TestLegalEqualsFilteredPseudoLegal: the legal generator must be exactly
// the pseudo-legal generator filtered through PseudoLegal && Legal.
func TestLegalEqualsFilteredPseudoLegal(t *testing.T) {
	fens := []string{
		StartFEN,
		"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1",
		"8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 b - - 0 1",
		"rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3", // in check
	}

	for _, fen := range fens {
		pos := MustPosition(fen)

		var legal, pseudo MoveList
		pos.GenerateLegal(&legal)
		if pos.InCheck() {
			pos.Generate(&pseudo, GenEvasions)
		} else {
			pos.Generate(&pseudo, GenNormal)
		}

		filtered := make(map[Move]bool)
		for i := 0; i < pseudo.Len(); i++ {
			m := pseudo.Get(i)
			if pos.PseudoLegal(m) && pos.Legal(m) {
				filtered[m] = true
			}
		}

		if len(filtered) != legal.Len() {
			t.Errorf("%s: filtered pseudo-legal %d != legal %d", fen, len(filtered), legal.Len())
		}
		for i := 0; i < legal.Len(); i++ {
			if !filtered[legal.Get(i)] {
				t.Errorf("%s: legal move %v rejected by PseudoLegal/Legal", fen, legal.Get(i))
			}
		}
	}
}

// TestGenerateKindsPartition: captures plus quiets must equal the normal
// generation, with queen promotions in the noisy half.
func TestGenerateKindsPartition(t *testing.T) {
	fens := []string{
		StartFEN,
		"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1",
		"8/2P5/8/8/4k3/8/8/4K2R w K - 0 1",
	}

	for _, fen := range fens {
		pos := MustPosition(fen)

		var captures, quiets, normal MoveList
		pos.Generate(&captures, GenCaptures)
		pos.Generate(&quiets, GenQuiets)
		pos.Generate(&normal, GenNormal)

		if captures.Len()+quiets.Len() != normal.Len() {
			t.Errorf("%s: captures %d + quiets %d != normal %d",
				fen, captures.Len(), quiets.Len(), normal.Len())
		}

		for i := 0; i < captures.Len(); i++ {
			m := captures.Get(i)
			if !pos.IsCapture(m) && !(m.IsPromotion() && m.Promotion() == Queen) {
				t.Errorf("%s: %v in capture generation is neither capture nor queen promotion", fen, m)
			}
		}
		for i := 0; i < quiets.Len(); i++ {
			m := quiets.Get(i)
			if pos.IsCapture(m) {
				t.Errorf("%s: capture %v in quiet generation", fen, m)
			}
		}
	}
}

// TestQuietChecksGiveCheck: every generated quiet check must check.
func TestQuietChecksGiveCheck(t *testing.T) {
	pos := MustPosition("6k1/5ppp/8/8/8/8/5PPP/4R1K1 w - - 0 1")

	var ml MoveList
	pos.Generate(&ml, GenQuietChecks)

	if ml.Len() == 0 {
		t.Fatalf("expected at least one quiet check (e1e8)")
	}
	for i := 0; i < ml.Len(); i++ {
		m := ml.Get(i)
		if !pos.GivesCheck(m) {
			t.Errorf("%v generated as quiet check but does not check", m)
		}
		if pos.IsCapture(m) {
			t.Errorf("%v generated as quiet check but is a capture", m)
		}
	}
}

// TestCastlingStandard: both sides castle both ways in Kiwipete.
func TestCastlingStandard(t *testing.T) {
	pos := MustPosition("r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1")

	var ml MoveList
	pos.GenerateLegal(&ml)

	castles := 0
	for i := 0; i < ml.Len(); i++ {
		if ml.Get(i).IsCastle() {
			castles++
		}
	}
	if castles != 2 {
		t.Errorf("white should have 2 castle moves, got %d", castles)
	}

	// The castle move is encoded king-takes-rook.
	m, err := ParseMove("e1g1", pos)
	if err != nil {
		t.Fatalf("e1g1: %v", err)
	}
	if !m.IsCastle() || m.To() != H1 {
		t.Errorf("kingside castle should encode e1h1, got %v", m)
	}

	var st StateInfo
	pos.DoMove(m, &st)
	if pos.PieceOn(G1) != WhiteKing || pos.PieceOn(F1) != WhiteRook {
		t.Errorf("after castling, king/rook misplaced: g1=%v f1=%v",
			pos.PieceOn(G1), pos.PieceOn(F1))
	}
	pos.UndoMove(m)
}

// TestCastlingChess960: king on b1, rook on g1, the
// castle is encoded b1g1 and legal only with the path free and unattacked.
func TestCastlingChess960(t *testing.T) {
	pos, err := NewPosition("5k2/8/8/8/8/8/8/1K4R1 w G - 0 1")
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if !pos.Chess960() {
		t.Fatalf("file-letter castling rights should flag Chess960")
	}

	var ml MoveList
	pos.GenerateLegal(&ml)

	var castle Move
	for i := 0; i < ml.Len(); i++ {
		if m := ml.Get(i); m.IsCastle() {
			castle = m
		}
	}
	if castle == MoveNone {
		t.Fatalf("castle move not generated")
	}
	if castle.From() != B1 || castle.To() != G1 {
		t.Errorf("castle should be b1g1 (king takes rook), got %v", castle)
	}

	var st StateInfo
	pos.DoMove(castle, &st)
	if pos.PieceOn(G1) != WhiteKing || pos.PieceOn(F1) != WhiteRook {
		t.Errorf("after 960 castle: g1=%v f1=%v", pos.PieceOn(G1), pos.PieceOn(F1))
	}
	pos.UndoMove(castle)

	// With the king path attacked the castle must be illegal.
	attacked, err := NewPosition("5k2/8/8/8/8/8/4r3/1K4R1 w G - 0 1")
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	var ml2 MoveList
	attacked.GenerateLegal(&ml2)
	for i := 0; i < ml2.Len(); i++ {
		if ml2.Get(i).IsCastle() {
			t.Errorf("castle through attacked e1 square should be illegal")
		}
	}
}
