package board

// Polyglot Zobrist keys, kept separate from the engine's internal keys so
// opening books hash the same way regardless of our own key layout.
var (
	polyglotPieces     [12][64]uint64 // [piece_kind][square]
	polyglotCastling   [4]uint64      // [KQkq]
	polyglotEnPassant  [8]uint64      // [file]
	polyglotSideToMove uint64
)

func init() {
	initPolyglotKeys()
}

// PolyglotHash computes the Polyglot book key of the position.
// Polyglot piece ordering: bp, bN, bB, bR, bQ, bK, wp, wN, wB, wR, wQ, wK.
func (p *Position) PolyglotHash() uint64 {
	var hash uint64

	pieceKindMap := [2][6]int{
		{6, 7, 8, 9, 10, 11}, // White: p=6, N=7, B=8, R=9, Q=10, K=11
		{0, 1, 2, 3, 4, 5},   // Black: p=0, N=1, B=2, R=3, Q=4, K=5
	}

	for c := White; c <= Black; c++ {
		for pt := Pawn; pt <= King; pt++ {
			bb := p.byColorType[c][pt]
			for bb != 0 {
				hash ^= polyglotPieces[pieceKindMap[c][pt]][bb.PopLSB()]
			}
		}
	}

	cr := p.st.castlingRights
	if cr&WhiteKingSideCastle != 0 {
		hash ^= polyglotCastling[0]
	}
	if cr&WhiteQueenSideCastle != 0 {
		hash ^= polyglotCastling[1]
	}
	if cr&BlackKingSideCastle != 0 {
		hash ^= polyglotCastling[2]
	}
	if cr&BlackQueenSideCastle != 0 {
		hash ^= polyglotCastling[3]
	}

	// NewPosition only records a capturable ep square, matching the
	// Polyglot convention directly.
	if p.st.epSquare != NoSquare {
		hash ^= polyglotEnPassant[p.st.epSquare.File()]
	}

	if p.sideToMove == White {
		hash ^= polyglotSideToMove
	}

	return hash
}

func initPolyglotKeys() {
	var s uint64 = 0x37b4a4b3f0d1c0d0

	rng := func() uint64 {
		s ^= s >> 12
		s ^= s << 25
		s ^= s >> 27
		return s * 0x2545F4914F6CDD1D
	}

	for piece := 0; piece < 12; piece++ {
		for sq := 0; sq < 64; sq++ {
			polyglotPieces[piece][sq] = rng()
		}
	}

	for i := 0; i < 4; i++ {
		polyglotCastling[i] = rng()
	}

	for i := 0; i < 8; i++ {
		polyglotEnPassant[i] = rng()
	}

	polyglotSideToMove = rng()
}
