package board

// Score packs a middlegame and an endgame value into a single 32-bit word:
// mg in the lower 16 bits, eg in the upper 16. Addition and subtraction
// work on both halves at once; extraction must round through unsigned
// intermediates so negative halves come back intact.
type Score int32

// MakeScore builds a Score from middlegame and endgame components.
func MakeScore(mg, eg int) Score {
	return Score(int32(eg)<<16 + int32(int16(mg)))
}

// MG extracts the middlegame half of the score.
func (s Score) MG() int {
	return int(int16(uint16(uint32(s))))
}

// EG extracts the endgame half of the score.
func (s Score) EG() int {
	return int(int16(uint16((uint32(s) + 0x8000) >> 16)))
}

// Div divides each half of the score separately.
func (s Score) Div(n int) Score {
	return MakeScore(s.MG()/n, s.EG()/n)
}

// Piece values per game phase, indexed by PieceType.
var (
	PieceValueMG = [7]int{126, 781, 825, 1276, 2538, 0, 0}
	PieceValueEG = [7]int{208, 854, 915, 1380, 2682, 0, 0}
)

// Piece-square bonus tables from White's perspective; mirrored for Black.
// The raw tables carry a single phase except for the king, which gets the
// active-endgame table from the second block.

var pawnPSQ = [64]int{
	0, 0, 0, 0, 0, 0, 0, 0,
	5, 10, 10, -20, -20, 10, 10, 5,
	5, -5, -10, 0, 0, -10, -5, 5,
	0, 0, 0, 20, 20, 0, 0, 0,
	5, 5, 10, 25, 25, 10, 5, 5,
	10, 10, 20, 30, 30, 20, 10, 10,
	50, 50, 50, 50, 50, 50, 50, 50,
	0, 0, 0, 0, 0, 0, 0, 0,
}

var knightPSQ = [64]int{
	-50, -40, -30, -30, -30, -30, -40, -50,
	-40, -20, 0, 5, 5, 0, -20, -40,
	-30, 5, 10, 15, 15, 10, 5, -30,
	-30, 0, 15, 20, 20, 15, 0, -30,
	-30, 5, 15, 20, 20, 15, 5, -30,
	-30, 0, 10, 15, 15, 10, 0, -30,
	-40, -20, 0, 0, 0, 0, -20, -40,
	-50, -40, -30, -30, -30, -30, -40, -50,
}

var bishopPSQ = [64]int{
	-20, -10, -10, -10, -10, -10, -10, -20,
	-10, 5, 0, 0, 0, 0, 5, -10,
	-10, 10, 10, 10, 10, 10, 10, -10,
	-10, 0, 10, 10, 10, 10, 0, -10,
	-10, 5, 5, 10, 10, 5, 5, -10,
	-10, 0, 5, 10, 10, 5, 0, -10,
	-10, 0, 0, 0, 0, 0, 0, -10,
	-20, -10, -10, -10, -10, -10, -10, -20,
}

var rookPSQ = [64]int{
	0, 0, 0, 5, 5, 0, 0, 0,
	-5, 0, 0, 0, 0, 0, 0, -5,
	-5, 0, 0, 0, 0, 0, 0, -5,
	-5, 0, 0, 0, 0, 0, 0, -5,
	-5, 0, 0, 0, 0, 0, 0, -5,
	-5, 0, 0, 0, 0, 0, 0, -5,
	5, 10, 10, 10, 10, 10, 10, 5,
	0, 0, 0, 0, 0, 0, 0, 0,
}

var queenPSQ = [64]int{
	-20, -10, -10, -5, -5, -10, -10, -20,
	-10, 0, 5, 0, 0, 0, 0, -10,
	-10, 5, 5, 5, 5, 5, 0, -10,
	0, 0, 5, 5, 5, 5, 0, -5,
	-5, 0, 5, 5, 5, 5, 0, -5,
	-10, 0, 5, 5, 5, 5, 0, -10,
	-10, 0, 0, 0, 0, 0, 0, -10,
	-20, -10, -10, -5, -5, -10, -10, -20,
}

var kingMidgamePSQ = [64]int{
	20, 30, 10, 0, 0, 10, 30, 20,
	20, 20, 0, 0, 0, 0, 20, 20,
	-10, -20, -20, -20, -20, -20, -20, -10,
	-20, -30, -30, -40, -40, -30, -30, -20,
	-30, -40, -40, -50, -50, -40, -40, -30,
	-30, -40, -40, -50, -50, -40, -40, -30,
	-30, -40, -40, -50, -50, -40, -40, -30,
	-30, -40, -40, -50, -50, -40, -40, -30,
}

var kingEndgamePSQ = [64]int{
	-50, -30, -30, -30, -30, -30, -30, -50,
	-30, -30, 0, 0, 0, 0, -30, -30,
	-30, -10, 20, 30, 30, 20, -10, -30,
	-30, -10, 30, 40, 40, 30, -10, -30,
	-30, -10, 30, 40, 40, 30, -10, -30,
	-30, -10, 20, 30, 30, 20, -10, -30,
	-30, -20, -10, 0, 0, -10, -20, -30,
	-50, -40, -30, -20, -20, -30, -40, -50,
}

// psqBonus[pc][sq] is the full piece-square score (material included) for
// piece pc sitting on sq. White scores positive, black negative.
var psqBonus [12][64]Score

func init() {
	tables := [6]*[64]int{&pawnPSQ, &knightPSQ, &bishopPSQ, &rookPSQ, &queenPSQ, &kingMidgamePSQ}
	for pt := Pawn; pt <= King; pt++ {
		for sq := A1; sq <= H8; sq++ {
			mg := PieceValueMG[pt] + tables[pt][sq]
			eg := PieceValueEG[pt] + tables[pt][sq]
			if pt == King {
				eg = PieceValueEG[pt] + kingEndgamePSQ[sq]
			}
			psqBonus[NewPiece(pt, White)][sq] = MakeScore(mg, eg)
			psqBonus[NewPiece(pt, Black)][sq.Mirror()] = -MakeScore(mg, eg)
		}
	}
}

// PSQBonus returns the piece-square score of a piece on a square.
func PSQBonus(pc Piece, sq Square) Score {
	return psqBonus[pc][sq]
}
