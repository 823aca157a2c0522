package board

// Cuckoo table for upcoming-repetition detection.
//
// Every reversible non-pawn move (piece, s1, s2) with s1 < s2 gets a key
//
//	side ^ zobristPiece[piece][s1] ^ zobristPiece[piece][s2]
//
// and is stored in a fixed 8192-entry table via cuckoo hashing with two
// hash functions. During search the position-key difference along the
// state chain is probed against this table: a hit names the single
// reversible move that would repeat an earlier position.

const cuckooSize = 8192
const cuckooMask = cuckooSize - 1

type cuckooEntry struct {
	key   uint64
	piece Piece
	sq1   Square
	sq2   Square
}

var cuckooTable [cuckooSize]cuckooEntry

// cuckooCount is the number of reversible move pairs inserted (3668 for
// standard chess); exported for tests via CuckooCount.
var cuckooCount int

func cuckooH1(key uint64) uint32 {
	return uint32(key) & cuckooMask
}

func cuckooH2(key uint64) uint32 {
	return uint32(key>>16) & cuckooMask
}

func initCuckoo() {
	cuckooCount = 0
	for c := White; c <= Black; c++ {
		for pt := Knight; pt <= King; pt++ {
			for s1 := A1; s1 <= H8; s1++ {
				for s2 := s1 + 1; s2 <= H8; s2++ {
					if PieceAttacks(pt, s1, 0)&SquareBB(s2) == 0 {
						continue
					}

					e := cuckooEntry{
						key:   zobristSideToMove ^ zobristPiece[c][pt][s1] ^ zobristPiece[c][pt][s2],
						piece: NewPiece(pt, c),
						sq1:   s1,
						sq2:   s2,
					}

					// Cuckoo insertion: alternate between the two buckets,
					// displacing occupants, until an empty slot is found.
					slot := cuckooH1(e.key)
					for i := 0; ; i++ {
						cuckooTable[slot], e = e, cuckooTable[slot]
						if e.key == 0 {
							break
						}
						if i > 2*cuckooSize {
							panic("cuckoo table insertion failed")
						}
						if slot == cuckooH1(e.key) {
							slot = cuckooH2(e.key)
						} else {
							slot = cuckooH1(e.key)
						}
					}
					cuckooCount++
				}
			}
		}
	}
}

// cuckooLookup returns the table slot holding key, or -1.
func cuckooLookup(key uint64) int {
	if s := cuckooH1(key); cuckooTable[s].key == key {
		return int(s)
	}
	if s := cuckooH2(key); cuckooTable[s].key == key {
		return int(s)
	}
	return -1
}

// CuckooCount returns the number of reversible move pairs enumerated at init.
func CuckooCount() int {
	return cuckooCount
}

// CuckooHasKey reports whether the given move key is present in the table.
func CuckooHasKey(key uint64) bool {
	return cuckooLookup(key) >= 0
}

// CuckooMoveKey computes the table key of a reversible move, for tests.
func CuckooMoveKey(pc Piece, s1, s2 Square) uint64 {
	return zobristSideToMove ^ zobristPiece[pc.Color()][pc.Type()][s1] ^ zobristPiece[pc.Color()][pc.Type()][s2]
}
