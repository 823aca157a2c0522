package board

import "testing"

// TestCuckooEnumeration: standard chess has 3668 reversible non-pawn
// move pairs, and each must be retrievable through one of its two slots.
func TestCuckooEnumeration(t *testing.T) {
	if got := CuckooCount(); got != 3668 {
		t.Errorf("cuckoo pair count = %d, want 3668", got)
	}

	for c := White; c <= Black; c++ {
		for pt := Knight; pt <= King; pt++ {
			for s1 := A1; s1 <= H8; s1++ {
				for s2 := s1 + 1; s2 <= H8; s2++ {
					if PieceAttacks(pt, s1, 0)&SquareBB(s2) == 0 {
						continue
					}
					key := CuckooMoveKey(NewPiece(pt, c), s1, s2)
					if !CuckooHasKey(key) {
						t.Fatalf("move key missing for %v %v-%v", NewPiece(pt, c), s1, s2)
					}
				}
			}
		}
	}
}

// TestHasCycle: one reversible rook move away from repeating an earlier
// position must be flagged as an upcoming repetition.
func TestHasCycle(t *testing.T) {
	pos := MustPosition("4k3/8/8/8/8/8/8/R3K3 w - - 0 1")

	// Shuffle the rook out and the kings around so the side to move can
	// slide the rook home, repeating the earlier position.
	moves := []string{"a1a2", "e8d8", "a2b2", "d8e8"}
	for _, s := range moves {
		m, err := ParseMove(s, pos)
		if err != nil {
			t.Fatalf("%s: %v", s, err)
		}
		pos.DoMove(m, &StateInfo{})
	}

	extra := []string{"b2c2", "e8d8"}
	for _, s := range extra {
		m, err := ParseMove(s, pos)
		if err != nil {
			t.Fatalf("%s: %v", s, err)
		}
		pos.DoMove(m, &StateInfo{})
	}

	// c2b2 now reaches the position that stood three plies ago (rook on
	// b2, king on d8, black to move): an upcoming repetition.
	if !pos.HasCycle(7) {
		t.Errorf("upcoming repetition not detected")
	}
}
