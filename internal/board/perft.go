package board

// Perft counts the leaf nodes of the legal move tree at the given depth,
// the standard cross-check for move generation and make/undo.
func Perft(p *Position, depth int) uint64 {
	if depth == 0 {
		return 1
	}

	var ml MoveList
	p.GenerateLegal(&ml)

	if depth == 1 {
		return uint64(ml.Len())
	}

	var nodes uint64
	var st StateInfo
	for i := 0; i < ml.Len(); i++ {
		m := ml.Get(i)
		p.DoMove(m, &st)
		nodes += Perft(p, depth-1)
		p.UndoMove(m)
	}
	return nodes
}

// PerftDivide returns the per-move leaf counts at the given depth.
func PerftDivide(p *Position, depth int) map[Move]uint64 {
	result := make(map[Move]uint64)

	var ml MoveList
	p.GenerateLegal(&ml)

	var st StateInfo
	for i := 0; i < ml.Len(); i++ {
		m := ml.Get(i)
		p.DoMove(m, &st)
		result[m] = Perft(p, depth-1)
		p.UndoMove(m)
	}
	return result
}
