package engine

import (
	"fmt"
	"math/bits"

	"github.com/hailam/krait/internal/board"
)

// Bound classifies a stored transposition-table value.
type Bound uint8

const (
	BoundNone  Bound = 0
	BoundUpper Bound = 1 // fail-low: value is an upper bound
	BoundLower Bound = 2 // fail-high: value is a lower bound
	BoundExact Bound = BoundUpper | BoundLower
)

// Generation bookkeeping. The low 3 bits of genBound8 hold the PV flag
// and the bound; the generation counter lives in the remaining 5 bits and
// advances by 8 each new search, wrapping with the cycle arithmetic below.
const (
	genBits  = 3
	genDelta = 1 << genBits
	genCycle = 255 + genDelta
	genMask  = (0xFF << genBits) & 0xFF
)

// TTEntry is one 10-byte transposition-table record. depth8 == 0 marks an
// empty slot. Fields are written without synchronization; a torn entry is
// caught by the key16 check on the next probe and simply replaced.
type TTEntry struct {
	key16     uint16
	move16    board.Move
	value16   int16
	eval16    int16
	depth8    uint8
	genBound8 uint8
}

// depthOffset rebases stored depths so qsearch depths fit in a byte.
const depthOffset = 7

// Move returns the stored best move.
func (e *TTEntry) Move() board.Move { return e.move16 }

// Value returns the stored search value in TT encoding.
func (e *TTEntry) Value() int { return int(e.value16) }

// Eval returns the stored static evaluation.
func (e *TTEntry) Eval() int { return int(e.eval16) }

// Depth returns the stored search depth.
func (e *TTEntry) Depth() int { return int(e.depth8) - depthOffset }

// Bound returns the stored bound type.
func (e *TTEntry) Bound() Bound { return Bound(e.genBound8 & 3) }

// IsPV returns true if the entry was stored at a PV node.
func (e *TTEntry) IsPV() bool { return e.genBound8&4 != 0 }

// save overwrites the entry following the replacement rules: keep the old
// move on a keyed no-move save, and keep deeper data for the same key
// unless the new bound is exact.
func (e *TTEntry) save(key uint64, move board.Move, value, eval, depth int, bound Bound, pv bool, gen uint8) {
	k16 := uint16(key)

	if move != board.MoveNone || k16 != e.key16 {
		e.move16 = move
	}

	pvBonus := 0
	if pv {
		pvBonus = 2
	}

	if bound == BoundExact ||
		k16 != e.key16 ||
		depth+depthOffset+2*pvBonus > int(e.depth8)-4 {
		e.key16 = k16
		e.value16 = int16(value)
		e.eval16 = int16(eval)
		e.depth8 = uint8(depth + depthOffset)
		e.genBound8 = gen | uint8(pvBonus<<1) | uint8(bound)
	}
}

// relativeAge is the age of the entry in generation steps, used to prefer
// replacing stale deep entries over fresh shallow ones.
func (e *TTEntry) relativeAge(gen uint8) int {
	return int((genCycle + uint16(gen) - uint16(e.genBound8)) & genMask)
}

// ttClusterSize is the number of entries per cluster; with two pad bytes a
// cluster fills 32 bytes, half a cache line.
const ttClusterSize = 3

type ttCluster struct {
	entry [ttClusterSize]TTEntry
	_     [2]byte
}

// TranspositionTable is the shared lock-free transposition table: a
// contiguous cluster array indexed by a fixed-point multiply of the
// position key. Probes and stores use plain (racy) memory accesses;
// correctness rests on key verification, not synchronization.
type TranspositionTable struct {
	clusters []ttCluster
	gen      uint8
}

// minTTSizeMB is the floor the allocation-failure fallback retries down to.
const minTTSizeMB = 1

// NewTranspositionTable allocates a table of roughly sizeMB megabytes.
// If the allocation fails the requested size is halved and retried, down
// to the minimum; only failure at the minimum is returned as an error.
func NewTranspositionTable(sizeMB int) (*TranspositionTable, error) {
	if sizeMB < minTTSizeMB {
		sizeMB = minTTSizeMB
	}

	tt := &TranspositionTable{}
	for {
		if err := tt.tryAlloc(sizeMB); err == nil {
			return tt, nil
		} else if sizeMB <= minTTSizeMB {
			return nil, fmt.Errorf("transposition table: %w", err)
		}
		sizeMB /= 2
	}
}

func (tt *TranspositionTable) tryAlloc(sizeMB int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("allocating %d MB: %v", sizeMB, r)
		}
	}()

	count := uint64(sizeMB) * 1024 * 1024 / 32
	tt.clusters = make([]ttCluster, count)
	tt.gen = 0
	return nil
}

// Resize reallocates the table. Only valid while the pool is idle.
func (tt *TranspositionTable) Resize(sizeMB int) error {
	nt, err := NewTranspositionTable(sizeMB)
	if err != nil {
		return err
	}
	tt.clusters = nt.clusters
	tt.gen = 0
	return nil
}

// Clear zeroes every entry. Only valid while the pool is idle.
func (tt *TranspositionTable) Clear() {
	for i := range tt.clusters {
		tt.clusters[i] = ttCluster{}
	}
	tt.gen = 0
}

// NewSearch advances the generation counter; older entries age out of
// replacement preference.
func (tt *TranspositionTable) NewSearch() {
	tt.gen += genDelta
	tt.gen &= genMask
}

// Generation returns the current generation bits.
func (tt *TranspositionTable) Generation() uint8 {
	return tt.gen
}

// cluster maps a key to its cluster with the high 64 bits of the 128-bit
// product key*len, a multiply-based modulo without the divide.
func (tt *TranspositionTable) cluster(key uint64) *ttCluster {
	hi, _ := bits.Mul64(key, uint64(len(tt.clusters)))
	return &tt.clusters[hi]
}

// Probe looks up a key. On a hit it refreshes the entry's generation and
// returns it; on a miss it returns the best slot to overwrite: an empty
// entry if any, else the one with the lowest depth-minus-age worth.
func (tt *TranspositionTable) Probe(key uint64) (*TTEntry, bool) {
	cl := tt.cluster(key)
	k16 := uint16(key)

	for i := 0; i < ttClusterSize; i++ {
		e := &cl.entry[i]
		if e.key16 == k16 && e.depth8 != 0 {
			e.genBound8 = tt.gen | (e.genBound8 & (genDelta - 1))
			return e, true
		}
	}

	replace := &cl.entry[0]
	for i := 1; i < ttClusterSize; i++ {
		e := &cl.entry[i]
		if replace.depth8 == 0 {
			break
		}
		if e.depth8 == 0 ||
			int(e.depth8)-e.relativeAge(tt.gen) < int(replace.depth8)-replace.relativeAge(tt.gen) {
			replace = e
		}
	}
	return replace, false
}

// Save stores a result into the slot chosen by a preceding Probe.
func (tt *TranspositionTable) Save(e *TTEntry, key uint64, move board.Move, value, eval, depth int, bound Bound, pv bool) {
	e.save(key, move, value, eval, depth, bound, pv, tt.gen)
}

// Hashfull samples the first 1000 clusters and reports how full the table
// is, in permille, counting only current-generation entries.
func (tt *TranspositionTable) Hashfull() int {
	sample := 1000
	if len(tt.clusters) < sample {
		sample = len(tt.clusters)
	}
	if sample == 0 {
		return 0
	}

	used := 0
	for i := 0; i < sample; i++ {
		for j := 0; j < ttClusterSize; j++ {
			e := &tt.clusters[i].entry[j]
			if e.depth8 != 0 && e.genBound8&genMask == tt.gen {
				used++
			}
		}
	}
	return used * 1000 / (sample * ttClusterSize)
}

// SizeMB returns the current table size in megabytes.
func (tt *TranspositionTable) SizeMB() int {
	return len(tt.clusters) * 32 / (1024 * 1024)
}
