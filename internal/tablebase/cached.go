package tablebase

import (
	"encoding/binary"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/hailam/krait/internal/board"
)

// CachedProber wraps another prober with an in-memory map and an optional
// badger-backed persistent layer, so the expensive inner prober (remote
// API or disk tables) is consulted once per position across sessions.
type CachedProber struct {
	inner Prober
	db    *badger.DB // nil for memory-only caching

	mu      sync.RWMutex
	cache   map[uint64]cachedResult
	maxSize int

	hits   uint64
	misses uint64
}

type cachedResult struct {
	state ProbeState
	wdl   WDL
}

// NewCachedProber wraps a prober with an in-memory cache of maxSize entries.
func NewCachedProber(inner Prober, maxSize int) *CachedProber {
	return &CachedProber{
		inner:   inner,
		cache:   make(map[uint64]cachedResult, maxSize),
		maxSize: maxSize,
	}
}

// NewPersistentCachedProber additionally spills probe results into a
// badger store keyed by position hash, surviving restarts.
func NewPersistentCachedProber(inner Prober, maxSize int, db *badger.DB) *CachedProber {
	cp := NewCachedProber(inner, maxSize)
	cp.db = db
	return cp
}

func tbCacheKey(hash uint64) []byte {
	key := make([]byte, 11)
	copy(key, "tb/")
	binary.LittleEndian.PutUint64(key[3:], hash)
	return key
}

// ProbeWDL resolves from memory, then the persistent layer, then the
// inner prober, writing back on the way out. Failures are not cached:
// transient network errors must stay retryable.
func (cp *CachedProber) ProbeWDL(pos *board.Position) (ProbeState, WDL) {
	hash := pos.Key()

	cp.mu.RLock()
	if r, ok := cp.cache[hash]; ok {
		cp.mu.RUnlock()
		cp.mu.Lock()
		cp.hits++
		cp.mu.Unlock()
		return r.state, r.wdl
	}
	cp.mu.RUnlock()

	if cp.db != nil {
		var r cachedResult
		err := cp.db.View(func(txn *badger.Txn) error {
			item, err := txn.Get(tbCacheKey(hash))
			if err != nil {
				return err
			}
			return item.Value(func(val []byte) error {
				if len(val) == 2 {
					r = cachedResult{state: ProbeState(int8(val[0])), wdl: WDL(int8(val[1]))}
				}
				return nil
			})
		})
		if err == nil && r.state == Success {
			cp.store(hash, r, false)
			return r.state, r.wdl
		}
	}

	state, wdl := cp.inner.ProbeWDL(pos)

	cp.mu.Lock()
	cp.misses++
	cp.mu.Unlock()

	if state == Success {
		cp.store(hash, cachedResult{state: state, wdl: wdl}, true)
	}
	return state, wdl
}

func (cp *CachedProber) store(hash uint64, r cachedResult, persist bool) {
	cp.mu.Lock()
	if len(cp.cache) >= cp.maxSize {
		// Bulk eviction keeps this O(1) amortized
		n := 0
		for k := range cp.cache {
			if n >= cp.maxSize/2 {
				break
			}
			delete(cp.cache, k)
			n++
		}
	}
	cp.cache[hash] = r
	cp.mu.Unlock()

	if persist && cp.db != nil {
		val := []byte{byte(int8(r.state)), byte(int8(r.wdl))}
		_ = cp.db.Update(func(txn *badger.Txn) error {
			return txn.Set(tbCacheKey(hash), val)
		})
	}
}

// ProbeDTZ passes through; DTZ values are cheap to recompute relative to
// their storage cost and are only used at the root.
func (cp *CachedProber) ProbeDTZ(pos *board.Position) (ProbeState, int) {
	return cp.inner.ProbeDTZ(pos)
}

// ProbeRoot passes through; root probes need fresh move ranking.
func (cp *CachedProber) ProbeRoot(pos *board.Position) RootResult {
	return cp.inner.ProbeRoot(pos)
}

// MaxPieces delegates to the inner prober.
func (cp *CachedProber) MaxPieces() int {
	return cp.inner.MaxPieces()
}

// Available delegates to the inner prober.
func (cp *CachedProber) Available() bool {
	return cp.inner.Available()
}

// HitRate returns the in-memory hit rate as a percentage.
func (cp *CachedProber) HitRate() float64 {
	cp.mu.RLock()
	defer cp.mu.RUnlock()
	total := cp.hits + cp.misses
	if total == 0 {
		return 0
	}
	return float64(cp.hits) / float64(total) * 100
}

// Clear drops the in-memory cache (the persistent layer is kept).
func (cp *CachedProber) Clear() {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	cp.cache = make(map[uint64]cachedResult, cp.maxSize)
	cp.hits = 0
	cp.misses = 0
}
