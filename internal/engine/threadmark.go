package engine

import "sync/atomic"

// ThreadMark is the "node being searched" table: an open-addressed array
// of (thread id, position key) slots indexed by the low bits of the key.
// A worker marks a node on entry within a small depth band and unmarks on
// exit; a worker that finds another thread's mark on the same key deepens
// its own late-move reduction by one. The table is a soft hint, never a
// lock: lost or stale marks only perturb reduction decisions.
type ThreadMark struct {
	slots [2048]threadMarkSlot
}

type threadMarkSlot struct {
	thread atomic.Int32
	key    atomic.Uint64
}

func (tm *ThreadMark) slot(key uint64) *threadMarkSlot {
	return &tm.slots[key&uint64(len(tm.slots)-1)]
}

// Mark records that a worker entered the node. Returns true if a
// different worker already marked the same key.
func (tm *ThreadMark) Mark(key uint64, workerID int) bool {
	s := tm.slot(key)
	otherMarked := s.key.Load() == key && s.thread.Load() != int32(workerID)
	s.thread.Store(int32(workerID))
	s.key.Store(key)
	return otherMarked
}

// Unmark releases the node if this worker still owns the slot.
func (tm *ThreadMark) Unmark(key uint64, workerID int) {
	s := tm.slot(key)
	if s.key.Load() == key && s.thread.Load() == int32(workerID) {
		s.key.Store(0)
	}
}

// Clear drops all marks; called between searches while the pool is idle.
func (tm *ThreadMark) Clear() {
	for i := range tm.slots {
		tm.slots[i].thread.Store(-1)
		tm.slots[i].key.Store(0)
	}
}
