package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestThreadMark(t *testing.T) {
	var tm ThreadMark
	tm.Clear()

	key := uint64(0xFEEDFACE01234567)

	// First visitor sees no foreign mark.
	assert.False(t, tm.Mark(key, 0))

	// Another worker on the same key sees worker 0's mark.
	assert.True(t, tm.Mark(key, 1))

	// Re-marking by the current owner is not a foreign mark.
	assert.False(t, tm.Mark(key, 1))

	tm.Unmark(key, 1)
	assert.False(t, tm.Mark(key, 2), "unmarked slot should read empty")
}

func TestThreadMarkUnmarkOnlyOwner(t *testing.T) {
	var tm ThreadMark
	tm.Clear()

	key := uint64(0x1234)
	tm.Mark(key, 3)

	// A non-owner's unmark leaves the mark in place.
	tm.Unmark(key, 5)
	assert.True(t, tm.Mark(key, 0))
}
