package engine

import (
	"encoding/binary"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/hailam/krait/internal/board"
)

// Transposition-table snapshots. Not required for correctness: a snapshot
// lets an analysis session resume with a warm table. The layout is a
// 16-byte header (cluster count + generation) followed by the raw entries,
// chunked into a badger store so a multi-gigabyte table does not need one
// contiguous value.

const (
	ttSnapshotHeaderKey = "tt/header"
	ttSnapshotChunkFmt  = "tt/chunk/%08d"

	// Clusters per chunk; 30 serialized bytes each keeps chunks just under 2 MB.
	ttSnapshotChunkLen = 65536
)

// SaveSnapshot writes the table into the store. Only valid while the pool
// is idle.
func (tt *TranspositionTable) SaveSnapshot(db *badger.DB) error {
	header := make([]byte, 16)
	binary.LittleEndian.PutUint64(header[0:8], uint64(len(tt.clusters)))
	binary.LittleEndian.PutUint64(header[8:16], uint64(tt.gen))

	if err := db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(ttSnapshotHeaderKey), header)
	}); err != nil {
		return err
	}

	buf := make([]byte, 0, ttSnapshotChunkLen*32)
	chunk := 0
	for base := 0; base < len(tt.clusters); base += ttSnapshotChunkLen {
		end := base + ttSnapshotChunkLen
		if end > len(tt.clusters) {
			end = len(tt.clusters)
		}

		buf = buf[:0]
		for i := base; i < end; i++ {
			buf = appendCluster(buf, &tt.clusters[i])
		}

		key := []byte(fmt.Sprintf(ttSnapshotChunkFmt, chunk))
		val := append([]byte(nil), buf...)
		if err := db.Update(func(txn *badger.Txn) error {
			return txn.Set(key, val)
		}); err != nil {
			return err
		}
		chunk++
	}

	return nil
}

// LoadSnapshot restores a previously saved table. The snapshot must have
// been taken from a table of the same size; otherwise an error is returned
// and the table is left unchanged.
func (tt *TranspositionTable) LoadSnapshot(db *badger.DB) error {
	var count, gen uint64
	err := db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(ttSnapshotHeaderKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) != 16 {
				return fmt.Errorf("tt snapshot: bad header length %d", len(val))
			}
			count = binary.LittleEndian.Uint64(val[0:8])
			gen = binary.LittleEndian.Uint64(val[8:16])
			return nil
		})
	})
	if err != nil {
		return err
	}

	if count != uint64(len(tt.clusters)) {
		return fmt.Errorf("tt snapshot: size mismatch (snapshot %d clusters, table %d)",
			count, len(tt.clusters))
	}

	idx := 0
	for chunk := 0; idx < len(tt.clusters); chunk++ {
		key := []byte(fmt.Sprintf(ttSnapshotChunkFmt, chunk))
		err := db.View(func(txn *badger.Txn) error {
			item, err := txn.Get(key)
			if err != nil {
				return err
			}
			return item.Value(func(val []byte) error {
				for off := 0; off+30 <= len(val) && idx < len(tt.clusters); off += 30 {
					readCluster(val[off:off+30], &tt.clusters[idx])
					idx++
				}
				return nil
			})
		})
		if err != nil {
			return err
		}
	}

	tt.gen = uint8(gen)
	return nil
}

// appendCluster serializes the three 10-byte entries of a cluster.
func appendCluster(buf []byte, cl *ttCluster) []byte {
	for i := 0; i < ttClusterSize; i++ {
		e := &cl.entry[i]
		var b [10]byte
		binary.LittleEndian.PutUint16(b[0:2], e.key16)
		binary.LittleEndian.PutUint16(b[2:4], uint16(e.move16))
		binary.LittleEndian.PutUint16(b[4:6], uint16(e.value16))
		binary.LittleEndian.PutUint16(b[6:8], uint16(e.eval16))
		b[8] = e.depth8
		b[9] = e.genBound8
		buf = append(buf, b[:]...)
	}
	return buf
}

// readCluster is the inverse of appendCluster.
func readCluster(b []byte, cl *ttCluster) {
	for i := 0; i < ttClusterSize; i++ {
		e := &cl.entry[i]
		off := i * 10
		e.key16 = binary.LittleEndian.Uint16(b[off : off+2])
		e.move16 = board.Move(binary.LittleEndian.Uint16(b[off+2 : off+4]))
		e.value16 = int16(binary.LittleEndian.Uint16(b[off+4 : off+6]))
		e.eval16 = int16(binary.LittleEndian.Uint16(b[off+6 : off+8]))
		e.depth8 = b[off+8]
		e.genBound8 = b[off+9]
	}
}
