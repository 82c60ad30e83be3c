package model

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"time"
)

// GenesisHash is the PrevHash of the first entry ever committed.
const GenesisHash = "0"

// VersionedEntry is one immutable snapshot of a key's value.
type VersionedEntry struct {
	Key         string
	Sequence    int64 // Per-key, starts at 1.
	Value       []byte
	Committed   int64 // Store-wide commit ordinal, starts at 1.
	CommittedAt time.Time
	PrevHash    string
	Hash        string
}

// ComputeEntryHash returns the hex SHA-256 that chains an entry to its
// predecessor in commit order. Variable-length fields are length-prefixed so
// distinct entries never serialize to the same preimage.
func ComputeEntryHash(prevHash, key string, sequence, committed int64, value []byte) string {
	h := sha256.New()

	var num [8]byte
	writeBytes := func(b []byte) {
		binary.BigEndian.PutUint64(num[:], uint64(len(b)))
		h.Write(num[:])
		h.Write(b)
	}

	writeBytes([]byte(prevHash))
	writeBytes([]byte(key))
	binary.BigEndian.PutUint64(num[:], uint64(sequence))
	h.Write(num[:])
	binary.BigEndian.PutUint64(num[:], uint64(committed))
	h.Write(num[:])
	writeBytes(value)

	return hex.EncodeToString(h.Sum(nil))
}

// Seal fills in Hash from the entry's other fields.
func (e *VersionedEntry) Seal() {
	e.Hash = ComputeEntryHash(e.PrevHash, e.Key, e.Sequence, e.Committed, e.Value)
}

// Verify reports whether Hash matches the entry's contents.
func (e VersionedEntry) Verify() bool {
	return e.Hash == ComputeEntryHash(e.PrevHash, e.Key, e.Sequence, e.Committed, e.Value)
}

// ChainReport summarizes a walk over the ledger in commit order.
type ChainReport struct {
	Valid  bool
	Length int64
	// FirstInvalid is the Committed ordinal of the first broken entry, or 0.
	FirstInvalid int64
	Reason       string
}
