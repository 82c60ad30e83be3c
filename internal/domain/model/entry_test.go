package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionedEntry_SealAndVerify(t *testing.T) {
	e := VersionedEntry{
		Key:       "R1",
		Sequence:  1,
		Value:     []byte(`{"status":"pending"}`),
		Committed: 1,
		PrevHash:  GenesisHash,
	}
	e.Seal()

	assert.Len(t, e.Hash, 64)
	assert.True(t, e.Verify())

	tampered := e
	tampered.Value = []byte(`{"status":"approved"}`)
	assert.False(t, tampered.Verify())

	moved := e
	moved.Sequence = 2
	assert.False(t, moved.Verify())
}

func TestComputeEntryHash_LengthPrefixed(t *testing.T) {
	// Shifting bytes between key and value must change the hash.
	a := ComputeEntryHash("0", "ab", 1, 1, []byte("c"))
	b := ComputeEntryHash("0", "a", 1, 1, []byte("bc"))
	assert.NotEqual(t, a, b)
}

func TestNotFoundError(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &NotFoundError{Key: "R9"})

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrMalformedStoredValue))
	assert.Equal(t, "wrapped: Review R9 does not exist", err.Error())
}
