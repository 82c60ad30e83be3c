// Package memory implements the StateStore port entirely in process memory.
// It is used by tests and by deployments that do not need durability.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ericfisherdev/reviewledger/internal/domain/model"
	"github.com/ericfisherdev/reviewledger/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.StateStore = (*Store)(nil)

// Store keeps an append-only log of entries in commit order plus a per-key
// index into that log. The last index of a key is its current value.
type Store struct {
	mu    sync.RWMutex
	log   []model.VersionedEntry
	byKey map[string][]int
	now   func() time.Time
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		byKey: make(map[string][]int),
		now:   time.Now,
	}
}

// Put appends a new version of key.
func (s *Store) Put(_ context.Context, key string, value []byte) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.appendLocked(key, value), nil
}

// PutIfLatest appends a new version of key only if its current sequence is expected.
func (s *Store) PutIfLatest(_ context.Context, key string, expected int64, value []byte) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if current := s.sequenceLocked(key); current != expected {
		return 0, fmt.Errorf("put %q at sequence %d (current %d): %w", key, expected, current, model.ErrVersionConflict)
	}

	return s.appendLocked(key, value), nil
}

// Get returns the current value of key, or nil if it was never written.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.byKey[key]
	if len(idx) == 0 {
		return nil, nil
	}

	return bytes.Clone(s.log[idx[len(idx)-1]].Value), nil
}

// Latest returns the current entry of key, or nil if it was never written.
func (s *Store) Latest(_ context.Context, key string) (*model.VersionedEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.byKey[key]
	if len(idx) == 0 {
		return nil, nil
	}

	e := cloneEntry(s.log[idx[len(idx)-1]])
	return &e, nil
}

// History returns a snapshot of every version of key in sequence order.
func (s *Store) History(_ context.Context, key string) ([]model.VersionedEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.byKey[key]
	entries := make([]model.VersionedEntry, 0, len(idx))
	for _, i := range idx {
		entries = append(entries, cloneEntry(s.log[i]))
	}

	return entries, nil
}

// Entries returns up to limit entries committed after afterCommitted.
func (s *Store) Entries(_ context.Context, afterCommitted int64, limit int) ([]model.VersionedEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Committed ordinals are 1-based positions in the log.
	start := afterCommitted
	if start < 0 {
		start = 0
	}
	if start >= int64(len(s.log)) || limit <= 0 {
		return []model.VersionedEntry{}, nil
	}

	end := min(int(start)+limit, len(s.log))
	entries := make([]model.VersionedEntry, 0, end-int(start))
	for _, e := range s.log[start:end] {
		entries = append(entries, cloneEntry(e))
	}

	return entries, nil
}

func (s *Store) sequenceLocked(key string) int64 {
	idx := s.byKey[key]
	if len(idx) == 0 {
		return 0
	}
	return s.log[idx[len(idx)-1]].Sequence
}

func (s *Store) appendLocked(key string, value []byte) int64 {
	prevHash := model.GenesisHash
	if n := len(s.log); n > 0 {
		prevHash = s.log[n-1].Hash
	}

	entry := model.VersionedEntry{
		Key:         key,
		Sequence:    s.sequenceLocked(key) + 1,
		Value:       bytes.Clone(value),
		Committed:   int64(len(s.log)) + 1,
		CommittedAt: s.now().UTC(),
		PrevHash:    prevHash,
	}
	entry.Seal()

	s.log = append(s.log, entry)
	s.byKey[key] = append(s.byKey[key], len(s.log)-1)

	return entry.Sequence
}

func cloneEntry(e model.VersionedEntry) model.VersionedEntry {
	e.Value = bytes.Clone(e.Value)
	return e
}
