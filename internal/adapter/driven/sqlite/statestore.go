package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/reviewledger/internal/domain/model"
	"github.com/ericfisherdev/reviewledger/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.StateStore = (*StateStore)(nil)

// noExpectation disables the sequence check in append.
const noExpectation = -1

// StateStore is the SQLite implementation of the StateStore port. All
// versions live in one append-only table; the current value of a key is its
// highest-sequence row.
type StateStore struct {
	db  *DB
	now func() time.Time
}

// NewStateStore creates a new StateStore backed by the given DB.
func NewStateStore(db *DB) *StateStore {
	return &StateStore{db: db, now: time.Now}
}

// Put appends a new version of key.
func (s *StateStore) Put(ctx context.Context, key string, value []byte) (int64, error) {
	return s.append(ctx, key, noExpectation, value)
}

// PutIfLatest appends a new version of key only if its current sequence is expected.
func (s *StateStore) PutIfLatest(ctx context.Context, key string, expected int64, value []byte) (int64, error) {
	return s.append(ctx, key, expected, value)
}

// append assigns the next per-key sequence and commit ordinal inside one
// transaction on the single writer connection.
func (s *StateStore) append(ctx context.Context, key string, expected int64, value []byte) (int64, error) {
	tx, err := s.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin append %q: %w", key, err)
	}
	defer func() { _ = tx.Rollback() }()

	var current int64
	const seqQuery = `SELECT COALESCE(MAX(sequence), 0) FROM ledger_entries WHERE key = ?`
	if err := tx.QueryRowContext(ctx, seqQuery, key).Scan(&current); err != nil {
		return 0, fmt.Errorf("read sequence for %q: %w", key, err)
	}

	if expected != noExpectation && current != expected {
		return 0, fmt.Errorf("put %q at sequence %d (current %d): %w", key, expected, current, model.ErrVersionConflict)
	}

	var lastCommitted int64
	prevHash := model.GenesisHash
	const tipQuery = `SELECT committed, hash FROM ledger_entries ORDER BY committed DESC LIMIT 1`
	err = tx.QueryRowContext(ctx, tipQuery).Scan(&lastCommitted, &prevHash)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("read ledger tip: %w", err)
	}

	if value == nil {
		value = []byte{}
	}

	entry := model.VersionedEntry{
		Key:         key,
		Sequence:    current + 1,
		Value:       value,
		Committed:   lastCommitted + 1,
		CommittedAt: s.now().UTC(),
		PrevHash:    prevHash,
	}
	entry.Seal()

	const insert = `
		INSERT INTO ledger_entries (committed, key, sequence, value, committed_at, prev_hash, hash)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.ExecContext(ctx, insert,
		entry.Committed, entry.Key, entry.Sequence, entry.Value,
		entry.CommittedAt.Format(timeFormat), entry.PrevHash, entry.Hash,
	)
	if err != nil {
		return 0, fmt.Errorf("insert entry %q/%d: %w", key, entry.Sequence, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit append %q: %w", key, err)
	}

	return entry.Sequence, nil
}

// Get returns the current value of key, or nil if it was never written.
func (s *StateStore) Get(ctx context.Context, key string) ([]byte, error) {
	entry, err := s.Latest(ctx, key)
	if err != nil || entry == nil {
		return nil, err
	}
	return entry.Value, nil
}

// Latest returns the current entry of key, or nil if it was never written.
func (s *StateStore) Latest(ctx context.Context, key string) (*model.VersionedEntry, error) {
	const query = `
		SELECT committed, key, sequence, value, committed_at, prev_hash, hash
		FROM ledger_entries
		WHERE key = ?
		ORDER BY sequence DESC
		LIMIT 1
	`

	entry, err := scanEntry(s.db.Reader.QueryRowContext(ctx, query, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest %q: %w", key, err)
	}

	return entry, nil
}

// History returns every version of key in sequence order.
func (s *StateStore) History(ctx context.Context, key string) ([]model.VersionedEntry, error) {
	const query = `
		SELECT committed, key, sequence, value, committed_at, prev_hash, hash
		FROM ledger_entries
		WHERE key = ?
		ORDER BY sequence
	`

	rows, err := s.db.Reader.QueryContext(ctx, query, key)
	if err != nil {
		return nil, fmt.Errorf("query history %q: %w", key, err)
	}

	return collectEntries(rows)
}

// Entries returns up to limit entries committed after afterCommitted.
func (s *StateStore) Entries(ctx context.Context, afterCommitted int64, limit int) ([]model.VersionedEntry, error) {
	if limit <= 0 {
		return []model.VersionedEntry{}, nil
	}

	const query = `
		SELECT committed, key, sequence, value, committed_at, prev_hash, hash
		FROM ledger_entries
		WHERE committed > ?
		ORDER BY committed
		LIMIT ?
	`

	rows, err := s.db.Reader.QueryContext(ctx, query, afterCommitted, limit)
	if err != nil {
		return nil, fmt.Errorf("query entries after %d: %w", afterCommitted, err)
	}

	return collectEntries(rows)
}

func collectEntries(rows *sql.Rows) ([]model.VersionedEntry, error) {
	defer rows.Close()

	entries := []model.VersionedEntry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, *entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}

	return entries, nil
}

func scanEntry(s scanner) (*model.VersionedEntry, error) {
	var entry model.VersionedEntry
	var committedAt string

	err := s.Scan(
		&entry.Committed, &entry.Key, &entry.Sequence, &entry.Value,
		&committedAt, &entry.PrevHash, &entry.Hash,
	)
	if err != nil {
		return nil, err
	}

	entry.CommittedAt, err = parseTime(committedAt)
	if err != nil {
		return nil, fmt.Errorf("parse committed_at: %w", err)
	}

	return &entry, nil
}
