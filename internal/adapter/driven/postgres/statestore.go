package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ericfisherdev/reviewledger/internal/domain/model"
	"github.com/ericfisherdev/reviewledger/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.StateStore = (*StateStore)(nil)

const noExpectation = -1

// entryRow mirrors a ledger_entries row.
type entryRow struct {
	Committed   int64     `db:"committed"`
	Key         string    `db:"key"`
	Sequence    int64     `db:"sequence"`
	Value       []byte    `db:"value"`
	CommittedAt time.Time `db:"committed_at"`
	PrevHash    string    `db:"prev_hash"`
	Hash        string    `db:"hash"`
}

func (r entryRow) toModel() model.VersionedEntry {
	return model.VersionedEntry{
		Key:         r.Key,
		Sequence:    r.Sequence,
		Value:       r.Value,
		Committed:   r.Committed,
		CommittedAt: r.CommittedAt.UTC(),
		PrevHash:    r.PrevHash,
		Hash:        r.Hash,
	}
}

const selectEntry = `SELECT committed, key, sequence, value, committed_at, prev_hash, hash FROM ledger_entries`

// StateStore is the PostgreSQL implementation of the StateStore port.
type StateStore struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewStateStore creates a StateStore on an open, migrated database.
func NewStateStore(db *sqlx.DB) *StateStore {
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

// append locks the chain tip row for the duration of the transaction, so
// sequence assignment and hash chaining see a stable ledger.
func (s *StateStore) append(ctx context.Context, key string, expected int64, value []byte) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin append %q: %w", key, err)
	}
	defer func() { _ = tx.Rollback() }()

	var tip struct {
		Committed int64  `db:"committed"`
		Hash      string `db:"hash"`
	}
	if err := tx.GetContext(ctx, &tip, `SELECT committed, hash FROM ledger_tip WHERE id FOR UPDATE`); err != nil {
		return 0, fmt.Errorf("lock ledger tip: %w", err)
	}

	var current int64
	const seqQuery = `SELECT COALESCE(MAX(sequence), 0) FROM ledger_entries WHERE key = $1`
	if err := tx.GetContext(ctx, &current, seqQuery, key); err != nil {
		return 0, fmt.Errorf("read sequence for %q: %w", key, err)
	}

	if expected != noExpectation && current != expected {
		return 0, fmt.Errorf("put %q at sequence %d (current %d): %w", key, expected, current, model.ErrVersionConflict)
	}

	if value == nil {
		value = []byte{}
	}

	entry := model.VersionedEntry{
		Key:         key,
		Sequence:    current + 1,
		Value:       value,
		Committed:   tip.Committed + 1,
		CommittedAt: s.now().UTC(),
		PrevHash:    tip.Hash,
	}
	entry.Seal()

	const insert = `
		INSERT INTO ledger_entries (committed, key, sequence, value, committed_at, prev_hash, hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = tx.ExecContext(ctx, insert,
		entry.Committed, entry.Key, entry.Sequence, entry.Value,
		entry.CommittedAt, entry.PrevHash, entry.Hash,
	)
	if err != nil {
		return 0, fmt.Errorf("insert entry %q/%d: %w", key, entry.Sequence, err)
	}

	const advance = `UPDATE ledger_tip SET committed = $1, hash = $2 WHERE id`
	if _, err := tx.ExecContext(ctx, advance, entry.Committed, entry.Hash); err != nil {
		return 0, fmt.Errorf("advance ledger tip: %w", err)
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
	var row entryRow
	err := s.db.GetContext(ctx, &row, selectEntry+` WHERE key = $1 ORDER BY sequence DESC LIMIT 1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest %q: %w", key, err)
	}

	entry := row.toModel()
	return &entry, nil
}

// History returns every version of key in sequence order.
func (s *StateStore) History(ctx context.Context, key string) ([]model.VersionedEntry, error) {
	var rows []entryRow
	if err := s.db.SelectContext(ctx, &rows, selectEntry+` WHERE key = $1 ORDER BY sequence`, key); err != nil {
		return nil, fmt.Errorf("query history %q: %w", key, err)
	}

	return toModels(rows), nil
}

// Entries returns up to limit entries committed after afterCommitted.
func (s *StateStore) Entries(ctx context.Context, afterCommitted int64, limit int) ([]model.VersionedEntry, error) {
	if limit <= 0 {
		return []model.VersionedEntry{}, nil
	}

	var rows []entryRow
	query := selectEntry + ` WHERE committed > $1 ORDER BY committed LIMIT $2`
	if err := s.db.SelectContext(ctx, &rows, query, afterCommitted, limit); err != nil {
		return nil, fmt.Errorf("query entries after %d: %w", afterCommitted, err)
	}

	return toModels(rows), nil
}

func toModels(rows []entryRow) []model.VersionedEntry {
	entries := make([]model.VersionedEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, r.toModel())
	}
	return entries
}
