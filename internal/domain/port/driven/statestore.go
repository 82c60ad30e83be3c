package driven

import (
	"context"

	"github.com/ericfisherdev/reviewledger/internal/domain/model"
)

// StateStore defines the driven port for the versioned key-value ledger.
// Every write appends a new entry; nothing is edited in place or deleted.
type StateStore interface {
	// Put appends a new version of key and returns its per-key sequence
	// (1 for the first write).
	Put(ctx context.Context, key string, value []byte) (int64, error)

	// PutIfLatest appends only when the key's current sequence equals
	// expected (0 means the key must not exist yet). Otherwise it returns
	// model.ErrVersionConflict and writes nothing.
	PutIfLatest(ctx context.Context, key string, expected int64, value []byte) (int64, error)

	// Get returns the current value of key, or (nil, nil) if the key has
	// never been written.
	Get(ctx context.Context, key string) ([]byte, error)

	// Latest returns the current entry of key, or (nil, nil) if absent.
	Latest(ctx context.Context, key string) (*model.VersionedEntry, error)

	// History returns every entry of key in ascending sequence order. An
	// unknown key yields an empty slice, not an error.
	History(ctx context.Context, key string) ([]model.VersionedEntry, error)

	// Entries returns up to limit entries across all keys whose Committed
	// ordinal is greater than afterCommitted, in commit order.
	Entries(ctx context.Context, afterCommitted int64, limit int) ([]model.VersionedEntry, error)
}
