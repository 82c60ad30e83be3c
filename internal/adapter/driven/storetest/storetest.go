// Package storetest holds the behavioural suite every StateStore adapter
// must pass. Adapter packages call Run from their own tests.
package storetest

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/ericfisherdev/reviewledger/internal/domain/model"
	"github.com/ericfisherdev/reviewledger/internal/domain/port/driven"
)

// Factory returns a fresh, empty store for one test.
type Factory func(t *testing.T) driven.StateStore

// Run executes the full suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("GetAbsent", func(t *testing.T) { testGetAbsent(t, newStore(t)) })
	t.Run("PutAssignsSequences", func(t *testing.T) { testPutAssignsSequences(t, newStore(t)) })
	t.Run("SequencesArePerKey", func(t *testing.T) { testSequencesArePerKey(t, newStore(t)) })
	t.Run("HistoryKeepsOverwrites", func(t *testing.T) { testHistoryKeepsOverwrites(t, newStore(t)) })
	t.Run("HistoryUnknownKeyEmpty", func(t *testing.T) { testHistoryUnknownKeyEmpty(t, newStore(t)) })
	t.Run("HistoryIsSnapshot", func(t *testing.T) { testHistoryIsSnapshot(t, newStore(t)) })
	t.Run("PutIfLatest", func(t *testing.T) { testPutIfLatest(t, newStore(t)) })
	t.Run("EntriesChain", func(t *testing.T) { testEntriesChain(t, newStore(t)) })
	t.Run("EntriesPaging", func(t *testing.T) { testEntriesPaging(t, newStore(t)) })
	t.Run("HistoryOrderProperty", func(t *testing.T) { testHistoryOrderProperty(t, newStore) })
}

func testGetAbsent(t *testing.T, store driven.StateStore) {
	ctx := context.Background()

	val, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, val)

	entry, err := store.Latest(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func testPutAssignsSequences(t *testing.T, store driven.StateStore) {
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		seq, err := store.Put(ctx, "R1", []byte(fmt.Sprintf("v%d", want)))
		require.NoError(t, err)
		assert.Equal(t, want, seq)
	}

	val, err := store.Get(ctx, "R1")
	require.NoError(t, err)
	assert.Equal(t, []byte("v3"), val)

	latest, err := store.Latest(ctx, "R1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, int64(3), latest.Sequence)
	assert.Equal(t, "R1", latest.Key)
	assert.Equal(t, []byte("v3"), latest.Value)
	assert.False(t, latest.CommittedAt.IsZero())
}

func testSequencesArePerKey(t *testing.T, store driven.StateStore) {
	ctx := context.Background()

	seqA1, err := store.Put(ctx, "A", []byte("a1"))
	require.NoError(t, err)
	seqB1, err := store.Put(ctx, "B", []byte("b1"))
	require.NoError(t, err)
	seqA2, err := store.Put(ctx, "A", []byte("a2"))
	require.NoError(t, err)

	assert.Equal(t, int64(1), seqA1)
	assert.Equal(t, int64(1), seqB1)
	assert.Equal(t, int64(2), seqA2)

	b, err := store.Get(ctx, "B")
	require.NoError(t, err)
	assert.Equal(t, []byte("b1"), b)
}

func testHistoryKeepsOverwrites(t *testing.T, store driven.StateStore) {
	ctx := context.Background()

	for _, v := range []string{"first", "second", "third"} {
		_, err := store.Put(ctx, "R1", []byte(v))
		require.NoError(t, err)
	}

	history, err := store.History(ctx, "R1")
	require.NoError(t, err)
	require.Len(t, history, 3)

	for i, want := range []string{"first", "second", "third"} {
		assert.Equal(t, int64(i+1), history[i].Sequence)
		assert.Equal(t, []byte(want), history[i].Value)
		assert.Equal(t, "R1", history[i].Key)
	}
	assert.Less(t, history[0].Committed, history[1].Committed)
	assert.Less(t, history[1].Committed, history[2].Committed)
}

func testHistoryUnknownKeyEmpty(t *testing.T, store driven.StateStore) {
	history, err := store.History(context.Background(), "nonexistent")
	require.NoError(t, err)
	assert.NotNil(t, history)
	assert.Empty(t, history)
}

func testHistoryIsSnapshot(t *testing.T, store driven.StateStore) {
	ctx := context.Background()

	_, err := store.Put(ctx, "R1", []byte("one"))
	require.NoError(t, err)

	first, err := store.History(ctx, "R1")
	require.NoError(t, err)
	require.Len(t, first, 1)

	// Mutating a returned value must not leak into the store.
	first[0].Value[0] = 'X'

	_, err = store.Put(ctx, "R1", []byte("two"))
	require.NoError(t, err)

	second, err := store.History(ctx, "R1")
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, []byte("one"), second[0].Value)
	assert.Len(t, first, 1)
}

func testPutIfLatest(t *testing.T, store driven.StateStore) {
	ctx := context.Background()

	seq, err := store.PutIfLatest(ctx, "R1", 0, []byte("created"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq)

	_, err = store.PutIfLatest(ctx, "R1", 0, []byte("again"))
	require.ErrorIs(t, err, model.ErrVersionConflict)

	seq, err = store.PutIfLatest(ctx, "R1", 1, []byte("updated"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), seq)

	_, err = store.PutIfLatest(ctx, "R1", 1, []byte("stale"))
	require.ErrorIs(t, err, model.ErrVersionConflict)

	history, err := store.History(ctx, "R1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, []byte("updated"), history[1].Value)
}

func testEntriesChain(t *testing.T, store driven.StateStore) {
	ctx := context.Background()

	writes := []struct{ key, val string }{
		{"A", "a1"}, {"B", "b1"}, {"A", "a2"},
	}
	for _, w := range writes {
		_, err := store.Put(ctx, w.key, []byte(w.val))
		require.NoError(t, err)
	}

	entries, err := store.Entries(ctx, 0, 100)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	prev := model.GenesisHash
	for i, e := range entries {
		assert.Equal(t, writes[i].key, e.Key)
		assert.Equal(t, []byte(writes[i].val), e.Value)
		assert.Equal(t, int64(i+1), e.Committed)
		assert.Equal(t, prev, e.PrevHash)
		assert.True(t, e.Verify(), "entry %d hash", i)
		prev = e.Hash
	}
}

func testEntriesPaging(t *testing.T, store driven.StateStore) {
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := store.Put(ctx, fmt.Sprintf("K%d", i), []byte("v"))
		require.NoError(t, err)
	}

	page, err := store.Entries(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, int64(3), page[0].Committed)
	assert.Equal(t, int64(4), page[1].Committed)

	tail, err := store.Entries(ctx, 5, 10)
	require.NoError(t, err)
	assert.Empty(t, tail)
}

// testHistoryOrderProperty checks that for any interleaving of writes, each
// key's history is exactly its writes in order and Get returns the last one.
func testHistoryOrderProperty(t *testing.T, newStore Factory) {
	rapid.Check(t, func(rt *rapid.T) {
		store := newStore(t)
		ctx := context.Background()

		keys := []string{"R1", "R2", "R3"}
		written := make(map[string][][]byte)

		n := rapid.IntRange(1, 30).Draw(rt, "writes")
		for i := 0; i < n; i++ {
			key := rapid.SampledFrom(keys).Draw(rt, "key")
			val := []byte(rapid.StringN(1, 16, -1).Draw(rt, "value"))

			seq, err := store.Put(ctx, key, val)
			if err != nil {
				rt.Fatal(err)
			}
			written[key] = append(written[key], val)
			if seq != int64(len(written[key])) {
				rt.Fatalf("key %s: sequence %d, want %d", key, seq, len(written[key]))
			}
		}

		for _, key := range keys {
			history, err := store.History(ctx, key)
			if err != nil {
				rt.Fatal(err)
			}
			if len(history) != len(written[key]) {
				rt.Fatalf("key %s: %d history entries, want %d", key, len(history), len(written[key]))
			}
			for i, e := range history {
				if string(e.Value) != string(written[key][i]) {
					rt.Fatalf("key %s entry %d: %q, want %q", key, i, e.Value, written[key][i])
				}
			}

			current, err := store.Get(ctx, key)
			if err != nil {
				rt.Fatal(err)
			}
			if len(written[key]) == 0 {
				if current != nil {
					rt.Fatalf("key %s: expected absent, got %q", key, current)
				}
				continue
			}
			if string(current) != string(written[key][len(written[key])-1]) {
				rt.Fatalf("key %s: current %q, want last write", key, current)
			}
		}
	})
}
