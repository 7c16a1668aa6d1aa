// api/audit/memory_test.go
package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit_errors "github.com/veritas-grc/veritas/api/errors"
)

func storedEntry(seq uint64, prev string) Entry {
	e := Entry{
		Sequence:   seq,
		Timestamp:  time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC).Add(time.Duration(seq) * time.Minute),
		UserID:     "u-100",
		UserName:   "Dana Reyes",
		Action:     ActionCreate,
		EntityType: "incident",
		EntityID:   "INC-1",
		NewValues:  map[string]interface{}{"status": "open"},
		PrevHash:   prev,
	}
	hash, err := EntryHash(e)
	if err != nil {
		panic(err)
	}
	e.EntryHash = hash
	return e
}

func TestMemoryStoreTailOnEmptyLedger(t *testing.T) {
	store := NewMemoryStore()

	seq, hash, err := store.Tail(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(0), seq)
	assert.Equal(t, GenesisHash, hash)
}

func TestMemoryStoreRejectsNonContiguousSequence(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, storedEntry(1, GenesisHash)))

	// Gap.
	err := store.Append(ctx, storedEntry(3, "whatever"))
	assert.ErrorIs(t, err, audit_errors.ErrSequenceConflict)

	// Repeat.
	err = store.Append(ctx, storedEntry(1, GenesisHash))
	assert.ErrorIs(t, err, audit_errors.ErrSequenceConflict)

	seq, _, err := store.Tail(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), seq)
}

func TestMemoryStoreGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first := storedEntry(1, GenesisHash)
	require.NoError(t, store.Append(ctx, first))

	got, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, first.EntryHash, got.EntryHash)

	_, err = store.Get(ctx, 0)
	assert.ErrorIs(t, err, audit_errors.ErrEntryNotFound)
	_, err = store.Get(ctx, 2)
	assert.ErrorIs(t, err, audit_errors.ErrEntryNotFound)
}

func TestMemoryStoreScanFromIsBoundedAndRestartable(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	prev := GenesisHash
	for seq := uint64(1); seq <= 4; seq++ {
		e := storedEntry(seq, prev)
		require.NoError(t, store.Append(ctx, e))
		prev = e.EntryHash
	}

	var seen []uint64
	err := store.ScanFrom(ctx, 2, func(e Entry) (bool, error) {
		seen = append(seen, e.Sequence)
		return true, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []uint64{2, 3, 4}, seen)

	// Early stop, then restart from the top.
	seen = seen[:0]
	err = store.ScanFrom(ctx, 1, func(e Entry) (bool, error) {
		seen = append(seen, e.Sequence)
		return e.Sequence < 2, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2}, seen)

	seen = seen[:0]
	err = store.ScanFrom(ctx, 1, func(e Entry) (bool, error) {
		seen = append(seen, e.Sequence)
		return true, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3, 4}, seen)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, storedEntry(1, GenesisHash)))

	got, err := store.Get(ctx, 1)
	require.NoError(t, err)
	got.NewValues["status"] = "mutated"

	again, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "open", again.NewValues["status"])
}
