// api/audit/appender_test.go
package audit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit_errors "github.com/veritas-grc/veritas/api/errors"
	"github.com/veritas-grc/veritas/api/util"
)

func TestAppendChainsFromGenesis(t *testing.T) {
	store := NewMemoryStore()
	appender := newTestAppender(t, store)

	first := mustAppend(t, appender, incidentCreate("INC-1"))
	assert.Equal(t, uint64(1), first.Sequence)
	assert.Equal(t, GenesisHash, first.PrevHash)
	assert.NotEmpty(t, first.EntryHash)

	second := mustAppend(t, appender, incidentStatusUpdate("INC-1"))
	assert.Equal(t, uint64(2), second.Sequence)
	assert.Equal(t, first.EntryHash, second.PrevHash)

	// Every stored entry carries the hash recomputable from its own fields.
	for _, e := range []Entry{first, second} {
		recomputed, err := EntryHash(e)
		require.NoError(t, err)
		assert.Equal(t, e.EntryHash, recomputed)
	}
}

func TestAppendRejectsUnknownAction(t *testing.T) {
	appender := newTestAppender(t, NewMemoryStore())

	candidate := incidentCreate("INC-1")
	candidate.Action = "escalate"

	_, err := appender.Append(context.Background(), candidate)
	assert.ErrorIs(t, err, audit_errors.ErrValidation)
}

func TestAppendEncodingFailureConsumesNoSequence(t *testing.T) {
	store := NewMemoryStore()
	appender := newTestAppender(t, store)

	bad := incidentCreate("INC-1")
	bad.NewValues = map[string]interface{}{"nested": map[string]interface{}{"x": 1}}

	_, err := appender.Append(context.Background(), bad)
	assert.ErrorIs(t, err, audit_errors.ErrEncoding)

	// The failed append left nothing behind; the next one takes sequence 1.
	entry := mustAppend(t, appender, incidentCreate("INC-1"))
	assert.Equal(t, uint64(1), entry.Sequence)
	assert.Equal(t, GenesisHash, entry.PrevHash)
}

func TestAppendDefaultsToSystemActor(t *testing.T) {
	appender := newTestAppender(t, NewMemoryStore())

	candidate := incidentCreate("INC-1")
	candidate.Actor = Actor{}

	entry := mustAppend(t, appender, candidate)
	assert.Equal(t, SystemActor.ID, entry.UserID)
	assert.Equal(t, SystemActor.Name, entry.UserName)
}

func TestAppendTimestampsNeverDecrease(t *testing.T) {
	store := NewMemoryStore()

	// A clock that jumps backwards between appends.
	times := []time.Time{
		time.Date(2025, 6, 1, 12, 0, 10, 0, time.UTC),
		time.Date(2025, 6, 1, 12, 0, 5, 0, time.UTC),
		time.Date(2025, 6, 1, 12, 0, 20, 0, time.UTC),
	}
	var call int
	appender := NewAppender(store, nil, util.NewValidationUtil(), 16).
		WithClock(func() time.Time {
			ts := times[call%len(times)]
			call++
			return ts
		})

	ctx, cancel := context.WithCancel(context.Background())
	appender.Start(ctx)
	defer func() {
		cancel()
		appender.Wait()
	}()

	first := mustAppend(t, appender, incidentCreate("INC-1"))
	second := mustAppend(t, appender, incidentStatusUpdate("INC-1"))
	third := mustAppend(t, appender, incidentStatusUpdate("INC-1"))

	assert.False(t, second.Timestamp.Before(first.Timestamp))
	assert.False(t, third.Timestamp.Before(second.Timestamp))
}

func TestConcurrentAppendsAreTotallyOrdered(t *testing.T) {
	const concurrency = 32

	store := NewMemoryStore()
	appender := newTestAppender(t, store)

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := appender.Append(context.Background(), incidentCreate("INC-1"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// Exactly C entries with sequences 1..C, each correctly chained,
	// regardless of completion order.
	tail, _, err := store.Tail(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(concurrency), tail)

	verification, err := NewVerifier(store, nil).Verify(context.Background())
	require.NoError(t, err)
	assert.True(t, verification.IsValid)
	assert.Equal(t, uint64(concurrency), verification.EntriesVerified)
}

func TestAppendAfterShutdownFails(t *testing.T) {
	appender := NewAppender(NewMemoryStore(), nil, util.NewValidationUtil(), 16)
	ctx, cancel := context.WithCancel(context.Background())
	appender.Start(ctx)

	cancel()
	appender.Wait()

	_, err := appender.Append(context.Background(), incidentCreate("INC-1"))
	assert.ErrorIs(t, err, audit_errors.ErrAppenderClosed)
}
