// api/audit/memory.go
package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	audit_errors "github.com/veritas-grc/veritas/api/errors"
)

// MemoryStore is an in-memory Store for tests and ephemeral deployments.
// It enforces the same contiguity guard as the durable store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make([]Entry, 0)}
}

func (m *MemoryStore) Append(ctx context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := uint64(len(m.entries)) + 1
	if e.Sequence != next {
		return fmt.Errorf("%w: got sequence %d, ledger tail is %d",
			audit_errors.ErrSequenceConflict, e.Sequence, next-1)
	}
	m.entries = append(m.entries, cloneEntry(e))
	return nil
}

func (m *MemoryStore) Tail(ctx context.Context) (uint64, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.entries) == 0 {
		return 0, GenesisHash, nil
	}
	last := m.entries[len(m.entries)-1]
	return last.Sequence, last.EntryHash, nil
}

func (m *MemoryStore) Get(ctx context.Context, sequence uint64) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if sequence == 0 || sequence > uint64(len(m.entries)) {
		return nil, audit_errors.ErrEntryNotFound
	}
	e := cloneEntry(m.entries[sequence-1])
	return &e, nil
}

func (m *MemoryStore) ScanFrom(ctx context.Context, from uint64, fn func(Entry) (bool, error)) error {
	// Bound the scan by the ledger size at scan start; appends that land
	// while the walk runs are not observed.
	m.mu.RLock()
	max := uint64(len(m.entries))
	m.mu.RUnlock()

	if from == 0 {
		from = 1
	}
	for seq := from; seq <= max; seq++ {
		m.mu.RLock()
		e := cloneEntry(m.entries[seq-1])
		m.mu.RUnlock()

		cont, err := fn(e)
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}
	return nil
}

func (m *MemoryStore) List(ctx context.Context, f Filter, limit, offset int) ([]Entry, uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matches := make([]Entry, 0)
	for i := len(m.entries) - 1; i >= 0; i-- {
		if f.Matches(m.entries[i]) {
			matches = append(matches, cloneEntry(m.entries[i]))
		}
	}

	total := uint64(len(matches))
	if offset >= len(matches) {
		return []Entry{}, total, nil
	}
	end := offset + limit
	if end > len(matches) {
		end = len(matches)
	}
	return matches[offset:end], total, nil
}

func (m *MemoryStore) Stats(ctx context.Context, since time.Time) (*Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &Stats{ByAction: make(map[Action]uint64)}
	users := make(map[string]struct{})
	for _, e := range m.entries {
		if e.Timestamp.Before(since) {
			continue
		}
		stats.TotalEntries++
		stats.ByAction[e.Action]++
		users[e.UserID] = struct{}{}
	}
	stats.UniqueUsers = uint64(len(users))
	return stats, nil
}

// Tamper overwrites a stored entry in place, bypassing every invariant.
// It exists only so integrity tests can simulate out-of-band modification
// of the underlying storage.
func (m *MemoryStore) Tamper(sequence uint64, mutate func(*Entry)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sequence == 0 || sequence > uint64(len(m.entries)) {
		return audit_errors.ErrEntryNotFound
	}
	mutate(&m.entries[sequence-1])
	return nil
}

// cloneEntry copies an entry deeply enough that callers cannot mutate
// stored slices or maps through returned values.
func cloneEntry(e Entry) Entry {
	clone := e
	if e.ChangedFields != nil {
		clone.ChangedFields = append([]string(nil), e.ChangedFields...)
	}
	clone.OldValues = cloneValues(e.OldValues)
	clone.NewValues = cloneValues(e.NewValues)
	return clone
}

func cloneValues(values map[string]interface{}) map[string]interface{} {
	if values == nil {
		return nil
	}
	clone := make(map[string]interface{}, len(values))
	for k, v := range values {
		clone[k] = v
	}
	return clone
}
