// api/audit/helpers_test.go
package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/veritas-grc/veritas/api/util"
)

// newTestAppender wires an appender over the given store and starts its
// worker; the worker is drained and stopped when the test ends.
func newTestAppender(t *testing.T, store Store) *Appender {
	t.Helper()

	appender := NewAppender(store, nil, util.NewValidationUtil(), 16)
	ctx, cancel := context.WithCancel(context.Background())
	appender.Start(ctx)
	t.Cleanup(func() {
		cancel()
		appender.Wait()
	})
	return appender
}

func mustAppend(t *testing.T, appender *Appender, candidate Candidate) Entry {
	t.Helper()

	entry, err := appender.Append(context.Background(), candidate)
	require.NoError(t, err)
	require.NotNil(t, entry)
	return *entry
}

func incidentCreate(id string) Candidate {
	return Candidate{
		Actor:      Actor{ID: "u-100", Name: "Dana Reyes", Email: "dana@example.com"},
		Action:     ActionCreate,
		EntityType: "incident",
		EntityID:   id,
		EntityName: "Forklift near-miss",
		NewValues: map[string]interface{}{
			"status":   "open",
			"severity": 2,
		},
		IPAddress:      "10.0.0.7",
		ActionCategory: "incident_management",
	}
}

func incidentStatusUpdate(id string) Candidate {
	return Candidate{
		Actor:         Actor{ID: "u-100", Name: "Dana Reyes", Email: "dana@example.com"},
		Action:        ActionUpdate,
		EntityType:    "incident",
		EntityID:      id,
		EntityName:    "Forklift near-miss",
		ChangedFields: []string{"status"},
		OldValues:     map[string]interface{}{"status": "open"},
		NewValues:     map[string]interface{}{"status": "closed"},
		IPAddress:     "10.0.0.7",
	}
}
