// api/audit/encoder_test.go
package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit_errors "github.com/veritas-grc/veritas/api/errors"
)

func baseEntry() Entry {
	return Entry{
		Sequence:       1,
		Timestamp:      time.Date(2025, 3, 14, 9, 26, 53, 589793238, time.UTC),
		UserID:         "u-100",
		UserName:       "Dana Reyes",
		UserEmail:      "dana@example.com",
		Action:         ActionUpdate,
		EntityType:     "incident",
		EntityID:       "INC-1",
		EntityName:     "Forklift near-miss",
		ChangedFields:  []string{"status", "severity"},
		OldValues:      map[string]interface{}{"status": "open", "severity": 2},
		NewValues:      map[string]interface{}{"status": "closed", "severity": 3},
		IPAddress:      "10.0.0.7",
		ActionCategory: "incident_management",
		PrevHash:       GenesisHash,
	}
}

func TestCanonicalEncodeDeterministic(t *testing.T) {
	a := baseEntry()

	// Same logical content, maps populated in a different order.
	b := baseEntry()
	b.OldValues = map[string]interface{}{}
	b.OldValues["severity"] = 2
	b.OldValues["status"] = "open"
	b.NewValues = map[string]interface{}{}
	b.NewValues["severity"] = 3
	b.NewValues["status"] = "closed"

	encodedA, err := CanonicalEncode(a)
	require.NoError(t, err)
	encodedB, err := CanonicalEncode(b)
	require.NoError(t, err)

	assert.Equal(t, encodedA, encodedB)
}

func TestCanonicalEncodeIgnoresSensitivityFlag(t *testing.T) {
	plain := baseEntry()
	flagged := baseEntry()
	flagged.IsSensitive = true

	encodedPlain, err := CanonicalEncode(plain)
	require.NoError(t, err)
	encodedFlagged, err := CanonicalEncode(flagged)
	require.NoError(t, err)

	// Sensitivity is a display policy; revising it must not break the chain.
	assert.Equal(t, encodedPlain, encodedFlagged)
}

func TestCanonicalEncodeExcludesEntryHash(t *testing.T) {
	a := baseEntry()
	b := baseEntry()
	b.EntryHash = "deadbeef"

	encodedA, err := CanonicalEncode(a)
	require.NoError(t, err)
	encodedB, err := CanonicalEncode(b)
	require.NoError(t, err)

	assert.Equal(t, encodedA, encodedB)
}

func TestCanonicalEncodeExplicitNulls(t *testing.T) {
	e := baseEntry()
	e.EntityType = ""
	e.EntityID = ""
	e.OldValues = nil

	encoded, err := CanonicalEncode(e)
	require.NoError(t, err)

	assert.Contains(t, string(encoded), `"entity_type":null`)
	assert.Contains(t, string(encoded), `"entity_id":null`)
	assert.Contains(t, string(encoded), `"old_values":null`)
}

func TestCanonicalEncodeEmptyChangedFieldsStable(t *testing.T) {
	a := baseEntry()
	a.ChangedFields = nil
	b := baseEntry()
	b.ChangedFields = []string{}

	encodedA, err := CanonicalEncode(a)
	require.NoError(t, err)
	encodedB, err := CanonicalEncode(b)
	require.NoError(t, err)

	assert.Equal(t, encodedA, encodedB)
	assert.Contains(t, string(encodedA), `"changed_fields":[]`)
}

func TestCanonicalEncodePermitsScalarLists(t *testing.T) {
	e := baseEntry()
	e.NewValues = map[string]interface{}{
		"tags": []interface{}{"ppe", "warehouse", 3, true, nil},
	}

	_, err := CanonicalEncode(e)
	assert.NoError(t, err)
}

func TestCanonicalEncodeRejectsNestedValues(t *testing.T) {
	cases := map[string]interface{}{
		"nested map":   map[string]interface{}{"inner": "x"},
		"nested list":  []interface{}{[]interface{}{"x"}},
		"struct value": struct{ X int }{X: 1},
		"map in list":  []interface{}{map[string]interface{}{"x": 1}},
		"channel":      make(chan int),
	}

	for name, value := range cases {
		t.Run(name, func(t *testing.T) {
			e := baseEntry()
			e.NewValues = map[string]interface{}{"field": value}

			_, err := CanonicalEncode(e)
			assert.ErrorIs(t, err, audit_errors.ErrEncoding)
		})
	}
}

func TestCanonicalEncodeTimestampIsUTC(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	a := baseEntry()
	b := baseEntry()
	b.Timestamp = a.Timestamp.In(loc)

	encodedA, err := CanonicalEncode(a)
	require.NoError(t, err)
	encodedB, err := CanonicalEncode(b)
	require.NoError(t, err)

	assert.Equal(t, encodedA, encodedB)
}
