// api/audit/encoder.go
package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gowebpki/jcs"

	audit_errors "github.com/veritas-grc/veritas/api/errors"
)

// canonicalEntry is the exact field set that participates in hashing.
// entry_hash is excluded because it is derived from this encoding, and
// is_sensitive is excluded because sensitivity is a display policy that
// may be revised after the fact without breaking the chain.
//
// Optional fields are pointers so an absent value encodes as an explicit
// JSON null rather than being dropped. changed_fields always encodes as an
// array (empty for non-update actions); old_values is null for create
// entries and new_values carries the full snapshot (product decision, see
// DESIGN.md).
type canonicalEntry struct {
	Sequence       uint64                 `json:"sequence"`
	Timestamp      string                 `json:"timestamp"`
	UserID         string                 `json:"user_id"`
	UserName       string                 `json:"user_name"`
	UserEmail      string                 `json:"user_email"`
	Action         Action                 `json:"action"`
	EntityType     *string                `json:"entity_type"`
	EntityID       *string                `json:"entity_id"`
	EntityName     *string                `json:"entity_name"`
	ChangedFields  []string               `json:"changed_fields"`
	OldValues      map[string]interface{} `json:"old_values"`
	NewValues      map[string]interface{} `json:"new_values"`
	IPAddress      *string                `json:"ip_address"`
	ActionCategory *string                `json:"action_category"`
	PrevHash       string                 `json:"prev_hash"`
}

// CanonicalEncode serializes the hashed fields of an entry into a byte
// string that is identical for semantically identical entries, independent
// of map iteration order or in-memory representation. Object keys are
// canonicalized per RFC 8785.
func CanonicalEncode(e Entry) ([]byte, error) {
	if err := validateValues("old_values", e.OldValues); err != nil {
		return nil, err
	}
	if err := validateValues("new_values", e.NewValues); err != nil {
		return nil, err
	}

	ce := canonicalEntry{
		Sequence:       e.Sequence,
		Timestamp:      e.Timestamp.UTC().Format(time.RFC3339Nano),
		UserID:         e.UserID,
		UserName:       e.UserName,
		UserEmail:      e.UserEmail,
		Action:         e.Action,
		EntityType:     optional(e.EntityType),
		EntityID:       optional(e.EntityID),
		EntityName:     optional(e.EntityName),
		ChangedFields:  e.ChangedFields,
		OldValues:      e.OldValues,
		NewValues:      e.NewValues,
		IPAddress:      optional(e.IPAddress),
		ActionCategory: optional(e.ActionCategory),
		PrevHash:       e.PrevHash,
	}
	if ce.ChangedFields == nil {
		ce.ChangedFields = []string{}
	}

	raw, err := json.Marshal(ce)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", audit_errors.ErrEncoding, err)
	}

	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", audit_errors.ErrEncoding, err)
	}
	return canonical, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// validateValues enforces that audited values were flattened to JSON-safe
// scalars (string, number, boolean, null) or ordered lists of scalars
// before entry construction. Nested objects hash ambiguously across
// producers and are rejected.
func validateValues(field string, values map[string]interface{}) error {
	for key, value := range values {
		if err := validateScalarOrList(value, true); err != nil {
			return fmt.Errorf("%w: %s[%q]: %v", audit_errors.ErrEncoding, field, key, err)
		}
	}
	return nil
}

func validateScalarOrList(value interface{}, allowList bool) error {
	switch v := value.(type) {
	case nil, string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, json.Number:
		return nil
	case []interface{}:
		if !allowList {
			return fmt.Errorf("nested list is not a permitted value")
		}
		for _, elem := range v {
			if err := validateScalarOrList(elem, false); err != nil {
				return err
			}
		}
		return nil
	case []string:
		return nil
	default:
		return fmt.Errorf("unsupported value type %T", value)
	}
}
