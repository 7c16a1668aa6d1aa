// api/audit/model.go
package audit

import (
	"time"
)

// Action identifies the kind of operation an audit entry records.
type Action string

const (
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionView    Action = "view"
	ActionLogin   Action = "login"
	ActionLogout  Action = "logout"
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionExport  Action = "export"
)

func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete, ActionView,
		ActionLogin, ActionLogout, ActionApprove, ActionReject, ActionExport:
		return true
	}
	return false
}

// Actor is the principal a log entry is attributed to.
type Actor struct {
	ID    string `json:"user_id"`
	Name  string `json:"user_name"`
	Email string `json:"user_email"`
}

// SystemActor attributes entries produced by the system itself,
// e.g. scheduled jobs or the export service running unattended.
var SystemActor = Actor{ID: "system", Name: "System"}

// Entry is one immutable record of the audit ledger. Once written it is
// never updated or deleted; entry_hash chains it to its predecessor.
type Entry struct {
	Sequence       uint64                 `json:"sequence"`
	Timestamp      time.Time              `json:"timestamp"`
	UserID         string                 `json:"user_id"`
	UserName       string                 `json:"user_name"`
	UserEmail      string                 `json:"user_email"`
	Action         Action                 `json:"action"`
	EntityType     string                 `json:"entity_type"`
	EntityID       string                 `json:"entity_id"`
	EntityName     string                 `json:"entity_name"`
	ChangedFields  []string               `json:"changed_fields"`
	OldValues      map[string]interface{} `json:"old_values"`
	NewValues      map[string]interface{} `json:"new_values"`
	IPAddress      string                 `json:"ip_address"`
	ActionCategory string                 `json:"action_category"`
	IsSensitive    bool                   `json:"is_sensitive"`
	PrevHash       string                 `json:"prev_hash"`
	EntryHash      string                 `json:"entry_hash"`
}

// Candidate is what callers hand to the appender: an entry without the
// server-assigned fields (sequence, timestamp, prev_hash, entry_hash).
type Candidate struct {
	Actor          Actor
	Action         Action
	EntityType     string
	EntityID       string
	EntityName     string
	ChangedFields  []string
	OldValues      map[string]interface{}
	NewValues      map[string]interface{}
	IPAddress      string
	ActionCategory string
	IsSensitive    bool
}

// Verification is the outcome of a chain walk. It is ephemeral and is
// never written to the ledger.
type Verification struct {
	IsValid              bool      `json:"is_valid"`
	EntriesVerified      uint64    `json:"entries_verified"`
	FirstInvalidSequence *uint64   `json:"first_invalid_sequence,omitempty"`
	VerifiedAt           time.Time `json:"verified_at"`
}

// Filter narrows List, Stats and Export scans. Zero values match everything.
type Filter struct {
	EntityType string
	Action     Action
	UserID     string
	DateFrom   *time.Time
	DateTo     *time.Time
}

// Matches reports whether the entry satisfies every set criterion.
func (f Filter) Matches(e Entry) bool {
	if f.EntityType != "" && e.EntityType != f.EntityType {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if f.DateFrom != nil && e.Timestamp.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && e.Timestamp.After(*f.DateTo) {
		return false
	}
	return true
}

// Page is one page of a filtered listing, newest entries first.
type Page struct {
	Entries []Entry `json:"entries"`
	Total   uint64  `json:"total"`
	Page    int     `json:"page"`
	PerPage int     `json:"per_page"`
}

// Stats aggregates entries inside a trailing time window.
type Stats struct {
	TotalEntries uint64            `json:"total_entries"`
	ByAction     map[Action]uint64 `json:"by_action"`
	UniqueUsers  uint64            `json:"unique_users"`
}

// ExportFormat is the serialization of an export payload.
type ExportFormat string

const (
	FormatJSON ExportFormat = "json"
	FormatCSV  ExportFormat = "csv"
)

func (f ExportFormat) Valid() bool {
	return f == FormatJSON || f == FormatCSV
}

// ExportRequest carries everything needed to produce an export: the filter,
// the mandatory reason, and the requesting actor for the chained export entry.
type ExportRequest struct {
	Filter    Filter
	Format    ExportFormat
	Reason    string
	Actor     Actor
	IPAddress string
}

// ExportRecord is the ephemeral artifact an export produces. The ledger
// side effect is a separate Entry with action "export"; Warning is set when
// that entry could not be chained.
type ExportRecord struct {
	ID           string       `json:"id"`
	Format       ExportFormat `json:"format"`
	Reason       string       `json:"reason"`
	GeneratedAt  time.Time    `json:"generated_at"`
	EntryCount   int          `json:"entry_count"`
	ManifestHash string       `json:"manifest_hash"`
	Payload      []byte       `json:"payload"`
	Warning      string       `json:"warning,omitempty"`
}
