// api/audit/repository.go
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	audit_errors "github.com/veritas-grc/veritas/api/errors"
)

// Store is durable, ordered, immutable storage of ledger entries keyed by
// sequence. No entry is ever updated or removed through this interface.
//
// Ordering of writes is the appender's job; Append still rejects any write
// whose sequence is not exactly tail+1, as a second line of defense
// (ErrSequenceConflict).
type Store interface {
	// Append persists one whole entry.
	Append(ctx context.Context, e Entry) error
	// Tail returns the sequence and hash of the newest entry, or
	// (0, GenesisHash) on an empty ledger.
	Tail(ctx context.Context) (uint64, string, error)
	// Get returns the entry at the given sequence or ErrEntryNotFound.
	Get(ctx context.Context, sequence uint64) (*Entry, error)
	// ScanFrom streams entries ascending starting at the given sequence.
	// Returning false from fn stops the scan early. The scan is bounded by
	// the ledger size when it started; entries appended concurrently may
	// not be observed.
	ScanFrom(ctx context.Context, from uint64, fn func(Entry) (bool, error)) error
	// List returns one page of matching entries ordered by sequence
	// descending, plus the total match count.
	List(ctx context.Context, f Filter, limit, offset int) ([]Entry, uint64, error)
	// Stats aggregates entries with timestamp >= since.
	Stats(ctx context.Context, since time.Time) (*Stats, error)
}

// SQLiteStore is the durable Store. Entries live in a single audit_log
// table; the sequence column is the primary key and the contiguity guard
// runs inside the insert transaction.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS audit_log (
	sequence        INTEGER PRIMARY KEY,
	timestamp       TEXT    NOT NULL,
	ts_unix_nanos   INTEGER NOT NULL,
	user_id         TEXT    NOT NULL,
	user_name       TEXT    NOT NULL DEFAULT '',
	user_email      TEXT    NOT NULL DEFAULT '',
	action          TEXT    NOT NULL,
	entity_type     TEXT    NOT NULL DEFAULT '',
	entity_id       TEXT    NOT NULL DEFAULT '',
	entity_name     TEXT    NOT NULL DEFAULT '',
	changed_fields  TEXT    NOT NULL DEFAULT '[]',
	old_values      TEXT,
	new_values      TEXT,
	ip_address      TEXT    NOT NULL DEFAULT '',
	action_category TEXT    NOT NULL DEFAULT '',
	is_sensitive    INTEGER NOT NULL DEFAULT 0,
	prev_hash       TEXT    NOT NULL,
	entry_hash      TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_log_entity_type ON audit_log(entity_type);
CREATE INDEX IF NOT EXISTS idx_audit_log_action      ON audit_log(action);
CREATE INDEX IF NOT EXISTS idx_audit_log_user_id     ON audit_log(user_id);
CREATE INDEX IF NOT EXISTS idx_audit_log_ts          ON audit_log(ts_unix_nanos);
`

// NewSQLiteStore prepares the schema on an open database handle.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if _, err := db.Exec(sqliteSchema); err != nil {
		return nil, fmt.Errorf("failed to prepare audit_log schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Append(ctx context.Context, e Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin append transaction: %w", err)
	}
	defer tx.Rollback()

	var max uint64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(sequence), 0) FROM audit_log`).Scan(&max); err != nil {
		return fmt.Errorf("failed to read ledger tail: %w", err)
	}
	if e.Sequence != max+1 {
		return fmt.Errorf("%w: got sequence %d, ledger tail is %d",
			audit_errors.ErrSequenceConflict, e.Sequence, max)
	}

	changed, err := json.Marshal(changedOrEmpty(e.ChangedFields))
	if err != nil {
		return fmt.Errorf("failed to marshal changed_fields: %w", err)
	}
	oldValues, err := marshalValues(e.OldValues)
	if err != nil {
		return fmt.Errorf("failed to marshal old_values: %w", err)
	}
	newValues, err := marshalValues(e.NewValues)
	if err != nil {
		return fmt.Errorf("failed to marshal new_values: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO audit_log (
			sequence, timestamp, ts_unix_nanos, user_id, user_name, user_email,
			action, entity_type, entity_id, entity_name, changed_fields,
			old_values, new_values, ip_address, action_category, is_sensitive,
			prev_hash, entry_hash
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Sequence, e.Timestamp.UTC().Format(time.RFC3339Nano), e.Timestamp.UnixNano(),
		e.UserID, e.UserName, e.UserEmail,
		string(e.Action), e.EntityType, e.EntityID, e.EntityName, string(changed),
		oldValues, newValues, e.IPAddress, e.ActionCategory, boolToInt(e.IsSensitive),
		e.PrevHash, e.EntryHash,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry %d: %w", e.Sequence, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit audit entry %d: %w", e.Sequence, err)
	}
	return nil
}

func (s *SQLiteStore) Tail(ctx context.Context) (uint64, string, error) {
	var (
		seq  uint64
		hash string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT sequence, entry_hash FROM audit_log ORDER BY sequence DESC LIMIT 1`,
	).Scan(&seq, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, GenesisHash, nil
	}
	if err != nil {
		return 0, "", fmt.Errorf("failed to read ledger tail: %w", err)
	}
	return seq, hash, nil
}

func (s *SQLiteStore) Get(ctx context.Context, sequence uint64) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` FROM audit_log WHERE sequence = ?`, sequence)
	e, err := scanEntry(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, audit_errors.ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read audit entry %d: %w", sequence, err)
	}
	return e, nil
}

func (s *SQLiteStore) ScanFrom(ctx context.Context, from uint64, fn func(Entry) (bool, error)) error {
	// Snapshot the bound up front so a concurrent append does not extend
	// this scan past the ledger size at scan start.
	max, _, err := s.Tail(ctx)
	if err != nil {
		return err
	}

	rows, err := s.db.QueryContext(ctx,
		selectColumns+` FROM audit_log WHERE sequence >= ? AND sequence <= ? ORDER BY sequence ASC`,
		from, max)
	if err != nil {
		return fmt.Errorf("failed to scan ledger from %d: %w", from, err)
	}
	defer rows.Close()

	for rows.Next() {
		e, err := scanEntry(rows.Scan)
		if err != nil {
			return fmt.Errorf("failed to decode audit entry: %w", err)
		}
		cont, err := fn(*e)
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}
	return rows.Err()
}

func (s *SQLiteStore) List(ctx context.Context, f Filter, limit, offset int) ([]Entry, uint64, error) {
	where, args := filterClause(f)

	var total uint64
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM audit_log`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count audit entries: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		selectColumns+` FROM audit_log`+where+` ORDER BY sequence DESC LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		e, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to decode audit entry: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, total, rows.Err()
}

func (s *SQLiteStore) Stats(ctx context.Context, since time.Time) (*Stats, error) {
	stats := &Stats{ByAction: make(map[Action]uint64)}
	cutoff := since.UnixNano()

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT user_id) FROM audit_log WHERE ts_unix_nanos >= ?`,
		cutoff).Scan(&stats.TotalEntries, &stats.UniqueUsers); err != nil {
		return nil, fmt.Errorf("failed to aggregate audit stats: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT action, COUNT(*) FROM audit_log WHERE ts_unix_nanos >= ? GROUP BY action`,
		cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate audit actions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			action string
			count  uint64
		)
		if err := rows.Scan(&action, &count); err != nil {
			return nil, fmt.Errorf("failed to decode action count: %w", err)
		}
		stats.ByAction[Action(action)] = count
	}
	return stats, rows.Err()
}

const selectColumns = `SELECT sequence, timestamp, user_id, user_name, user_email,
	action, entity_type, entity_id, entity_name, changed_fields,
	old_values, new_values, ip_address, action_category, is_sensitive,
	prev_hash, entry_hash`

func scanEntry(scan func(dest ...interface{}) error) (*Entry, error) {
	var (
		e           Entry
		ts          string
		action      string
		changed     string
		oldValues   sql.NullString
		newValues   sql.NullString
		isSensitive int
	)
	err := scan(&e.Sequence, &ts, &e.UserID, &e.UserName, &e.UserEmail,
		&action, &e.EntityType, &e.EntityID, &e.EntityName, &changed,
		&oldValues, &newValues, &e.IPAddress, &e.ActionCategory, &isSensitive,
		&e.PrevHash, &e.EntryHash)
	if err != nil {
		return nil, err
	}

	e.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return nil, fmt.Errorf("stored timestamp %q is not RFC3339: %w", ts, err)
	}
	e.Action = Action(action)
	e.IsSensitive = isSensitive != 0

	if err := json.Unmarshal([]byte(changed), &e.ChangedFields); err != nil {
		return nil, fmt.Errorf("stored changed_fields is not valid JSON: %w", err)
	}
	if e.OldValues, err = unmarshalValues(oldValues); err != nil {
		return nil, err
	}
	if e.NewValues, err = unmarshalValues(newValues); err != nil {
		return nil, err
	}
	return &e, nil
}

func filterClause(f Filter) (string, []interface{}) {
	where := ""
	var args []interface{}
	and := func(cond string, arg interface{}) {
		if where == "" {
			where = " WHERE " + cond
		} else {
			where += " AND " + cond
		}
		args = append(args, arg)
	}

	if f.EntityType != "" {
		and("entity_type = ?", f.EntityType)
	}
	if f.Action != "" {
		and("action = ?", string(f.Action))
	}
	if f.UserID != "" {
		and("user_id = ?", f.UserID)
	}
	if f.DateFrom != nil {
		and("ts_unix_nanos >= ?", f.DateFrom.UnixNano())
	}
	if f.DateTo != nil {
		and("ts_unix_nanos <= ?", f.DateTo.UnixNano())
	}
	return where, args
}

func marshalValues(values map[string]interface{}) (sql.NullString, error) {
	if values == nil {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

func unmarshalValues(raw sql.NullString) (map[string]interface{}, error) {
	if !raw.Valid {
		return nil, nil
	}
	var values map[string]interface{}
	if err := json.Unmarshal([]byte(raw.String), &values); err != nil {
		return nil, fmt.Errorf("stored values are not valid JSON: %w", err)
	}
	return values, nil
}

func changedOrEmpty(fields []string) []string {
	if fields == nil {
		return []string{}
	}
	return fields
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
