package helper_util

import (
	"fmt"
	"time"
)

// ParseDateParam accepts either a full RFC3339 instant or a bare
// YYYY-MM-DD date, as the audit trail UI sends both.
func ParseDateParam(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return &t, nil
}
