// api/util/validation_util.go

package util

import (
	"fmt"
	"strings"
	"time"
)

type ValidationUtil struct{}

func NewValidationUtil() *ValidationUtil {
	return &ValidationUtil{}
}

var auditActions = map[string]struct{}{
	"create": {}, "update": {}, "delete": {}, "view": {},
	"login": {}, "logout": {}, "approve": {}, "reject": {}, "export": {},
}

func (v *ValidationUtil) ValidateAction(action string) error {
	if action == "" {
		return fmt.Errorf("action cannot be empty")
	}
	if _, ok := auditActions[action]; !ok {
		return fmt.Errorf("unknown action %q", action)
	}
	return nil
}

func (v *ValidationUtil) ValidateActor(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("actor id cannot be empty")
	}
	return nil
}

func (v *ValidationUtil) ValidateExportFormat(format string) error {
	if format != "json" && format != "csv" {
		return fmt.Errorf("export format must be 'json' or 'csv', got %q", format)
	}
	return nil
}

func (v *ValidationUtil) ValidateExportReason(reason string) error {
	if strings.TrimSpace(reason) == "" {
		return fmt.Errorf("export reason cannot be empty")
	}
	return nil
}

func (v *ValidationUtil) ValidateDateRange(from, to *time.Time) error {
	if from != nil && to != nil && from.After(*to) {
		return fmt.Errorf("date_from must not be after date_to")
	}
	return nil
}
