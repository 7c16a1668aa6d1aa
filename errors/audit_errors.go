// api/errors/audit_errors.go
package errors

import "errors"

var (
	ErrEncoding             = errors.New("value cannot be canonically encoded")
	ErrAppend               = errors.New("durable write of audit entry failed")
	ErrSequenceConflict     = errors.New("audit ledger sequence conflict")
	ErrValidation           = errors.New("invalid audit request data")
	ErrExportReasonRequired = errors.New("export reason is required")
	ErrIntegrityViolation   = errors.New("audit ledger integrity violation")
	ErrEntryNotFound        = errors.New("audit entry not found")
	ErrInvalidPagination    = errors.New("invalid pagination parameters")
	ErrAppenderClosed       = errors.New("audit appender is shut down")
	ErrInternalServer       = errors.New("internal server error")
)
