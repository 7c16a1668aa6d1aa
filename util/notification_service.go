// api/util/notification_service.go

package util

import (
	"context"

	"go.uber.org/zap"

	logger "github.com/veritas-grc/veritas/api/logging"
)

type NotificationService struct {
	// You might want to add dependencies here, such as a message queue client
}

func NewNotificationService() *NotificationService {
	return &NotificationService{}
}

// NotifyIntegrityViolation alerts operators that a chain verification
// failed. An integrity violation is a terminal finding, never something
// the system repairs on its own, so the notification carries everything an
// investigator needs to locate the break.
func (n *NotificationService) NotifyIntegrityViolation(ctx context.Context, firstInvalidSequence, entriesVerified uint64) error {
	logger.Error("NOTIFICATION: Audit ledger integrity violation detected",
		zap.Uint64("firstInvalidSequence", firstInvalidSequence),
		zap.Uint64("entriesVerified", entriesVerified))

	// Here you would page on-call and freeze downstream consumers.
	// This could involve sending messages to a queue, calling an external API, etc.

	return nil
}

// NotifyAuditExport records operationally that an export left the system.
func (n *NotificationService) NotifyAuditExport(ctx context.Context, actorID, reason string, entryCount int) error {
	logger.Info("NOTIFICATION: Audit trail exported",
		zap.String("actorID", actorID),
		zap.String("reason", reason),
		zap.Int("entryCount", entryCount))
	return nil
}

func (n *NotificationService) NotifyAdmins(ctx context.Context, message string) error {
	// Logic to notify all system administrators
	logger.Info("Notifying admins", zap.String("message", message))
	return nil
}
