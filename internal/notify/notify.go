// Package notify delivers per-recipient notifications produced by alert
// fan-out and workflow escalations.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"standline/internal/domain"
	"standline/internal/repo"
)

// Message is one notification to deliver.
type Message struct {
	RecipientID string
	Type        string
	Severity    string
	Text        string
	EntityKind  string
	EntityID    string
}

// Sink receives notifications. Implementations must be safe to call once per
// (recipient, alert) pair; delivery failures are the caller's to log, not to
// retry.
type Sink interface {
	Notify(ctx context.Context, msg Message) error
}

// StoreSink persists notifications as rows read back by the API and CLI.
type StoreSink struct {
	Repo repo.Repo
	Now  func() time.Time
}

func (s StoreSink) Notify(ctx context.Context, msg Message) error {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return s.Repo.InsertNotification(ctx, domain.Notification{
		ID:          uuid.New().String(),
		RecipientID: msg.RecipientID,
		Type:        msg.Type,
		Severity:    msg.Severity,
		Message:     msg.Text,
		EntityKind:  msg.EntityKind,
		EntityID:    msg.EntityID,
		CreatedAt:   now().UTC().Format(time.RFC3339),
	})
}

// LogSink writes notifications to the logger only. Used in tests and by the
// CLI when no store is wired.
type LogSink struct {
	Logger *zap.Logger
}

func (s LogSink) Notify(_ context.Context, msg Message) error {
	logger := s.Logger
	if logger == nil {
		logger = zap.L()
	}
	logger.Info("notification",
		zap.String("recipient", msg.RecipientID),
		zap.String("type", msg.Type),
		zap.String("severity", msg.Severity),
		zap.String("message", msg.Text),
	)
	return nil
}
