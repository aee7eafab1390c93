// Package eventhandler contains domain event handlers: post-commit,
// fire-and-forget side effects (notifications, email, SMS, certificate
// rendering). A failing side effect never affects the operation that
// produced the event.
package eventhandler

import (
	"context"

	"github.com/learnflow/learnflow-progression-core/internal/domain/certificate"
	"github.com/learnflow/learnflow-progression-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// COLLABORATOR CONTRACTS
// Implementations live in infrastructure/service.
// ══════════════════════════════════════════════════════════════════════════════

// Notifier delivers in-app notifications.
type Notifier interface {
	Notify(ctx context.Context, studentID, title, message string) error
}

// EmailSender sends transactional email to a student.
type EmailSender interface {
	Send(ctx context.Context, studentID, subject, body string) error
}

// SMSSender sends a short text message to a student.
type SMSSender interface {
	Send(ctx context.Context, studentID, message string) error
}

// Renderer produces the certificate document and returns its URL.
type Renderer interface {
	Render(ctx context.Context, cert *certificate.Certificate) (string, error)
}

// payloadString extracts a string field from a generic event payload.
func payloadString(event shared.Event, key string) string {
	if v, ok := event.Payload()[key].(string); ok {
		return v
	}
	return ""
}
