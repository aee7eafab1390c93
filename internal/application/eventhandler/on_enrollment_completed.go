package eventhandler

import (
	"context"

	"github.com/learnflow/learnflow-progression-core/internal/domain/shared"
	"github.com/learnflow/learnflow-progression-core/pkg/logger"
)

// OnEnrollmentCompletedHandler congratulates a student who finished all
// mandatory tasks and points them at certificate issuance.
type OnEnrollmentCompletedHandler struct {
	notifier Notifier
	email    EmailSender
	log      *logger.Logger
}

// NewOnEnrollmentCompletedHandler creates the handler.
func NewOnEnrollmentCompletedHandler(notifier Notifier, email EmailSender, log *logger.Logger) *OnEnrollmentCompletedHandler {
	if log == nil {
		log = logger.Default()
	}
	return &OnEnrollmentCompletedHandler{
		notifier: notifier,
		email:    email,
		log:      log.With(logger.Component("on_enrollment_completed")),
	}
}

// EventTypes returns the event types this handler subscribes to.
func (h *OnEnrollmentCompletedHandler) EventTypes() []shared.EventType {
	return []shared.EventType{shared.EventEnrollmentCompleted}
}

// Handle implements shared.EventHandler.
func (h *OnEnrollmentCompletedHandler) Handle(event shared.Event) error {
	ctx := context.Background()

	studentID := payloadString(event, "student_id")
	if studentID == "" {
		return nil
	}

	const title = "Program completed"
	const body = "You have completed all mandatory tasks. Your certificate is ready to be issued."

	if h.notifier != nil {
		if err := h.notifier.Notify(ctx, studentID, title, body); err != nil {
			h.log.Warn("notification delivery failed",
				logger.StudentID(studentID), logger.Err(err))
		}
	}
	if h.email != nil {
		if err := h.email.Send(ctx, studentID, title, body); err != nil {
			h.log.Warn("email delivery failed",
				logger.StudentID(studentID), logger.Err(err))
		}
	}
	return nil
}
