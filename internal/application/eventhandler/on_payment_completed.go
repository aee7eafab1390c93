package eventhandler

import (
	"context"

	"github.com/learnflow/learnflow-progression-core/internal/domain/shared"
	"github.com/learnflow/learnflow-progression-core/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON PAYMENT COMPLETED HANDLER
// Confirms a settled payment to the student over every configured channel.
// SMS is reserved for payment confirmations, the highest-value signal.
// ═══════════════════════════════════════════════════════════════════════════

// OnPaymentCompletedHandler reacts to settled payments.
type OnPaymentCompletedHandler struct {
	notifier Notifier
	email    EmailSender
	sms      SMSSender
	log      *logger.Logger
}

// NewOnPaymentCompletedHandler creates the handler.
func NewOnPaymentCompletedHandler(notifier Notifier, email EmailSender, sms SMSSender, log *logger.Logger) *OnPaymentCompletedHandler {
	if log == nil {
		log = logger.Default()
	}
	return &OnPaymentCompletedHandler{
		notifier: notifier,
		email:    email,
		sms:      sms,
		log:      log.With(logger.Component("on_payment_completed")),
	}
}

// EventTypes returns the event types this handler subscribes to.
func (h *OnPaymentCompletedHandler) EventTypes() []shared.EventType {
	return []shared.EventType{shared.EventPaymentCompleted}
}

// Handle implements shared.EventHandler.
func (h *OnPaymentCompletedHandler) Handle(event shared.Event) error {
	ctx := context.Background()

	studentID := payloadString(event, "student_id")
	enrollmentID := payloadString(event, "enrollment_id")
	if studentID == "" {
		return nil
	}

	const title = "Payment confirmed"
	const body = "Your payment was received. The first task of your program is now unlocked."

	if h.notifier != nil {
		if err := h.notifier.Notify(ctx, studentID, title, body); err != nil {
			h.log.Warn("notification delivery failed",
				logger.StudentID(studentID), logger.EnrollmentID(enrollmentID), logger.Err(err))
		}
	}
	if h.email != nil {
		if err := h.email.Send(ctx, studentID, title, body); err != nil {
			h.log.Warn("email delivery failed",
				logger.StudentID(studentID), logger.EnrollmentID(enrollmentID), logger.Err(err))
		}
	}
	if h.sms != nil {
		if err := h.sms.Send(ctx, studentID, body); err != nil {
			h.log.Warn("sms delivery failed",
				logger.StudentID(studentID), logger.EnrollmentID(enrollmentID), logger.Err(err))
		}
	}
	return nil
}
