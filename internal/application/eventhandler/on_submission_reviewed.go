package eventhandler

import (
	"context"

	"github.com/learnflow/learnflow-progression-core/internal/domain/enrollment"
	"github.com/learnflow/learnflow-progression-core/internal/domain/shared"
	"github.com/learnflow/learnflow-progression-core/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON SUBMISSION REVIEWED HANDLER
// Tells the student the outcome of a review through in-app notification
// and email. Each delivery channel fails independently.
// ═══════════════════════════════════════════════════════════════════════════

// OnSubmissionReviewedHandler reacts to terminal review outcomes.
type OnSubmissionReviewedHandler struct {
	enrollments enrollment.Repository
	notifier    Notifier
	email       EmailSender
	log         *logger.Logger
}

// NewOnSubmissionReviewedHandler creates the handler.
func NewOnSubmissionReviewedHandler(
	enrollments enrollment.Repository,
	notifier Notifier,
	email EmailSender,
	log *logger.Logger,
) *OnSubmissionReviewedHandler {
	if log == nil {
		log = logger.Default()
	}
	return &OnSubmissionReviewedHandler{
		enrollments: enrollments,
		notifier:    notifier,
		email:       email,
		log:         log.With(logger.Component("on_submission_reviewed")),
	}
}

// EventTypes returns the event types this handler subscribes to.
func (h *OnSubmissionReviewedHandler) EventTypes() []shared.EventType {
	return []shared.EventType{
		shared.EventSubmissionApproved,
		shared.EventSubmissionRejected,
		shared.EventSubmissionNeedsRevision,
	}
}

// Handle implements shared.EventHandler.
func (h *OnSubmissionReviewedHandler) Handle(event shared.Event) error {
	ctx := context.Background()

	enrollmentID := payloadString(event, "enrollment_id")
	taskID := payloadString(event, "task_id")
	feedback := payloadString(event, "feedback")

	enr, err := h.enrollments.GetByID(ctx, enrollmentID)
	if err != nil {
		h.log.Warn("enrollment lookup failed",
			logger.EnrollmentID(enrollmentID), logger.Err(err))
		return nil
	}

	var title, body string
	switch event.EventType() {
	case shared.EventSubmissionApproved:
		title = "Submission approved"
		body = "Your submission was approved. The next task is now unlocked."
	case shared.EventSubmissionRejected:
		title = "Submission rejected"
		body = "Your submission was rejected. You can submit a new attempt."
	case shared.EventSubmissionNeedsRevision:
		title = "Revision requested"
		body = "Your submission needs revision. Review the feedback and resubmit."
	default:
		return nil
	}
	if feedback != "" {
		body += "\n\nReviewer feedback: " + feedback
	}

	if h.notifier != nil {
		if err := h.notifier.Notify(ctx, enr.StudentID, title, body); err != nil {
			h.log.Warn("notification delivery failed",
				logger.StudentID(enr.StudentID), logger.TaskID(taskID), logger.Err(err))
		}
	}
	if h.email != nil {
		if err := h.email.Send(ctx, enr.StudentID, title, body); err != nil {
			h.log.Warn("email delivery failed",
				logger.StudentID(enr.StudentID), logger.TaskID(taskID), logger.Err(err))
		}
	}
	return nil
}
