package command

import (
	"context"
	"fmt"
	"time"

	"github.com/learnflow/learnflow-progression-core/internal/domain/enrollment"
	"github.com/learnflow/learnflow-progression-core/internal/domain/shared"
	"github.com/learnflow/learnflow-progression-core/internal/domain/submission"
)

// ══════════════════════════════════════════════════════════════════════════════
// REVIEW SUBMISSION COMMAND
// Advances one pending submission to a terminal outcome. An approval
// recomputes the enrollment's progress and may complete the enrollment.
// The submission update and the progress write happen in one transaction
// so that two reviewers approving different tasks of the same enrollment
// concurrently cannot lose an update.
// ══════════════════════════════════════════════════════════════════════════════

// ReviewSubmissionCommand contains the data to review a submission.
type ReviewSubmissionCommand struct {
	// SubmissionID is the submission being reviewed.
	SubmissionID string

	// Outcome is the review decision.
	Outcome submission.Outcome

	// Feedback is the reviewer's comment.
	Feedback string

	// Grade is the optional numeric grade (nil if not graded).
	Grade *submission.Grade
}

// Validate validates the command.
func (c ReviewSubmissionCommand) Validate() error {
	if c.SubmissionID == "" {
		return fmt.Errorf("review_submission: %w: submission_id", shared.ErrEmptyValue)
	}
	if !c.Outcome.IsValid() {
		return fmt.Errorf("review_submission: %w: %q", shared.ErrInvalidInput, c.Outcome)
	}
	if c.Grade != nil && !c.Grade.IsValid() {
		return shared.ErrInvalidGrade
	}
	return nil
}

// ReviewSubmissionResult contains the outcome of the review.
type ReviewSubmissionResult struct {
	// Submission is the reviewed submission in its terminal state.
	Submission *submission.Submission

	// ProgressPercentage is the enrollment's progress after the review.
	ProgressPercentage float64

	// EnrollmentCompleted is true if this review completed the enrollment.
	EnrollmentCompleted bool
}

// ReviewSubmissionHandler handles the ReviewSubmissionCommand.
type ReviewSubmissionHandler struct {
	runner    UnitOfWorkRunner
	tasks     enrollment.TaskRepository
	publisher shared.EventPublisher
	now       func() time.Time
}

// NewReviewSubmissionHandler creates a new ReviewSubmissionHandler.
func NewReviewSubmissionHandler(
	runner UnitOfWorkRunner,
	tasks enrollment.TaskRepository,
	publisher shared.EventPublisher,
) *ReviewSubmissionHandler {
	return &ReviewSubmissionHandler{
		runner:    runner,
		tasks:     tasks,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Handle executes the review command.
func (h *ReviewSubmissionHandler) Handle(ctx context.Context, cmd ReviewSubmissionCommand) (*ReviewSubmissionResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	now := h.now()
	result := &ReviewSubmissionResult{}
	var events []shared.Event

	err := h.runner.WithinTx(ctx, func(uow UnitOfWork) error {
		sub, err := uow.Submissions().GetByID(ctx, cmd.SubmissionID)
		if err != nil {
			return err
		}

		if err := sub.Review(cmd.Outcome, cmd.Feedback, cmd.Grade, now); err != nil {
			return err
		}
		if err := uow.Submissions().Update(ctx, sub); err != nil {
			return fmt.Errorf("review_submission: update submission: %w", err)
		}

		result.Submission = sub
		events = append(events, reviewEvent(sub))

		if !sub.IsApproved() {
			return nil
		}

		// Approval path: recompute progress from the full approved set
		// within the same transaction as the submission update. The row
		// lock serializes concurrent approvals of the same enrollment,
		// so each one recomputes from the committed approved set instead
		// of a stale snapshot.
		enr, err := uow.Enrollments().GetByIDForUpdate(ctx, sub.EnrollmentID)
		if err != nil {
			return err
		}

		tasks, err := h.tasks.ListByProgram(ctx, enr.ProgramID)
		if err != nil {
			return fmt.Errorf("review_submission: list tasks: %w", err)
		}
		subs, err := uow.Submissions().ListByEnrollment(ctx, enr.ID)
		if err != nil {
			return fmt.Errorf("review_submission: list submissions: %w", err)
		}

		approved, total := enrollment.CountApprovedMandatory(tasks, subs)
		progress := enrollment.ComputeProgress(total, approved)

		completed, err := enr.ApplyProgress(progress, now)
		if err != nil {
			return err
		}
		if err := uow.Enrollments().Update(ctx, enr); err != nil {
			return fmt.Errorf("review_submission: update enrollment: %w", err)
		}

		result.ProgressPercentage = enr.ProgressPercentage
		result.EnrollmentCompleted = completed

		if completed {
			events = append(events, shared.NewEvent(shared.EventEnrollmentCompleted, enr.ID, map[string]interface{}{
				"student_id": enr.StudentID,
				"program_id": enr.ProgramID,
			}))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Side effects only after a successful commit, fire-and-forget.
	for _, e := range events {
		_ = h.publisher.Publish(e)
	}

	return result, nil
}

// reviewEvent maps a terminal submission state to its domain event.
func reviewEvent(sub *submission.Submission) shared.Event {
	var t shared.EventType
	switch sub.Status {
	case submission.StatusApproved:
		t = shared.EventSubmissionApproved
	case submission.StatusRejected:
		t = shared.EventSubmissionRejected
	default:
		t = shared.EventSubmissionNeedsRevision
	}
	return shared.NewEvent(t, sub.ID, map[string]interface{}{
		"enrollment_id": sub.EnrollmentID,
		"task_id":       sub.TaskID,
		"feedback":      sub.Feedback,
	})
}
