package command

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/learnflow/learnflow-progression-core/internal/domain/enrollment"
	"github.com/learnflow/learnflow-progression-core/internal/domain/shared"
	"github.com/learnflow/learnflow-progression-core/internal/domain/submission"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUBMIT TASK COMMAND
// Creates a new pending submission for a gated task. The gate is checked
// here; the partial unique index on (enrollment_id, task_id) WHERE
// status = 'PENDING' is the backstop against concurrent duplicates.
// ══════════════════════════════════════════════════════════════════════════════

// SubmitTaskCommand contains the data to submit work for a task.
type SubmitTaskCommand struct {
	// EnrollmentID is the enrollment the submission belongs to.
	EnrollmentID string

	// StudentID is the requesting student; must own the enrollment.
	StudentID string

	// TaskID is the task being submitted.
	TaskID string

	// Content is the submitted work (link or answer text).
	Content string
}

// Validate validates the command.
func (c SubmitTaskCommand) Validate() error {
	if c.EnrollmentID == "" {
		return fmt.Errorf("submit_task: %w: enrollment_id", shared.ErrEmptyValue)
	}
	if c.StudentID == "" {
		return fmt.Errorf("submit_task: %w: student_id", shared.ErrEmptyValue)
	}
	if c.TaskID == "" {
		return fmt.Errorf("submit_task: %w: task_id", shared.ErrEmptyValue)
	}
	return nil
}

// SubmitTaskResult contains the created submission.
type SubmitTaskResult struct {
	Submission *submission.Submission
}

// SubmitTaskHandler handles the SubmitTaskCommand.
type SubmitTaskHandler struct {
	enrollments enrollment.Repository
	tasks       enrollment.TaskRepository
	submissions submission.Repository
	gating      *enrollment.GatingEngine
	publisher   shared.EventPublisher
	now         func() time.Time
}

// NewSubmitTaskHandler creates a new SubmitTaskHandler.
func NewSubmitTaskHandler(
	enrollments enrollment.Repository,
	tasks enrollment.TaskRepository,
	submissions submission.Repository,
	publisher shared.EventPublisher,
) *SubmitTaskHandler {
	return &SubmitTaskHandler{
		enrollments: enrollments,
		tasks:       tasks,
		submissions: submissions,
		gating:      enrollment.NewGatingEngine(),
		publisher:   publisher,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Handle executes the submit task command.
func (h *SubmitTaskHandler) Handle(ctx context.Context, cmd SubmitTaskCommand) (*SubmitTaskResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	enr, err := h.enrollments.GetByID(ctx, cmd.EnrollmentID)
	if err != nil {
		return nil, err
	}
	if !enr.IsOwnedBy(cmd.StudentID) {
		return nil, shared.ErrEnrollmentNotOwned
	}
	if !enr.IsActive() {
		return nil, shared.ErrEnrollmentCancelled
	}

	tasks, err := h.tasks.ListByProgram(ctx, enr.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("submit_task: list tasks: %w", err)
	}
	subs, err := h.submissions.ListByEnrollment(ctx, enr.ID)
	if err != nil {
		return nil, fmt.Errorf("submit_task: list submissions: %w", err)
	}

	status, ok := h.gating.TaskStatusFor(tasks, subs, enr.PaymentStatus, cmd.TaskID)
	if !ok {
		return nil, shared.ErrTaskNotFound
	}
	if !status.CanSubmit {
		return nil, h.submitBlockedError(status, enr.PaymentStatus)
	}

	sub := submission.New(uuid.New().String(), enr.ID, cmd.TaskID, cmd.Content, h.now())
	if err := h.submissions.Create(ctx, sub); err != nil {
		return nil, err
	}

	_ = h.publisher.Publish(shared.NewEvent(shared.EventSubmissionCreated, sub.ID, map[string]interface{}{
		"enrollment_id": sub.EnrollmentID,
		"task_id":       sub.TaskID,
		"student_id":    enr.StudentID,
	}))

	return &SubmitTaskResult{Submission: sub}, nil
}

// submitBlockedError names the specific gate that blocked the submission.
func (h *SubmitTaskHandler) submitBlockedError(status enrollment.TaskStatus, ps enrollment.PaymentStatus) error {
	switch {
	case !ps.IsSettled():
		return shared.NewDomainError("submission", "Create", shared.ErrConflict,
			"payment must be completed before submitting")
	case !status.IsUnlocked:
		return shared.ErrTaskLocked
	case status.IsCompleted:
		return shared.NewDomainError("submission", "Create", shared.ErrConflict,
			"task already has an approved submission")
	default:
		return shared.ErrPendingSubmission
	}
}
