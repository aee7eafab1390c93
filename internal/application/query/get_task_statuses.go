// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"fmt"

	"github.com/learnflow/learnflow-progression-core/internal/domain/enrollment"
	"github.com/learnflow/learnflow-progression-core/internal/domain/shared"
	"github.com/learnflow/learnflow-progression-core/internal/domain/submission"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET TASK STATUSES QUERY
// Computes the gated view of a program's tasks for one enrollment: which
// tasks are unlocked, completed and currently submittable. This is what a
// student's task list renders from.
// ══════════════════════════════════════════════════════════════════════════════

// GetTaskStatusesQuery contains the parameters for the task status view.
type GetTaskStatusesQuery struct {
	// EnrollmentID is the enrollment whose view is requested.
	EnrollmentID string

	// StudentID is the requesting student; must own the enrollment.
	StudentID string
}

// Validate validates the query.
func (q GetTaskStatusesQuery) Validate() error {
	if q.EnrollmentID == "" {
		return fmt.Errorf("get_task_statuses: %w: enrollment_id", shared.ErrEmptyValue)
	}
	if q.StudentID == "" {
		return fmt.Errorf("get_task_statuses: %w: student_id", shared.ErrEmptyValue)
	}
	return nil
}

// TaskStatusView is one task row in the student's task list.
type TaskStatusView struct {
	TaskID      string `json:"task_id"`
	Title       string `json:"title"`
	Order       int    `json:"order"`
	IsMandatory bool   `json:"is_mandatory"`
	IsUnlocked  bool   `json:"is_unlocked"`
	IsCompleted bool   `json:"is_completed"`
	CanSubmit   bool   `json:"can_submit"`
}

// GetTaskStatusesResult contains the computed task list.
type GetTaskStatusesResult struct {
	EnrollmentID       string           `json:"enrollment_id"`
	ProgressPercentage float64          `json:"progress_percentage"`
	PaymentCompleted   bool             `json:"payment_completed"`
	Tasks              []TaskStatusView `json:"tasks"`
}

// GetTaskStatusesHandler handles the GetTaskStatusesQuery.
type GetTaskStatusesHandler struct {
	enrollments enrollment.Repository
	tasks       enrollment.TaskRepository
	submissions submission.Repository
	gating      *enrollment.GatingEngine
}

// NewGetTaskStatusesHandler creates a new GetTaskStatusesHandler.
func NewGetTaskStatusesHandler(
	enrollments enrollment.Repository,
	tasks enrollment.TaskRepository,
	submissions submission.Repository,
) *GetTaskStatusesHandler {
	return &GetTaskStatusesHandler{
		enrollments: enrollments,
		tasks:       tasks,
		submissions: submissions,
		gating:      enrollment.NewGatingEngine(),
	}
}

// Handle executes the query.
func (h *GetTaskStatusesHandler) Handle(ctx context.Context, q GetTaskStatusesQuery) (*GetTaskStatusesResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	enr, err := h.enrollments.GetByID(ctx, q.EnrollmentID)
	if err != nil {
		return nil, err
	}
	if !enr.IsOwnedBy(q.StudentID) {
		return nil, shared.ErrEnrollmentNotOwned
	}

	tasks, err := h.tasks.ListByProgram(ctx, enr.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("get_task_statuses: list tasks: %w", err)
	}
	subs, err := h.submissions.ListByEnrollment(ctx, enr.ID)
	if err != nil {
		return nil, fmt.Errorf("get_task_statuses: list submissions: %w", err)
	}

	statuses := h.gating.ComputeTaskStatuses(tasks, subs, enr.PaymentStatus)

	byID := make(map[string]enrollment.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	views := make([]TaskStatusView, 0, len(statuses))
	for _, st := range statuses {
		t := byID[st.TaskID]
		views = append(views, TaskStatusView{
			TaskID:      st.TaskID,
			Title:       t.Title,
			Order:       st.Order,
			IsMandatory: t.IsMandatory,
			IsUnlocked:  st.IsUnlocked,
			IsCompleted: st.IsCompleted,
			CanSubmit:   st.CanSubmit,
		})
	}

	return &GetTaskStatusesResult{
		EnrollmentID:       enr.ID,
		ProgressPercentage: enr.ProgressPercentage,
		PaymentCompleted:   enr.PaymentStatus.IsSettled(),
		Tasks:              views,
	}, nil
}
