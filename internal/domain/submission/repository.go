package submission

import (
	"context"
)

// Repository определяет контракт хранилища сдач.
// Реализации находятся в infrastructure/persistence.
type Repository interface {
	// Create создаёт новую сдачу.
	// Возвращает ErrPendingSubmission, если для пары (enrollment, task)
	// уже существует PENDING сдача.
	Create(ctx context.Context, s *Submission) error

	// GetByID возвращает сдачу по ID.
	// Возвращает ErrSubmissionNotFound, если сдача не найдена.
	GetByID(ctx context.Context, id string) (*Submission, error)

	// Update обновляет сдачу.
	Update(ctx context.Context, s *Submission) error

	// ListByEnrollment возвращает все сдачи зачисления (от старых к новым).
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]*Submission, error)

	// HasPending проверяет наличие PENDING сдачи для пары (enrollment, task).
	HasPending(ctx context.Context, enrollmentID, taskID string) (bool, error)

	// CountApprovedMandatory возвращает число одобренных сдач по
	// обязательным заданиям зачисления.
	CountApprovedMandatory(ctx context.Context, enrollmentID string) (int, error)
}
