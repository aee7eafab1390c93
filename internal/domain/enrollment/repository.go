package enrollment

import (
	"context"
)

// Repository определяет контракт хранилища зачислений и заданий.
// Реализации находятся в infrastructure/persistence.
type Repository interface {
	// Create создаёт новое зачисление.
	Create(ctx context.Context, e *Enrollment) error

	// GetByID возвращает зачисление по ID.
	// Возвращает ErrEnrollmentNotFound, если зачисление не найдено.
	GetByID(ctx context.Context, id string) (*Enrollment, error)

	// GetByIDForUpdate возвращает зачисление по ID, удерживая блокировку
	// строки до конца транзакции. Используется для чтения перед изменением
	// внутри транзакции, чтобы параллельные записи не потеряли прогресс.
	GetByIDForUpdate(ctx context.Context, id string) (*Enrollment, error)

	// Update обновляет зачисление.
	Update(ctx context.Context, e *Enrollment) error

	// ListByStudent возвращает зачисления студента.
	ListByStudent(ctx context.Context, studentID string) ([]*Enrollment, error)
}

// TaskRepository определяет контракт чтения заданий программы.
// Задания неизменяемы после публикации программы, поэтому интерфейс
// только читающий.
type TaskRepository interface {
	// ListByProgram возвращает задания программы, отсортированные по Order.
	ListByProgram(ctx context.Context, programID string) ([]Task, error)

	// GetByID возвращает задание по ID.
	// Возвращает ErrTaskNotFound, если задание не найдено.
	GetByID(ctx context.Context, id string) (Task, error)
}
