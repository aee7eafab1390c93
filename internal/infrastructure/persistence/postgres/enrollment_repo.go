package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/learnflow/learnflow-progression-core/internal/domain/enrollment"
	"github.com/learnflow/learnflow-progression-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENROLLMENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// EnrollmentRepository implements enrollment.Repository for PostgreSQL.
type EnrollmentRepository struct {
	q Querier
}

// NewEnrollmentRepository creates a new EnrollmentRepository.
func NewEnrollmentRepository(q Querier) *EnrollmentRepository {
	return &EnrollmentRepository{q: q}
}

const enrollmentColumns = `id, student_id, program_id, status, progress_percentage,
	payment_status, payment_amount, currency, certificate_issued,
	enrolled_at, completed_at, created_at, updated_at`

// Create creates a new enrollment.
func (r *EnrollmentRepository) Create(ctx context.Context, e *enrollment.Enrollment) error {
	query := `
		INSERT INTO enrollments (` + enrollmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.q.Exec(ctx, query,
		e.ID,
		e.StudentID,
		e.ProgramID,
		string(e.Status),
		e.ProgressPercentage,
		string(e.PaymentStatus),
		e.PaymentAmount,
		e.Currency,
		e.CertificateIssued,
		e.EnrolledAt,
		nullableTime(e.CompletedAt),
		e.CreatedAt,
		e.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create enrollment: %w", err)
	}
	return nil
}

// GetByID returns an enrollment by ID.
func (r *EnrollmentRepository) GetByID(ctx context.Context, id string) (*enrollment.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE id = $1`
	return r.scanEnrollment(r.q.QueryRow(ctx, query, id))
}

// GetByIDForUpdate returns an enrollment by ID with a row lock held
// until the surrounding transaction ends.
func (r *EnrollmentRepository) GetByIDForUpdate(ctx context.Context, id string) (*enrollment.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE id = $1 FOR UPDATE`
	return r.scanEnrollment(r.q.QueryRow(ctx, query, id))
}

// Update updates an enrollment.
func (r *EnrollmentRepository) Update(ctx context.Context, e *enrollment.Enrollment) error {
	query := `
		UPDATE enrollments SET
			status = $2,
			progress_percentage = $3,
			payment_status = $4,
			certificate_issued = $5,
			completed_at = $6,
			updated_at = $7
		WHERE id = $1
	`

	tag, err := r.q.Exec(ctx, query,
		e.ID,
		string(e.Status),
		e.ProgressPercentage,
		string(e.PaymentStatus),
		e.CertificateIssued,
		nullableTime(e.CompletedAt),
		e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update enrollment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrEnrollmentNotFound
	}
	return nil
}

// ListByStudent returns a student's enrollments.
func (r *EnrollmentRepository) ListByStudent(ctx context.Context, studentID string) ([]*enrollment.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE student_id = $1 ORDER BY enrolled_at DESC`

	rows, err := r.q.Query(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	defer rows.Close()

	var result []*enrollment.Enrollment
	for rows.Next() {
		e, err := r.scanEnrollment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func (r *EnrollmentRepository) scanEnrollment(row pgx.Row) (*enrollment.Enrollment, error) {
	var (
		e           enrollment.Enrollment
		status      string
		payStatus   string
		completedAt *time.Time
	)

	err := row.Scan(
		&e.ID,
		&e.StudentID,
		&e.ProgramID,
		&status,
		&e.ProgressPercentage,
		&payStatus,
		&e.PaymentAmount,
		&e.Currency,
		&e.CertificateIssued,
		&e.EnrolledAt,
		&completedAt,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrEnrollmentNotFound
		}
		return nil, fmt.Errorf("failed to scan enrollment: %w", err)
	}

	e.Status = enrollment.Status(status)
	e.PaymentStatus = enrollment.PaymentStatus(payStatus)
	if completedAt != nil {
		e.CompletedAt = *completedAt
	}
	return &e, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// TASK REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// TaskRepository implements enrollment.TaskRepository for PostgreSQL.
type TaskRepository struct {
	q Querier
}

// NewTaskRepository creates a new TaskRepository.
func NewTaskRepository(q Querier) *TaskRepository {
	return &TaskRepository{q: q}
}

// ListByProgram returns a program's tasks sorted by order.
func (r *TaskRepository) ListByProgram(ctx context.Context, programID string) ([]enrollment.Task, error) {
	query := `
		SELECT id, program_id, title, task_order, is_mandatory
		FROM tasks
		WHERE program_id = $1
		ORDER BY task_order
	`

	rows, err := r.q.Query(ctx, query, programID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var result []enrollment.Task
	for rows.Next() {
		var t enrollment.Task
		if err := rows.Scan(&t.ID, &t.ProgramID, &t.Title, &t.Order, &t.IsMandatory); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

// GetByID returns a task by ID.
func (r *TaskRepository) GetByID(ctx context.Context, id string) (enrollment.Task, error) {
	query := `SELECT id, program_id, title, task_order, is_mandatory FROM tasks WHERE id = $1`

	var t enrollment.Task
	err := r.q.QueryRow(ctx, query, id).Scan(&t.ID, &t.ProgramID, &t.Title, &t.Order, &t.IsMandatory)
	if err != nil {
		if IsNoRows(err) {
			return enrollment.Task{}, shared.ErrTaskNotFound
		}
		return enrollment.Task{}, fmt.Errorf("failed to scan task: %w", err)
	}
	return t, nil
}

// nullableTime maps a zero time to SQL NULL.
func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
