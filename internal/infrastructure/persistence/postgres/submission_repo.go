package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/learnflow/learnflow-progression-core/internal/domain/shared"
	"github.com/learnflow/learnflow-progression-core/internal/domain/submission"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUBMISSION REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// SubmissionRepository implements submission.Repository for PostgreSQL.
type SubmissionRepository struct {
	q Querier
}

// NewSubmissionRepository creates a new SubmissionRepository.
func NewSubmissionRepository(q Querier) *SubmissionRepository {
	return &SubmissionRepository{q: q}
}

const submissionColumns = `id, enrollment_id, task_id, status, grade, feedback,
	content, submitted_at, reviewed_at, created_at, updated_at`

// Create creates a new submission.
// The partial unique index on (enrollment_id, task_id) WHERE status = 'PENDING'
// rejects a second concurrent pending attempt.
func (r *SubmissionRepository) Create(ctx context.Context, s *submission.Submission) error {
	query := `
		INSERT INTO submissions (` + submissionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.q.Exec(ctx, query,
		s.ID,
		s.EnrollmentID,
		s.TaskID,
		string(s.Status),
		gradeValue(s.Grade),
		s.Feedback,
		s.Content,
		s.SubmittedAt,
		nullableTime(s.ReviewedAt),
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrPendingSubmission
		}
		return fmt.Errorf("failed to create submission: %w", err)
	}
	return nil
}

// GetByID returns a submission by ID.
func (r *SubmissionRepository) GetByID(ctx context.Context, id string) (*submission.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE id = $1`
	return r.scanSubmission(r.q.QueryRow(ctx, query, id))
}

// Update updates a submission.
func (r *SubmissionRepository) Update(ctx context.Context, s *submission.Submission) error {
	query := `
		UPDATE submissions SET
			status = $2,
			grade = $3,
			feedback = $4,
			reviewed_at = $5,
			updated_at = $6
		WHERE id = $1
	`

	tag, err := r.q.Exec(ctx, query,
		s.ID,
		string(s.Status),
		gradeValue(s.Grade),
		s.Feedback,
		nullableTime(s.ReviewedAt),
		s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update submission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrSubmissionNotFound
	}
	return nil
}

// ListByEnrollment returns all submissions of an enrollment.
func (r *SubmissionRepository) ListByEnrollment(ctx context.Context, enrollmentID string) ([]*submission.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE enrollment_id = $1 ORDER BY submitted_at`

	rows, err := r.q.Query(ctx, query, enrollmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	var result []*submission.Submission
	for rows.Next() {
		s, err := r.scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

// HasPending reports whether a pending submission exists for the task.
func (r *SubmissionRepository) HasPending(ctx context.Context, enrollmentID, taskID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM submissions
			WHERE enrollment_id = $1 AND task_id = $2 AND status = 'PENDING'
		)
	`

	var exists bool
	if err := r.q.QueryRow(ctx, query, enrollmentID, taskID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check pending submission: %w", err)
	}
	return exists, nil
}

// CountApprovedMandatory counts distinct mandatory tasks with an approved
// submission for the enrollment.
func (r *SubmissionRepository) CountApprovedMandatory(ctx context.Context, enrollmentID string) (int, error) {
	query := `
		SELECT COUNT(DISTINCT s.task_id)
		FROM submissions s
		JOIN tasks t ON t.id = s.task_id
		WHERE s.enrollment_id = $1 AND s.status = 'APPROVED' AND t.is_mandatory
	`

	var count int
	if err := r.q.QueryRow(ctx, query, enrollmentID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count approved submissions: %w", err)
	}
	return count, nil
}

func (r *SubmissionRepository) scanSubmission(row pgx.Row) (*submission.Submission, error) {
	var (
		s          submission.Submission
		status     string
		grade      *float64
		reviewedAt *time.Time
	)

	err := row.Scan(
		&s.ID,
		&s.EnrollmentID,
		&s.TaskID,
		&status,
		&grade,
		&s.Feedback,
		&s.Content,
		&s.SubmittedAt,
		&reviewedAt,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("failed to scan submission: %w", err)
	}

	s.Status = submission.Status(status)
	if grade != nil {
		g := submission.Grade(*grade)
		s.Grade = &g
	}
	if reviewedAt != nil {
		s.ReviewedAt = *reviewedAt
	}
	return &s, nil
}

// gradeValue maps a nil grade to SQL NULL.
func gradeValue(g *submission.Grade) interface{} {
	if g == nil {
		return nil
	}
	return float64(*g)
}
