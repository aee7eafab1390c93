package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/learnflow/learnflow-progression-core/internal/domain/certificate"
	"github.com/learnflow/learnflow-progression-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CERTIFICATE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// CertificateRepository implements certificate.Repository for PostgreSQL.
type CertificateRepository struct {
	q Querier
}

// NewCertificateRepository creates a new CertificateRepository.
func NewCertificateRepository(q Querier) *CertificateRepository {
	return &CertificateRepository{q: q}
}

const certificateColumns = `id, enrollment_id, student_id, number, verification_hash,
	student_name, program_title, completed_date, final_score, document_url,
	issued_at, is_valid, revoked_at, revocation_reason, revoked_by`

// Create creates a certificate.
// The violated constraint distinguishes a duplicate enrollment (a
// certificate was already issued) from a certificate number collision.
func (r *CertificateRepository) Create(ctx context.Context, c *certificate.Certificate) error {
	query := `
		INSERT INTO certificates (` + certificateColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := r.q.Exec(ctx, query,
		c.ID,
		c.EnrollmentID,
		c.StudentID,
		c.Number,
		c.VerificationHash,
		c.Snapshot.StudentName,
		c.Snapshot.ProgramTitle,
		c.Snapshot.CompletedDate,
		c.Snapshot.FinalScore,
		c.DocumentURL,
		c.IssuedAt,
		c.IsValid,
		nullableTime(c.RevokedAt),
		c.RevocationReason,
		c.RevokedBy,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			if ConstraintName(err) == "certificates_enrollment_key" {
				return shared.ErrAlreadyExists
			}
			return shared.WrapError("certificate", "Create", shared.ErrConflict,
				"certificate number or hash collision", err)
		}
		return fmt.Errorf("failed to create certificate: %w", err)
	}
	return nil
}

// GetByID returns a certificate by ID.
func (r *CertificateRepository) GetByID(ctx context.Context, id string) (*certificate.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificates WHERE id = $1`
	return r.scanCertificate(r.q.QueryRow(ctx, query, id))
}

// GetByEnrollment returns the certificate of an enrollment.
func (r *CertificateRepository) GetByEnrollment(ctx context.Context, enrollmentID string) (*certificate.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificates WHERE enrollment_id = $1`
	return r.scanCertificate(r.q.QueryRow(ctx, query, enrollmentID))
}

// GetByRef returns a certificate by number or verification hash.
func (r *CertificateRepository) GetByRef(ctx context.Context, ref string) (*certificate.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificates WHERE number = $1 OR verification_hash = $1`
	return r.scanCertificate(r.q.QueryRow(ctx, query, ref))
}

// Update updates a certificate (revocation).
func (r *CertificateRepository) Update(ctx context.Context, c *certificate.Certificate) error {
	query := `
		UPDATE certificates SET
			is_valid = $2,
			revoked_at = $3,
			revocation_reason = $4,
			revoked_by = $5
		WHERE id = $1
	`

	tag, err := r.q.Exec(ctx, query,
		c.ID,
		c.IsValid,
		nullableTime(c.RevokedAt),
		c.RevocationReason,
		c.RevokedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to update certificate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrCertificateNotFound
	}
	return nil
}

// UpdateDocumentURL stores the rendered document link without touching
// any other column.
func (r *CertificateRepository) UpdateDocumentURL(ctx context.Context, id, documentURL string) error {
	query := `UPDATE certificates SET document_url = $2 WHERE id = $1`

	tag, err := r.q.Exec(ctx, query, id, documentURL)
	if err != nil {
		return fmt.Errorf("failed to update certificate document url: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrCertificateNotFound
	}
	return nil
}

func (r *CertificateRepository) scanCertificate(row pgx.Row) (*certificate.Certificate, error) {
	var (
		c         certificate.Certificate
		revokedAt *time.Time
	)

	err := row.Scan(
		&c.ID,
		&c.EnrollmentID,
		&c.StudentID,
		&c.Number,
		&c.VerificationHash,
		&c.Snapshot.StudentName,
		&c.Snapshot.ProgramTitle,
		&c.Snapshot.CompletedDate,
		&c.Snapshot.FinalScore,
		&c.DocumentURL,
		&c.IssuedAt,
		&c.IsValid,
		&revokedAt,
		&c.RevocationReason,
		&c.RevokedBy,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrCertificateNotFound
		}
		return nil, fmt.Errorf("failed to scan certificate: %w", err)
	}

	c.Snapshot.CertificateID = c.ID
	if revokedAt != nil {
		c.RevokedAt = *revokedAt
	}
	return &c, nil
}
