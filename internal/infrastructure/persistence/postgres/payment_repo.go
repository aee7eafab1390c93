package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/learnflow/learnflow-progression-core/internal/domain/payment"
	"github.com/learnflow/learnflow-progression-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PAYMENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// PaymentRepository implements payment.Repository for PostgreSQL.
type PaymentRepository struct {
	q Querier
}

// NewPaymentRepository creates a new PaymentRepository.
func NewPaymentRepository(q Querier) *PaymentRepository {
	return &PaymentRepository{q: q}
}

const paymentColumns = `id, enrollment_id, amount, currency, external_order_id,
	external_payment_id, status, failure_reason, created_at, paid_at, updated_at`

// Create creates a new payment.
func (r *PaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.q.Exec(ctx, query,
		p.ID,
		p.EnrollmentID,
		p.Amount,
		p.Currency,
		p.ExternalOrderID,
		p.ExternalPaymentID,
		string(p.Status),
		p.FailureReason,
		p.CreatedAt,
		nullableTime(p.PaidAt),
		p.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

// GetByID returns a payment by ID.
func (r *PaymentRepository) GetByID(ctx context.Context, id string) (*payment.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	return r.scanPayment(r.q.QueryRow(ctx, query, id))
}

// GetByExternalOrderID returns a payment by the gateway's order id.
func (r *PaymentRepository) GetByExternalOrderID(ctx context.Context, orderID string) (*payment.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE external_order_id = $1`
	return r.scanPayment(r.q.QueryRow(ctx, query, orderID))
}

// GetByExternalOrderIDForUpdate returns a payment by the gateway's order id
// with a row lock held until the surrounding transaction ends.
func (r *PaymentRepository) GetByExternalOrderIDForUpdate(ctx context.Context, orderID string) (*payment.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE external_order_id = $1 FOR UPDATE`
	return r.scanPayment(r.q.QueryRow(ctx, query, orderID))
}

// Update updates a payment.
func (r *PaymentRepository) Update(ctx context.Context, p *payment.Payment) error {
	query := `
		UPDATE payments SET
			external_payment_id = $2,
			status = $3,
			failure_reason = $4,
			paid_at = $5,
			updated_at = $6
		WHERE id = $1
	`

	tag, err := r.q.Exec(ctx, query,
		p.ID,
		p.ExternalPaymentID,
		string(p.Status),
		p.FailureReason,
		nullableTime(p.PaidAt),
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrPaymentNotFound
	}
	return nil
}

// ListByEnrollment returns an enrollment's payments, newest first.
func (r *PaymentRepository) ListByEnrollment(ctx context.Context, enrollmentID string) ([]*payment.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE enrollment_id = $1 ORDER BY created_at DESC`

	rows, err := r.q.Query(ctx, query, enrollmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var result []*payment.Payment
	for rows.Next() {
		p, err := r.scanPayment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (r *PaymentRepository) scanPayment(row pgx.Row) (*payment.Payment, error) {
	var (
		p      payment.Payment
		status string
		paidAt *time.Time
	)

	err := row.Scan(
		&p.ID,
		&p.EnrollmentID,
		&p.Amount,
		&p.Currency,
		&p.ExternalOrderID,
		&p.ExternalPaymentID,
		&status,
		&p.FailureReason,
		&p.CreatedAt,
		&paidAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to scan payment: %w", err)
	}

	p.Status = payment.Status(status)
	if paidAt != nil {
		p.PaidAt = *paidAt
	}
	return &p, nil
}
