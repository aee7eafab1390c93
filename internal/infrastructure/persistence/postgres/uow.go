package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/learnflow/learnflow-progression-core/internal/application/command"
	"github.com/learnflow/learnflow-progression-core/internal/domain/certificate"
	"github.com/learnflow/learnflow-progression-core/internal/domain/enrollment"
	"github.com/learnflow/learnflow-progression-core/internal/domain/payment"
	"github.com/learnflow/learnflow-progression-core/internal/domain/submission"
)

// ══════════════════════════════════════════════════════════════════════════════
// UNIT OF WORK
// Binds all repositories to one pgx transaction so that a review and the
// progress recompute it triggers, or a settlement touching payment and
// enrollment, commit atomically.
// ══════════════════════════════════════════════════════════════════════════════

// UnitOfWorkRunner implements command.UnitOfWorkRunner over a Connection.
type UnitOfWorkRunner struct {
	conn *Connection
}

// NewUnitOfWorkRunner creates a new UnitOfWorkRunner.
func NewUnitOfWorkRunner(conn *Connection) *UnitOfWorkRunner {
	return &UnitOfWorkRunner{conn: conn}
}

// WithinTx runs fn with repositories bound to a single transaction.
func (r *UnitOfWorkRunner) WithinTx(ctx context.Context, fn func(uow command.UnitOfWork) error) error {
	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		return fn(&unitOfWork{tx: tx})
	})
}

type unitOfWork struct {
	tx pgx.Tx
}

func (u *unitOfWork) Enrollments() enrollment.Repository {
	return NewEnrollmentRepository(u.tx)
}

func (u *unitOfWork) Submissions() submission.Repository {
	return NewSubmissionRepository(u.tx)
}

func (u *unitOfWork) Payments() payment.Repository {
	return NewPaymentRepository(u.tx)
}

func (u *unitOfWork) Certificates() certificate.Repository {
	return NewCertificateRepository(u.tx)
}
