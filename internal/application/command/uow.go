// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"

	"github.com/learnflow/learnflow-progression-core/internal/domain/certificate"
	"github.com/learnflow/learnflow-progression-core/internal/domain/enrollment"
	"github.com/learnflow/learnflow-progression-core/internal/domain/payment"
	"github.com/learnflow/learnflow-progression-core/internal/domain/submission"
)

// UnitOfWork exposes repositories bound to a single database transaction.
// Writes performed through it commit together or not at all.
type UnitOfWork interface {
	// Enrollments returns the enrollment repository within the transaction.
	Enrollments() enrollment.Repository

	// Submissions returns the submission repository within the transaction.
	Submissions() submission.Repository

	// Payments returns the payment repository within the transaction.
	Payments() payment.Repository

	// Certificates returns the certificate repository within the transaction.
	Certificates() certificate.Repository
}

// UnitOfWorkRunner executes a function within a transaction.
// The transaction commits if fn returns nil and rolls back otherwise.
type UnitOfWorkRunner interface {
	WithinTx(ctx context.Context, fn func(uow UnitOfWork) error) error
}

// Directory resolves display data owned by collaborating services.
// The engine stores ids only; names and titles are looked up at the
// moment a certificate snapshot is taken.
type Directory interface {
	// StudentName returns the display name for a student id.
	StudentName(ctx context.Context, studentID string) (string, error)

	// ProgramTitle returns the title for a program id.
	ProgramTitle(ctx context.Context, programID string) (string, error)
}
