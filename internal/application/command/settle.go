package command

import (
	"context"
	"fmt"
	"time"

	"github.com/learnflow/learnflow-progression-core/internal/domain/payment"
	"github.com/learnflow/learnflow-progression-core/internal/domain/shared"
)

// settlePayment marks a payment completed and unlocks the enrollment's
// content, both inside the caller's transaction. Returns the events to
// publish after commit.
func settlePayment(ctx context.Context, uow UnitOfWork, pay *payment.Payment, externalPaymentID string, now time.Time) ([]shared.Event, error) {
	pay.Complete(externalPaymentID, now)
	if err := uow.Payments().Update(ctx, pay); err != nil {
		return nil, fmt.Errorf("settle: update payment: %w", err)
	}

	enr, err := uow.Enrollments().GetByIDForUpdate(ctx, pay.EnrollmentID)
	if err != nil {
		return nil, err
	}
	enr.SettlePayment(now)
	if err := uow.Enrollments().Update(ctx, enr); err != nil {
		return nil, fmt.Errorf("settle: update enrollment: %w", err)
	}

	return []shared.Event{
		shared.NewEvent(shared.EventPaymentCompleted, pay.ID, map[string]interface{}{
			"enrollment_id":       enr.ID,
			"student_id":          enr.StudentID,
			"external_payment_id": externalPaymentID,
			"amount":              pay.Amount,
		}),
	}, nil
}
