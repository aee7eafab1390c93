package command

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/learnflow/learnflow-progression-core/internal/domain/enrollment"
	"github.com/learnflow/learnflow-progression-core/internal/domain/payment"
	"github.com/learnflow/learnflow-progression-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CREATE PAYMENT ORDER COMMAND
// Obtains an order handle from the external gateway and records a pending
// payment. The enrollment itself is not mutated here: settlement happens
// only on verified capture.
// ══════════════════════════════════════════════════════════════════════════════

// CreatePaymentOrderCommand contains the data to create a payment order.
type CreatePaymentOrderCommand struct {
	// EnrollmentID is the enrollment being paid for.
	EnrollmentID string

	// StudentID is the requesting student; must own the enrollment.
	StudentID string
}

// Validate validates the command.
func (c CreatePaymentOrderCommand) Validate() error {
	if c.EnrollmentID == "" {
		return fmt.Errorf("create_payment_order: %w: enrollment_id", shared.ErrEmptyValue)
	}
	if c.StudentID == "" {
		return fmt.Errorf("create_payment_order: %w: student_id", shared.ErrEmptyValue)
	}
	return nil
}

// CreatePaymentOrderResult contains the client-facing order descriptor.
type CreatePaymentOrderResult struct {
	// Order is what the client needs to start checkout.
	Order payment.OrderDescriptor

	// PaymentID is the internal id of the recorded pending payment.
	PaymentID string
}

// CreatePaymentOrderHandler handles the CreatePaymentOrderCommand.
type CreatePaymentOrderHandler struct {
	enrollments enrollment.Repository
	payments    payment.Repository
	gateway     payment.Gateway
	publisher   shared.EventPublisher
	now         func() time.Time
}

// NewCreatePaymentOrderHandler creates a new CreatePaymentOrderHandler.
func NewCreatePaymentOrderHandler(
	enrollments enrollment.Repository,
	payments payment.Repository,
	gateway payment.Gateway,
	publisher shared.EventPublisher,
) *CreatePaymentOrderHandler {
	return &CreatePaymentOrderHandler{
		enrollments: enrollments,
		payments:    payments,
		gateway:     gateway,
		publisher:   publisher,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Handle executes the create order command.
func (h *CreatePaymentOrderHandler) Handle(ctx context.Context, cmd CreatePaymentOrderCommand) (*CreatePaymentOrderResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	enr, err := h.enrollments.GetByID(ctx, cmd.EnrollmentID)
	if err != nil {
		return nil, err
	}
	if !enr.IsOwnedBy(cmd.StudentID) {
		return nil, shared.ErrEnrollmentNotOwned
	}
	if enr.PaymentStatus == enrollment.PaymentCompleted {
		return nil, shared.ErrPaymentAlreadyCompleted
	}

	order, err := h.gateway.CreateOrder(ctx, enr.PaymentAmount, enr.Currency, enr.ID)
	if err != nil {
		return nil, shared.WrapError("payment", "CreateOrder", shared.ErrExternalService,
			"gateway order creation failed", err)
	}

	pay := payment.New(uuid.New().String(), enr.ID, order.Amount, order.Currency, order.OrderID, h.now())
	if err := h.payments.Create(ctx, pay); err != nil {
		return nil, fmt.Errorf("create_payment_order: persist payment: %w", err)
	}

	_ = h.publisher.Publish(shared.NewEvent(shared.EventPaymentOrderCreated, pay.ID, map[string]interface{}{
		"enrollment_id":     enr.ID,
		"external_order_id": order.OrderID,
		"amount":            order.Amount,
	}))

	return &CreatePaymentOrderResult{
		Order: payment.OrderDescriptor{
			OrderID:  order.OrderID,
			Amount:   order.Amount,
			Currency: order.Currency,
		},
		PaymentID: pay.ID,
	}, nil
}
