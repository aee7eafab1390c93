package command

import (
	"context"
	"fmt"
	"time"

	"github.com/learnflow/learnflow-progression-core/internal/domain/payment"
	"github.com/learnflow/learnflow-progression-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VERIFY PAYMENT COMMAND
// Client-side payment confirmation. The signature is checked before any
// state is read or written; a valid signature alone is not trusted - the
// actual capture is confirmed against the gateway before settling.
// Safe to retry: a repeated call for an already settled payment succeeds
// without touching state.
// ══════════════════════════════════════════════════════════════════════════════

// VerifyPaymentCommand contains the gateway callback data to verify.
type VerifyPaymentCommand struct {
	// ExternalOrderID is the gateway's order id.
	ExternalOrderID string

	// ExternalPaymentID is the gateway's payment id.
	ExternalPaymentID string

	// Signature is the hex HMAC over (order id, payment id).
	Signature string
}

// Validate validates the command.
func (c VerifyPaymentCommand) Validate() error {
	if c.ExternalOrderID == "" {
		return fmt.Errorf("verify_payment: %w: external_order_id", shared.ErrEmptyValue)
	}
	if c.ExternalPaymentID == "" {
		return fmt.Errorf("verify_payment: %w: external_payment_id", shared.ErrEmptyValue)
	}
	if c.Signature == "" {
		return fmt.Errorf("verify_payment: %w: signature", shared.ErrEmptyValue)
	}
	return nil
}

// VerifyPaymentResult contains the settled payment.
type VerifyPaymentResult struct {
	// Payment is the payment after settlement.
	Payment *payment.Payment

	// AlreadySettled is true if the payment was settled by an earlier call.
	AlreadySettled bool
}

// VerifyPaymentHandler handles the VerifyPaymentCommand.
type VerifyPaymentHandler struct {
	runner    UnitOfWorkRunner
	payments  payment.Repository
	gateway   payment.Gateway
	verifier  *payment.SignatureVerifier
	publisher shared.EventPublisher
	now       func() time.Time
}

// NewVerifyPaymentHandler creates a new VerifyPaymentHandler.
func NewVerifyPaymentHandler(
	runner UnitOfWorkRunner,
	payments payment.Repository,
	gateway payment.Gateway,
	verifier *payment.SignatureVerifier,
	publisher shared.EventPublisher,
) *VerifyPaymentHandler {
	return &VerifyPaymentHandler{
		runner:    runner,
		payments:  payments,
		gateway:   gateway,
		verifier:  verifier,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Handle executes the verify command.
func (h *VerifyPaymentHandler) Handle(ctx context.Context, cmd VerifyPaymentCommand) (*VerifyPaymentResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	// Signature first: on mismatch nothing is read or written.
	if err := h.verifier.Verify(cmd.ExternalOrderID, cmd.ExternalPaymentID, cmd.Signature); err != nil {
		return nil, err
	}

	pay, err := h.payments.GetByExternalOrderID(ctx, cmd.ExternalOrderID)
	if err != nil {
		return nil, err
	}

	// Retries of a settled payment are acknowledged, not re-applied.
	if pay.IsCompleted() {
		return &VerifyPaymentResult{Payment: pay, AlreadySettled: true}, nil
	}

	// Confirm the capture with the gateway. An unreachable gateway leaves
	// the payment PENDING so the webhook path can still settle it.
	gp, err := h.gateway.FetchPayment(ctx, cmd.ExternalPaymentID)
	if err != nil {
		return nil, shared.WrapError("payment", "Verify", shared.ErrServiceUnavailable,
			"gateway fetch failed", err)
	}
	now := h.now()
	if !gp.State.IsCaptured() {
		pay.Fail(fmt.Sprintf("gateway state %q at verification", gp.State), now)
		if err := h.payments.Update(ctx, pay); err != nil {
			return nil, fmt.Errorf("verify_payment: update payment: %w", err)
		}
		_ = h.publisher.Publish(shared.NewEvent(shared.EventPaymentFailed, pay.ID, map[string]interface{}{
			"enrollment_id": pay.EnrollmentID,
			"reason":        pay.FailureReason,
		}))
		return nil, shared.ErrPaymentNotCaptured
	}

	var (
		events         []shared.Event
		alreadySettled bool
	)
	err = h.runner.WithinTx(ctx, func(uow UnitOfWork) error {
		// Re-read under the row lock: the webhook path may have settled
		// this payment between the check above and opening the transaction.
		pay, err = uow.Payments().GetByExternalOrderIDForUpdate(ctx, cmd.ExternalOrderID)
		if err != nil {
			return err
		}
		if pay.IsCompleted() {
			alreadySettled = true
			return nil
		}
		events, err = settlePayment(ctx, uow, pay, cmd.ExternalPaymentID, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	for _, e := range events {
		_ = h.publisher.Publish(e)
	}
	return &VerifyPaymentResult{Payment: pay, AlreadySettled: alreadySettled}, nil
}
