package command

import (
	"context"
	"fmt"
	"time"

	"github.com/learnflow/learnflow-progression-core/internal/domain/payment"
	"github.com/learnflow/learnflow-progression-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROCESS WEBHOOK COMMAND
// Server-to-server notifications from the gateway. Delivery is at-least-once,
// so events are deduplicated by their gateway event id before being applied.
// The webhook path settles payments independently of client verification:
// whichever path runs first wins and the other becomes a no-op.
// ══════════════════════════════════════════════════════════════════════════════

// ProcessWebhookCommand wraps a gateway webhook event.
type ProcessWebhookCommand struct {
	Event payment.WebhookEvent
}

// Validate validates the command.
func (c ProcessWebhookCommand) Validate() error {
	if c.Event.EventID == "" {
		return fmt.Errorf("process_webhook: %w: event_id", shared.ErrEmptyValue)
	}
	if !c.Event.Type.IsValid() {
		return fmt.Errorf("process_webhook: %w: event type %q", shared.ErrInvalidInput, c.Event.Type)
	}
	if c.Event.OrderID == "" {
		return fmt.Errorf("process_webhook: %w: order_id", shared.ErrEmptyValue)
	}
	return nil
}

// ProcessWebhookResult reports how the event was handled.
type ProcessWebhookResult struct {
	// Duplicate is true if the event was already processed.
	Duplicate bool

	// Applied is true if the event changed state.
	Applied bool
}

// ProcessWebhookHandler handles the ProcessWebhookCommand.
type ProcessWebhookHandler struct {
	runner    UnitOfWorkRunner
	dedup     payment.EventDeduplicator
	publisher shared.EventPublisher
	now       func() time.Time
}

// NewProcessWebhookHandler creates a new ProcessWebhookHandler.
func NewProcessWebhookHandler(
	runner UnitOfWorkRunner,
	dedup payment.EventDeduplicator,
	publisher shared.EventPublisher,
) *ProcessWebhookHandler {
	return &ProcessWebhookHandler{
		runner:    runner,
		dedup:     dedup,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Handle executes the webhook command.
func (h *ProcessWebhookHandler) Handle(ctx context.Context, cmd ProcessWebhookCommand) (*ProcessWebhookResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	first, err := h.dedup.MarkProcessed(ctx, cmd.Event.EventID)
	if err != nil {
		return nil, shared.WrapError("payment", "ProcessWebhook", shared.ErrServiceUnavailable,
			"event deduplication failed", err)
	}
	if !first {
		return &ProcessWebhookResult{Duplicate: true}, nil
	}

	now := h.now()
	var events []shared.Event
	applied := false

	err = h.runner.WithinTx(ctx, func(uow UnitOfWork) error {
		// Locked read inside the transaction: the verification path may
		// settle the same payment concurrently.
		pay, err := uow.Payments().GetByExternalOrderIDForUpdate(ctx, cmd.Event.OrderID)
		if err != nil {
			return err
		}

		switch cmd.Event.Type {
		case payment.WebhookPaymentCaptured:
			if pay.IsCompleted() {
				return nil
			}
			events, err = settlePayment(ctx, uow, pay, cmd.Event.PaymentID, now)
			if err != nil {
				return err
			}
			applied = true
			return nil

		case payment.WebhookPaymentFailed:
			// A failure notice never undoes a completed payment.
			if pay.IsCompleted() {
				return nil
			}
			pay.Fail(cmd.Event.Reason, now)
			if err := uow.Payments().Update(ctx, pay); err != nil {
				return fmt.Errorf("process_webhook: update payment: %w", err)
			}
			events = append(events, shared.NewEvent(shared.EventPaymentFailed, pay.ID, map[string]interface{}{
				"enrollment_id": pay.EnrollmentID,
				"reason":        cmd.Event.Reason,
			}))
			applied = true
			return nil

		case payment.WebhookRefundProcessed:
			pay.Refund(now)
			if err := uow.Payments().Update(ctx, pay); err != nil {
				return fmt.Errorf("process_webhook: update payment: %w", err)
			}
			enr, err := uow.Enrollments().GetByIDForUpdate(ctx, pay.EnrollmentID)
			if err != nil {
				return err
			}
			enr.RefundPayment(now)
			if err := uow.Enrollments().Update(ctx, enr); err != nil {
				return fmt.Errorf("process_webhook: update enrollment: %w", err)
			}
			events = append(events, shared.NewEvent(shared.EventPaymentRefunded, pay.ID, map[string]interface{}{
				"enrollment_id": pay.EnrollmentID,
			}))
			applied = true
			return nil
		}
		return nil
	})
	if err != nil {
		// Release the dedup mark so the gateway's redelivery is not
		// dropped as a duplicate. Best effort: the TTL expires the mark
		// anyway if the release itself fails.
		_ = h.dedup.Unmark(ctx, cmd.Event.EventID)
		return nil, err
	}

	for _, e := range events {
		_ = h.publisher.Publish(e)
	}
	return &ProcessWebhookResult{Applied: applied}, nil
}
