package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnflow/learnflow-progression-core/internal/domain/enrollment"
	"github.com/learnflow/learnflow-progression-core/internal/domain/payment"
	"github.com/learnflow/learnflow-progression-core/internal/domain/shared"
)

func webhookEvent(eventType payment.WebhookEventType) ProcessWebhookCommand {
	return ProcessWebhookCommand{Event: payment.WebhookEvent{
		EventID:   "evt_1",
		Type:      eventType,
		OrderID:   "order_test",
		PaymentID: "pay_ext_1",
		Reason:    "card declined",
	}}
}

func newWebhookHandler(s *memStore, dedup *fakeDedup) (*ProcessWebhookHandler, *capturingPublisher) {
	pub := &capturingPublisher{}
	h := NewProcessWebhookHandler(&memRunner{s: s}, dedup, pub)
	return h, pub
}

func TestProcessWebhook_CapturedSettlesPayment(t *testing.T) {
	s := newMemStore()
	seedEnrollment(s, enrollment.PaymentPending)
	seedPendingPayment(s)
	h, pub := newWebhookHandler(s, newFakeDedup())

	result, err := h.Handle(context.Background(), webhookEvent(payment.WebhookPaymentCaptured))

	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.False(t, result.Duplicate)
	assert.Equal(t, payment.StatusCompleted, s.payments["pay1"].Status)
	assert.Equal(t, "pay_ext_1", s.payments["pay1"].ExternalPaymentID)
	assert.Equal(t, enrollment.PaymentCompleted, s.enrollments["enr1"].PaymentStatus)
	assert.Equal(t, []shared.EventType{shared.EventPaymentCompleted}, pub.types())
}

func TestProcessWebhook_DuplicateEventIsSkipped(t *testing.T) {
	s := newMemStore()
	seedEnrollment(s, enrollment.PaymentPending)
	seedPendingPayment(s)
	h, pub := newWebhookHandler(s, &fakeDedup{seen: map[string]bool{"evt_1": true}})

	result, err := h.Handle(context.Background(), webhookEvent(payment.WebhookPaymentCaptured))

	require.NoError(t, err)
	assert.True(t, result.Duplicate)
	assert.False(t, result.Applied)
	assert.Equal(t, payment.StatusPending, s.payments["pay1"].Status)
	assert.Empty(t, pub.types())
}

func TestProcessWebhook_CapturedAfterSettlementIsNoOp(t *testing.T) {
	s := newMemStore()
	seedEnrollment(s, enrollment.PaymentCompleted)
	seedPendingPayment(s)
	s.payments["pay1"].Complete("pay_ext_1", time.Now().UTC())
	h, pub := newWebhookHandler(s, newFakeDedup())

	result, err := h.Handle(context.Background(), webhookEvent(payment.WebhookPaymentCaptured))

	require.NoError(t, err)
	assert.False(t, result.Applied)
	assert.Empty(t, pub.types())
}

func TestProcessWebhook_FailedMarksPendingPayment(t *testing.T) {
	s := newMemStore()
	seedEnrollment(s, enrollment.PaymentPending)
	seedPendingPayment(s)
	h, pub := newWebhookHandler(s, newFakeDedup())

	result, err := h.Handle(context.Background(), webhookEvent(payment.WebhookPaymentFailed))

	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.Equal(t, payment.StatusFailed, s.payments["pay1"].Status)
	assert.Equal(t, "card declined", s.payments["pay1"].FailureReason)
	assert.Equal(t, []shared.EventType{shared.EventPaymentFailed}, pub.types())
}

func TestProcessWebhook_FailedNeverUndoesSettlement(t *testing.T) {
	s := newMemStore()
	seedEnrollment(s, enrollment.PaymentCompleted)
	seedPendingPayment(s)
	s.payments["pay1"].Complete("pay_ext_1", time.Now().UTC())
	h, pub := newWebhookHandler(s, newFakeDedup())

	result, err := h.Handle(context.Background(), webhookEvent(payment.WebhookPaymentFailed))

	require.NoError(t, err)
	assert.False(t, result.Applied)
	assert.Equal(t, payment.StatusCompleted, s.payments["pay1"].Status)
	assert.Empty(t, pub.types())
}

func TestProcessWebhook_RefundRevokesEnrollmentAccess(t *testing.T) {
	s := newMemStore()
	seedEnrollment(s, enrollment.PaymentCompleted)
	seedPendingPayment(s)
	s.payments["pay1"].Complete("pay_ext_1", time.Now().UTC())
	h, pub := newWebhookHandler(s, newFakeDedup())

	result, err := h.Handle(context.Background(), webhookEvent(payment.WebhookRefundProcessed))

	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.Equal(t, payment.StatusRefunded, s.payments["pay1"].Status)
	assert.Equal(t, enrollment.PaymentRefunded, s.enrollments["enr1"].PaymentStatus)
	assert.Equal(t, []shared.EventType{shared.EventPaymentRefunded}, pub.types())
}

func TestProcessWebhook_DedupOutageIsRetryable(t *testing.T) {
	s := newMemStore()
	seedEnrollment(s, enrollment.PaymentPending)
	seedPendingPayment(s)
	h, pub := newWebhookHandler(s, &fakeDedup{err: errors.New("redis down")})

	_, err := h.Handle(context.Background(), webhookEvent(payment.WebhookPaymentCaptured))

	require.ErrorIs(t, err, shared.ErrServiceUnavailable)
	assert.Equal(t, payment.StatusPending, s.payments["pay1"].Status)
	assert.Empty(t, pub.types())
}

// failOnceRunner fails the first transaction and delegates afterwards,
// standing in for a transient database outage.
type failOnceRunner struct {
	inner UnitOfWorkRunner
	err   error
	calls int
}

func (r *failOnceRunner) WithinTx(ctx context.Context, fn func(uow UnitOfWork) error) error {
	r.calls++
	if r.calls == 1 {
		return r.err
	}
	return r.inner.WithinTx(ctx, fn)
}

func TestProcessWebhook_RedeliveryAfterTransientFailureIsProcessed(t *testing.T) {
	s := newMemStore()
	seedEnrollment(s, enrollment.PaymentPending)
	seedPendingPayment(s)
	dedup := newFakeDedup()
	pub := &capturingPublisher{}
	runner := &failOnceRunner{inner: &memRunner{s: s}, err: errors.New("connection reset")}
	h := NewProcessWebhookHandler(runner, dedup, pub)

	_, err := h.Handle(context.Background(), webhookEvent(payment.WebhookPaymentCaptured))
	require.Error(t, err)
	assert.Equal(t, payment.StatusPending, s.payments["pay1"].Status)

	// The gateway redelivers after the 5xx; the event must not be
	// swallowed as a duplicate of the failed attempt.
	result, err := h.Handle(context.Background(), webhookEvent(payment.WebhookPaymentCaptured))

	require.NoError(t, err)
	assert.False(t, result.Duplicate)
	assert.True(t, result.Applied)
	assert.Equal(t, payment.StatusCompleted, s.payments["pay1"].Status)
	assert.Equal(t, []shared.EventType{shared.EventPaymentCompleted}, pub.types())
}

func TestProcessWebhook_UnknownOrder(t *testing.T) {
	s := newMemStore()
	h, _ := newWebhookHandler(s, newFakeDedup())

	_, err := h.Handle(context.Background(), webhookEvent(payment.WebhookPaymentCaptured))

	require.ErrorIs(t, err, shared.ErrPaymentNotFound)
}

func TestProcessWebhook_RejectsMalformedEvent(t *testing.T) {
	h, _ := newWebhookHandler(newMemStore(), newFakeDedup())

	_, err := h.Handle(context.Background(), ProcessWebhookCommand{Event: payment.WebhookEvent{
		EventID: "evt_1",
		Type:    "payment.exploded",
		OrderID: "order_test",
	}})

	require.ErrorIs(t, err, shared.ErrInvalidInput)
}
