package command

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnflow/learnflow-progression-core/internal/domain/enrollment"
	"github.com/learnflow/learnflow-progression-core/internal/domain/payment"
	"github.com/learnflow/learnflow-progression-core/internal/domain/shared"
)

const testSecret = "test-signature-secret"

func signedCommand(orderID, paymentID string) VerifyPaymentCommand {
	v := payment.NewSignatureVerifier(testSecret)
	return VerifyPaymentCommand{
		ExternalOrderID:   orderID,
		ExternalPaymentID: paymentID,
		Signature:         v.Compute(orderID, paymentID),
	}
}

func newVerifyHandler(s *memStore, gw *fakeGateway) (*VerifyPaymentHandler, *capturingPublisher) {
	pub := &capturingPublisher{}
	h := NewVerifyPaymentHandler(
		&memRunner{s: s},
		&memPaymentRepo{s: s},
		gw,
		payment.NewSignatureVerifier(testSecret),
		pub,
	)
	return h, pub
}

func TestVerifyPayment_SettlesPaymentAndEnrollment(t *testing.T) {
	s := newMemStore()
	seedEnrollment(s, enrollment.PaymentPending)
	seedPendingPayment(s)
	h, pub := newVerifyHandler(s, &fakeGateway{})

	result, err := h.Handle(context.Background(), signedCommand("order_test", "pay_ext_1"))

	require.NoError(t, err)
	assert.False(t, result.AlreadySettled)
	assert.True(t, result.Payment.IsCompleted())
	assert.Equal(t, "pay_ext_1", result.Payment.ExternalPaymentID)

	assert.Equal(t, payment.StatusCompleted, s.payments["pay1"].Status)
	assert.Equal(t, enrollment.PaymentCompleted, s.enrollments["enr1"].PaymentStatus)
	assert.Equal(t, []shared.EventType{shared.EventPaymentCompleted}, pub.types())
}

func TestVerifyPayment_SignatureMismatchTouchesNothing(t *testing.T) {
	s := newMemStore()
	seedEnrollment(s, enrollment.PaymentPending)
	seedPendingPayment(s)
	gw := &fakeGateway{}
	h, pub := newVerifyHandler(s, gw)

	_, err := h.Handle(context.Background(), VerifyPaymentCommand{
		ExternalOrderID:   "order_test",
		ExternalPaymentID: "pay_ext_1",
		Signature:         "forged",
	})

	require.ErrorIs(t, err, shared.ErrSignatureMismatch)
	assert.Zero(t, gw.fetchCalls, "gateway is not consulted on a bad signature")
	assert.Equal(t, payment.StatusPending, s.payments["pay1"].Status)
	assert.Equal(t, enrollment.PaymentPending, s.enrollments["enr1"].PaymentStatus)
	assert.Empty(t, pub.types())
}

func TestVerifyPayment_RepeatedCallIsIdempotent(t *testing.T) {
	s := newMemStore()
	seedEnrollment(s, enrollment.PaymentPending)
	seedPendingPayment(s)
	h, pub := newVerifyHandler(s, &fakeGateway{})

	_, err := h.Handle(context.Background(), signedCommand("order_test", "pay_ext_1"))
	require.NoError(t, err)

	result, err := h.Handle(context.Background(), signedCommand("order_test", "pay_ext_1"))
	require.NoError(t, err)
	assert.True(t, result.AlreadySettled)
	assert.Len(t, pub.types(), 1, "settlement event published exactly once")
}

func TestVerifyPayment_WebhookSettlingMidFlightIsNotReapplied(t *testing.T) {
	s := newMemStore()
	seedEnrollment(s, enrollment.PaymentPending)
	seedPendingPayment(s)
	gw := &fakeGateway{}
	h, pub := newVerifyHandler(s, gw)

	// The webhook path settles the same payment while this handler is
	// confirming the capture with the gateway.
	gw.onFetch = func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		p := s.payments["pay1"]
		p.Complete("pay_ext_webhook", p.CreatedAt)
		e := s.enrollments["enr1"]
		e.SettlePayment(p.CreatedAt)
	}

	result, err := h.Handle(context.Background(), signedCommand("order_test", "pay_ext_1"))

	require.NoError(t, err)
	assert.True(t, result.AlreadySettled)
	assert.Equal(t, "pay_ext_webhook", s.payments["pay1"].ExternalPaymentID,
		"the earlier settlement is not overwritten")
	assert.Empty(t, pub.types(), "no second settlement event")
	assert.NotZero(t, s.lockedPaymentReads, "settlement decision is made under the row lock")
}

func TestVerifyPayment_NotCapturedMarksFailed(t *testing.T) {
	s := newMemStore()
	seedEnrollment(s, enrollment.PaymentPending)
	seedPendingPayment(s)
	gw := &fakeGateway{payment: &payment.GatewayPayment{
		PaymentID: "pay_ext_1",
		State:     payment.GatewayPaymentAuthorized,
	}}
	h, pub := newVerifyHandler(s, gw)

	_, err := h.Handle(context.Background(), signedCommand("order_test", "pay_ext_1"))

	require.ErrorIs(t, err, shared.ErrPaymentNotCaptured)
	assert.Equal(t, payment.StatusFailed, s.payments["pay1"].Status)
	assert.Equal(t, enrollment.PaymentPending, s.enrollments["enr1"].PaymentStatus,
		"enrollment is untouched by an uncaptured payment")
	assert.Equal(t, []shared.EventType{shared.EventPaymentFailed}, pub.types())
}

func TestVerifyPayment_GatewayDownLeavesPaymentPending(t *testing.T) {
	s := newMemStore()
	seedEnrollment(s, enrollment.PaymentPending)
	seedPendingPayment(s)
	gw := &fakeGateway{paymentErr: errors.New("connection refused")}
	h, pub := newVerifyHandler(s, gw)

	_, err := h.Handle(context.Background(), signedCommand("order_test", "pay_ext_1"))

	require.ErrorIs(t, err, shared.ErrServiceUnavailable)
	assert.Equal(t, payment.StatusPending, s.payments["pay1"].Status,
		"webhook path can still settle later")
	assert.Empty(t, pub.types())
}

func TestVerifyPayment_UnknownOrder(t *testing.T) {
	s := newMemStore()
	h, _ := newVerifyHandler(s, &fakeGateway{})

	_, err := h.Handle(context.Background(), signedCommand("ghost_order", "pay_ext_1"))

	require.ErrorIs(t, err, shared.ErrPaymentNotFound)
}
