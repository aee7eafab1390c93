package payment

import (
	"context"
)

// ══════════════════════════════════════════════════════════════════════════════
// GATEWAY CONTRACT (внешний коллаборатор)
// ══════════════════════════════════════════════════════════════════════════════

// GatewayOrder - заказ, созданный на стороне шлюза.
type GatewayOrder struct {
	// OrderID - идентификатор заказа у шлюза.
	OrderID string

	// Amount - сумма в минорных единицах.
	Amount int64

	// Currency - код валюты.
	Currency string
}

// GatewayPaymentState - статус платежа на стороне шлюза.
type GatewayPaymentState string

const (
	// GatewayPaymentCreated - платёж создан, но не захвачен.
	GatewayPaymentCreated GatewayPaymentState = "created"
	// GatewayPaymentAuthorized - платёж авторизован, но не захвачен.
	GatewayPaymentAuthorized GatewayPaymentState = "authorized"
	// GatewayPaymentCaptured - средства списаны.
	GatewayPaymentCaptured GatewayPaymentState = "captured"
	// GatewayPaymentFailed - платёж не прошёл.
	GatewayPaymentFailed GatewayPaymentState = "failed"
	// GatewayPaymentRefunded - платёж возвращён.
	GatewayPaymentRefunded GatewayPaymentState = "refunded"
)

// IsCaptured возвращает true, если средства действительно списаны.
func (s GatewayPaymentState) IsCaptured() bool {
	return s == GatewayPaymentCaptured
}

// GatewayPayment - платёж, полученный от шлюза.
type GatewayPayment struct {
	// PaymentID - идентификатор платежа у шлюза.
	PaymentID string

	// OrderID - идентификатор заказа у шлюза.
	OrderID string

	// State - статус платежа.
	State GatewayPaymentState

	// Method - метод оплаты (card, upi, wallet...).
	Method string

	// Amount - сумма в минорных единицах.
	Amount int64
}

// Gateway - контракт внешнего платёжного шлюза.
// Реализация находится в infrastructure/external/gateway.
type Gateway interface {
	// CreateOrder создаёт заказ на оплату у шлюза.
	CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*GatewayOrder, error)

	// FetchPayment возвращает платёж по его идентификатору у шлюза.
	// Используется для подтверждения фактического списания средств:
	// валидная подпись ещё не означает захват платежа.
	FetchPayment(ctx context.Context, paymentID string) (*GatewayPayment, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// WEBHOOK EVENTS
// Шлюз пушит события асинхронно; каждое событие может прийти повторно.
// ══════════════════════════════════════════════════════════════════════════════

// WebhookEventType - тип события вебхука шлюза.
type WebhookEventType string

const (
	// WebhookPaymentCaptured - средства списаны.
	WebhookPaymentCaptured WebhookEventType = "payment.captured"
	// WebhookPaymentFailed - платёж не прошёл.
	WebhookPaymentFailed WebhookEventType = "payment.failed"
	// WebhookRefundProcessed - возврат обработан.
	WebhookRefundProcessed WebhookEventType = "refund.processed"
)

// IsValid проверяет, что тип события известен.
func (t WebhookEventType) IsValid() bool {
	switch t {
	case WebhookPaymentCaptured, WebhookPaymentFailed, WebhookRefundProcessed:
		return true
	default:
		return false
	}
}

// WebhookEvent - событие, полученное от шлюза.
type WebhookEvent struct {
	// EventID - уникальный идентификатор события у шлюза.
	// Ключ дедупликации повторных доставок.
	EventID string

	// Type - тип события.
	Type WebhookEventType

	// OrderID - идентификатор заказа у шлюза.
	OrderID string

	// PaymentID - идентификатор платежа у шлюза.
	PaymentID string

	// Reason - причина (для payment.failed).
	Reason string
}
