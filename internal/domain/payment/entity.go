// Package payment содержит доменную модель оплаты зачисления и контракт
// внешнего платёжного шлюза.
package payment

import (
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// Status определяет статус платежа.
type Status string

const (
	// StatusPending - заказ создан, оплата не подтверждена.
	StatusPending Status = "PENDING"
	// StatusCompleted - оплата подтверждена и зачтена.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed - оплата не прошла.
	StatusFailed Status = "FAILED"
	// StatusRefunded - оплата возвращена.
	StatusRefunded Status = "REFUNDED"
)

// IsValid проверяет, что статус корректен.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed, StatusRefunded:
		return true
	default:
		return false
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: PAYMENT
// ══════════════════════════════════════════════════════════════════════════════

// Payment представляет платёж за зачисление через внешний шлюз.
type Payment struct {
	// ID - уникальный идентификатор платежа (UUID).
	ID string

	// EnrollmentID - идентификатор зачисления.
	EnrollmentID string

	// Amount - сумма в минорных единицах валюты.
	Amount int64

	// Currency - код валюты (ISO 4217).
	Currency string

	// ExternalOrderID - идентификатор заказа на стороне шлюза.
	ExternalOrderID string

	// ExternalPaymentID - идентификатор платежа на стороне шлюза.
	// Пустой, пока платёж не зачтён.
	ExternalPaymentID string

	// Status - статус платежа.
	Status Status

	// FailureReason - причина неудачи (для FAILED).
	FailureReason string

	// CreatedAt - время создания заказа.
	CreatedAt time.Time

	// PaidAt - время зачтения оплаты (нулевое, пока не оплачен).
	PaidAt time.Time

	UpdatedAt time.Time
}

// New создаёт новый платёж в статусе PENDING.
func New(id, enrollmentID string, amount int64, currency, externalOrderID string, now time.Time) *Payment {
	return &Payment{
		ID:              id,
		EnrollmentID:    enrollmentID,
		Amount:          amount,
		Currency:        currency,
		ExternalOrderID: externalOrderID,
		Status:          StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// IsCompleted возвращает true, если платёж зачтён.
func (p *Payment) IsCompleted() bool {
	return p.Status == StatusCompleted
}

// Complete отмечает платёж зачтённым.
func (p *Payment) Complete(externalPaymentID string, now time.Time) {
	p.Status = StatusCompleted
	p.ExternalPaymentID = externalPaymentID
	p.PaidAt = now
	p.UpdatedAt = now
}

// Fail отмечает платёж неудачным с причиной.
func (p *Payment) Fail(reason string, now time.Time) {
	p.Status = StatusFailed
	p.FailureReason = reason
	p.UpdatedAt = now
}

// Refund отмечает платёж возвращённым.
func (p *Payment) Refund(now time.Time) {
	p.Status = StatusRefunded
	p.UpdatedAt = now
}

// OrderDescriptor - клиентское описание созданного заказа на оплату.
// Ровно то, что нужно клиенту для запуска чекаута: без внутренних полей.
type OrderDescriptor struct {
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}
