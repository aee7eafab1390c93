package payment

import (
	"context"
)

// Repository определяет контракт хранилища платежей.
// Реализации находятся в infrastructure/persistence.
type Repository interface {
	// Create создаёт новый платёж.
	Create(ctx context.Context, p *Payment) error

	// GetByID возвращает платёж по ID.
	// Возвращает ErrPaymentNotFound, если платёж не найден.
	GetByID(ctx context.Context, id string) (*Payment, error)

	// GetByExternalOrderID возвращает платёж по идентификатору заказа шлюза.
	// Возвращает ErrPaymentNotFound, если платёж не найден.
	GetByExternalOrderID(ctx context.Context, orderID string) (*Payment, error)

	// GetByExternalOrderIDForUpdate возвращает платёж по идентификатору
	// заказа шлюза, удерживая блокировку строки до конца транзакции.
	// Используется при расчётах, чтобы два пути поступления оплаты
	// не применили завершение дважды.
	GetByExternalOrderIDForUpdate(ctx context.Context, orderID string) (*Payment, error)

	// Update обновляет платёж.
	Update(ctx context.Context, p *Payment) error

	// ListByEnrollment возвращает платежи зачисления (от новых к старым).
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]*Payment, error)
}

// EventDeduplicator отбрасывает повторные доставки событий вебхука.
// Реализуется поверх Redis (SET NX с TTL).
type EventDeduplicator interface {
	// MarkProcessed атомарно отмечает событие обработанным.
	// Возвращает false, если событие уже было обработано.
	MarkProcessed(ctx context.Context, eventID string) (bool, error)

	// Unmark снимает отметку обработки. Вызывается, когда обработка
	// события завершилась ошибкой после MarkProcessed, чтобы повторная
	// доставка шлюза не была отброшена как дубликат.
	Unmark(ctx context.Context, eventID string) error
}
