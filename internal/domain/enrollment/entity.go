// Package enrollment содержит доменную модель зачисления студента на
// платную программу и движок гейтинга заданий.
// Это ядро бизнес-логики - здесь нет внешних зависимостей.
package enrollment

import (
	"math"
	"time"

	"github.com/learnflow/learnflow-progression-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// Status определяет статус зачисления.
type Status string

const (
	// StatusActive - студент проходит программу.
	StatusActive Status = "ACTIVE"
	// StatusCompleted - программа завершена (100% обязательных заданий).
	StatusCompleted Status = "COMPLETED"
	// StatusCancelled - зачисление отменено.
	StatusCancelled Status = "CANCELLED"
)

// IsValid проверяет, что статус корректен.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// PaymentStatus определяет статус оплаты зачисления.
type PaymentStatus string

const (
	// PaymentPending - оплата не завершена.
	PaymentPending PaymentStatus = "PENDING"
	// PaymentCompleted - оплата подтверждена.
	PaymentCompleted PaymentStatus = "COMPLETED"
	// PaymentFailed - оплата не прошла.
	PaymentFailed PaymentStatus = "FAILED"
	// PaymentRefunded - оплата возвращена.
	PaymentRefunded PaymentStatus = "REFUNDED"
)

// IsValid проверяет, что статус оплаты корректен.
func (p PaymentStatus) IsValid() bool {
	switch p {
	case PaymentPending, PaymentCompleted, PaymentFailed, PaymentRefunded:
		return true
	default:
		return false
	}
}

// IsSettled возвращает true, если контент программы доступен студенту.
func (p PaymentStatus) IsSettled() bool {
	return p == PaymentCompleted
}

// ══════════════════════════════════════════════════════════════════════════════
// TASK
// ══════════════════════════════════════════════════════════════════════════════

// Task представляет задание программы. Неизменяемо после публикации программы.
type Task struct {
	// ID - уникальный идентификатор задания.
	ID string

	// ProgramID - идентификатор программы.
	ProgramID string

	// Title - название задания.
	Title string

	// Order - порядковый номер в программе (уникален, с единицы).
	Order int

	// IsMandatory - входит ли задание в расчёт прогресса.
	IsMandatory bool
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: ENROLLMENT
// ══════════════════════════════════════════════════════════════════════════════

// Enrollment представляет зачисление студента на программу.
// Принадлежит исключительно создавшему его студенту; мутируется только
// проверкой сдач и сервисом оплаты.
type Enrollment struct {
	// ID - уникальный идентификатор зачисления (UUID).
	ID string

	// StudentID - идентификатор студента-владельца.
	StudentID string

	// ProgramID - идентификатор программы.
	ProgramID string

	// Status - статус зачисления.
	Status Status

	// ProgressPercentage - процент выполнения обязательных заданий (0-100).
	ProgressPercentage float64

	// PaymentStatus - статус оплаты.
	PaymentStatus PaymentStatus

	// PaymentAmount - сумма оплаты в минорных единицах валюты.
	PaymentAmount int64

	// Currency - код валюты (ISO 4217).
	Currency string

	// CertificateIssued - выдан ли сертификат.
	CertificateIssued bool

	// EnrolledAt - время зачисления.
	EnrolledAt time.Time

	// CompletedAt - время завершения программы (нулевое, если не завершена).
	CompletedAt time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsOwnedBy проверяет владельца зачисления.
func (e *Enrollment) IsOwnedBy(studentID string) bool {
	return e.StudentID == studentID
}

// IsActive возвращает true, если зачисление активно.
func (e *Enrollment) IsActive() bool {
	return e.Status == StatusActive
}

// SettlePayment отмечает оплату завершённой.
func (e *Enrollment) SettlePayment(now time.Time) {
	e.PaymentStatus = PaymentCompleted
	e.UpdatedAt = now
}

// RefundPayment отмечает оплату возвращённой.
func (e *Enrollment) RefundPayment(now time.Time) {
	e.PaymentStatus = PaymentRefunded
	e.UpdatedAt = now
}

// ApplyProgress устанавливает пересчитанный прогресс и при достижении 100%
// переводит зачисление в COMPLETED.
// Возвращает true, если зачисление было завершено этим вызовом.
func (e *Enrollment) ApplyProgress(percentage float64, now time.Time) (bool, error) {
	if percentage < 0 || percentage > 100 {
		return false, shared.ErrValueOutOfRange
	}

	e.ProgressPercentage = percentage
	e.UpdatedAt = now

	if percentage >= 100 && e.Status == StatusActive {
		e.Status = StatusCompleted
		e.CompletedAt = now
		return true, nil
	}
	return false, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS CALCULATION
// ══════════════════════════════════════════════════════════════════════════════

// ComputeProgress вычисляет прогресс как долю обязательных заданий
// с одобренной сдачей. Программа без обязательных заданий считается
// выполненной на 0%.
func ComputeProgress(mandatoryTotal, approvedMandatory int) float64 {
	if mandatoryTotal <= 0 {
		return 0
	}
	if approvedMandatory > mandatoryTotal {
		approvedMandatory = mandatoryTotal
	}
	pct := float64(approvedMandatory) / float64(mandatoryTotal) * 100
	return math.Round(pct*100) / 100
}
