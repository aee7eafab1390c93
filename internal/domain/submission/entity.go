// Package submission содержит доменную модель сдачи задания.
// Это ядро бизнес-логики - здесь нет внешних зависимостей.
package submission

import (
	"time"

	"github.com/learnflow/learnflow-progression-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Grade представляет оценку за сдачу (0-10). Необязательна.
type Grade float64

// IsValid проверяет, что оценка в допустимом диапазоне.
func (g Grade) IsValid() bool {
	return g >= 0 && g <= 10
}

// DefaultGrade - оценка по умолчанию для одобренной сдачи без явной оценки.
// Используется при подсчёте итогового балла сертификата.
const DefaultGrade Grade = 8.0

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// Status определяет статус сдачи задания.
// PENDING - единственное нетерминальное состояние: повторная попытка
// требует создания новой записи сдачи.
type Status string

const (
	// StatusPending - сдача ожидает проверки.
	StatusPending Status = "PENDING"
	// StatusApproved - сдача одобрена (терминальный статус).
	StatusApproved Status = "APPROVED"
	// StatusRejected - сдача отклонена (терминальный статус).
	StatusRejected Status = "REJECTED"
	// StatusNeedsRevision - требуется доработка (терминальный статус для этой записи).
	StatusNeedsRevision Status = "NEEDS_REVISION"
)

// IsValid проверяет, что статус корректен.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusNeedsRevision:
		return true
	default:
		return false
	}
}

// IsTerminal возвращает true, если статус терминальный.
func (s Status) IsTerminal() bool {
	return s.IsValid() && s != StatusPending
}

// Outcome представляет результат проверки сдачи.
type Outcome string

const (
	// OutcomeApproved - одобрить.
	OutcomeApproved Outcome = "APPROVED"
	// OutcomeRejected - отклонить.
	OutcomeRejected Outcome = "REJECTED"
	// OutcomeNeedsRevision - отправить на доработку.
	OutcomeNeedsRevision Outcome = "NEEDS_REVISION"
)

// IsValid проверяет, что результат корректен.
func (o Outcome) IsValid() bool {
	switch o {
	case OutcomeApproved, OutcomeRejected, OutcomeNeedsRevision:
		return true
	default:
		return false
	}
}

// Status возвращает статус, соответствующий результату проверки.
func (o Outcome) Status() Status {
	return Status(o)
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: SUBMISSION
// ══════════════════════════════════════════════════════════════════════════════

// Submission представляет одну попытку сдачи задания студентом.
// Инвариант: не более одной PENDING сдачи на пару (EnrollmentID, TaskID).
type Submission struct {
	// ID - уникальный идентификатор сдачи (UUID).
	ID string

	// EnrollmentID - идентификатор зачисления.
	EnrollmentID string

	// TaskID - идентификатор задания.
	TaskID string

	// Status - текущий статус сдачи.
	Status Status

	// Grade - оценка (nil, если не выставлена).
	Grade *Grade

	// Feedback - комментарий проверяющего.
	Feedback string

	// Content - содержимое сдачи (ссылка, текст ответа).
	Content string

	// SubmittedAt - время сдачи.
	SubmittedAt time.Time

	// ReviewedAt - время проверки (нулевое, пока не проверено).
	ReviewedAt time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// New создаёт новую сдачу в статусе PENDING.
func New(id, enrollmentID, taskID, content string, now time.Time) *Submission {
	return &Submission{
		ID:           id,
		EnrollmentID: enrollmentID,
		TaskID:       taskID,
		Status:       StatusPending,
		Content:      content,
		SubmittedAt:  now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// IsPending возвращает true, если сдача ожидает проверки.
func (s *Submission) IsPending() bool {
	return s.Status == StatusPending
}

// IsApproved возвращает true, если сдача одобрена.
func (s *Submission) IsApproved() bool {
	return s.Status == StatusApproved
}

// Review переводит сдачу из PENDING в терминальный статус.
// Возвращает ErrSubmissionNotPending, если сдача уже проверена,
// и ErrInvalidGrade при оценке вне диапазона.
func (s *Submission) Review(outcome Outcome, feedback string, grade *Grade, now time.Time) error {
	if !outcome.IsValid() {
		return shared.ErrInvalidOutcome
	}
	if !s.IsPending() {
		return shared.ErrSubmissionNotPending
	}
	if grade != nil && !grade.IsValid() {
		return shared.ErrInvalidGrade
	}

	s.Status = outcome.Status()
	s.Feedback = feedback
	s.Grade = grade
	s.ReviewedAt = now
	s.UpdatedAt = now
	return nil
}

// EffectiveGrade возвращает оценку, учитываемую в итоговом балле:
// выставленную, либо DefaultGrade для одобренной сдачи без оценки.
func (s *Submission) EffectiveGrade() Grade {
	if s.Grade != nil {
		return *s.Grade
	}
	return DefaultGrade
}
