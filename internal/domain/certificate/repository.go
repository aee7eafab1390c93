package certificate

import (
	"context"
)

// Repository определяет контракт хранилища сертификатов.
// Реализации находятся в infrastructure/persistence.
type Repository interface {
	// Create создаёт сертификат.
	// Возвращает ErrAlreadyExists при нарушении уникальности enrollment_id
	// и ErrConflict при коллизии номера сертификата.
	Create(ctx context.Context, c *Certificate) error

	// GetByID возвращает сертификат по ID.
	// Возвращает ErrCertificateNotFound, если сертификат не найден.
	GetByID(ctx context.Context, id string) (*Certificate, error)

	// GetByEnrollment возвращает сертификат зачисления.
	// Возвращает ErrCertificateNotFound, если сертификат не выдавался.
	GetByEnrollment(ctx context.Context, enrollmentID string) (*Certificate, error)

	// GetByRef возвращает сертификат по номеру или проверочному хешу.
	// Возвращает ErrCertificateNotFound, если сертификат не найден.
	GetByRef(ctx context.Context, ref string) (*Certificate, error)

	// Update обновляет сертификат (отзыв).
	Update(ctx context.Context, c *Certificate) error

	// UpdateDocumentURL записывает ссылку на сформированный документ,
	// не трогая остальные поля. Отдельная операция нужна, чтобы
	// отложенная генерация документа не перезаписала параллельный отзыв.
	UpdateDocumentURL(ctx context.Context, id, documentURL string) error
}

// VerificationResult - результат публичной проверки сертификата.
// Для невалидного или отсутствующего сертификата раскрывается только флаг.
type VerificationResult struct {
	IsValid     bool      `json:"is_valid"`
	Certificate *PublicView `json:"certificate,omitempty"`
}

// PublicView - публичное представление сертификата для проверки.
type PublicView struct {
	Number        string  `json:"certificate_number"`
	StudentName   string  `json:"student_name"`
	ProgramTitle  string  `json:"program_title"`
	CompletedDate string  `json:"completed_date"`
	FinalScore    float64 `json:"final_score"`
	IssuedAt      string  `json:"issued_at"`
}

// VerificationCache кеширует результаты публичной проверки.
// Реализуется поверх Redis; инвалидируется при отзыве.
type VerificationCache interface {
	// Get возвращает закешированный результат проверки.
	// Второе значение false при промахе кеша.
	Get(ctx context.Context, ref string) (*VerificationResult, bool, error)

	// Set сохраняет результат проверки.
	Set(ctx context.Context, ref string, result *VerificationResult) error

	// Invalidate удаляет записи сертификата из кеша.
	Invalidate(ctx context.Context, refs ...string) error
}
