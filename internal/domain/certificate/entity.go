// Package certificate содержит доменную модель сертификата о завершении
// программы: неизменяемый снимок метаданных, проверочный хеш и отзыв.
package certificate

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// METADATA SNAPSHOT
// ══════════════════════════════════════════════════════════════════════════════

// Snapshot - неизменяемый снимок метаданных сертификата на момент выдачи.
// Проверочный хеш вычисляется только из этих полей: issuedAt и поля отзыва
// намеренно исключены, чтобы хеш оставался валидным после отзыва.
type Snapshot struct {
	// CertificateID - идентификатор сертификата (UUID), генерируется при выдаче.
	CertificateID string `json:"certificate_id"`

	// StudentName - имя студента на момент выдачи.
	StudentName string `json:"student_name"`

	// ProgramTitle - название программы на момент выдачи.
	ProgramTitle string `json:"program_title"`

	// CompletedDate - дата завершения программы (UTC, до секунды).
	CompletedDate time.Time `json:"completed_date"`

	// FinalScore - итоговый балл (0-10, два знака).
	FinalScore float64 `json:"final_score"`
}

// canonical возвращает стабильную сериализацию снимка.
// Порядок полей фиксирован; время в RFC3339 UTC; балл с двумя знаками.
// Любое изменение формата ломает все ранее выданные хеши.
func (s Snapshot) canonical() string {
	fields := []string{
		"certificate_id=" + s.CertificateID,
		"student_name=" + s.StudentName,
		"program_title=" + s.ProgramTitle,
		"completed_date=" + s.CompletedDate.UTC().Format(time.RFC3339),
		"final_score=" + strconv.FormatFloat(s.FinalScore, 'f', 2, 64),
	}
	return strings.Join(fields, "\n")
}

// VerificationHash вычисляет SHA256 hex от стабильной сериализации снимка.
func (s Snapshot) VerificationHash() string {
	sum := sha256.Sum256([]byte(s.canonical()))
	return hex.EncodeToString(sum[:])
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: CERTIFICATE
// ══════════════════════════════════════════════════════════════════════════════

// Certificate представляет выданный сертификат.
// Инвариант: ровно один валидный сертификат на зачисление
// (подкреплён уникальным ограничением на enrollment_id в БД).
type Certificate struct {
	// ID - уникальный идентификатор (UUID), совпадает с Snapshot.CertificateID.
	ID string

	// EnrollmentID - идентификатор зачисления (уникален среди сертификатов).
	EnrollmentID string

	// StudentID - идентификатор студента-владельца.
	StudentID string

	// Number - человекочитаемый уникальный номер сертификата.
	Number string

	// VerificationHash - проверочный хеш снимка.
	VerificationHash string

	// Snapshot - снимок метаданных на момент выдачи.
	Snapshot Snapshot

	// DocumentURL - ссылка на отрендеренный документ (заполняется после выдачи).
	DocumentURL string

	// IssuedAt - время выдачи.
	IssuedAt time.Time

	// IsValid - false после отзыва.
	IsValid bool

	// RevokedAt - время отзыва (нулевое, если не отозван).
	RevokedAt time.Time

	// RevocationReason - причина отзыва.
	RevocationReason string

	// RevokedBy - кто отозвал сертификат.
	RevokedBy string
}

// Issue создаёт новый валидный сертификат из снимка.
func Issue(enrollmentID, studentID, number string, snap Snapshot, now time.Time) *Certificate {
	return &Certificate{
		ID:               snap.CertificateID,
		EnrollmentID:     enrollmentID,
		StudentID:        studentID,
		Number:           number,
		VerificationHash: snap.VerificationHash(),
		Snapshot:         snap,
		IssuedAt:         now,
		IsValid:          true,
	}
}

// Revoke отзывает сертификат. Запись сохраняется для аудита,
// но публичная проверка перестаёт проходить.
func (c *Certificate) Revoke(reason, revokedBy string, now time.Time) {
	c.IsValid = false
	c.RevokedAt = now
	c.RevocationReason = reason
	c.RevokedBy = revokedBy
}

// ══════════════════════════════════════════════════════════════════════════════
// CERTIFICATE NUMBER
// ══════════════════════════════════════════════════════════════════════════════

const numberAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewNumber генерирует человекочитаемый номер сертификата:
// CERT-<YYYYMMDD>-<8 случайных символов>. При коллизии уникального
// ограничения вызывающая сторона генерирует номер заново.
func NewNumber(now time.Time) (string, error) {
	suffix := make([]byte, 8)
	max := big.NewInt(int64(len(numberAlphabet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate certificate number: %w", err)
		}
		suffix[i] = numberAlphabet[n.Int64()]
	}
	return fmt.Sprintf("CERT-%s-%s", now.UTC().Format("20060102"), string(suffix)), nil
}
