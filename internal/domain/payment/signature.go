package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/learnflow/learnflow-progression-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SIGNATURE VERIFICATION
// Шлюз подписывает пару (orderID, paymentID) как
// HMAC-SHA256(secret, orderID + "|" + paymentID) в hex.
// ══════════════════════════════════════════════════════════════════════════════

// SignatureVerifier проверяет подписи платёжного шлюза.
type SignatureVerifier struct {
	secret []byte
}

// NewSignatureVerifier создаёт верификатор с общим секретом.
func NewSignatureVerifier(secret string) *SignatureVerifier {
	return &SignatureVerifier{secret: []byte(secret)}
}

// Compute вычисляет ожидаемую подпись для пары (orderID, paymentID).
func (v *SignatureVerifier) Compute(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify сравнивает подпись за константное время.
// Возвращает ErrPaymentSignature при несовпадении.
func (v *SignatureVerifier) Verify(orderID, paymentID, signature string) error {
	expected := v.Compute(orderID, paymentID)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return shared.ErrPaymentSignature
	}
	return nil
}
