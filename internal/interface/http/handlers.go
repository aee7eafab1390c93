package http

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/learnflow/learnflow-progression-core/internal/application/command"
	"github.com/learnflow/learnflow-progression-core/internal/application/query"
	"github.com/learnflow/learnflow-progression-core/internal/domain/payment"
	"github.com/learnflow/learnflow-progression-core/internal/domain/shared"
	"github.com/learnflow/learnflow-progression-core/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int64(s.Uptime().Seconds()),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// CERTIFICATE VERIFICATION
// Public endpoint. A negative answer never distinguishes an unknown
// reference from a revoked certificate.
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	ref := r.URL.Query().Get("ref")
	if ref == "" {
		writeJSONError(w, http.StatusBadRequest, "missing_ref", "Query parameter 'ref' is required")
		return
	}

	result, err := s.deps.VerifyCertificateHandler.Handle(r.Context(), query.VerifyCertificateQuery{Ref: ref})
	if err != nil {
		if errors.Is(err, shared.ErrEmptyValue) {
			writeJSONError(w, http.StatusBadRequest, "invalid_ref", "Invalid verification reference")
			return
		}
		s.logger.Error("certificate verification failed", logger.Err(err))
		writeJSONError(w, http.StatusInternalServerError, "verification_failed", "Verification is temporarily unavailable")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// GATEWAY WEBHOOK
// The gateway signs the raw request body with HMAC-SHA256 (hex) using the
// shared webhook secret. An unsigned or mis-signed body is rejected before
// parsing. 2xx stops redelivery; 5xx makes the gateway retry.
// ══════════════════════════════════════════════════════════════════════════════

// gatewayWebhookBody is the wire shape of a gateway webhook delivery.
type gatewayWebhookBody struct {
	EventID   string `json:"event_id"`
	Type      string `json:"type"`
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Reason    string `json:"reason,omitempty"`
}

func (s *Server) handleGatewayWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, s.config.MaxBodyBytes))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Failed to read request body")
		return
	}

	if !s.verifyWebhookSignature(body, r.Header.Get(s.config.SignatureHeader)) {
		s.logger.Warn("webhook signature rejected", logger.String("ip", getClientIP(r)))
		writeJSONError(w, http.StatusUnauthorized, "invalid_signature", "Webhook signature verification failed")
		return
	}

	var wire gatewayWebhookBody
	if err := json.Unmarshal(body, &wire); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Failed to parse webhook body")
		return
	}

	cmd := command.ProcessWebhookCommand{
		Event: payment.WebhookEvent{
			EventID:   wire.EventID,
			Type:      payment.WebhookEventType(wire.Type),
			OrderID:   wire.OrderID,
			PaymentID: wire.PaymentID,
			Reason:    wire.Reason,
		},
	}

	result, err := s.deps.ProcessWebhookHandler.Handle(r.Context(), cmd)
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrEmptyValue), errors.Is(err, shared.ErrInvalidInput):
			writeJSONError(w, http.StatusBadRequest, "invalid_event", "Webhook event is malformed")
		case errors.Is(err, shared.ErrNotFound):
			// Unknown order: acknowledged so the gateway stops redelivering.
			s.logger.Warn("webhook for unknown order",
				logger.WebhookEventID(wire.EventID),
				logger.OrderID(wire.OrderID),
			)
			writeJSON(w, http.StatusOK, map[string]bool{"applied": false})
		default:
			s.logger.Error("webhook processing failed",
				logger.WebhookEventID(wire.EventID),
				logger.Err(err),
			)
			writeJSONError(w, http.StatusInternalServerError, "processing_failed", "Event could not be processed")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{
		"applied":   result.Applied,
		"duplicate": result.Duplicate,
	})
}

// verifyWebhookSignature checks the hex HMAC-SHA256 of the raw body.
func (s *Server) verifyWebhookSignature(body []byte, signature string) bool {
	if s.config.WebhookSecret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(s.config.WebhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
