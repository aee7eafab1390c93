package http

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/learnflow/learnflow-progression-core/internal/application/command"
	"github.com/learnflow/learnflow-progression-core/internal/application/query"
	"github.com/learnflow/learnflow-progression-core/internal/domain/shared"
	"github.com/learnflow/learnflow-progression-core/internal/domain/submission"
	"github.com/learnflow/learnflow-progression-core/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// INTERNAL API
// Service-to-service endpoints for the platform's API layer. Every route
// requires the internal API key; the engine itself has no end-user auth.
// ══════════════════════════════════════════════════════════════════════════════

// requireAPIKey rejects requests without a valid internal API key.
func (s *Server) requireAPIKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.config.APIKey == "" {
			writeJSONError(w, http.StatusServiceUnavailable, "api_disabled", "Internal API is not configured")
			return
		}
		key := r.Header.Get(s.config.APIKeyHeader)
		if subtle.ConstantTimeCompare([]byte(key), []byte(s.config.APIKey)) != 1 {
			writeJSONError(w, http.StatusUnauthorized, "invalid_api_key", "Missing or invalid API key")
			return
		}
		next(w, r)
	}
}

// decodeJSON parses the request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Failed to parse request body")
		return false
	}
	return true
}

// writeDomainError maps domain errors to HTTP status codes.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrEmptyValue),
		errors.Is(err, shared.ErrInvalidInput),
		errors.Is(err, shared.ErrValueOutOfRange),
		errors.Is(err, shared.ErrValidation):
		writeJSONError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, shared.ErrUnauthorized), errors.Is(err, shared.ErrForbidden):
		writeJSONError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, shared.ErrSignatureMismatch):
		writeJSONError(w, http.StatusUnauthorized, "signature_mismatch", err.Error())
	case errors.Is(err, shared.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, shared.ErrConflict),
		errors.Is(err, shared.ErrInvalidState),
		errors.Is(err, shared.ErrStateTransition),
		errors.Is(err, shared.ErrAlreadyExists):
		writeJSONError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, shared.ErrServiceUnavailable), errors.Is(err, shared.ErrExternalService):
		writeJSONError(w, http.StatusBadGateway, "upstream_error", "An upstream service failed")
	default:
		s.logger.Error("internal api error", logger.Err(err))
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Submissions
// ─────────────────────────────────────────────────────────────────────────────

type submitTaskRequest struct {
	StudentID string `json:"student_id"`
	TaskID    string `json:"task_id"`
	Content   string `json:"content"`
}

func (s *Server) handleSubmitTask(w http.ResponseWriter, r *http.Request) {
	var req submitTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := s.deps.SubmitTaskHandler.Handle(r.Context(), command.SubmitTaskCommand{
		EnrollmentID: r.PathValue("id"),
		StudentID:    req.StudentID,
		TaskID:       req.TaskID,
		Content:      req.Content,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result.Submission)
}

type reviewSubmissionRequest struct {
	Outcome  string   `json:"outcome"`
	Feedback string   `json:"feedback"`
	Grade    *float64 `json:"grade,omitempty"`
}

func (s *Server) handleReviewSubmission(w http.ResponseWriter, r *http.Request) {
	var req reviewSubmissionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var grade *submission.Grade
	if req.Grade != nil {
		g := submission.Grade(*req.Grade)
		grade = &g
	}

	result, err := s.deps.ReviewSubmissionHandler.Handle(r.Context(), command.ReviewSubmissionCommand{
		SubmissionID: r.PathValue("id"),
		Outcome:      submission.Outcome(req.Outcome),
		Feedback:     req.Feedback,
		Grade:        grade,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"submission":           result.Submission,
		"progress_percentage":  result.ProgressPercentage,
		"enrollment_completed": result.EnrollmentCompleted,
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Payments
// ─────────────────────────────────────────────────────────────────────────────

type createPaymentOrderRequest struct {
	StudentID string `json:"student_id"`
}

func (s *Server) handleCreatePaymentOrder(w http.ResponseWriter, r *http.Request) {
	var req createPaymentOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := s.deps.CreatePaymentOrderHandler.Handle(r.Context(), command.CreatePaymentOrderCommand{
		EnrollmentID: r.PathValue("id"),
		StudentID:    req.StudentID,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"order":      result.Order,
		"payment_id": result.PaymentID,
	})
}

type verifyPaymentRequest struct {
	ExternalOrderID   string `json:"external_order_id"`
	ExternalPaymentID string `json:"external_payment_id"`
	Signature         string `json:"signature"`
}

func (s *Server) handleVerifyPayment(w http.ResponseWriter, r *http.Request) {
	var req verifyPaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := s.deps.VerifyPaymentHandler.Handle(r.Context(), command.VerifyPaymentCommand{
		ExternalOrderID:   req.ExternalOrderID,
		ExternalPaymentID: req.ExternalPaymentID,
		Signature:         req.Signature,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"payment":         result.Payment,
		"already_settled": result.AlreadySettled,
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Certificates
// ─────────────────────────────────────────────────────────────────────────────

type issueCertificateRequest struct {
	StudentID string `json:"student_id"`
}

func (s *Server) handleIssueCertificate(w http.ResponseWriter, r *http.Request) {
	var req issueCertificateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := s.deps.IssueCertificateHandler.Handle(r.Context(), command.IssueCertificateCommand{
		EnrollmentID: r.PathValue("id"),
		StudentID:    req.StudentID,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	status := http.StatusCreated
	if result.AlreadyIssued {
		status = http.StatusOK
	}
	writeJSON(w, status, map[string]interface{}{
		"certificate":    result.Certificate,
		"already_issued": result.AlreadyIssued,
	})
}

type revokeCertificateRequest struct {
	Reason    string `json:"reason"`
	RevokedBy string `json:"revoked_by"`
}

func (s *Server) handleRevokeCertificate(w http.ResponseWriter, r *http.Request) {
	var req revokeCertificateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := s.deps.RevokeCertificateHandler.Handle(r.Context(), command.RevokeCertificateCommand{
		CertificateID: r.PathValue("id"),
		Reason:        req.Reason,
		RevokedBy:     req.RevokedBy,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result.Certificate)
}

// ─────────────────────────────────────────────────────────────────────────────
// Task statuses
// ─────────────────────────────────────────────────────────────────────────────

func (s *Server) handleGetTaskStatuses(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.GetTaskStatusesHandler.Handle(r.Context(), query.GetTaskStatusesQuery{
		EnrollmentID: r.PathValue("id"),
		StudentID:    r.URL.Query().Get("student_id"),
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
