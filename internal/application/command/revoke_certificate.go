package command

import (
	"context"
	"fmt"
	"time"

	"github.com/learnflow/learnflow-progression-core/internal/domain/certificate"
	"github.com/learnflow/learnflow-progression-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REVOKE CERTIFICATE COMMAND
// Administrative action. The record is kept for audit; public verification
// stops passing and cached verification results are invalidated.
// ══════════════════════════════════════════════════════════════════════════════

// RevokeCertificateCommand contains the data to revoke a certificate.
type RevokeCertificateCommand struct {
	// CertificateID is the certificate being revoked.
	CertificateID string

	// Reason is why the certificate is revoked.
	Reason string

	// RevokedBy identifies the administrator performing the revocation.
	RevokedBy string
}

// Validate validates the command.
func (c RevokeCertificateCommand) Validate() error {
	if c.CertificateID == "" {
		return fmt.Errorf("revoke_certificate: %w: certificate_id", shared.ErrEmptyValue)
	}
	if c.Reason == "" {
		return fmt.Errorf("revoke_certificate: %w: reason", shared.ErrEmptyValue)
	}
	if c.RevokedBy == "" {
		return fmt.Errorf("revoke_certificate: %w: revoked_by", shared.ErrEmptyValue)
	}
	return nil
}

// RevokeCertificateResult contains the revoked certificate.
type RevokeCertificateResult struct {
	Certificate *certificate.Certificate
}

// RevokeCertificateHandler handles the RevokeCertificateCommand.
type RevokeCertificateHandler struct {
	certificates certificate.Repository
	cache        certificate.VerificationCache
	publisher    shared.EventPublisher
	now          func() time.Time
}

// NewRevokeCertificateHandler creates a new RevokeCertificateHandler.
func NewRevokeCertificateHandler(
	certificates certificate.Repository,
	cache certificate.VerificationCache,
	publisher shared.EventPublisher,
) *RevokeCertificateHandler {
	return &RevokeCertificateHandler{
		certificates: certificates,
		cache:        cache,
		publisher:    publisher,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Handle executes the revoke command.
func (h *RevokeCertificateHandler) Handle(ctx context.Context, cmd RevokeCertificateCommand) (*RevokeCertificateResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	cert, err := h.certificates.GetByID(ctx, cmd.CertificateID)
	if err != nil {
		return nil, err
	}
	if !cert.IsValid {
		return nil, shared.ErrCertificateRevoked
	}

	cert.Revoke(cmd.Reason, cmd.RevokedBy, h.now())
	if err := h.certificates.Update(ctx, cert); err != nil {
		return nil, fmt.Errorf("revoke_certificate: update certificate: %w", err)
	}

	// Stale cached verifications must not keep a revoked certificate valid.
	if err := h.cache.Invalidate(ctx, cert.Number, cert.VerificationHash); err != nil {
		return nil, shared.WrapError("certificate", "Revoke", shared.ErrServiceUnavailable,
			"verification cache invalidation failed", err)
	}

	_ = h.publisher.Publish(shared.NewEvent(shared.EventCertificateRevoked, cert.ID, map[string]interface{}{
		"enrollment_id":      cert.EnrollmentID,
		"certificate_number": cert.Number,
		"reason":             cmd.Reason,
	}))

	return &RevokeCertificateResult{Certificate: cert}, nil
}
