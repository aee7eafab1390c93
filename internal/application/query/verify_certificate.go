package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/learnflow/learnflow-progression-core/internal/domain/certificate"
	"github.com/learnflow/learnflow-progression-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VERIFY CERTIFICATE QUERY
// Public, unauthenticated verification by certificate number or
// verification hash. Never reveals why a lookup is invalid: an unknown
// reference and a revoked certificate produce the same negative answer.
// Results are cached; revocation invalidates the cache.
// ══════════════════════════════════════════════════════════════════════════════

// VerifyCertificateQuery contains the public verification reference.
type VerifyCertificateQuery struct {
	// Ref is a certificate number or verification hash.
	Ref string
}

// Validate validates the query.
func (q VerifyCertificateQuery) Validate() error {
	if q.Ref == "" {
		return fmt.Errorf("verify_certificate: %w: ref", shared.ErrEmptyValue)
	}
	return nil
}

// VerifyCertificateHandler handles the VerifyCertificateQuery.
type VerifyCertificateHandler struct {
	certificates certificate.Repository
	cache        certificate.VerificationCache
}

// NewVerifyCertificateHandler creates a new VerifyCertificateHandler.
func NewVerifyCertificateHandler(
	certificates certificate.Repository,
	cache certificate.VerificationCache,
) *VerifyCertificateHandler {
	return &VerifyCertificateHandler{
		certificates: certificates,
		cache:        cache,
	}
}

// Handle executes the query.
func (h *VerifyCertificateHandler) Handle(ctx context.Context, q VerifyCertificateQuery) (*certificate.VerificationResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	// Cache errors are not fatal for a read path: fall through to the store.
	if cached, ok, err := h.cache.Get(ctx, q.Ref); err == nil && ok {
		return cached, nil
	}

	result, err := h.lookup(ctx, q.Ref)
	if err != nil {
		return nil, err
	}

	_ = h.cache.Set(ctx, q.Ref, result)
	return result, nil
}

func (h *VerifyCertificateHandler) lookup(ctx context.Context, ref string) (*certificate.VerificationResult, error) {
	cert, err := h.certificates.GetByRef(ctx, ref)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return &certificate.VerificationResult{IsValid: false}, nil
		}
		return nil, err
	}

	// Revoked and tampered certificates verify as invalid without detail.
	if !cert.IsValid || cert.Snapshot.VerificationHash() != cert.VerificationHash {
		return &certificate.VerificationResult{IsValid: false}, nil
	}

	return &certificate.VerificationResult{
		IsValid: true,
		Certificate: &certificate.PublicView{
			Number:        cert.Number,
			StudentName:   cert.Snapshot.StudentName,
			ProgramTitle:  cert.Snapshot.ProgramTitle,
			CompletedDate: cert.Snapshot.CompletedDate.UTC().Format("2006-01-02"),
			FinalScore:    cert.Snapshot.FinalScore,
			IssuedAt:      cert.IssuedAt.UTC().Format(time.RFC3339),
		},
	}, nil
}
