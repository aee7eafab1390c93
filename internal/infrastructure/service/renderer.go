package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/learnflow/learnflow-progression-core/internal/domain/certificate"
	"github.com/learnflow/learnflow-progression-core/internal/domain/shared"
	"github.com/learnflow/learnflow-progression-core/pkg/logger"
	"github.com/learnflow/learnflow-progression-core/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CERTIFICATE RENDERER CLIENT
// The renderer service turns a certificate snapshot into a downloadable
// document and returns its public URL. Rendering is deterministic per
// snapshot, so a retried request yields the same document.
// ══════════════════════════════════════════════════════════════════════════════

// RendererConfig holds renderer service configuration.
type RendererConfig struct {
	// BaseURL is the renderer API root.
	BaseURL string

	// APIKey authenticates service-to-service calls.
	APIKey string

	// Timeout is the per-request timeout. Rendering is slower than plain
	// API calls, so the default is generous.
	Timeout time.Duration
}

// RendererClient implements eventhandler.Renderer.
type RendererClient struct {
	http    *resty.Client
	retrier *retry.Retrier
	log     *logger.Logger
}

// NewRendererClient creates a new RendererClient.
func NewRendererClient(cfg RendererConfig, log *logger.Logger) *RendererClient {
	if log == nil {
		log = logger.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Authorization", "Bearer "+cfg.APIKey).
		SetHeader("Content-Type", "application/json")

	return &RendererClient{
		http:    httpClient,
		retrier: retry.New(),
		log:     log.With(logger.Component("renderer_client")),
	}
}

type renderRequest struct {
	Number        string  `json:"number"`
	StudentName   string  `json:"student_name"`
	ProgramTitle  string  `json:"program_title"`
	CompletedDate string  `json:"completed_date"`
	FinalScore    float64 `json:"final_score"`
	IssuedAt      string  `json:"issued_at"`
	VerifyRef     string  `json:"verify_ref"`
}

type renderResponse struct {
	DocumentURL string `json:"document_url"`
}

// Render submits the certificate for rendering and returns the document URL.
func (c *RendererClient) Render(ctx context.Context, cert *certificate.Certificate) (string, error) {
	req := renderRequest{
		Number:        cert.Number,
		StudentName:   cert.Snapshot.StudentName,
		ProgramTitle:  cert.Snapshot.ProgramTitle,
		CompletedDate: cert.Snapshot.CompletedDate.Format("2006-01-02"),
		FinalScore:    cert.Snapshot.FinalScore,
		IssuedAt:      cert.IssuedAt.Format(time.RFC3339),
		VerifyRef:     cert.VerificationHash,
	}

	var out renderResponse
	err := c.retrier.Do(ctx, func(ctx context.Context) error {
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(req).
			SetResult(&out).
			Post("/render/certificate")
		if err != nil {
			return retry.Retryable(err)
		}
		if resp.StatusCode() >= 500 {
			return retry.Retryable(fmt.Errorf("renderer: status %d", resp.StatusCode()))
		}
		if resp.StatusCode() >= 400 {
			return retry.Permanent(shared.WrapError("certificate", "render", shared.ErrExternalService,
				fmt.Sprintf("renderer rejected request with status %d", resp.StatusCode()), nil))
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if out.DocumentURL == "" {
		return "", shared.WrapError("certificate", "render", shared.ErrExternalService,
			"renderer returned empty document URL", nil)
	}

	c.log.Info("certificate rendered", logger.CertificateNum(cert.Number))
	return out.DocumentURL, nil
}
