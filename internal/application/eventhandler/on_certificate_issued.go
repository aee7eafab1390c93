package eventhandler

import (
	"context"

	"github.com/learnflow/learnflow-progression-core/internal/domain/certificate"
	"github.com/learnflow/learnflow-progression-core/internal/domain/shared"
	"github.com/learnflow/learnflow-progression-core/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON CERTIFICATE ISSUED HANDLER
// Renders the certificate document and stores its URL back on the record,
// then congratulates the student. Rendering is best-effort: the issued
// certificate is already verifiable without a document.
// ═══════════════════════════════════════════════════════════════════════════

// OnCertificateIssuedHandler reacts to issued certificates.
type OnCertificateIssuedHandler struct {
	certificates certificate.Repository
	renderer     Renderer
	notifier     Notifier
	email        EmailSender
	log          *logger.Logger
}

// NewOnCertificateIssuedHandler creates the handler.
func NewOnCertificateIssuedHandler(
	certificates certificate.Repository,
	renderer Renderer,
	notifier Notifier,
	email EmailSender,
	log *logger.Logger,
) *OnCertificateIssuedHandler {
	if log == nil {
		log = logger.Default()
	}
	return &OnCertificateIssuedHandler{
		certificates: certificates,
		renderer:     renderer,
		notifier:     notifier,
		email:        email,
		log:          log.With(logger.Component("on_certificate_issued")),
	}
}

// EventTypes returns the event types this handler subscribes to.
func (h *OnCertificateIssuedHandler) EventTypes() []shared.EventType {
	return []shared.EventType{shared.EventCertificateIssued}
}

// Handle implements shared.EventHandler.
func (h *OnCertificateIssuedHandler) Handle(event shared.Event) error {
	ctx := context.Background()

	cert, err := h.certificates.GetByID(ctx, event.AggregateID())
	if err != nil {
		h.log.Warn("certificate lookup failed",
			logger.String("certificate_id", event.AggregateID()), logger.Err(err))
		return nil
	}

	if h.renderer != nil {
		url, err := h.renderer.Render(ctx, cert)
		if err != nil {
			h.log.Warn("certificate rendering failed",
				logger.CertificateNum(cert.Number), logger.Err(err))
		} else {
			cert.DocumentURL = url
			// Targeted write: a full Update here would clobber a
			// revocation committed while the document was rendering.
			if err := h.certificates.UpdateDocumentURL(ctx, cert.ID, url); err != nil {
				h.log.Warn("document url update failed",
					logger.CertificateNum(cert.Number), logger.Err(err))
			}
		}
	}

	title := "Certificate issued"
	body := "Congratulations! Your certificate " + cert.Number + " has been issued."
	if cert.DocumentURL != "" {
		body += "\n\nDownload: " + cert.DocumentURL
	}

	if h.notifier != nil {
		if err := h.notifier.Notify(ctx, cert.StudentID, title, body); err != nil {
			h.log.Warn("notification delivery failed",
				logger.StudentID(cert.StudentID), logger.Err(err))
		}
	}
	if h.email != nil {
		if err := h.email.Send(ctx, cert.StudentID, title, body); err != nil {
			h.log.Warn("email delivery failed",
				logger.StudentID(cert.StudentID), logger.Err(err))
		}
	}
	return nil
}
