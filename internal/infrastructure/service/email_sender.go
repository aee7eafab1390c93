package service

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/learnflow/learnflow-progression-core/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// EMAIL SENDER (SendGrid)
// ══════════════════════════════════════════════════════════════════════════════

// EmailConfig holds SendGrid configuration.
type EmailConfig struct {
	// APIKey is the SendGrid API key.
	APIKey string

	// FromName is the sender display name.
	FromName string

	// FromAddress is the sender address.
	FromAddress string
}

// EmailSender implements eventhandler.EmailSender over SendGrid.
// Recipient addresses are resolved through the directory.
type EmailSender struct {
	client    *sendgrid.Client
	from      *mail.Email
	directory *DirectoryClient
	log       *logger.Logger
}

// NewEmailSender creates a new EmailSender.
func NewEmailSender(cfg EmailConfig, directory *DirectoryClient, log *logger.Logger) *EmailSender {
	if log == nil {
		log = logger.Default()
	}
	return &EmailSender{
		client:    sendgrid.NewSendClient(cfg.APIKey),
		from:      mail.NewEmail(cfg.FromName, cfg.FromAddress),
		directory: directory,
		log:       log.With(logger.Component("email_sender")),
	}
}

// Send delivers a transactional email to the student.
func (s *EmailSender) Send(ctx context.Context, studentID, subject, body string) error {
	contact, err := s.directory.StudentContact(ctx, studentID)
	if err != nil {
		return fmt.Errorf("email: resolve recipient: %w", err)
	}
	if contact.Email == "" {
		s.log.Debug("student has no email address", logger.StudentID(studentID))
		return nil
	}

	to := mail.NewEmail(contact.Name, contact.Email)
	message := mail.NewSingleEmail(s.from, subject, to, body, body)

	resp, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("email: send: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("email: sendgrid returned status %d", resp.StatusCode)
	}

	s.log.Debug("email sent", logger.StudentID(studentID), logger.String("subject", subject))
	return nil
}
