package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/learnflow/learnflow-progression-core/pkg/logger"
	"github.com/learnflow/learnflow-progression-core/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// SMS SENDER
// Thin client for the platform's SMS provider HTTP API.
// ══════════════════════════════════════════════════════════════════════════════

// SMSConfig holds SMS provider configuration.
type SMSConfig struct {
	// BaseURL is the SMS provider API root.
	BaseURL string

	// APIKey authenticates requests.
	APIKey string

	// SenderID is the registered sender identifier.
	SenderID string

	// Timeout is the per-request timeout.
	Timeout time.Duration
}

// SMSSender implements eventhandler.SMSSender.
// Phone numbers are resolved through the directory.
type SMSSender struct {
	http      *resty.Client
	senderID  string
	directory *DirectoryClient
	retrier   *retry.Retrier
	log       *logger.Logger
}

// NewSMSSender creates a new SMSSender.
func NewSMSSender(cfg SMSConfig, directory *DirectoryClient, log *logger.Logger) *SMSSender {
	if log == nil {
		log = logger.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Authorization", "Bearer "+cfg.APIKey)

	return &SMSSender{
		http:      httpClient,
		senderID:  cfg.SenderID,
		directory: directory,
		retrier:   retry.New(),
		log:       log.With(logger.Component("sms_sender")),
	}
}

type smsRequest struct {
	Sender  string `json:"sender"`
	To      string `json:"to"`
	Message string `json:"message"`
}

// Send delivers a short text message to the student.
func (s *SMSSender) Send(ctx context.Context, studentID, message string) error {
	contact, err := s.directory.StudentContact(ctx, studentID)
	if err != nil {
		return fmt.Errorf("sms: resolve recipient: %w", err)
	}
	if contact.Phone == "" {
		s.log.Debug("student has no phone number", logger.StudentID(studentID))
		return nil
	}

	err = s.retrier.Do(ctx, func(ctx context.Context) error {
		resp, err := s.http.R().
			SetContext(ctx).
			SetBody(smsRequest{Sender: s.senderID, To: contact.Phone, Message: message}).
			Post("/messages")
		if err != nil {
			return retry.Retryable(err)
		}
		if resp.StatusCode() >= 500 {
			return retry.Retryable(fmt.Errorf("sms provider returned status %d", resp.StatusCode()))
		}
		if resp.StatusCode() >= 400 {
			return retry.Permanent(fmt.Errorf("sms provider returned status %d", resp.StatusCode()))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("sms: send: %w", err)
	}

	s.log.Debug("sms sent", logger.StudentID(studentID))
	return nil
}
