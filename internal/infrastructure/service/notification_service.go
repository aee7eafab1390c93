package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/learnflow/learnflow-progression-core/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// IN-APP NOTIFICATION SERVICE
// The platform's notification service owns the in-app inbox; the engine
// only posts entries into it.
// ══════════════════════════════════════════════════════════════════════════════

// NotificationConfig holds notification service configuration.
type NotificationConfig struct {
	// BaseURL is the notification service API root.
	BaseURL string

	// APIKey authenticates service-to-service calls.
	APIKey string

	// Timeout is the per-request timeout.
	Timeout time.Duration
}

// NotificationService implements eventhandler.Notifier.
type NotificationService struct {
	http *resty.Client
	log  *logger.Logger
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(cfg NotificationConfig, log *logger.Logger) *NotificationService {
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

	return &NotificationService{
		http: httpClient,
		log:  log.With(logger.Component("notification_service")),
	}
}

type notificationRequest struct {
	RecipientID string `json:"recipient_id"`
	Title       string `json:"title"`
	Message     string `json:"message"`
	Source      string `json:"source"`
}

// Notify posts an in-app notification for the student.
func (s *NotificationService) Notify(ctx context.Context, studentID, title, message string) error {
	resp, err := s.http.R().
		SetContext(ctx).
		SetBody(notificationRequest{
			RecipientID: studentID,
			Title:       title,
			Message:     message,
			Source:      "progression-engine",
		}).
		Post("/notifications")
	if err != nil {
		return fmt.Errorf("notification: send: %w", err)
	}
	if resp.StatusCode() >= 400 {
		return fmt.Errorf("notification: service returned status %d", resp.StatusCode())
	}

	s.log.Debug("notification posted", logger.StudentID(studentID))
	return nil
}
