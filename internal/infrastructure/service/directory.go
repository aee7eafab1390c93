// Package service implements outbound collaborator adapters: the student
// and program directory, email, SMS, in-app notifications and the
// certificate document renderer.
package service

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/learnflow/learnflow-progression-core/internal/domain/shared"
	"github.com/learnflow/learnflow-progression-core/pkg/logger"
	"github.com/learnflow/learnflow-progression-core/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// DIRECTORY CLIENT
// The engine stores ids only. Display names, titles and contact details
// live in the platform's directory service and are fetched on demand.
// ══════════════════════════════════════════════════════════════════════════════

// Contact holds a student's delivery addresses.
type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// DirectoryConfig holds directory client configuration.
type DirectoryConfig struct {
	// BaseURL is the directory service root.
	BaseURL string

	// APIKey authenticates service-to-service calls.
	APIKey string

	// Timeout is the per-request timeout.
	Timeout time.Duration
}

// DirectoryClient implements command.Directory and resolves contacts for
// the delivery adapters.
type DirectoryClient struct {
	http    *resty.Client
	retrier *retry.Retrier
	log     *logger.Logger
}

// NewDirectoryClient creates a new DirectoryClient.
func NewDirectoryClient(cfg DirectoryConfig, log *logger.Logger) *DirectoryClient {
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

	return &DirectoryClient{
		http:    httpClient,
		retrier: retry.New(),
		log:     log.With(logger.Component("directory_client")),
	}
}

type studentProfile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type programProfile struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// StudentName returns the display name for a student id.
func (c *DirectoryClient) StudentName(ctx context.Context, studentID string) (string, error) {
	contact, err := c.StudentContact(ctx, studentID)
	if err != nil {
		return "", err
	}
	return contact.Name, nil
}

// StudentContact returns the delivery addresses for a student id.
func (c *DirectoryClient) StudentContact(ctx context.Context, studentID string) (Contact, error) {
	var out studentProfile
	err := c.retrier.Do(ctx, func(ctx context.Context) error {
		resp, err := c.http.R().
			SetContext(ctx).
			SetResult(&out).
			Get("/students/" + studentID)
		if err != nil {
			return retry.Retryable(err)
		}
		return directoryStatusError(resp)
	})
	if err != nil {
		return Contact{}, err
	}
	return Contact{Name: out.Name, Email: out.Email, Phone: out.Phone}, nil
}

// ProgramTitle returns the title for a program id.
func (c *DirectoryClient) ProgramTitle(ctx context.Context, programID string) (string, error) {
	var out programProfile
	err := c.retrier.Do(ctx, func(ctx context.Context) error {
		resp, err := c.http.R().
			SetContext(ctx).
			SetResult(&out).
			Get("/programs/" + programID)
		if err != nil {
			return retry.Retryable(err)
		}
		return directoryStatusError(resp)
	})
	if err != nil {
		return "", err
	}
	return out.Title, nil
}

func directoryStatusError(resp *resty.Response) error {
	code := resp.StatusCode()
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return retry.Permanent(shared.ErrNotFound)
	case code >= 500 || code == http.StatusTooManyRequests:
		return retry.Retryable(fmt.Errorf("directory returned status %d", code))
	default:
		return retry.Permanent(fmt.Errorf("directory returned status %d", code))
	}
}
