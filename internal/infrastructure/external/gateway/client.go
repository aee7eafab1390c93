// Package gateway implements the payment gateway HTTP client.
// Calls go through a retry policy and a circuit breaker: order creation
// and payment fetches are read-idempotent on the gateway side, so
// retrying on transport failures is safe.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/learnflow/learnflow-progression-core/internal/domain/payment"
	"github.com/learnflow/learnflow-progression-core/internal/domain/shared"
	"github.com/learnflow/learnflow-progression-core/pkg/circuitbreaker"
	"github.com/learnflow/learnflow-progression-core/pkg/logger"
	"github.com/learnflow/learnflow-progression-core/pkg/retry"
)

// Config holds gateway client configuration.
type Config struct {
	// BaseURL is the gateway API root, e.g. "https://api.gateway.example/v1".
	BaseURL string

	// KeyID is the API key id (basic auth user).
	KeyID string

	// KeySecret is the API key secret (basic auth password).
	KeySecret string

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// MaxRetries is the retry budget for transient failures.
	MaxRetries int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:    10 * time.Second,
		MaxRetries: 3,
	}
}

// Client implements payment.Gateway over the gateway's REST API.
type Client struct {
	http    *resty.Client
	retrier *retry.Retrier
	breaker *circuitbreaker.CircuitBreaker
	log     *logger.Logger
}

// NewClient creates a new gateway client.
func NewClient(cfg Config, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetBasicAuth(cfg.KeyID, cfg.KeySecret).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:    httpClient,
		retrier: retry.New(retry.WithMaxAttempts(cfg.MaxRetries)),
		breaker: circuitbreaker.New(circuitbreaker.DefaultConfig("payment-gateway")),
		log:     log.With(logger.Component("gateway_client")),
	}
}

// CreateOrder creates a payment order at the gateway.
func (c *Client) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*payment.GatewayOrder, error) {
	var out orderResponse

	err := c.call(ctx, func(ctx context.Context) error {
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(createOrderRequest{Amount: amount, Currency: currency, Receipt: receipt}).
			SetResult(&out).
			SetError(&errorResponse{}).
			Post("/orders")
		if err != nil {
			return retry.Retryable(err)
		}
		return c.statusError(resp)
	})
	if err != nil {
		return nil, err
	}

	c.log.Info("gateway order created",
		logger.OrderID(out.ID), logger.Int64("amount", out.Amount))

	return &payment.GatewayOrder{
		OrderID:  out.ID,
		Amount:   out.Amount,
		Currency: out.Currency,
	}, nil
}

// FetchPayment returns a payment by its gateway id.
func (c *Client) FetchPayment(ctx context.Context, paymentID string) (*payment.GatewayPayment, error) {
	var out paymentResponse

	err := c.call(ctx, func(ctx context.Context) error {
		resp, err := c.http.R().
			SetContext(ctx).
			SetResult(&out).
			SetError(&errorResponse{}).
			Get("/payments/" + paymentID)
		if err != nil {
			return retry.Retryable(err)
		}
		return c.statusError(resp)
	})
	if err != nil {
		return nil, err
	}

	return &payment.GatewayPayment{
		PaymentID: out.ID,
		OrderID:   out.OrderID,
		State:     payment.GatewayPaymentState(out.Status),
		Method:    out.Method,
		Amount:    out.Amount,
	}, nil
}

// call runs an operation through the circuit breaker and retry policy.
func (c *Client) call(ctx context.Context, op func(ctx context.Context) error) error {
	return c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.retrier.Do(ctx, op)
	})
}

// statusError maps an HTTP status to a domain error. 5xx and 429 are
// retryable; other non-2xx statuses are permanent.
func (c *Client) statusError(resp *resty.Response) error {
	code := resp.StatusCode()
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return retry.Permanent(shared.ErrPaymentNotFound)
	case code >= 500 || code == http.StatusTooManyRequests:
		return retry.Retryable(fmt.Errorf("gateway returned status %d: %s", code, gatewayErrorText(resp)))
	default:
		return retry.Permanent(shared.WrapError("payment", "Gateway", shared.ErrExternalService,
			fmt.Sprintf("gateway returned status %d", code),
			fmt.Errorf("%s", gatewayErrorText(resp))))
	}
}

func gatewayErrorText(resp *resty.Response) string {
	if e, ok := resp.Error().(*errorResponse); ok && e.Error.Description != "" {
		return e.Error.Description
	}
	return resp.Status()
}
