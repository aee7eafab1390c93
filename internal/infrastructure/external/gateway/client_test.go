package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnflow/learnflow-progression-core/internal/domain/payment"
	"github.com/learnflow/learnflow-progression-core/internal/domain/shared"
)

func newTestClient(baseURL string) *Client {
	return NewClient(Config{
		BaseURL:    baseURL,
		KeyID:      "key_id",
		KeySecret:  "key_secret",
		Timeout:    2 * time.Second,
		MaxRetries: 3,
	}, nil)
}

func TestClient_CreateOrder(t *testing.T) {
	var gotAuth string
	var gotBody createOrderRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/orders", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(orderResponse{
			ID:       "order_ABC123",
			Amount:   gotBody.Amount,
			Currency: gotBody.Currency,
			Receipt:  gotBody.Receipt,
			Status:   "created",
		})
	}))
	defer srv.Close()

	order, err := newTestClient(srv.URL).CreateOrder(context.Background(), 49900, "INR", "enr1")

	require.NoError(t, err)
	assert.Equal(t, "order_ABC123", order.OrderID)
	assert.Equal(t, int64(49900), order.Amount)
	assert.Equal(t, "INR", order.Currency)
	assert.Equal(t, createOrderRequest{Amount: 49900, Currency: "INR", Receipt: "enr1"}, gotBody)
	assert.NotEmpty(t, gotAuth, "requests carry basic auth")
}

func TestClient_CreateOrderRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(orderResponse{ID: "order_RETRY", Amount: 100, Currency: "INR"})
	}))
	defer srv.Close()

	order, err := newTestClient(srv.URL).CreateOrder(context.Background(), 100, "INR", "enr1")

	require.NoError(t, err)
	assert.Equal(t, "order_RETRY", order.OrderID)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_CreateOrderDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		var body errorResponse
		body.Error.Code = "BAD_REQUEST"
		body.Error.Description = "amount must be positive"
		_ = json.NewEncoder(w).Encode(body)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).CreateOrder(context.Background(), -1, "INR", "enr1")

	require.ErrorIs(t, err, shared.ErrExternalService)
	assert.Contains(t, err.Error(), "amount must be positive")
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_FetchPayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/payments/pay_XYZ", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(paymentResponse{
			ID:       "pay_XYZ",
			OrderID:  "order_ABC123",
			Status:   "captured",
			Method:   "upi",
			Amount:   49900,
			Currency: "INR",
		})
	}))
	defer srv.Close()

	p, err := newTestClient(srv.URL).FetchPayment(context.Background(), "pay_XYZ")

	require.NoError(t, err)
	assert.Equal(t, "pay_XYZ", p.PaymentID)
	assert.Equal(t, "order_ABC123", p.OrderID)
	assert.Equal(t, payment.GatewayPaymentCaptured, p.State)
	assert.True(t, p.State.IsCaptured())
	assert.Equal(t, "upi", p.Method)
}

func TestClient_FetchPaymentNotFound(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).FetchPayment(context.Background(), "pay_ghost")

	require.ErrorIs(t, err, shared.ErrPaymentNotFound)
	assert.Equal(t, int32(1), calls.Load(), "404 is permanent")
}
