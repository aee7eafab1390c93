package http

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnflow/learnflow-progression-core/internal/application/command"
	"github.com/learnflow/learnflow-progression-core/internal/application/query"
	"github.com/learnflow/learnflow-progression-core/internal/domain/certificate"
	"github.com/learnflow/learnflow-progression-core/internal/domain/shared"
)

const (
	testWebhookSecret = "webhook-secret"
	testAPIKey        = "internal-api-key"
)

// noTxRunner short-circuits the transaction with a fixed error, standing in
// for whatever the command layer would have concluded.
type noTxRunner struct{ err error }

func (r *noTxRunner) WithinTx(context.Context, func(uow command.UnitOfWork) error) error {
	return r.err
}

type onceDedup struct{ seen map[string]bool }

func (d *onceDedup) MarkProcessed(_ context.Context, eventID string) (bool, error) {
	if d.seen == nil {
		d.seen = make(map[string]bool)
	}
	if d.seen[eventID] {
		return false, nil
	}
	d.seen[eventID] = true
	return true, nil
}

func (d *onceDedup) Unmark(_ context.Context, eventID string) error {
	delete(d.seen, eventID)
	return nil
}

type singleCertRepo struct{ cert *certificate.Certificate }

func (r *singleCertRepo) Create(context.Context, *certificate.Certificate) error { return nil }
func (r *singleCertRepo) Update(context.Context, *certificate.Certificate) error { return nil }
func (r *singleCertRepo) UpdateDocumentURL(context.Context, string, string) error {
	return nil
}

func (r *singleCertRepo) GetByID(_ context.Context, id string) (*certificate.Certificate, error) {
	if r.cert != nil && r.cert.ID == id {
		return r.cert, nil
	}
	return nil, shared.ErrCertificateNotFound
}

func (r *singleCertRepo) GetByEnrollment(_ context.Context, enrollmentID string) (*certificate.Certificate, error) {
	if r.cert != nil && r.cert.EnrollmentID == enrollmentID {
		return r.cert, nil
	}
	return nil, shared.ErrCertificateNotFound
}

func (r *singleCertRepo) GetByRef(_ context.Context, ref string) (*certificate.Certificate, error) {
	if r.cert != nil && (r.cert.Number == ref || r.cert.VerificationHash == ref) {
		return r.cert, nil
	}
	return nil, shared.ErrCertificateNotFound
}

type passthroughCache struct{}

func (passthroughCache) Get(context.Context, string) (*certificate.VerificationResult, bool, error) {
	return nil, false, nil
}
func (passthroughCache) Set(context.Context, string, *certificate.VerificationResult) error {
	return nil
}
func (passthroughCache) Invalidate(context.Context, ...string) error { return nil }

func newTestServer(t *testing.T, txErr error) *Server {
	t.Helper()

	now := time.Now().UTC()
	number, err := certificate.NewNumber(now)
	require.NoError(t, err)
	cert := certificate.Issue("enr1", "student1", number, certificate.Snapshot{
		CertificateID: "cert1",
		StudentName:   "Asel Nurlanovna",
		ProgramTitle:  "Backend Engineering",
		CompletedDate: now,
		FinalScore:    8.75,
	}, now)

	cfg := DefaultConfig()
	cfg.WebhookSecret = testWebhookSecret
	cfg.APIKey = testAPIKey
	cfg.RateLimitPerMinute = 0

	return NewServer(cfg, Dependencies{
		VerifyCertificateHandler: query.NewVerifyCertificateHandler(&singleCertRepo{cert: cert}, passthroughCache{}),
		ProcessWebhookHandler:    command.NewProcessWebhookHandler(&noTxRunner{err: txErr}, &onceDedup{}, shared.NopPublisher{}),
	})
}

func signBody(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func webhookBody(t *testing.T, eventID string) []byte {
	t.Helper()
	body, err := json.Marshal(gatewayWebhookBody{
		EventID:   eventID,
		Type:      "payment.captured",
		OrderID:   "order_test",
		PaymentID: "pay_ext_1",
	})
	require.NoError(t, err)
	return body
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var out JSONResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.True(t, out.Success)
}

func TestServer_VerifyRequiresRef(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/verify", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_VerifyUnknownRefIsNegativeNotError(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/verify?ref=CERT-20260101-AAAAAAAA", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Success bool `json:"success"`
		Data    struct {
			IsValid bool `json:"is_valid"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.True(t, out.Success)
	assert.False(t, out.Data.IsValid)
}

func TestServer_WebhookRejectsMissingSignature(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/gateway", bytes.NewReader(webhookBody(t, "evt_1")))

	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServer_WebhookRejectsTamperedBody(t *testing.T) {
	srv := newTestServer(t, nil)
	body := webhookBody(t, "evt_1")
	sig := signBody(body)
	tampered := bytes.Replace(body, []byte("order_test"), []byte("order_evil"), 1)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/gateway", bytes.NewReader(tampered))
	req.Header.Set(DefaultConfig().SignatureHeader, sig)

	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServer_WebhookAcceptsSignedBody(t *testing.T) {
	srv := newTestServer(t, nil)
	body := webhookBody(t, "evt_1")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/gateway", bytes.NewReader(body))
	req.Header.Set(DefaultConfig().SignatureHeader, signBody(body))

	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_WebhookUnknownOrderIsAcknowledged(t *testing.T) {
	// An unknown order must not make the gateway redeliver forever.
	srv := newTestServer(t, shared.ErrPaymentNotFound)
	body := webhookBody(t, "evt_1")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/gateway", bytes.NewReader(body))
	req.Header.Set(DefaultConfig().SignatureHeader, signBody(body))

	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Data struct {
			Applied bool `json:"applied"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.False(t, out.Data.Applied)
}

func TestServer_WebhookProcessingFailureMakesGatewayRetry(t *testing.T) {
	srv := newTestServer(t, shared.ErrServiceUnavailable)
	body := webhookBody(t, "evt_1")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/gateway", bytes.NewReader(body))
	req.Header.Set(DefaultConfig().SignatureHeader, signBody(body))

	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServer_WebhookMalformedJSON(t *testing.T) {
	srv := newTestServer(t, nil)
	body := []byte("{not json")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/gateway", bytes.NewReader(body))
	req.Header.Set(DefaultConfig().SignatureHeader, signBody(body))

	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_InternalAPIRequiresKey(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/internal/v1/enrollments/enr1/tasks", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/internal/v1/enrollments/enr1/tasks", nil)
	req.Header.Set(DefaultConfig().APIKeyHeader, "wrong-key")
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServer_InternalAPIUnavailableWithoutConfiguredKey(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 0
	srv := NewServer(cfg, Dependencies{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/internal/v1/enrollments/enr1/tasks", nil)
	req.Header.Set(cfg.APIKeyHeader, "anything")

	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_RateLimiting(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 3
	srv := NewServer(cfg, Dependencies{})

	var last int
	for i := 0; i < 4; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = "203.0.113.9:1234"
		srv.Handler().ServeHTTP(rec, req)
		last = rec.Code
	}

	assert.Equal(t, http.StatusTooManyRequests, last)
}
