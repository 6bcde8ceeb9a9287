package http

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	stripewebhook "github.com/stripe/stripe-go/v82/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/promptrecall/licensing/internal/license"
	"github.com/promptrecall/licensing/internal/webhook"
)

const webhookTestSecret = "whsec_test_secret"

// MockProvisioningService implements ProvisioningService for testing
type MockProvisioningService struct {
	mock.Mock
}

func (m *MockProvisioningService) Provision(ctx context.Context, event webhook.Event) (*license.ProvisionResult, error) {
	args := m.Called(ctx, event)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*license.ProvisionResult), args.Error(1)
}

// fakeVerifier returns a canned event or error without cryptography
type fakeVerifier struct {
	event webhook.Event
	err   error
}

func (f *fakeVerifier) Verify(payload []byte, sigHeader, secret string) (webhook.Event, error) {
	if f.err != nil {
		return webhook.Event{}, f.err
	}
	return f.event, nil
}

func webhookRouter(verifier webhook.Verifier, provisioner ProvisioningService, secret string) chi.Router {
	handler := NewWebhookHandler(verifier, provisioner, secret, 1<<20, slog.Default())
	r := chi.NewRouter()
	r.Mount("/webhook/stripe", handler.Routes())
	return r
}

func postWebhook(router chi.Router, body []byte, sigHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook/stripe", bytes.NewReader(body))
	if sigHeader != "" {
		req.Header.Set("Stripe-Signature", sigHeader)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestWebhookSecretNotConfigured(t *testing.T) {
	provisioner := new(MockProvisioningService)
	router := webhookRouter(&fakeVerifier{}, provisioner, "")

	w := postWebhook(router, []byte(`{}`), "t=1,v1=deadbeef")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Webhook secret not configured.")
	provisioner.AssertNotCalled(t, "Provision")
}

func TestWebhookSignatureFailure(t *testing.T) {
	provisioner := new(MockProvisioningService)
	verifier := &fakeVerifier{err: fmt.Errorf("%w: signature mismatch", webhook.ErrVerification)}
	router := webhookRouter(verifier, provisioner, webhookTestSecret)

	w := postWebhook(router, []byte(`{}`), "t=1,v1=deadbeef")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "signature")
	provisioner.AssertNotCalled(t, "Provision")
}

func TestWebhookUnhandledEventAcknowledged(t *testing.T) {
	provisioner := new(MockProvisioningService)
	provisioner.On("Provision", mock.Anything, mock.Anything).Return(&license.ProvisionResult{
		Outcome:    license.OutcomeSkipped,
		SkipReason: license.SkipUnhandledEventType,
	}, nil)

	verifier := &fakeVerifier{event: webhook.Event{ID: "evt_1", Type: "invoice.paid"}}
	router := webhookRouter(verifier, provisioner, webhookTestSecret)

	w := postWebhook(router, []byte(`{}`), "t=1,v1=deadbeef")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "acknowledged", w.Body.String())
	provisioner.AssertExpectations(t)
}

func TestWebhookMissingEmailAcknowledged(t *testing.T) {
	provisioner := new(MockProvisioningService)
	provisioner.On("Provision", mock.Anything, mock.Anything).Return(&license.ProvisionResult{
		Outcome:    license.OutcomeSkipped,
		SkipReason: license.SkipNoIdentity,
	}, nil)

	verifier := &fakeVerifier{event: webhook.Event{ID: "evt_2", Type: webhook.EventTypeCheckoutCompleted}}
	router := webhookRouter(verifier, provisioner, webhookTestSecret)

	w := postWebhook(router, []byte(`{}`), "t=1,v1=deadbeef")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "acknowledged", w.Body.String())
}

func TestWebhookProvisioned(t *testing.T) {
	provisioner := new(MockProvisioningService)
	provisioner.On("Provision", mock.Anything, mock.Anything).Return(&license.ProvisionResult{
		Outcome:    license.OutcomeProvisioned,
		Identity:   "a@b.com",
		Credential: "PR-1-abc",
		Created:    true,
	}, nil)

	verifier := &fakeVerifier{event: webhook.Event{ID: "evt_3", Type: webhook.EventTypeCheckoutCompleted}}
	router := webhookRouter(verifier, provisioner, webhookTestSecret)

	w := postWebhook(router, []byte(`{}`), "t=1,v1=deadbeef")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Received", w.Body.String())
}

func TestWebhookStoreFailureSignalsRedelivery(t *testing.T) {
	provisioner := new(MockProvisioningService)
	provisioner.On("Provision", mock.Anything, mock.Anything).Return(nil, errors.New("license store write failed: deadline exceeded"))

	verifier := &fakeVerifier{event: webhook.Event{ID: "evt_4", Type: webhook.EventTypeCheckoutCompleted}}
	router := webhookRouter(verifier, provisioner, webhookTestSecret)

	w := postWebhook(router, []byte(`{}`), "t=1,v1=deadbeef")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestWebhookMethodNotAllowed(t *testing.T) {
	provisioner := new(MockProvisioningService)
	router := webhookRouter(&fakeVerifier{}, provisioner, webhookTestSecret)

	req := httptest.NewRequest(http.MethodGet, "/webhook/stripe", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	provisioner.AssertNotCalled(t, "Provision")
}

// End-to-end signature check: a body tampered after signing must be
// rejected by the real verifier before any provisioning happens.
func TestWebhookTamperedBodyRejected(t *testing.T) {
	provisioner := new(MockProvisioningService)
	verifier := webhook.NewStripeVerifier(slog.Default())
	router := webhookRouter(verifier, provisioner, webhookTestSecret)

	original, err := json.Marshal(map[string]interface{}{
		"id":      "evt_sig_1",
		"object":  "event",
		"type":    "checkout.session.completed",
		"created": time.Now().Unix(),
		"data": map[string]interface{}{
			"object": map[string]interface{}{
				"id":   "cs_sig_1",
				"mode": "payment",
				"customer_details": map[string]interface{}{
					"email": "a@b.com",
				},
			},
		},
	})
	require.NoError(t, err)

	at := time.Now()
	sig := stripewebhook.ComputeSignature(at, original, webhookTestSecret)
	header := fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(sig))

	tampered := bytes.Replace(original, []byte("a@b.com"), []byte("evil@b.com"), 1)

	w := postWebhook(router, tampered, header)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	provisioner.AssertNotCalled(t, "Provision")

	// The untampered body with the same header still verifies.
	provisioner.On("Provision", mock.Anything, mock.Anything).Return(&license.ProvisionResult{
		Outcome: license.OutcomeProvisioned, Identity: "a@b.com", Credential: "PR-1-abc", Created: true,
	}, nil)
	w = postWebhook(router, original, header)
	assert.Equal(t, http.StatusOK, w.Code)
}
