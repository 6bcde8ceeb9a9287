package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	custommw "github.com/promptrecall/licensing/internal/middleware"
	"github.com/promptrecall/licensing/internal/services"
)

// MockLicenseService implements services.LicenseService for testing
type MockLicenseService struct {
	mock.Mock
}

func (m *MockLicenseService) Lookup(ctx context.Context, email string) (*services.LookupResponse, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.LookupResponse), args.Error(1)
}

func verifyRouter(service services.LicenseService) chi.Router {
	handler := NewLicenseHandler(service, slog.Default())
	r := chi.NewRouter()
	r.Route("/verify", func(r chi.Router) {
		r.Use(custommw.CORS(custommw.CORSConfig{}))
		r.Mount("/", handler.Routes())
	})
	return r
}

func decodeLookup(t *testing.T, w *httptest.ResponseRecorder) services.LookupResponse {
	t.Helper()
	var resp services.LookupResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestVerifyMissingEmail(t *testing.T) {
	service := new(MockLicenseService)
	router := verifyRouter(service)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/verify", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeLookup(t, w)
	assert.False(t, resp.Valid)
	assert.Equal(t, "Email query parameter is required.", resp.Message)
	service.AssertNotCalled(t, "Lookup")
}

func TestVerifyLicenseFound(t *testing.T) {
	service := new(MockLicenseService)
	service.On("Lookup", mock.Anything, "a@b.com").Return(&services.LookupResponse{
		Valid:    true,
		Message:  "License valid.",
		Key:      "PR-1-abc",
		PlanType: "one-time",
	}, nil)

	router := verifyRouter(service)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/verify?email=a@b.com", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeLookup(t, w)
	assert.True(t, resp.Valid)
	assert.Equal(t, "PR-1-abc", resp.Key)
	assert.Equal(t, "one-time", resp.PlanType)
	service.AssertExpectations(t)
}

func TestVerifyLicenseNotFound(t *testing.T) {
	service := new(MockLicenseService)
	service.On("Lookup", mock.Anything, "missing@b.com").Return(&services.LookupResponse{
		Valid:   false,
		Message: "License not found.",
	}, nil)

	router := verifyRouter(service)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/verify?email=missing@b.com", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeLookup(t, w)
	assert.False(t, resp.Valid)
	assert.Equal(t, "License not found.", resp.Message)
}

func TestVerifyStoreFailure(t *testing.T) {
	service := new(MockLicenseService)
	service.On("Lookup", mock.Anything, "a@b.com").Return(nil, errors.New("store down"))

	router := verifyRouter(service)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/verify?email=a@b.com", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decodeLookup(t, w)
	assert.False(t, resp.Valid)
	assert.Equal(t, "Internal server error.", resp.Message)
}

func TestVerifyMethodNotAllowed(t *testing.T) {
	service := new(MockLicenseService)
	router := verifyRouter(service)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/verify", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	service.AssertNotCalled(t, "Lookup")
}

func TestVerifyPreflight(t *testing.T) {
	service := new(MockLicenseService)
	router := verifyRouter(service)

	req := httptest.NewRequest(http.MethodOptions, "/verify", nil)
	req.Header.Set("Origin", "chrome-extension://abcdef")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET", w.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type", w.Header().Get("Access-Control-Allow-Headers"))
	service.AssertNotCalled(t, "Lookup")
}

func TestVerifySetsCORSHeadersOnGet(t *testing.T) {
	service := new(MockLicenseService)
	service.On("Lookup", mock.Anything, "a@b.com").Return(&services.LookupResponse{Valid: false, Message: "License not found."}, nil)

	router := verifyRouter(service)
	req := httptest.NewRequest(http.MethodGet, "/verify?email=a@b.com", nil)
	req.Header.Set("Origin", "chrome-extension://abcdef")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
