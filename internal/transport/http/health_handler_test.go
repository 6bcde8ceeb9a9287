package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptrecall/licensing/internal/license"
)

type downStore struct{}

func (downStore) Get(ctx context.Context, identity string) (*license.Record, error) {
	return nil, errors.New("unavailable")
}

func (downStore) Upsert(ctx context.Context, rec license.Record) (*license.Record, bool, error) {
	return nil, false, errors.New("unavailable")
}

func TestHealthStoreUp(t *testing.T) {
	handler := NewHealthHandler(license.NewMemoryStore(), "v1.0.0", slog.Default())

	w := httptest.NewRecorder()
	handler.Health(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "up", resp.Store)
	assert.Equal(t, "v1.0.0", resp.Version)
}

type recordingStore struct {
	*license.MemoryStore
	lastGet string
}

func (s *recordingStore) Get(ctx context.Context, identity string) (*license.Record, error) {
	s.lastGet = identity
	return s.MemoryStore.Get(ctx, identity)
}

// Firestore rejects document IDs wrapped in double underscores with
// InvalidArgument rather than NotFound, so a probe key like that would
// report a healthy store as down.
func TestHealthProbeIdentityNotReserved(t *testing.T) {
	store := &recordingStore{MemoryStore: license.NewMemoryStore()}
	handler := NewHealthHandler(store, "v1.0.0", slog.Default())

	w := httptest.NewRecorder()
	handler.Health(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.NotEmpty(t, store.lastGet)
	assert.False(t, strings.HasPrefix(store.lastGet, "__"))
	assert.False(t, strings.HasSuffix(store.lastGet, "__"))
}

func TestHealthStoreDown(t *testing.T) {
	handler := NewHealthHandler(downStore{}, "v1.0.0", slog.Default())

	w := httptest.NewRecorder()
	handler.Health(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "down", resp.Store)
}
