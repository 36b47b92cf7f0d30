package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/everest/authsvc/internal/api/handler"
)

var (
	up   = handler.PingFunc(func(context.Context) error { return nil })
	down = handler.PingFunc(func(context.Context) error { return errors.New("connection refused") })
)

func serveHealth(t *testing.T, h *handler.HealthHandler) map[string]interface{} {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	env := parseEnvelope(t, w)
	assert.Nil(t, env["error"])
	assert.NotNil(t, env["meta"])
	return env["data"].(map[string]interface{})
}

func TestHealthHandler_Healthy(t *testing.T) {
	t.Parallel()

	data := serveHealth(t, handler.NewHealthHandler(up, up, "0.1.0"))

	assert.Equal(t, "healthy", data["status"])
	assert.Equal(t, "0.1.0", data["version"])
	assert.Equal(t, true, data["database"].(map[string]interface{})["connected"])
	assert.Equal(t, true, data["cache"].(map[string]interface{})["connected"])
}

func TestHealthHandler_DatabaseDown(t *testing.T) {
	t.Parallel()

	data := serveHealth(t, handler.NewHealthHandler(down, nil, "0.1.0"))

	assert.Equal(t, "degraded", data["status"])
	db := data["database"].(map[string]interface{})
	assert.Equal(t, false, db["connected"])
	assert.Equal(t, "connection refused", db["error"])
	assert.NotContains(t, data, "cache")
}

func TestHealthHandler_CacheDown(t *testing.T) {
	t.Parallel()

	data := serveHealth(t, handler.NewHealthHandler(up, down, "0.1.0"))

	assert.Equal(t, "degraded", data["status"])
	assert.Equal(t, false, data["cache"].(map[string]interface{})["connected"])
}

func TestHealthHandler_NoDatabase(t *testing.T) {
	t.Parallel()

	data := serveHealth(t, handler.NewHealthHandler(nil, nil, "dev"))

	assert.Equal(t, "degraded", data["status"])
	assert.Equal(t, "not configured", data["database"].(map[string]interface{})["error"])
}
