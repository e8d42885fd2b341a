package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPinger struct {
	err error
}

func (p stubPinger) Ping(context.Context) error { return p.err }

func doHealth(t *testing.T, h *HealthHandler) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.HealthCheck(rec, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestHealthCheckAllDependenciesUp(t *testing.T) {
	h := NewHealthHandler("1.2.3", map[string]Pinger{
		"postgres": stubPinger{},
		"redis":    stubPinger{},
	})

	rec, body := doHealth(t, h)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "1.2.3", body["version"])

	checks := body["checks"].(map[string]any)
	assert.Equal(t, "ok", checks["postgres"])
	assert.Equal(t, "ok", checks["redis"])
}

func TestHealthCheckDegradedDependency(t *testing.T) {
	h := NewHealthHandler("dev", map[string]Pinger{
		"postgres": stubPinger{},
		"redis":    stubPinger{err: errors.New("connection refused")},
	})

	rec, body := doHealth(t, h)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", body["status"])

	checks := body["checks"].(map[string]any)
	assert.Equal(t, "ok", checks["postgres"])
	assert.Equal(t, "unreachable", checks["redis"])
}

func TestHealthCheckSkipsNilDependencies(t *testing.T) {
	h := NewHealthHandler("dev", map[string]Pinger{
		"postgres": stubPinger{},
		"s3":       nil,
	})

	rec, body := doHealth(t, h)
	assert.Equal(t, http.StatusOK, rec.Code)

	checks := body["checks"].(map[string]any)
	assert.NotContains(t, checks, "s3")
}
