package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memohai/tglink/internal/healthcheck"
)

type staticChecker []healthcheck.CheckResult

func (c staticChecker) ListChecks(context.Context) []healthcheck.CheckResult {
	return c
}

func TestHealth(t *testing.T) {
	t.Parallel()

	e := echo.New()
	NewHealthHandler(slog.Default(),
		staticChecker{{ID: "links.registry", Status: healthcheck.StatusOK}},
		staticChecker{{ID: "channel.polling.telegram", Status: healthcheck.StatusOK}},
	).Register(e)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, healthcheck.StatusOK, resp.Status)
	assert.Len(t, resp.Checks, 2)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthFailing(t *testing.T) {
	t.Parallel()

	e := echo.New()
	NewHealthHandler(slog.Default(), staticChecker{{ID: "channel.polling.telegram", Status: healthcheck.StatusError}}).Register(e)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
