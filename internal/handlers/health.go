package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/memohai/tglink/internal/healthcheck"
)

type HealthHandler struct {
	logger   *slog.Logger
	checkers []healthcheck.Checker
}

type HealthResponse struct {
	Status string                    `json:"status"`
	Checks []healthcheck.CheckResult `json:"checks"`
}

func NewHealthHandler(log *slog.Logger, checkers ...healthcheck.Checker) *HealthHandler {
	return &HealthHandler{
		logger:   log.With(slog.String("handler", "health")),
		checkers: checkers,
	}
}

func (h *HealthHandler) Register(e *echo.Echo) {
	e.GET("/health", h.Health)
	e.HEAD("/health", h.HealthHead)
}

// Health returns every check; the status code is 503 when any check errors.
func (h *HealthHandler) Health(c echo.Context) error {
	resp := h.collect(c)
	return c.JSON(statusCode(resp.Status), resp)
}

func (h *HealthHandler) HealthHead(c echo.Context) error {
	return c.NoContent(statusCode(h.collect(c).Status))
}

func (h *HealthHandler) collect(c echo.Context) HealthResponse {
	checks := healthcheck.Collect(c.Request().Context(), h.checkers...)
	overall := healthcheck.Overall(checks)
	if overall == healthcheck.StatusError {
		h.logger.Warn("health check failing", slog.Any("checks", checks))
	}
	return HealthResponse{Status: overall, Checks: checks}
}

func statusCode(overall string) int {
	if overall == healthcheck.StatusError {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}
