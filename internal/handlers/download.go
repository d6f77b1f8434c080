package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/memohai/tglink/internal/download"
	"github.com/memohai/tglink/internal/links"
)

type DownloadHandler struct {
	logger *slog.Logger
	relay  *download.Relay
}

func NewDownloadHandler(log *slog.Logger, relay *download.Relay) *DownloadHandler {
	return &DownloadHandler{
		logger: log.With(slog.String("handler", "download")),
		relay:  relay,
	}
}

func (h *DownloadHandler) Register(e *echo.Echo) {
	e.GET("/:code", h.Download)
	e.GET("/:code/:filename", h.Download)
}

// Download streams the file behind :code. The optional :filename only sets
// the display name and content type; it is not checked against the file.
func (h *DownloadHandler) Download(c echo.Context) error {
	code := c.Param("code")
	filename := c.Param("filename")
	if unescaped, err := url.PathUnescape(filename); err == nil {
		filename = unescaped
	}

	_, err := h.relay.Serve(c.Request().Context(), c.Response(), code, filename)
	if err == nil {
		return nil
	}
	if c.Response().Committed {
		// Headers are out; the body was truncated and the error already logged.
		return nil
	}
	switch {
	case errors.Is(err, links.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "link not found")
	case errors.Is(err, links.ErrExpired):
		return echo.NewHTTPError(http.StatusGone, "link expired")
	case errors.Is(err, links.ErrInvalid):
		return echo.NewHTTPError(http.StatusBadRequest, "link invalid")
	case errors.Is(err, download.ErrRemoteStore):
		h.logger.Warn("open remote file failed", slog.String("code", code), slog.Any("error", err))
		return echo.NewHTTPError(http.StatusBadGateway, "file unavailable")
	default:
		h.logger.Error("download failed", slog.String("code", code), slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "download failed")
	}
}
