package channelchecker

import (
	"context"
	"log/slog"
	"time"

	"github.com/memohai/tglink/internal/healthcheck"
)

const checkTypeChannelPolling = "channel.polling"

// PollingObserver reports the state of the update loop.
type PollingObserver interface {
	PollingStatus() (running bool, updatedAt time.Time)
}

// Checker evaluates whether the bot is receiving updates.
type Checker struct {
	logger   *slog.Logger
	observer PollingObserver
}

// NewChecker creates a channel health checker.
func NewChecker(log *slog.Logger, observer PollingObserver) *Checker {
	if log == nil {
		log = slog.Default()
	}
	return &Checker{
		logger:   log.With(slog.String("checker", "healthcheck_channel")),
		observer: observer,
	}
}

// ListChecks reports a single polling check.
func (c *Checker) ListChecks(ctx context.Context) []healthcheck.CheckResult {
	if err := ctx.Err(); err != nil {
		return []healthcheck.CheckResult{}
	}
	item := healthcheck.CheckResult{
		ID:   checkTypeChannelPolling + ".telegram",
		Type: checkTypeChannelPolling,
	}
	if c.observer == nil {
		c.logger.Warn("channel healthcheck dependency is unavailable")
		item.Status = healthcheck.StatusWarn
		item.Summary = "Channel checker service is not available."
		item.Detail = "polling observer is nil"
		return []healthcheck.CheckResult{item}
	}

	running, updatedAt := c.observer.PollingStatus()
	item.Metadata = map[string]any{"running": running}
	if !updatedAt.IsZero() {
		item.Metadata["updated_at"] = updatedAt.UTC().Format(time.RFC3339)
	}
	if running {
		item.Status = healthcheck.StatusOK
		item.Summary = "Telegram updates are being received."
	} else {
		item.Status = healthcheck.StatusError
		item.Summary = "Telegram polling is not running."
	}
	return []healthcheck.CheckResult{item}
}
