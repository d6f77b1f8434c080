package links

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Reaper periodically drops expired registry entries.
type Reaper struct {
	logger   *slog.Logger
	registry *Registry
	ttl      time.Duration
	interval time.Duration
}

// NewReaper creates a reaper for registry. interval is rounded down to whole
// seconds by the scheduler, with a one second floor.
func NewReaper(log *slog.Logger, registry *Registry, ttl, interval time.Duration) *Reaper {
	if log == nil {
		log = slog.Default()
	}
	return &Reaper{
		logger:   log.With(slog.String("service", "reaper")),
		registry: registry,
		ttl:      ttl,
		interval: interval,
	}
}

// Sweep runs one pass against the registry clock and returns the number of
// entries removed.
func (r *Reaper) Sweep() int {
	if r.registry == nil {
		return 0
	}
	removed := r.registry.DeleteExpired(r.registry.Now(), r.ttl)
	if removed > 0 {
		r.logger.Info("expired links removed", slog.Int("removed", removed), slog.Int("remaining", r.registry.Len()))
	}
	return removed
}

// Run sweeps on every tick until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) error {
	if r.interval <= 0 {
		return fmt.Errorf("reaper interval must be positive")
	}
	log := cronLogger{log: r.logger}
	c := cron.New(cron.WithChain(cron.Recover(log), cron.SkipIfStillRunning(log)), cron.WithLogger(log))
	c.Schedule(cron.Every(r.interval), cron.FuncJob(func() { r.Sweep() }))
	c.Start()
	r.logger.Info("reaper started", slog.Duration("interval", r.interval), slog.Duration("ttl", r.ttl))
	<-ctx.Done()
	<-c.Stop().Done()
	r.logger.Info("reaper stopped")
	return nil
}

// cronLogger routes robfig/cron logs into slog.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(keysAndValues, slog.Any("error", err))...)
}
