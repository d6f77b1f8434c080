package leech

import (
	"context"
	"io"
	"time"
)

// State is a step of the leech state machine.
type State string

const (
	StateIdle        State = "idle"
	StateConnecting  State = "connecting"
	StateDownloading State = "downloading"
	StateUploading   State = "uploading"
	StateCompleted   State = "completed"
	StateCancelled   State = "cancelled"
	StateFailed      State = "failed"
)

// Terminal reports whether no further transition can follow s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateFailed
}

// Progress is a snapshot of one transfer. Total is zero when unknown.
type Progress struct {
	State         State
	Name          string
	StartedAt     time.Time
	LastEmittedAt time.Time
	UpdatedAt     time.Time
	Transferred   int64
	Total         int64
}

// Percent returns the completed fraction in [0, 100] when the total is known.
func (p Progress) Percent() (float64, bool) {
	if p.Total <= 0 {
		return 0, false
	}
	pct := float64(p.Transferred) * 100 / float64(p.Total)
	if pct > 100 {
		pct = 100
	}
	return pct, true
}

// Elapsed returns the time since the transfer started.
func (p Progress) Elapsed() time.Duration {
	if p.StartedAt.IsZero() || p.UpdatedAt.Before(p.StartedAt) {
		return 0
	}
	return p.UpdatedAt.Sub(p.StartedAt)
}

// Speed returns the average throughput in bytes per second since the start.
func (p Progress) Speed() float64 {
	elapsed := p.Elapsed().Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(p.Transferred) / elapsed
}

// Reporter receives progress snapshots. Errors are logged and otherwise
// ignored; a failing reporter never stops a transfer.
type Reporter interface {
	Report(ctx context.Context, p Progress) error
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(ctx context.Context, p Progress) error

func (f ReporterFunc) Report(ctx context.Context, p Progress) error {
	return f(ctx, p)
}

// Throttle lets an event through only when interval has passed since the
// previous one it let through.
type Throttle struct {
	interval time.Duration
	last     time.Time
}

// NewThrottle creates a throttle whose previous emission is at start.
func NewThrottle(interval time.Duration, start time.Time) *Throttle {
	return &Throttle{interval: interval, last: start}
}

// Allow reports whether an event at now may be emitted, and records it if so.
func (t *Throttle) Allow(now time.Time) bool {
	if now.Sub(t.last) < t.interval {
		return false
	}
	t.last = now
	return true
}

// Last returns the time of the previous emission.
func (t *Throttle) Last() time.Time {
	return t.last
}

// meter sits between the uploader and the cancellable body. It counts bytes
// as the uploader pulls them, enforces the size ceiling for bodies of unknown
// length and emits throttled progress at every chunk boundary.
type meter struct {
	r        io.Reader
	limit    int64
	progress Progress
	throttle *Throttle
	now      func() time.Time
	emit     func(Progress)
	sizeErr  *SizeError
}

func (m *meter) Read(p []byte) (int, error) {
	n, err := m.r.Read(p)
	if n > 0 {
		m.progress.Transferred += int64(n)
		if m.limit > 0 && m.progress.Transferred > m.limit {
			m.sizeErr = &SizeError{Size: m.progress.Transferred, Limit: m.limit}
			return 0, m.sizeErr
		}
		now := m.now()
		if m.throttle.Allow(now) && m.emit != nil {
			m.progress.UpdatedAt = now
			m.progress.LastEmittedAt = now
			m.emit(m.progress)
		}
	}
	return n, err
}
