// Package leech pulls arbitrary HTTP resources and relays them into the
// messaging platform without buffering whole files.
package leech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultProgressInterval is the minimum gap between progress reports.
	DefaultProgressInterval = 5 * time.Second
	// DefaultUserAgent is sent on upstream requests.
	DefaultUserAgent = "tglink/1.0"
)

// Upload is one object to create on the platform.
type Upload struct {
	// Destination is the platform-specific target, e.g. a chat id.
	Destination string
	Name        string
	// Size is zero when unknown.
	Size   int64
	Reader io.Reader
}

// Uploader streams an object into the messaging platform. Implementations
// must stop and return the reader's error when a read fails.
type Uploader interface {
	Upload(ctx context.Context, up Upload) error
}

// Request starts one leech.
type Request struct {
	SessionKey  string
	URL         string
	Destination string
	Reporter    Reporter
}

// Result describes how a leech ended.
type Result struct {
	ID          string
	State       State
	Name        string
	Size        int64
	Transferred int64
	Elapsed     time.Duration
}

// Options tunes a Relay.
type Options struct {
	// MaxSize is the platform's single-object ceiling; zero disables the guard.
	MaxSize          int64
	ProgressInterval time.Duration
	UserAgent        string
	Clock            func() time.Time
}

// Relay drives HTTP GET -> platform upload transfers.
type Relay struct {
	logger   *slog.Logger
	client   *http.Client
	sessions *Sessions
	uploader Uploader
	opts     Options
}

// NewHTTPClient returns a client without an overall timeout: large files take
// as long as they take. headerTimeout bounds only the wait for the response
// headers and is disabled when zero.
func NewHTTPClient(headerTimeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = headerTimeout
	return &http.Client{Transport: transport}
}

// NewRelay creates a Relay. A nil client uses NewHTTPClient(0).
func NewRelay(log *slog.Logger, client *http.Client, sessions *Sessions, uploader Uploader, opts Options) *Relay {
	if log == nil {
		log = slog.Default()
	}
	if client == nil {
		client = NewHTTPClient(0)
	}
	if sessions == nil {
		sessions = NewSessions()
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = DefaultProgressInterval
	}
	if strings.TrimSpace(opts.UserAgent) == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Relay{
		logger:   log.With(slog.String("service", "leech")),
		client:   client,
		sessions: sessions,
		uploader: uploader,
		opts:     opts,
	}
}

// Sessions returns the relay's session table.
func (r *Relay) Sessions() *Sessions {
	return r.sessions
}

// Cancel raises the cancel flag for sessionKey and reports whether a leech
// was running under it.
func (r *Relay) Cancel(sessionKey string) bool {
	return r.sessions.Cancel(sessionKey)
}

// Leech fetches req.URL and uploads the body to req.Destination.
//
// The returned error is nil on completion, ErrBusy when the session key is
// taken (Result.State is StateIdle), ErrCancelled after a cancel request, and
// otherwise an *UpstreamError, a *SizeError or an upload error. The session
// is released on every path.
func (r *Relay) Leech(ctx context.Context, req Request) (Result, error) {
	sess, err := r.sessions.Reserve(req.SessionKey)
	if err != nil {
		return Result{State: StateIdle}, err
	}
	defer r.sessions.Release(sess)

	res := Result{ID: uuid.NewString(), State: StateConnecting}
	log := r.logger.With(slog.String("leech_id", res.ID), slog.String("session", sess.Key))
	start := r.opts.Clock()
	finish := func(state State, err error) (Result, error) {
		res.State = state
		res.Elapsed = r.opts.Clock().Sub(start)
		switch state {
		case StateCompleted:
			log.Info("leech completed", slog.String("name", res.Name), slog.Int64("bytes", res.Transferred), slog.Duration("elapsed", res.Elapsed))
		case StateCancelled:
			log.Info("leech cancelled", slog.String("name", res.Name), slog.Int64("bytes", res.Transferred))
		default:
			log.Warn("leech failed", slog.String("name", res.Name), slog.Int64("bytes", res.Transferred), slog.Any("error", err))
		}
		return res, err
	}

	log.Info("leech connecting", slog.String("url", req.URL))
	resp, err := r.open(ctx, req.URL)
	if err != nil {
		return finish(StateFailed, &UpstreamError{URL: req.URL, Err: err})
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return finish(StateFailed, &UpstreamError{URL: req.URL, StatusCode: resp.StatusCode, Status: resp.Status})
	}

	res.State = StateDownloading
	res.Name = ResolveFilename(resp.Header.Get("Content-Disposition"), req.URL)
	if resp.ContentLength > 0 {
		res.Size = resp.ContentLength
	}
	if r.opts.MaxSize > 0 && res.Size > r.opts.MaxSize {
		return finish(StateFailed, &SizeError{Size: res.Size, Limit: r.opts.MaxSize, Declared: true})
	}

	body := NewCancellableReader(resp.Body, sess.Token())
	progress := Progress{
		State:     StateUploading,
		Name:      res.Name,
		StartedAt: start,
		UpdatedAt: r.opts.Clock(),
		Total:     res.Size,
	}
	report := func(p Progress) {
		if req.Reporter == nil {
			return
		}
		if err := req.Reporter.Report(ctx, p); err != nil {
			log.Debug("progress report failed", slog.Any("error", err))
		}
	}
	res.State = StateUploading
	report(progress)
	m := &meter{
		r:        body,
		limit:    r.opts.MaxSize,
		progress: progress,
		throttle: NewThrottle(r.opts.ProgressInterval, progress.UpdatedAt),
		now:      r.opts.Clock,
		emit:     report,
	}

	err = r.uploader.Upload(ctx, Upload{
		Destination: req.Destination,
		Name:        res.Name,
		Size:        res.Size,
		Reader:      m,
	})
	res.Transferred = body.BytesRead()
	if err != nil {
		if sess.Token().Cancelled() || errors.Is(err, ErrCancelled) {
			return finish(StateCancelled, ErrCancelled)
		}
		if m.sizeErr != nil {
			return finish(StateFailed, m.sizeErr)
		}
		return finish(StateFailed, fmt.Errorf("upload %s: %w", res.Name, err))
	}
	return finish(StateCompleted, nil)
}

func (r *Relay) open(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSpace(rawURL), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", r.opts.UserAgent)
	return r.client.Do(req)
}
