package links

import (
	"encoding/base64"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry is the in-memory code table. Entries are lost on restart.
type Registry struct {
	logger  *slog.Logger
	now     func() time.Time
	newCode func() string

	mu      sync.RWMutex
	entries map[string]Entry
}

// Option customises a Registry.
type Option func(*Registry)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithCodeGenerator replaces the random code source.
func WithCodeGenerator(gen func() string) Option {
	return func(r *Registry) {
		if gen != nil {
			r.newCode = gen
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(log *slog.Logger, opts ...Option) *Registry {
	if log == nil {
		log = slog.Default()
	}
	r := &Registry{
		logger:  log.With(slog.String("service", "links")),
		now:     time.Now,
		newCode: RandomCode,
		entries: make(map[string]Entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RandomCode returns 16 random bytes (a v4 UUID) encoded as unpadded base64url.
func RandomCode() string {
	id := uuid.New()
	return base64.RawURLEncoding.EncodeToString(id[:])
}

// Insert stores ref under a fresh code and returns the code.
func (r *Registry) Insert(ref Ref) string {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	code := r.newCode()
	for {
		if _, taken := r.entries[code]; !taken && code != "" {
			break
		}
		code = r.newCode()
	}
	r.entries[code] = Entry{Code: code, Ref: ref, CreatedAt: now}
	r.logger.Debug("link issued", slog.String("code", code), slog.String("file_id", ref.FileID))
	return code
}

// Issue implements Issuer.
func (r *Registry) Issue(ref Ref) (string, error) {
	return r.Insert(ref), nil
}

// Lookup returns the entry for code or ErrNotFound. It does not check expiry.
func (r *Registry) Lookup(code string) (Entry, error) {
	code = strings.TrimSpace(code)
	r.mu.RLock()
	entry, ok := r.entries[code]
	r.mu.RUnlock()
	if !ok {
		return Entry{}, ErrNotFound
	}
	return entry, nil
}

// Delete removes code. Deleting an absent code is a no-op.
func (r *Registry) Delete(code string) {
	r.mu.Lock()
	delete(r.entries, code)
	r.mu.Unlock()
}

// DeleteExpired removes every entry expired at now and returns how many went.
func (r *Registry) DeleteExpired(now time.Time, ttl time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for code, entry := range r.entries {
		if entry.Expired(now, ttl) {
			delete(r.entries, code)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, expired or not.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Now returns the registry's clock reading.
func (r *Registry) Now() time.Time {
	return r.now()
}
