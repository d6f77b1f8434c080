// Package links maps short-lived download codes to files held by the
// messaging platform.
package links

import (
	"errors"
	"time"
)

var (
	// ErrNotFound indicates the code is unknown (never issued, reaped or deleted).
	ErrNotFound = errors.New("link not found")
	// ErrExpired indicates the code was issued but its lifetime has passed.
	ErrExpired = errors.New("link expired")
	// ErrInvalid indicates a signed code failed verification.
	ErrInvalid = errors.New("link invalid")
)

// Ref is a borrowed reference to a file owned by the messaging platform.
// Nothing in this package reads or mutates the file itself.
type Ref struct {
	FileID   string `json:"file_id"`
	UniqueID string `json:"unique_id,omitempty"`
	Name     string `json:"name,omitempty"`
	Mime     string `json:"mime,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// Entry is one live code.
type Entry struct {
	Code      string
	Ref       Ref
	CreatedAt time.Time
}

// Expired reports whether the entry's lifetime has passed at now.
// The boundary instant created_at+ttl already counts as expired.
func (e Entry) Expired(now time.Time, ttl time.Duration) bool {
	return !now.Before(e.CreatedAt.Add(ttl))
}

// Issuer hands out new codes for a file reference.
type Issuer interface {
	Issue(ref Ref) (string, error)
}

// Source resolves codes. Delete is best effort; stateless sources ignore it.
type Source interface {
	Lookup(code string) (Entry, error)
	Delete(code string)
}
