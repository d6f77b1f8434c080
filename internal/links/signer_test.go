package links

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignerRoundTrip(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	s, err := NewSigner("secret", time.Hour)
	require.NoError(t, err)
	s.now = clock.Now

	code, err := s.Issue(Ref{FileID: "BQACAgI", Name: "report.pdf", Mime: "application/pdf", Size: 2048})
	require.NoError(t, err)
	assert.Regexp(t, `^[A-Za-z0-9_.-]+$`, code)

	entry, err := s.Lookup(code)
	require.NoError(t, err)
	assert.Equal(t, "BQACAgI", entry.Ref.FileID)
	assert.Equal(t, "report.pdf", entry.Ref.Name)
	assert.Equal(t, "application/pdf", entry.Ref.Mime)
	assert.Equal(t, int64(2048), entry.Ref.Size)
	assert.Equal(t, clock.Now().Unix(), entry.CreatedAt.Unix())
}

func TestSignerExpiry(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	s, err := NewSigner("secret", time.Hour)
	require.NoError(t, err)
	s.now = clock.Now

	code, err := s.Issue(Ref{FileID: "f"})
	require.NoError(t, err)
	clock.Advance(2 * time.Hour)

	_, err = s.Lookup(code)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestSignerRejectsTampering(t *testing.T) {
	t.Parallel()

	s, err := NewSigner("secret", time.Hour)
	require.NoError(t, err)
	other, err := NewSigner("other-secret", time.Hour)
	require.NoError(t, err)

	code, err := other.Issue(Ref{FileID: "f"})
	require.NoError(t, err)
	_, err = s.Lookup(code)
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = s.Lookup("not-a-token")
	assert.ErrorIs(t, err, ErrInvalid)

	good, err := s.Issue(Ref{FileID: "f"})
	require.NoError(t, err)
	parts := strings.Split(good, ".")
	require.Len(t, parts, 3)
	_, err = s.Lookup(parts[0] + "." + parts[1] + ".AAAA")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestNewSignerValidation(t *testing.T) {
	t.Parallel()

	_, err := NewSigner(" ", time.Hour)
	assert.Error(t, err)
	_, err = NewSigner("s", 0)
	assert.Error(t, err)

	s, err := NewSigner("s", time.Hour)
	require.NoError(t, err)
	_, err = s.Issue(Ref{})
	assert.Error(t, err)
}
