package leech

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReserveRejectsSecondSession(t *testing.T) {
	t.Parallel()

	s := NewSessions()
	first, err := s.Reserve("chat-1")
	require.NoError(t, err)

	second, err := s.Reserve("chat-1")
	assert.ErrorIs(t, err, ErrBusy)
	assert.Nil(t, second)
	assert.Equal(t, 1, s.Len())

	other, err := s.Reserve("chat-2")
	require.NoError(t, err)
	assert.NotSame(t, first, other)

	s.Release(first)
	assert.False(t, s.Active("chat-1"))
	_, err = s.Reserve("chat-1")
	assert.NoError(t, err)
}

func TestConcurrentReserveOnlyOneWins(t *testing.T) {
	t.Parallel()

	s := NewSessions()
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Reserve("chat"); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, 1, s.Len())
}

func TestCancelSignalsOnlyActiveSession(t *testing.T) {
	t.Parallel()

	s := NewSessions()
	assert.False(t, s.Cancel("nobody"))

	sess, err := s.Reserve("chat")
	require.NoError(t, err)
	assert.False(t, sess.Token().Cancelled())

	assert.True(t, s.Cancel("chat"))
	assert.True(t, sess.Token().Cancelled())
	assert.True(t, s.Cancel("chat"), "repeat signal still finds the session")

	select {
	case <-sess.Token().Done():
	default:
		t.Fatal("done channel should be closed after cancel")
	}

	s.Release(sess)
	assert.False(t, s.Cancel("chat"), "signal after release is a no-op")
}

func TestReleaseKeepsNewerSession(t *testing.T) {
	t.Parallel()

	s := NewSessions()
	old, err := s.Reserve("chat")
	require.NoError(t, err)
	s.Release(old)
	fresh, err := s.Reserve("chat")
	require.NoError(t, err)

	s.Release(old)
	assert.True(t, s.Active("chat"))
	s.Release(fresh)
	assert.False(t, s.Active("chat"))
	s.Release(nil)
}

func TestTokenCancelTransitionsOnce(t *testing.T) {
	t.Parallel()

	tok := NewToken()
	assert.True(t, tok.Cancel())
	assert.False(t, tok.Cancel())
	assert.True(t, tok.Cancelled())
}

func TestCancelRacingRelease(t *testing.T) {
	t.Parallel()

	s := NewSessions()
	for i := 0; i < 200; i++ {
		sess, err := s.Reserve("chat")
		require.NoError(t, err)
		var wg sync.WaitGroup
		wg.Add(2)
		go func() { defer wg.Done(); s.Cancel("chat") }()
		go func() { defer wg.Done(); s.Release(sess) }()
		wg.Wait()
		require.False(t, s.Active("chat"))
	}
}
