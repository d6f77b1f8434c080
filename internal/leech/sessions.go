package leech

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	tokenRunning int32 = iota
	tokenCancelRequested
)

// Token is a one-way cancellation flag shared between a running transfer and
// whoever may ask it to stop.
type Token struct {
	state atomic.Int32
	once  sync.Once
	done  chan struct{}
}

// NewToken returns a token in the running state.
func NewToken() *Token {
	return &Token{done: make(chan struct{})}
}

// Cancel requests cancellation. It reports whether this call made the
// transition; later calls are no-ops.
func (t *Token) Cancel() bool {
	if !t.state.CompareAndSwap(tokenRunning, tokenCancelRequested) {
		return false
	}
	t.once.Do(func() { close(t.done) })
	return true
}

// Cancelled reports whether cancellation was requested.
func (t *Token) Cancelled() bool {
	return t.state.Load() == tokenCancelRequested
}

// Done is closed once cancellation is requested.
func (t *Token) Done() <-chan struct{} {
	return t.done
}

// Session is one reserved leech slot.
type Session struct {
	Key       string
	StartedAt time.Time
	token     *Token
}

// Token returns the session's cancellation flag.
func (s *Session) Token() *Token {
	return s.token
}

// Sessions allows at most one active leech per session key.
type Sessions struct {
	now    func() time.Time
	mu     sync.Mutex
	active map[string]*Session
}

// NewSessions creates an empty session table.
func NewSessions() *Sessions {
	return &Sessions{
		now:    time.Now,
		active: make(map[string]*Session),
	}
}

// Reserve claims key. It fails with ErrBusy, without side effects, when key
// is already held.
func (s *Sessions) Reserve(key string) (*Session, error) {
	key = strings.TrimSpace(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, held := s.active[key]; held {
		return nil, ErrBusy
	}
	sess := &Session{Key: key, StartedAt: s.now(), token: NewToken()}
	s.active[key] = sess
	return sess, nil
}

// Cancel raises the flag of the session held under key and reports whether
// such a session exists. A signal for a released key is a no-op.
func (s *Sessions) Cancel(key string) bool {
	key = strings.TrimSpace(key)
	s.mu.Lock()
	sess, ok := s.active[key]
	s.mu.Unlock()
	if !ok {
		return false
	}
	sess.token.Cancel()
	return true
}

// Release frees sess's key. It only removes sess itself, never a newer
// session that took the key afterwards.
func (s *Sessions) Release(sess *Session) {
	if sess == nil {
		return
	}
	s.mu.Lock()
	if current, ok := s.active[sess.Key]; ok && current == sess {
		delete(s.active, sess.Key)
	}
	s.mu.Unlock()
}

// Active reports whether key currently holds a session.
func (s *Sessions) Active(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[strings.TrimSpace(key)]
	return ok
}

// Len returns the number of held sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}
