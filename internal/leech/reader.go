package leech

import (
	"io"
	"sync/atomic"
)

// CancellableReader wraps an HTTP response body and fails with ErrCancelled as
// soon as its token is raised. The flag is polled before and after every
// underlying read, so cancellation latency is bounded by one read.
//
// A short read followed by io.EOF is the normal end of the body.
type CancellableReader struct {
	r       io.Reader
	token   *Token
	n       atomic.Int64
	aborted atomic.Bool
}

// NewCancellableReader wraps r. A nil token never cancels.
func NewCancellableReader(r io.Reader, token *Token) *CancellableReader {
	if token == nil {
		token = NewToken()
	}
	return &CancellableReader{r: r, token: token}
}

func (c *CancellableReader) Read(p []byte) (int, error) {
	if c.token.Cancelled() {
		c.aborted.Store(true)
		return 0, ErrCancelled
	}
	n, err := c.r.Read(p)
	if c.token.Cancelled() {
		c.aborted.Store(true)
		return 0, ErrCancelled
	}
	c.n.Add(int64(n))
	return n, err
}

// BytesRead returns the number of bytes handed to callers.
func (c *CancellableReader) BytesRead() int64 {
	return c.n.Load()
}

// Aborted reports whether a read was refused because of cancellation.
func (c *CancellableReader) Aborted() bool {
	return c.aborted.Load()
}
