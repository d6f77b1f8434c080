package leech

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCancellableReaderPassesThrough(t *testing.T) {
	t.Parallel()

	r := NewCancellableReader(strings.NewReader("hello world"), NewToken())
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
	assert.Equal(t, int64(11), r.BytesRead())
	assert.False(t, r.Aborted())
}

func TestCancellableReaderShortFinalRead(t *testing.T) {
	t.Parallel()

	r := NewCancellableReader(bytes.NewReader([]byte("abc")), nil)
	buf := make([]byte, 8)
	n, err := r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	n, err = r.Read(buf)
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, io.EOF)
}

func TestCancellableReaderStopsBeforeRead(t *testing.T) {
	t.Parallel()

	tok := NewToken()
	tok.Cancel()
	src := &countingReader{r: strings.NewReader("data")}
	r := NewCancellableReader(src, tok)
	n, err := r.Read(make([]byte, 4))
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.False(t, errors.Is(err, io.EOF))
	assert.Zero(t, src.calls, "underlying body must not be read once cancelled")
	assert.True(t, r.Aborted())
}

func TestCancellableReaderStopsAfterPartialRead(t *testing.T) {
	t.Parallel()

	tok := NewToken()
	src := &countingReader{r: strings.NewReader("data"), onRead: func() { tok.Cancel() }}
	r := NewCancellableReader(src, tok)
	n, err := r.Read(make([]byte, 4))
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, int64(0), r.BytesRead())
}

func TestCancellableReaderPropagatesThroughCopy(t *testing.T) {
	t.Parallel()

	tok := NewToken()
	reads := 0
	src := &countingReader{r: strings.NewReader(strings.Repeat("x", 1<<20)), onRead: func() {
		reads++
		if reads == 3 {
			tok.Cancel()
		}
	}}
	pr, pw := io.Pipe()
	go func() {
		_, err := io.Copy(pw, NewCancellableReader(src, tok))
		pw.CloseWithError(err)
	}()
	_, err := io.Copy(io.Discard, pr)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, 3, src.calls)
}

type countingReader struct {
	r      io.Reader
	calls  int
	onRead func()
}

func (c *countingReader) Read(p []byte) (int, error) {
	c.calls++
	if len(p) > 1024 {
		p = p[:1024]
	}
	n, err := c.r.Read(p)
	if c.onRead != nil {
		c.onRead()
	}
	return n, err
}
