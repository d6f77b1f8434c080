// Package download streams platform-held files to HTTP clients that present a
// valid link code.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/memohai/tglink/internal/links"
)

const (
	// DefaultChunkSize is the unit of each read from the store and each write
	// to the client.
	DefaultChunkSize = 512 * 1024
	// DefaultContentType is used when the file extension is not recognised.
	DefaultContentType = "application/octet-stream"
	// FallbackName is used when neither the request nor the link carries a name.
	FallbackName = "file"
)

// ErrRemoteStore indicates the platform failed to deliver the file.
var ErrRemoteStore = errors.New("remote store failure")

// Object is an open file body. Size is zero or negative when unknown.
type Object struct {
	Body io.ReadCloser
	Size int64
}

// Store opens file content held by the messaging platform.
type Store interface {
	Open(ctx context.Context, ref links.Ref) (Object, error)
}

// Options tunes a Relay.
type Options struct {
	// TTL is the link lifetime; zero disables the relay-side expiry check.
	TTL       time.Duration
	ChunkSize int
	Clock     func() time.Time
}

// Result describes a finished (possibly truncated) transfer.
type Result struct {
	Entry       links.Entry
	Name        string
	ContentType string
	Declared    int64
	Written     int64
}

// Relay resolves codes and copies file bodies into HTTP responses.
type Relay struct {
	logger    *slog.Logger
	source    links.Source
	store     Store
	ttl       time.Duration
	chunkSize int
	now       func() time.Time
}

// NewRelay creates a Relay reading codes from source and bytes from store.
func NewRelay(log *slog.Logger, source links.Source, store Store, opts Options) *Relay {
	if log == nil {
		log = slog.Default()
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Relay{
		logger:    log.With(slog.String("service", "download")),
		source:    source,
		store:     store,
		ttl:       opts.TTL,
		chunkSize: opts.ChunkSize,
		now:       opts.Clock,
	}
}

// Resolve returns the live entry for code. An entry found past its lifetime is
// deleted on the spot, ahead of the reaper.
func (r *Relay) Resolve(code string) (links.Entry, error) {
	entry, err := r.source.Lookup(code)
	if err != nil {
		return links.Entry{}, err
	}
	if r.ttl > 0 && entry.Expired(r.now(), r.ttl) {
		r.source.Delete(code)
		return links.Entry{}, links.ErrExpired
	}
	return entry, nil
}

// Serve streams the file behind code into w under the display name filename.
//
// Errors returned before anything was written (links.ErrNotFound,
// links.ErrExpired, links.ErrInvalid, ErrRemoteStore from Open) leave w
// untouched. Once the status line is out, a failing read or write only
// truncates the body; the error is still returned for logging.
func (r *Relay) Serve(ctx context.Context, w http.ResponseWriter, code, filename string) (Result, error) {
	entry, err := r.Resolve(code)
	if err != nil {
		return Result{}, err
	}
	name := strings.TrimSpace(filename)
	if name == "" {
		name = strings.TrimSpace(entry.Ref.Name)
	}
	if name == "" {
		name = FallbackName
	}
	res := Result{
		Entry:       entry,
		Name:        name,
		ContentType: ContentTypeFor(name),
	}

	obj, err := r.store.Open(ctx, entry.Ref)
	if err != nil {
		return res, fmt.Errorf("%w: %v", ErrRemoteStore, err)
	}
	defer func() {
		_ = obj.Body.Close()
	}()

	res.Declared = obj.Size
	if res.Declared <= 0 {
		res.Declared = entry.Ref.Size
	}

	header := w.Header()
	header.Set("Content-Type", res.ContentType)
	header.Set("Content-Disposition", ContentDisposition(name))
	header.Set("X-Content-Type-Options", "nosniff")
	if res.Declared > 0 {
		header.Set("Content-Length", strconv.FormatInt(res.Declared, 10))
	} else {
		header.Del("Content-Length")
	}
	w.WriteHeader(http.StatusOK)

	written, err := r.copyChunks(w, obj.Body)
	res.Written = written
	if err != nil {
		r.logger.Warn("download truncated",
			slog.String("code", code),
			slog.String("file_id", entry.Ref.FileID),
			slog.Int64("written", written),
			slog.Int64("declared", res.Declared),
			slog.Any("error", err),
		)
		return res, err
	}
	r.logger.Info("download served",
		slog.String("code", code),
		slog.String("name", name),
		slog.Int64("bytes", written),
	)
	return res, nil
}

// copyChunks moves body into w one fixed-size chunk at a time, flushing after
// each chunk. At most one chunk is held in memory.
func (r *Relay) copyChunks(w http.ResponseWriter, body io.Reader) (int64, error) {
	flusher, _ := w.(http.Flusher)
	buf := make([]byte, r.chunkSize)
	var written int64
	for {
		n, readErr := io.ReadFull(body, buf)
		if n > 0 {
			m, writeErr := w.Write(buf[:n])
			written += int64(m)
			if writeErr != nil {
				return written, fmt.Errorf("write response: %w", writeErr)
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		switch {
		case readErr == nil:
			continue
		case errors.Is(readErr, io.EOF), errors.Is(readErr, io.ErrUnexpectedEOF):
			return written, nil
		default:
			return written, fmt.Errorf("%w: %v", ErrRemoteStore, readErr)
		}
	}
}

// ContentTypeFor guesses a media type from name's extension, without parameters.
func ContentTypeFor(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if known := mimeFromExtension(ext); known != "" {
		return known
	}
	guessed := mime.TypeByExtension(ext)
	if guessed == "" {
		return DefaultContentType
	}
	mediaType, _, err := mime.ParseMediaType(guessed)
	if err != nil || mediaType == "" {
		return DefaultContentType
	}
	return mediaType
}

// ContentDisposition builds an attachment header for name, falling back to
// RFC 2231 encoding for non-ASCII names.
func ContentDisposition(name string) string {
	value := mime.FormatMediaType("attachment", map[string]string{"filename": name})
	if value == "" {
		return fmt.Sprintf("attachment; filename=%q", FallbackName)
	}
	return value
}
