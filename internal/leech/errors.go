package leech

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrBusy indicates the session key already has a leech in flight.
	ErrBusy = errors.New("leech already in progress")
	// ErrCancelled indicates the transfer was stopped by a cancel request.
	ErrCancelled = errors.New("leech cancelled")
	// ErrSizeExceeded indicates the payload is larger than the upload ceiling.
	ErrSizeExceeded = errors.New("file exceeds upload limit")
)

// UpstreamError reports a failed GET against the source URL: either a
// transport error (Err set) or a non-200 status.
type UpstreamError struct {
	URL        string
	StatusCode int
	Status     string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	status := strings.TrimSpace(e.Status)
	if status == "" {
		status = fmt.Sprintf("%d", e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: unexpected status %s", e.URL, status)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// SizeError carries the sizes behind ErrSizeExceeded. Size is a lower bound
// when the upstream did not declare a length.
type SizeError struct {
	Size     int64
	Limit    int64
	Declared bool
}

func (e *SizeError) Error() string {
	if e.Declared {
		return fmt.Sprintf("%v: declared %d bytes, limit %d", ErrSizeExceeded, e.Size, e.Limit)
	}
	return fmt.Sprintf("%v: more than %d bytes received, limit %d", ErrSizeExceeded, e.Limit, e.Limit)
}

func (e *SizeError) Is(target error) bool {
	return target == ErrSizeExceeded
}
