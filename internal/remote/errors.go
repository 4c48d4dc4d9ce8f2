package remote

import (
	"errors"
	"fmt"
)

var (
	// ErrUnreachable wraps transport-level failures talking to the remote host.
	ErrUnreachable = errors.New("remote: unreachable")
)

// DownloadError is an HTTP-level failure for a single file download.
type DownloadError struct {
	URL        string
	StatusCode int
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("remote: download %q: http %d", e.URL, e.StatusCode)
}

// BatchDownloadError fails a whole FetchMany call, naming the first URL that
// failed. There is no partial-success continuation.
type BatchDownloadError struct {
	URL string
	Err error
}

func (e *BatchDownloadError) Error() string {
	return fmt.Sprintf("remote: batch download failed at %q: %v", e.URL, e.Err)
}

func (e *BatchDownloadError) Unwrap() error { return e.Err }
