package types

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure modes.
var (
	// ErrNotFound means the site bounced the request to the home page,
	// which is how it answers for entities that do not exist or are hidden.
	ErrNotFound = errors.New("entity not found")

	// ErrUnavailable means the site served its error page, or a page that
	// lacked a field every copy of that page must carry.
	ErrUnavailable = errors.New("entity unavailable")

	ErrMissingField   = errors.New("mandatory field missing")
	ErrLoginFailed    = errors.New("login failed")
	ErrNotLoggedIn    = errors.New("session is not logged in")
	ErrConcurrentUse  = errors.New("session already has a request in flight")
	ErrInvalidWho     = errors.New("invalid user reference")
	ErrEmptyResponse  = errors.New("empty response body")
	ErrInvalidURL     = errors.New("invalid URL")
	ErrProxyExhausted = errors.New("all proxies exhausted")
	ErrBodyTooLarge   = errors.New("response body exceeds size limit")
)

// FetchError wraps errors that occur during fetching.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
	Retryable  bool
	RetryAfter time.Duration // populated from Retry-After header on HTTP 429
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch error for %s (status %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch error for %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) IsRetryable() bool { return e.Retryable }

// ParseError reports a field that could not be extracted from a page.
type ParseError struct {
	URL      string
	Field    string
	Selector string
	Err      error
}

func (e *ParseError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("parse error for field %q (selector=%q): %v", e.Field, e.Selector, e.Err)
	}
	return fmt.Sprintf("parse error for %s field %q (selector=%q): %v", e.URL, e.Field, e.Selector, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// StorageError wraps errors that occur during storage/export.
type StorageError struct {
	Backend string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error (%s): %v", e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// PipelineError wraps errors that occur in the export pipeline.
type PipelineError struct {
	Stage string
	Item  *Item
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline error at stage %q: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }
