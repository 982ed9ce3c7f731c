package fetch

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors returned by the fetcher.
var (
	// ErrRetriesExhausted is returned when all attempts failed with retryable errors.
	ErrRetriesExhausted = errors.New("retry attempts exhausted")

	// ErrNonRetryable matches HTTP failures outside the retryable set.
	ErrNonRetryable = errors.New("non-retryable HTTP error")

	// ErrTransport wraps failures that produced no HTTP response, such as a
	// refused connection. They are not retried.
	ErrTransport = errors.New("transport error")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// retryableStatusCodes are the statuses worth retrying.
var retryableStatusCodes = map[int]bool{
	500: true,
	502: true,
	503: true,
	504: true,
}

// retryableStatusTexts are matched case-insensitively against the reason phrase.
var retryableStatusTexts = []string{
	"internal server error", // 500
	"bad gateway",           // 502
	"service unavailable",   // 503
	"gateway timeout",       // 504
}

// HTTPError represents a non-2xx response from the catalog API.
type HTTPError struct {
	URL        string
	StatusCode int
	// Reason is the reason phrase, e.g. "Service Unavailable".
	Reason string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("catalog request failed (status %d %s): %s",
		e.StatusCode, e.Reason, Redact(e.URL))
}

// Retryable reports whether the status or its reason phrase is in the retryable set.
func (e *HTTPError) Retryable() bool {
	if retryableStatusCodes[e.StatusCode] {
		return true
	}
	reason := strings.ToLower(e.Reason)
	if reason == "" {
		return false
	}
	for _, text := range retryableStatusTexts {
		if strings.Contains(reason, text) {
			return true
		}
	}
	return false
}

// Is lets errors.Is(err, ErrNonRetryable) match non-retryable HTTP errors.
func (e *HTTPError) Is(target error) bool {
	return target == ErrNonRetryable && !e.Retryable()
}

// shouldRetry determines if a failed attempt should be retried.
// Only HTTP errors in the retryable set qualify.
func shouldRetry(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.Retryable()
}
