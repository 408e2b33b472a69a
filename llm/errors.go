package llm

import (
	"errors"
)

// Coarse upstream error categories. Raw provider error bodies are logged but
// never attached to these, so they cannot leak to API callers.
var (
	// ErrAuth indicates the provider rejected our credentials (401/403).
	ErrAuth = errors.New("llm: authentication failed")

	// ErrRateLimited indicates the provider returned 429.
	ErrRateLimited = errors.New("llm: rate limit exceeded")

	// ErrUnavailable indicates a provider-side failure (5xx).
	ErrUnavailable = errors.New("llm: service unavailable")

	// ErrUpstream is the generic non-2xx failure.
	ErrUpstream = errors.New("llm: request failed")

	// ErrTimeout indicates the call exceeded its wall-clock budget.
	ErrTimeout = errors.New("llm: request timeout")

	// ErrInputTooLarge indicates the cumulative message content exceeded
	// the input ceiling. Raised locally, before anything is transmitted.
	ErrInputTooLarge = errors.New("llm: input too large")
)

// TransientError represents a temporary error that may succeed on retry.
type TransientError struct {
	err error
}

func (e *TransientError) Error() string {
	return e.err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.err
}

// NewTransientError wraps an error as transient (retryable).
func NewTransientError(err error) error {
	return &TransientError{err: err}
}

// FatalError represents a permanent error that should not be retried.
type FatalError struct {
	err error
}

func (e *FatalError) Error() string {
	return e.err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.err
}

// NewFatalError wraps an error as fatal (non-retryable).
func NewFatalError(err error) error {
	return &FatalError{err: err}
}

// IsTransient returns true if the error is transient and should be retried.
func IsTransient(err error) bool {
	var transient *TransientError
	return errors.As(err, &transient)
}

// IsFatal returns true if the error is fatal and should not be retried.
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}
