// Package errs defines the core's public error taxonomy. Every error the
// orchestrator returns to a caller is (or wraps) a [*CoreError] so callers
// can branch on [Kind] with errors.As rather than string-matching messages.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a CoreError for programmatic handling.
type Kind string

const (
	// InvalidScope means the caller supplied an empty scope triple where at
	// least one of user/agent/session must be set.
	InvalidScope Kind = "InvalidScope"

	// InvalidArguments means a request was malformed in some other way:
	// unknown filter key, negative limit, empty required field.
	InvalidArguments Kind = "InvalidArguments"

	// NotFound means an id referenced by the request does not exist, or
	// refers to a fact that has already been soft-deleted.
	NotFound Kind = "NotFound"

	// ProviderError means an LLM, embeddings, or storage provider call
	// failed. See [ProviderKind] for the sub-classification.
	ProviderError Kind = "ProviderError"

	// IngestError means reconciliation failed (after any repair attempt)
	// and no vector-layer writes occurred for the batch.
	IngestError Kind = "IngestError"

	// Cancelled means the caller's context was cancelled or timed out.
	Cancelled Kind = "Cancelled"

	// Internal means an invariant was violated. It should be unreachable;
	// seeing one in production points at a bug in the core itself.
	Internal Kind = "Internal"
)

// ProviderKind further classifies a [ProviderError], driving the
// resilience layer's retry policy.
type ProviderKind string

const (
	// Transient errors (timeouts, rate limits, 5xx) are retried with
	// exponential backoff.
	Transient ProviderKind = "Transient"

	// Permanent errors (auth failure, 4xx other than rate-limit) are not
	// retried.
	Permanent ProviderKind = "Permanent"

	// Malformed means the provider returned a response the core could not
	// parse against its expected shape. One repair attempt is made before
	// a Malformed error is promoted to Permanent.
	Malformed ProviderKind = "Malformed"
)

// CoreError is the concrete error type returned by orchestrator operations.
type CoreError struct {
	Kind Kind

	// Provider is set only when Kind is ProviderError.
	Provider ProviderKind

	// Op names the operation that failed (e.g. "add", "search", "delete").
	Op string

	// Err is the underlying error, if any, wrapped for errors.Unwrap.
	Err error
}

func (e *CoreError) Error() string {
	if e.Kind == ProviderError {
		if e.Err != nil {
			return fmt.Sprintf("memcore: %s: %s provider error (%s): %v", e.Op, e.Kind, e.Provider, e.Err)
		}
		return fmt.Sprintf("memcore: %s: %s provider error (%s)", e.Op, e.Kind, e.Provider)
	}
	if e.Err != nil {
		return fmt.Sprintf("memcore: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("memcore: %s: %s", e.Op, e.Kind)
}

func (e *CoreError) Unwrap() error { return e.Err }

// Is reports whether target is a *CoreError with the same Kind, so callers
// can write errors.Is(err, &errs.CoreError{Kind: errs.NotFound}).
func (e *CoreError) Is(target error) bool {
	var t *CoreError
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

// New wraps err as a CoreError of the given kind for operation op.
func New(op string, kind Kind, err error) *CoreError {
	return &CoreError{Kind: kind, Op: op, Err: err}
}

// NewProvider wraps err as a ProviderError of the given sub-kind.
func NewProvider(op string, kind ProviderKind, err error) *CoreError {
	return &CoreError{Kind: ProviderError, Provider: kind, Op: op, Err: err}
}

// KindOf returns the Kind of err if it is (or wraps) a *CoreError, and
// false otherwise.
func KindOf(err error) (Kind, bool) {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return "", false
}
