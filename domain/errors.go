package domain

import "errors"

// Sentinel error kinds, grounded on core/errors.go's sentinel + classifier
// pattern from the teacher repository.
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrNotFound            = errors.New("resource not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrRateLimited         = errors.New("rate limited")
	ErrProviderError       = errors.New("provider error")
	ErrDuplicateInFlight   = errors.New("duplicate request in flight")
	ErrTransient           = errors.New("transient error")
	ErrNumericalDivergence = errors.New("numerical divergence")
)

// ErrorKind classifies a SchedulerError for retry/escalation decisions.
type ErrorKind string

const (
	KindInvalidInput        ErrorKind = "INVALID_INPUT"
	KindNotFound             ErrorKind = "NOT_FOUND"
	KindUnauthorized         ErrorKind = "UNAUTHORIZED"
	KindRateLimited          ErrorKind = "RATE_LIMITED"
	KindProviderError        ErrorKind = "PROVIDER_ERROR"
	KindDuplicateInFlight    ErrorKind = "DUPLICATE_IN_FLIGHT"
	KindTransient            ErrorKind = "TRANSIENT"
	KindNumericalDivergence  ErrorKind = "NUMERICAL_DIVERGENCE"
)

// SchedulerError wraps a failure with its operation and classification,
// mirroring the teacher's FrameworkError{Op, Kind, ID, Message, Err}.
type SchedulerError struct {
	Op      string
	Kind    ErrorKind
	ID      string
	Message string
	Err     error
}

func (e *SchedulerError) Error() string {
	if e.Message != "" {
		return e.Op + ": " + e.Message
	}
	if e.Err != nil {
		return e.Op + ": " + e.Err.Error()
	}
	return e.Op + ": " + string(e.Kind)
}

func (e *SchedulerError) Unwrap() error {
	return e.Err
}

// NewError builds a SchedulerError for the given operation and kind.
func NewError(op string, kind ErrorKind, id string, err error) *SchedulerError {
	return &SchedulerError{Op: op, Kind: kind, ID: id, Err: err}
}

// IsRetryable reports whether err (or any error it wraps) represents a
// condition safe to retry automatically.
func IsRetryable(err error) bool {
	var se *SchedulerError
	if errors.As(err, &se) {
		switch se.Kind {
		case KindTransient, KindRateLimited, KindProviderError:
			return true
		default:
			return false
		}
	}
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrRateLimited) || errors.Is(err, ErrProviderError)
}

// IsNotFound reports whether err represents a missing resource.
func IsNotFound(err error) bool {
	var se *SchedulerError
	if errors.As(err, &se) {
		return se.Kind == KindNotFound
	}
	return errors.Is(err, ErrNotFound)
}

// IsClientError reports whether err is the caller's fault (4xx-equivalent)
// and therefore should not be retried against a different provider node
// the way a transient/provider error would be.
func IsClientError(err error) bool {
	var se *SchedulerError
	if errors.As(err, &se) {
		switch se.Kind {
		case KindInvalidInput, KindUnauthorized, KindNotFound:
			return true
		}
	}
	return errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrNotFound)
}
