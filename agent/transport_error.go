package agent

import (
	"context"
	"errors"
	"fmt"
)

// TransportError is returned by Model implementations to classify a failure.
type TransportError struct {
	Retryable bool
	Err       error
}

// Retryable wraps err as a transient transport failure.
func Retryable(err error) error {
	return &TransportError{Retryable: true, Err: err}
}

// Fatal wraps err as a non-retryable transport failure.
func Fatal(err error) error {
	return &TransportError{Retryable: false, Err: err}
}

func (e *TransportError) Error() string {
	if e == nil {
		return "transport error"
	}
	kind := "fatal"
	if e.Retryable {
		kind = "retryable"
	}
	if e.Err == nil {
		return fmt.Sprintf("transport error (%s)", kind)
	}
	return fmt.Sprintf("transport error (%s): %v", kind, e.Err)
}

func (e *TransportError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	if e == nil {
		return false
	}
	switch target {
	case ErrTransportRetryable:
		return e.Retryable
	case ErrTransportFatal:
		return !e.Retryable
	default:
		return false
	}
}

// IsRetryable reports whether err is a transport failure classified as retryable.
// Context cancellation is never retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return errors.Is(err, ErrTransportRetryable)
}

// IsFatal reports whether err must end the turn. Unclassified errors are fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return !IsRetryable(err)
}
