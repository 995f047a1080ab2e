package agent

import "errors"

var (
	// ErrContextNil is returned when a nil context reaches a runtime boundary.
	ErrContextNil = errors.New("context is nil")
	// ErrSessionNotFound is returned by session stores when a session ID is unknown.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionVersionConflict is returned when a save races another writer.
	ErrSessionVersionConflict = errors.New("session version conflict")
	// ErrInvalidSessionID is returned for empty session identifiers.
	ErrInvalidSessionID = errors.New("invalid session id")
	// ErrEventInvalid is returned when an event fails structural validation.
	ErrEventInvalid = errors.New("event is invalid")
	// ErrEventPublish wraps event sink failures.
	ErrEventPublish = errors.New("event publish failed")
	// ErrTransportFatal marks non-retryable transport failures.
	ErrTransportFatal = errors.New("transport failure is fatal")
	// ErrTransportRetryable marks transport failures worth another attempt.
	ErrTransportRetryable = errors.New("transport failure is retryable")
)
