package chat

import "errors"

var (
	// ErrValidation marks an event with a missing or oversized field.
	ErrValidation = errors.New("invalid event")
	// ErrNotFound marks an event that references an unknown room or user.
	ErrNotFound = errors.New("not found")
	// ErrStorage marks a persistence failure; the event had no effect.
	ErrStorage = errors.New("storage failure")
	// ErrForbidden marks an event whose user differs from the connection's authenticated identity.
	ErrForbidden = errors.New("user does not match connection identity")
	// ErrSessionClosed marks an event on a connection that already disconnected.
	ErrSessionClosed = errors.New("session closed")
)
