package state

import "errors"

var (
	// ErrNotFound indicates no saved state exists for the session.
	ErrNotFound = errors.New("session state not found")

	// ErrInvalidID indicates an empty agent or session identifier.
	ErrInvalidID = errors.New("agent and session identifiers cannot be empty")

	// ErrNotDurable indicates iteration-scoped facts where only durable facts
	// are allowed.
	ErrNotDurable = errors.New("iteration-scoped facts cannot be persisted")

	// ErrInvalidRecord indicates a history record that fails validation.
	ErrInvalidRecord = errors.New("invalid iteration record")

	// ErrConnectionFailed indicates the backing store is unreachable.
	ErrConnectionFailed = errors.New("state store connection failed")
)
