package fact

import "errors"

var (
	// ErrEmptyKey indicates a fact was created without a key.
	ErrEmptyKey = errors.New("fact key cannot be empty")

	// ErrInvalidScope indicates an unknown or unset scope.
	ErrInvalidScope = errors.New("invalid fact scope")

	// ErrInvalidValue indicates a value that has no valid representation.
	ErrInvalidValue = errors.New("invalid fact value")

	// ErrDuplicateKey indicates two facts in one bundle share a key.
	ErrDuplicateKey = errors.New("duplicate fact key")
)
