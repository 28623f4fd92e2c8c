package phase

import "errors"

var (
	// ErrEmptySet indicates a phase set was created without any names.
	ErrEmptySet = errors.New("phase set cannot be empty")

	// ErrInvalidName indicates a name that is not UPPER_SNAKE_CASE.
	ErrInvalidName = errors.New("invalid phase name")

	// ErrReservedName indicates a name that collides with a reserved word.
	ErrReservedName = errors.New("reserved phase name")

	// ErrDuplicateName indicates the same name was declared twice.
	ErrDuplicateName = errors.New("duplicate phase name")

	// ErrUnknownPhase indicates a lookup for a name the set does not contain.
	ErrUnknownPhase = errors.New("unknown phase")
)
