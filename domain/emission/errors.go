package emission

import "errors"

var (
	// ErrEmptySpec indicates an emission spec with no entries.
	ErrEmptySpec = errors.New("emission spec has no entries")

	// ErrInvalidKey indicates an empty key or one containing the separator.
	ErrInvalidKey = errors.New("invalid emission key")

	// ErrInvalidScope indicates a declaration without a valid scope.
	ErrInvalidScope = errors.New("emission declares invalid scope")

	// ErrInvalidKind indicates a declaration without a valid value kind.
	ErrInvalidKind = errors.New("emission declares invalid kind")

	// ErrUndeclaredKey indicates a produced value whose key the spec does not
	// declare.
	ErrUndeclaredKey = errors.New("undeclared emission key")

	// ErrMissingRequired indicates a required key the producer omitted.
	ErrMissingRequired = errors.New("missing required emission key")

	// ErrKindMismatch indicates a produced value of the wrong kind.
	ErrKindMismatch = errors.New("emission value kind mismatch")
)
