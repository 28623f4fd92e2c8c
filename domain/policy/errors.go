package policy

import "errors"

var (
	// ErrNoDefault indicates a transition policy without a default phase.
	ErrNoDefault = errors.New("transition policy requires a default phase")

	// ErrZeroPhase indicates a rule that enters the invalid zero phase.
	ErrZeroPhase = errors.New("rule enters the zero phase")

	// ErrEmptyRule indicates a rule with no key conditions at all.
	ErrEmptyRule = errors.New("rule has no key conditions")

	// ErrKeyOverlap indicates completion and failure keys share a member.
	ErrKeyOverlap = errors.New("completion and failure keys overlap")
)
