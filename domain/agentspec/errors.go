package agentspec

import "errors"

var (
	// ErrInvalidSpec indicates construction-time validation failed. The
	// wrapped message lists every error-severity issue found.
	ErrInvalidSpec = errors.New("invalid agent spec")

	// ErrNilConfig indicates required config fields were left unset.
	ErrNilConfig = errors.New("agent spec config is incomplete")
)
