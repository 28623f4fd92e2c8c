package fact

import "fmt"

// Scope controls the visibility and lifetime of a fact. Every fact carries an
// explicit scope; there is no default.
type Scope string

const (
	// ScopeIteration facts are visible within a single iteration and discarded
	// when it ends. They are never persisted.
	ScopeIteration Scope = "iteration"

	// ScopeSession facts persist for the lifetime of one session and are
	// cleared when the session reaches a terminal phase.
	ScopeSession Scope = "session"

	// ScopePersistent facts survive across sessions of the same agent until
	// removed externally.
	ScopePersistent Scope = "persistent"
)

// IsValid reports whether the scope is one of the three known scopes.
func (s Scope) IsValid() bool {
	switch s {
	case ScopeIteration, ScopeSession, ScopePersistent:
		return true
	}
	return false
}

// IsDurable reports whether facts with this scope are persisted at the end of
// an iteration.
func (s Scope) IsDurable() bool {
	return s == ScopeSession || s == ScopePersistent
}

// String returns the scope name.
func (s Scope) String() string {
	return string(s)
}

// ParseScope converts a string into a Scope.
func ParseScope(s string) (Scope, error) {
	scope := Scope(s)
	if !scope.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidScope, s)
	}
	return scope, nil
}
