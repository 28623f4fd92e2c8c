// Package fact defines the fact data model: scoped key/value observations
// emitted by actions and accumulated into iteration state. A fact's scope is
// always explicit; bundles are key-unique.
package fact

import "fmt"

// Fact is a single immutable observation: a key, a value and an explicit
// scope. Treat a Fact as a value; never mutate fields after construction.
type Fact struct {
	Key   string `json:"key"`
	Value Value  `json:"value"`
	Scope Scope  `json:"scope"`
}

// New creates a validated fact. The key must be non-empty, the value must come
// from a Value constructor and the scope must be one of the three known
// scopes.
func New(key string, value Value, scope Scope) (Fact, error) {
	if key == "" {
		return Fact{}, ErrEmptyKey
	}
	if !value.IsValid() {
		return Fact{}, fmt.Errorf("%w: fact %q", ErrInvalidValue, key)
	}
	if !scope.IsValid() {
		return Fact{}, fmt.Errorf("%w: fact %q has scope %q", ErrInvalidScope, key, scope)
	}
	return Fact{Key: key, Value: value, Scope: scope}, nil
}

// MustNew creates a fact and panics on invalid input. Reserved for literals in
// tests and examples.
func MustNew(key string, value Value, scope Scope) Fact {
	f, err := New(key, value, scope)
	if err != nil {
		panic(err)
	}
	return f
}

// Validate re-checks the fact invariants. Useful after decoding.
func (f Fact) Validate() error {
	_, err := New(f.Key, f.Value, f.Scope)
	return err
}

// String renders the fact for logs.
func (f Fact) String() string {
	return fmt.Sprintf("%s=%s (%s)", f.Key, f.Value, f.Scope)
}
