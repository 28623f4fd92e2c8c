// Package emission declares what an action may emit and builds its fact
// bundles. Build is the only constructor of action output, so a fact can
// never carry a scope other than the one its declaration names.
package emission

import (
	"fmt"
	"sort"
	"strings"

	"github.com/felixgeelhaar/factrun/domain/fact"
)

// Sep joins nested spec keys into fully qualified fact keys.
const Sep = "."

// Node is either an Emission leaf or a nested Spec. The two implementations
// in this package are the only ones.
type Node interface {
	node()
}

// Emission declares one emittable fact: its scope, its value kind and whether
// the producing action must emit it.
type Emission struct {
	Scope    fact.Scope
	Kind     fact.Kind
	Required bool
}

func (Emission) node() {}

// Spec maps keys to declarations. Values are Emission leaves or nested Specs;
// nesting flattens into dot-separated keys.
type Spec map[string]Node

func (Spec) node() {}

// Validate checks every declaration in the spec, recursively.
func (s Spec) Validate() error {
	if len(s) == 0 {
		return ErrEmptySpec
	}
	return s.validate("")
}

func (s Spec) validate(prefix string) error {
	for key, n := range s {
		if key == "" || strings.Contains(key, Sep) {
			return fmt.Errorf("%w: %q under %q", ErrInvalidKey, key, prefix)
		}
		full := join(prefix, key)
		switch decl := n.(type) {
		case Emission:
			if !decl.Scope.IsValid() {
				return fmt.Errorf("%w: %q has scope %q", ErrInvalidScope, full, decl.Scope)
			}
			if decl.Kind == fact.KindInvalid {
				return fmt.Errorf("%w: %q", ErrInvalidKind, full)
			}
		case Spec:
			if len(decl) == 0 {
				return fmt.Errorf("%w: nested spec %q is empty", ErrEmptySpec, full)
			}
			if err := decl.validate(full); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: %q has unsupported declaration %T", ErrInvalidKey, full, n)
		}
	}
	return nil
}

// Flatten returns the leaf declarations keyed by fully qualified key.
func (s Spec) Flatten() map[string]Emission {
	flat := make(map[string]Emission)
	s.flatten("", flat)
	return flat
}

func (s Spec) flatten(prefix string, into map[string]Emission) {
	for key, n := range s {
		full := join(prefix, key)
		switch decl := n.(type) {
		case Emission:
			into[full] = decl
		case Spec:
			decl.flatten(full, into)
		}
	}
}

// Keys returns the fully qualified declared keys, sorted.
func (s Spec) Keys() []string {
	flat := s.Flatten()
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Build turns produced values into a fact bundle. Values are keyed by fully
// qualified key. Every key must be declared, every required declaration must
// be present, and each value must have the declared kind. The declared scope
// is stamped onto each fact; producers cannot choose scopes.
func (s Spec) Build(values map[string]fact.Value) (fact.Facts, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	flat := s.Flatten()

	for key := range values {
		if _, declared := flat[key]; !declared {
			return nil, fmt.Errorf("%w: %q", ErrUndeclaredKey, key)
		}
	}

	out := make(fact.Facts, len(values))
	for key, decl := range flat {
		value, present := values[key]
		if !present {
			if decl.Required {
				return nil, fmt.Errorf("%w: %q", ErrMissingRequired, key)
			}
			continue
		}
		if value.Kind() != decl.Kind {
			return nil, fmt.Errorf("%w: %q is %s, declared %s",
				ErrKindMismatch, key, value.Kind(), decl.Kind)
		}
		f, err := fact.New(key, value, decl.Scope)
		if err != nil {
			return nil, err
		}
		out[key] = f
	}
	return out, nil
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + Sep + key
}
