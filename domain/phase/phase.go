// Package phase defines phase identity for agent state machines. Phases are
// created through a per-spec Set factory that validates names once; afterwards
// a Phase is a plain comparable token. Storage keeps only the bare name, so
// after a restart callers compare phases by name.
package phase

import (
	"fmt"
	"regexp"
	"sort"
)

var namePattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// reserved names collide with wildcard or literal meanings in policy and
// serialization layers and can never be phase names.
var reserved = map[string]struct{}{
	"NONE":    {},
	"ANY":     {},
	"ALL":     {},
	"DEFAULT": {},
	"UNKNOWN": {},
	"TRUE":    {},
	"FALSE":   {},
	"NULL":    {},
}

// Phase is an interned phase name. The zero Phase is invalid; obtain phases
// from a Set. Phases compare with ==, and identity survives a restart because
// it is exactly the name.
type Phase struct {
	name string
}

// Name returns the phase name. Empty for the zero Phase.
func (p Phase) Name() string {
	return p.name
}

// IsZero reports whether the phase is the invalid zero token.
func (p Phase) IsZero() bool {
	return p.name == ""
}

// String returns the phase name.
func (p Phase) String() string {
	return p.name
}

// ValidateName checks a single phase name against the naming rules without
// constructing a set.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidName)
	}
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: %q must be UPPER_SNAKE_CASE", ErrInvalidName, name)
	}
	if _, ok := reserved[name]; ok {
		return fmt.Errorf("%w: %q", ErrReservedName, name)
	}
	return nil
}

// Set is a validated, immutable collection of phases belonging to one agent
// spec.
type Set struct {
	order  []Phase
	byName map[string]Phase
}

// New creates a phase set from names in declaration order. Names must be
// non-empty, UPPER_SNAKE_CASE, unique and not reserved.
func New(names ...string) (*Set, error) {
	if len(names) == 0 {
		return nil, ErrEmptySet
	}
	set := &Set{
		order:  make([]Phase, 0, len(names)),
		byName: make(map[string]Phase, len(names)),
	}
	for _, name := range names {
		if err := ValidateName(name); err != nil {
			return nil, err
		}
		if _, exists := set.byName[name]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateName, name)
		}
		p := Phase{name: name}
		set.order = append(set.order, p)
		set.byName[name] = p
	}
	return set, nil
}

// FromSet creates a phase set from an unordered collection of names. The
// names are sorted lexicographically so the resulting set is deterministic
// regardless of input order.
func FromSet(names map[string]struct{}) (*Set, error) {
	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)
	return New(sorted...)
}

// Phase returns the member with the given name.
func (s *Set) Phase(name string) (Phase, error) {
	p, ok := s.byName[name]
	if !ok {
		return Phase{}, fmt.Errorf("%w: %q", ErrUnknownPhase, name)
	}
	return p, nil
}

// MustPhase returns the member with the given name and panics if it is not in
// the set. Reserved for literals in tests and examples.
func (s *Set) MustPhase(name string) Phase {
	p, err := s.Phase(name)
	if err != nil {
		panic(err)
	}
	return p
}

// Contains reports whether the phase is a member of this set.
func (s *Set) Contains(p Phase) bool {
	member, ok := s.byName[p.name]
	return ok && member == p
}

// All returns the phases in declaration order.
func (s *Set) All() []Phase {
	out := make([]Phase, len(s.order))
	copy(out, s.order)
	return out
}

// Names returns the phase names in declaration order.
func (s *Set) Names() []string {
	out := make([]string, len(s.order))
	for i, p := range s.order {
		out[i] = p.name
	}
	return out
}

// Len returns the number of phases.
func (s *Set) Len() int {
	return len(s.order)
}
