// Package policy defines the declarative policies evaluated by the controller:
// transition rules deriving the current phase from durable fact keys and the
// control policy that can preempt an iteration. Policies match on key
// presence, never on fact values.
package policy

import (
	"fmt"

	"github.com/felixgeelhaar/factrun/domain/fact"
	"github.com/felixgeelhaar/factrun/domain/phase"
)

// Rule maps a key-presence condition to the phase entered when it holds.
type Rule struct {
	// Enter is the phase derived when the rule matches.
	Enter phase.Phase

	// WhenAll must all be present.
	WhenAll fact.KeySet

	// WhenAny requires at least one member present, when non-empty.
	WhenAny fact.KeySet

	// WhenNone must all be absent.
	WhenNone fact.KeySet
}

// NewRule creates a validated rule. A rule must enter a real phase and carry
// at least one condition; a rule with no conditions would shadow everything
// after it.
func NewRule(enter phase.Phase, whenAll, whenAny, whenNone fact.KeySet) (Rule, error) {
	r := Rule{Enter: enter, WhenAll: whenAll, WhenAny: whenAny, WhenNone: whenNone}
	if err := r.Validate(); err != nil {
		return Rule{}, err
	}
	return r, nil
}

// Validate checks the rule invariants.
func (r Rule) Validate() error {
	if r.Enter.IsZero() {
		return ErrZeroPhase
	}
	if len(r.WhenAll) == 0 && len(r.WhenAny) == 0 && len(r.WhenNone) == 0 {
		return fmt.Errorf("%w: rule entering %s", ErrEmptyRule, r.Enter)
	}
	return nil
}

// Matches reports whether the durable key set satisfies the rule: every
// WhenAll key present, at least one WhenAny key present (vacuously true when
// WhenAny is empty) and no WhenNone key present.
func (r Rule) Matches(keys fact.KeySet) bool {
	if !keys.ContainsAll(r.WhenAll) {
		return false
	}
	if len(r.WhenAny) > 0 && !keys.Intersects(r.WhenAny) {
		return false
	}
	return !keys.Intersects(r.WhenNone)
}

// Shadows reports whether every key set matched by other is also matched by
// r. When r precedes other in a transition policy, other can never fire.
func (r Rule) Shadows(other Rule) bool {
	if !other.WhenAll.ContainsAll(r.WhenAll) {
		return false
	}
	if len(r.WhenAny) > 0 && !r.WhenAny.Intersects(other.WhenAll) {
		// other's when_all never satisfies r's any-clause. The remaining
		// guarantee is other's own any-clause: when every alternative it
		// offers is also one of r's, any match of other satisfies r too.
		if len(other.WhenAny) == 0 || !r.WhenAny.ContainsAll(other.WhenAny) {
			return false
		}
	}
	return other.WhenNone.ContainsAll(r.WhenNone)
}

// ReferencedKeys returns every key the rule mentions.
func (r Rule) ReferencedKeys() fact.KeySet {
	return r.WhenAll.Union(r.WhenAny).Union(r.WhenNone)
}

// String renders the rule for diagnostics.
func (r Rule) String() string {
	return fmt.Sprintf("enter %s when_all=%v when_any=%v when_none=%v",
		r.Enter, r.WhenAll.Sorted(), r.WhenAny.Sorted(), r.WhenNone.Sorted())
}
