package policy

import (
	"github.com/felixgeelhaar/factrun/domain/fact"
	"github.com/felixgeelhaar/factrun/domain/phase"
)

// Transition derives the current phase from the durable key set. Rules are
// evaluated in declaration order and the first match wins; when no rule
// matches the default phase applies. Derivation is a pure function of the key
// set, so the phase derived before persisting and the phase derived after a
// restart from the same keys are always identical.
type Transition struct {
	Rules   []Rule
	Default phase.Phase
}

// NewTransition creates a validated transition policy. Overlap between rules
// is checked by the agent spec validators, which can report which rule
// shadows which; here only structural invariants are enforced.
func NewTransition(dflt phase.Phase, rules ...Rule) (Transition, error) {
	if dflt.IsZero() {
		return Transition{}, ErrNoDefault
	}
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return Transition{}, err
		}
	}
	ordered := make([]Rule, len(rules))
	copy(ordered, rules)
	return Transition{Rules: ordered, Default: dflt}, nil
}

// DerivePhase returns the phase for the given durable key set.
func (t Transition) DerivePhase(keys fact.KeySet) phase.Phase {
	for _, r := range t.Rules {
		if r.Matches(keys) {
			return r.Enter
		}
	}
	return t.Default
}

// ReferencedKeys returns every key any rule mentions.
func (t Transition) ReferencedKeys() fact.KeySet {
	keys := fact.KeySet{}
	for _, r := range t.Rules {
		keys = keys.Union(r.ReferencedKeys())
	}
	return keys
}

// Phases returns every phase the policy can derive, default included.
func (t Transition) Phases() []phase.Phase {
	phases := make([]phase.Phase, 0, len(t.Rules)+1)
	for _, r := range t.Rules {
		phases = append(phases, r.Enter)
	}
	return append(phases, t.Default)
}
