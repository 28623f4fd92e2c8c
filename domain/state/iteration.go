// Package state holds the mutable working state of a session between
// persistence boundaries, the append-only iteration record, and the store
// contract durable state flows through.
package state

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/felixgeelhaar/factrun/domain/fact"
)

// IterationState tracks facts during one iteration. Durable facts are loaded
// at iteration start and extended by session and persistent emissions;
// iteration-scoped emissions land in a scratch map that BeginIteration clears.
type IterationState struct {
	durable fact.Facts
	scratch fact.Facts
}

// NewIterationState builds working state from loaded durable facts. The input
// must contain only session and persistent scoped facts.
func NewIterationState(durable fact.Facts) (*IterationState, error) {
	if err := ValidateDurable(durable); err != nil {
		return nil, err
	}
	return &IterationState{
		durable: durable.Clone(),
		scratch: fact.Facts{},
	}, nil
}

// BeginIteration discards the scratch facts of the previous iteration.
func (s *IterationState) BeginIteration() {
	s.scratch = fact.Facts{}
}

// Apply merges emitted facts into the state, routing each fact by its scope.
// Applied facts are visible to subsequent reads immediately.
func (s *IterationState) Apply(facts fact.Facts) error {
	for _, f := range facts {
		if err := f.Validate(); err != nil {
			return err
		}
		if f.Scope.IsDurable() {
			s.durable[f.Key] = f
		} else {
			s.scratch[f.Key] = f
		}
	}
	return nil
}

// Snapshot returns a read-only view of the current facts. Iteration facts
// shadow durable facts on a shared key.
func (s *IterationState) Snapshot() *Snapshot {
	return &Snapshot{view: s.durable.Merge(s.scratch)}
}

// DurableFacts returns a copy of the facts that survive the iteration.
func (s *IterationState) DurableFacts() fact.Facts {
	return s.durable.Clone()
}

// DurableKeys returns the durable fact keys as a set.
func (s *IterationState) DurableKeys() fact.KeySet {
	return s.durable.KeySet()
}

// DurableHash returns a digest of the durable facts. Two states hash equally
// exactly when their durable facts are identical in keys, values and scopes;
// the controller compares hashes to detect stalled sessions.
func (s *IterationState) DurableHash() (string, error) {
	return HashFacts(s.durable)
}

// HashFacts digests a fact bundle over its canonical encoding.
func HashFacts(facts fact.Facts) (string, error) {
	data, err := json.Marshal(facts)
	if err != nil {
		return "", fmt.Errorf("hashing facts: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// ValidateDurable checks that every fact in the bundle may be persisted.
func ValidateDurable(facts fact.Facts) error {
	if err := facts.Validate(); err != nil {
		return err
	}
	for _, f := range facts {
		if !f.Scope.IsDurable() {
			return fmt.Errorf("%w: %q", ErrNotDurable, f.Key)
		}
	}
	return nil
}

// Snapshot is the read-only fact view handed to actions.
type Snapshot struct {
	view fact.Facts
}

// Get returns the value for key.
func (s *Snapshot) Get(key string) (fact.Value, bool) {
	f, ok := s.view[key]
	if !ok {
		return fact.Value{}, false
	}
	return f.Value, true
}

// Has reports whether key is present.
func (s *Snapshot) Has(key string) bool {
	_, ok := s.view[key]
	return ok
}

// Keys returns the visible keys in lexicographic order.
func (s *Snapshot) Keys() []string {
	return s.view.Keys()
}
