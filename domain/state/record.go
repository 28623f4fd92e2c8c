package state

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/factrun/domain/fact"
)

// Record is the audit entry for one completed iteration: which phase ran,
// when, and which facts each action emitted. Records are append-only and
// never rewritten. Phase is stored as a bare name; typed phase identity does
// not survive storage.
type Record struct {
	ID        string                `json:"id"`
	Iteration int                   `json:"iteration"`
	Phase     string                `json:"phase"`
	Timestamp time.Time             `json:"timestamp"`
	ByAction  map[string]fact.Facts `json:"by_action"`
}

// NewRecord creates a record for a completed iteration with a fresh ID and
// the current UTC time.
func NewRecord(iteration int, phaseName string, byAction map[string]fact.Facts) (Record, error) {
	rec := Record{
		ID:        uuid.NewString(),
		Iteration: iteration,
		Phase:     phaseName,
		Timestamp: time.Now().UTC(),
		ByAction:  byAction,
	}
	if err := rec.Validate(); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Validate checks the record invariants.
func (r Record) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidRecord)
	}
	if r.Iteration < 1 {
		return fmt.Errorf("%w: iteration %d", ErrInvalidRecord, r.Iteration)
	}
	if r.Phase == "" {
		return fmt.Errorf("%w: missing phase", ErrInvalidRecord)
	}
	if r.Timestamp.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidRecord)
	}
	for action, facts := range r.ByAction {
		if action == "" {
			return fmt.Errorf("%w: empty action name", ErrInvalidRecord)
		}
		if err := facts.Validate(); err != nil {
			return fmt.Errorf("%w: action %q: %v", ErrInvalidRecord, action, err)
		}
	}
	return nil
}

// EmittedFacts returns all facts the iteration emitted, merged across
// actions in no particular precedence.
func (r Record) EmittedFacts() fact.Facts {
	merged := fact.Facts{}
	for _, facts := range r.ByAction {
		merged = merged.Merge(facts)
	}
	return merged
}
