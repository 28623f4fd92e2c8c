// Package procedure defines the work bound to a phase: an ordered list of
// actions. Actions read iteration state through a snapshot and emit facts
// only through their declared emission spec.
package procedure

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/factrun/domain/emission"
	"github.com/felixgeelhaar/factrun/domain/fact"
)

// Snapshot is a read-only view of iteration state handed to actions. It
// exposes the durable facts loaded at iteration start merged with everything
// earlier actions of the same iteration emitted.
type Snapshot interface {
	// Get returns the value for key.
	Get(key string) (fact.Value, bool)

	// Has reports whether key is present.
	Has(key string) bool

	// Keys returns the visible keys in lexicographic order.
	Keys() []string
}

// Action is one unit of work inside a procedure. Execute returns facts built
// through the action's emission spec, or an error that fails the iteration.
type Action interface {
	// Name identifies the action in history records and logs.
	Name() string

	// Emits returns the action's emission declaration, or nil for actions
	// that emit nothing.
	Emits() emission.Spec

	// Execute performs the work against a read-only snapshot.
	Execute(ctx context.Context, snap Snapshot) (fact.Facts, error)
}

// Func is the body of an emitting action created with NewAction. It returns
// produced values keyed by fully qualified emission key.
type Func func(ctx context.Context, snap Snapshot) (map[string]fact.Value, error)

type funcAction struct {
	name  string
	emits emission.Spec
	fn    Func
}

// NewAction wraps a function as an Action. The returned action routes every
// produced value through the emission spec, so its output can never drift
// from the declaration.
func NewAction(name string, emits emission.Spec, fn Func) (Action, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	if emits == nil {
		return nil, fmt.Errorf("%w: action %q", ErrNoEmissionSpec, name)
	}
	if err := emits.Validate(); err != nil {
		return nil, fmt.Errorf("action %q: %w", name, err)
	}
	return &funcAction{name: name, emits: emits, fn: fn}, nil
}

func (a *funcAction) Name() string {
	return a.name
}

func (a *funcAction) Emits() emission.Spec {
	return a.emits
}

func (a *funcAction) Execute(ctx context.Context, snap Snapshot) (fact.Facts, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	values, err := a.fn(ctx, snap)
	if err != nil {
		return nil, fmt.Errorf("action %q: %w", a.name, err)
	}
	facts, err := a.emits.Build(values)
	if err != nil {
		return nil, fmt.Errorf("action %q: %w", a.name, err)
	}
	return facts, nil
}
