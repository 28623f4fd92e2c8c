// Package hello defines the smallest useful agent: one action that says
// hello, one transition that reacts to it, one completion key. It doubles as
// a working reference for wiring phases, policies, procedures and emission
// specs together.
package hello

import (
	"context"

	"github.com/felixgeelhaar/factrun/domain/agentspec"
	"github.com/felixgeelhaar/factrun/domain/emission"
	"github.com/felixgeelhaar/factrun/domain/fact"
	"github.com/felixgeelhaar/factrun/domain/phase"
	"github.com/felixgeelhaar/factrun/domain/policy"
	"github.com/felixgeelhaar/factrun/domain/procedure"
)

// Spec builds the hello agent.
//
// Iteration 1 runs START, persists said_hello and derives DONE. Iteration 2
// finds the completion key present and finishes the session. The history ends
// with exactly two records.
func Spec() (*agentspec.Spec, error) {
	phases, err := phase.New("START", "DONE")
	if err != nil {
		return nil, err
	}
	start := phases.MustPhase("START")
	done := phases.MustPhase("DONE")

	enterDone, err := policy.NewRule(done, fact.NewKeySet("said_hello"), nil, nil)
	if err != nil {
		return nil, err
	}
	transition, err := policy.NewTransition(start, enterDone)
	if err != nil {
		return nil, err
	}
	control, err := policy.NewControl(nil, nil, fact.NewKeySet("said_hello"), nil)
	if err != nil {
		return nil, err
	}

	sayHello, err := procedure.NewAction("say_hello",
		emission.Spec{
			"said_hello": emission.Emission{Scope: fact.ScopeSession, Kind: fact.KindBool, Required: true},
		},
		func(ctx context.Context, snap procedure.Snapshot) (map[string]fact.Value, error) {
			return map[string]fact.Value{"said_hello": fact.Bool(true)}, nil
		})
	if err != nil {
		return nil, err
	}

	// DONE never executes: the control policy completes the session before
	// any procedure runs in it.
	waveGoodbye, err := procedure.NewAction("wave_goodbye",
		emission.Spec{
			"waved": emission.Emission{Scope: fact.ScopeSession, Kind: fact.KindBool},
		},
		func(ctx context.Context, snap procedure.Snapshot) (map[string]fact.Value, error) {
			return map[string]fact.Value{"waved": fact.Bool(true)}, nil
		})
	if err != nil {
		return nil, err
	}

	greet, err := procedure.NewTemplate("greet", sayHello)
	if err != nil {
		return nil, err
	}
	farewell, err := procedure.NewTemplate("farewell", waveGoodbye)
	if err != nil {
		return nil, err
	}

	return agentspec.New(agentspec.Config{
		Name:       "hello",
		Version:    "1.0.0",
		Phases:     phases,
		Control:    control,
		Transition: transition,
		Procedures: map[phase.Phase]*procedure.Template{
			start: greet,
			done:  farewell,
		},
	})
}
