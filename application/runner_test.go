package application

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/felixgeelhaar/factrun/domain/agentspec"
	"github.com/felixgeelhaar/factrun/domain/emission"
	"github.com/felixgeelhaar/factrun/domain/fact"
	"github.com/felixgeelhaar/factrun/domain/phase"
	"github.com/felixgeelhaar/factrun/domain/policy"
	"github.com/felixgeelhaar/factrun/domain/procedure"
)

func newRunner(t *testing.T, spec *agentspec.Spec, cfg RunnerConfig) *Runner {
	t.Helper()
	ctrl, _ := newController(t, spec, "s1")
	cfg.Controller = ctrl
	if cfg.RetryInitialDelay == 0 {
		cfg.RetryInitialDelay = time.Millisecond
	}
	runner, err := NewRunner(cfg)
	if err != nil {
		t.Fatalf("NewRunner error: %v", err)
	}
	return runner
}

func TestRunnerRunsToCompletion(t *testing.T) {
	t.Parallel()

	runner := newRunner(t, helloSpec(t), RunnerConfig{})
	result, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if result.Outcome != OutcomeCompleted {
		t.Fatalf("outcome = %s, want completed", result.Outcome)
	}
	if result.Iteration != 2 {
		t.Errorf("iteration = %d, want 2", result.Iteration)
	}
}

func TestRunnerRetriesActionFailure(t *testing.T) {
	t.Parallel()

	phases, err := phase.New("START", "DONE")
	if err != nil {
		t.Fatalf("phase.New error: %v", err)
	}
	start := phases.MustPhase("START")
	done := phases.MustPhase("DONE")

	enterDone, err := policy.NewRule(done, fact.NewKeySet("said_hello"), nil, nil)
	if err != nil {
		t.Fatalf("NewRule error: %v", err)
	}
	transition, err := policy.NewTransition(start, enterDone)
	if err != nil {
		t.Fatalf("NewTransition error: %v", err)
	}
	control, err := policy.NewControl(nil, nil, fact.NewKeySet("said_hello"), nil)
	if err != nil {
		t.Fatalf("NewControl error: %v", err)
	}

	var calls atomic.Int64
	flaky := mustAction(t, "flaky_hello",
		emission.Spec{
			"said_hello": emission.Emission{Scope: fact.ScopeSession, Kind: fact.KindBool, Required: true},
		},
		func(ctx context.Context, snap procedure.Snapshot) (map[string]fact.Value, error) {
			if calls.Add(1) < 3 {
				return nil, errors.New("transient failure")
			}
			return map[string]fact.Value{"said_hello": fact.Bool(true)}, nil
		})
	idle := mustAction(t, "idle",
		emission.Spec{
			"noted": emission.Emission{Scope: fact.ScopeIteration, Kind: fact.KindBool},
		},
		func(ctx context.Context, snap procedure.Snapshot) (map[string]fact.Value, error) {
			return map[string]fact.Value{}, nil
		})

	spec := mustSpec(t, agentspec.Config{
		Name:       "flaky-hello",
		Version:    "1",
		Phases:     phases,
		Control:    control,
		Transition: transition,
		Procedures: map[phase.Phase]*procedure.Template{
			start: mustTemplate(t, "greet", flaky),
			done:  mustTemplate(t, "idle", idle),
		},
	})

	runner := newRunner(t, spec, RunnerConfig{RetryMaxAttempts: 3})
	result, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if result.Outcome != OutcomeCompleted {
		t.Fatalf("outcome = %s, want completed after retries", result.Outcome)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("action ran %d times, want 3", got)
	}
	// The two failed attempts persisted nothing, so the successful attempt is
	// still iteration 1 and the completing check iteration 2.
	if result.Iteration != 2 {
		t.Errorf("iteration = %d, want 2", result.Iteration)
	}
}

func TestRunnerSettlesOnFailureWhenRetriesExhausted(t *testing.T) {
	t.Parallel()

	phases, err := phase.New("START")
	if err != nil {
		t.Fatalf("phase.New error: %v", err)
	}
	start := phases.MustPhase("START")

	transition, err := policy.NewTransition(start)
	if err != nil {
		t.Fatalf("NewTransition error: %v", err)
	}
	control, err := policy.NewControl(nil, nil, fact.NewKeySet("finished"), nil)
	if err != nil {
		t.Fatalf("NewControl error: %v", err)
	}

	boom := errors.New("permanently broken")
	broken := mustAction(t, "broken",
		emission.Spec{
			"finished": emission.Emission{Scope: fact.ScopeSession, Kind: fact.KindBool},
		},
		func(ctx context.Context, snap procedure.Snapshot) (map[string]fact.Value, error) {
			return nil, boom
		})

	spec := mustSpec(t, agentspec.Config{
		Name:       "broken",
		Version:    "1",
		Phases:     phases,
		Control:    control,
		Transition: transition,
		Procedures: map[phase.Phase]*procedure.Template{
			start: mustTemplate(t, "broken", broken),
		},
	})

	runner := newRunner(t, spec, RunnerConfig{RetryMaxAttempts: 2})
	result, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if result.Outcome != OutcomeFailed {
		t.Fatalf("outcome = %s, want failed", result.Outcome)
	}
	if !errors.Is(result.ActionErr, boom) {
		t.Errorf("ActionErr = %v, want wrapped %v", result.ActionErr, boom)
	}
}

func TestRunnerReturnsOnPause(t *testing.T) {
	t.Parallel()

	phases, err := phase.New("START")
	if err != nil {
		t.Fatalf("phase.New error: %v", err)
	}
	start := phases.MustPhase("START")

	transition, err := policy.NewTransition(start)
	if err != nil {
		t.Fatalf("NewTransition error: %v", err)
	}
	control, err := policy.NewControl(nil, fact.NewKeySet("user_goal"), nil, nil)
	if err != nil {
		t.Fatalf("NewControl error: %v", err)
	}
	work := mustAction(t, "work",
		emission.Spec{
			"progress": emission.Emission{Scope: fact.ScopeSession, Kind: fact.KindBool},
		},
		func(ctx context.Context, snap procedure.Snapshot) (map[string]fact.Value, error) {
			return map[string]fact.Value{"progress": fact.Bool(true)}, nil
		})

	spec := mustSpec(t, agentspec.Config{
		Name:       "gated",
		Version:    "1",
		Phases:     phases,
		Control:    control,
		Transition: transition,
		Procedures: map[phase.Phase]*procedure.Template{
			start: mustTemplate(t, "work", work),
		},
	})

	runner := newRunner(t, spec, RunnerConfig{})
	result, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if result.Outcome != OutcomePaused {
		t.Fatalf("outcome = %s, want paused", result.Outcome)
	}
	if len(result.Missing) != 1 || result.Missing[0] != "user_goal" {
		t.Errorf("missing = %v, want [user_goal]", result.Missing)
	}
}

func TestRunnerSettlesOnStall(t *testing.T) {
	t.Parallel()

	phases, err := phase.New("START")
	if err != nil {
		t.Fatalf("phase.New error: %v", err)
	}
	start := phases.MustPhase("START")

	transition, err := policy.NewTransition(start)
	if err != nil {
		t.Fatalf("NewTransition error: %v", err)
	}
	control, err := policy.NewControl(nil, nil, fact.NewKeySet("finished"), nil)
	if err != nil {
		t.Fatalf("NewControl error: %v", err)
	}
	spin := mustAction(t, "spin",
		emission.Spec{
			"scratch": emission.Emission{Scope: fact.ScopeIteration, Kind: fact.KindBool, Required: true},
		},
		func(ctx context.Context, snap procedure.Snapshot) (map[string]fact.Value, error) {
			return map[string]fact.Value{"scratch": fact.Bool(true)}, nil
		})

	spec := mustSpec(t, agentspec.Config{
		Name:       "spinner",
		Version:    "1",
		Phases:     phases,
		Control:    control,
		Transition: transition,
		Procedures: map[phase.Phase]*procedure.Template{
			start: mustTemplate(t, "spin", spin),
		},
	})

	runner := newRunner(t, spec, RunnerConfig{})
	result, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if result.Outcome != OutcomeStalled {
		t.Fatalf("outcome = %s, want stalled", result.Outcome)
	}
	if result.Iteration != 1 {
		t.Errorf("iteration = %d, want 1", result.Iteration)
	}
}

func TestRunnerIterationBudget(t *testing.T) {
	t.Parallel()

	phases, err := phase.New("START")
	if err != nil {
		t.Fatalf("phase.New error: %v", err)
	}
	start := phases.MustPhase("START")

	transition, err := policy.NewTransition(start)
	if err != nil {
		t.Fatalf("NewTransition error: %v", err)
	}
	control, err := policy.NewControl(nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewControl error: %v", err)
	}

	// Each iteration bumps a durable counter, so the session advances forever
	// without ever stalling or completing.
	count := mustAction(t, "count",
		emission.Spec{
			"count": emission.Emission{Scope: fact.ScopeSession, Kind: fact.KindNumber, Required: true},
		},
		func(ctx context.Context, snap procedure.Snapshot) (map[string]fact.Value, error) {
			n := 0.0
			if v, ok := snap.Get("count"); ok {
				n, _ = v.AsNumber()
			}
			return map[string]fact.Value{"count": fact.Number(n + 1)}, nil
		})

	spec := mustSpec(t, agentspec.Config{
		Name:       "counter",
		Version:    "1",
		Phases:     phases,
		Control:    control,
		Transition: transition,
		Procedures: map[phase.Phase]*procedure.Template{
			start: mustTemplate(t, "count", count),
		},
	})

	runner := newRunner(t, spec, RunnerConfig{MaxIterations: 3})
	result, err := runner.Run(context.Background())
	if !errors.Is(err, ErrIterationBudget) {
		t.Fatalf("error = %v, want ErrIterationBudget", err)
	}
	if result.Iteration != 3 {
		t.Errorf("last iteration = %d, want 3", result.Iteration)
	}
	if result.Outcome != OutcomeAdvanced {
		t.Errorf("last outcome = %s, want advanced", result.Outcome)
	}
}

func TestNewRunnerRequiresController(t *testing.T) {
	t.Parallel()

	if _, err := NewRunner(RunnerConfig{}); !errors.Is(err, ErrNilSpec) {
		t.Errorf("error = %v, want ErrNilSpec", err)
	}
}
