// Package application drives agent specs: the Controller executes exactly one
// iteration per call against durable state, and the Runner loops iterations
// until a terminal outcome.
package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/factrun/domain/agentspec"
	"github.com/felixgeelhaar/factrun/domain/fact"
	"github.com/felixgeelhaar/factrun/domain/phase"
	"github.com/felixgeelhaar/factrun/domain/policy"
	"github.com/felixgeelhaar/factrun/domain/state"
	"github.com/felixgeelhaar/factrun/infrastructure/logging"
)

// Config configures a Controller.
type Config struct {
	// Spec is the validated agent definition.
	Spec *agentspec.Spec

	// Store persists durable facts and iteration history.
	Store state.Store

	// AgentID identifies the agent.
	AgentID string

	// SessionID identifies the session within the agent.
	SessionID string
}

// Controller executes one iteration per call. It holds no iteration state
// between calls; everything it needs is loaded from the store, so a
// controller can be discarded and rebuilt at any point without losing the
// session.
type Controller struct {
	spec      *agentspec.Spec
	store     state.Store
	agentID   string
	sessionID string
}

// NewController creates a controller and surfaces any spec warnings through
// the logger.
func NewController(cfg Config) (*Controller, error) {
	if cfg.Spec == nil {
		return nil, ErrNilSpec
	}
	if cfg.Store == nil {
		return nil, ErrNilStore
	}
	if err := state.ValidateIDs(cfg.AgentID, cfg.SessionID); err != nil {
		return nil, err
	}

	for _, warning := range cfg.Spec.Warnings() {
		logging.Warn().
			Add(logging.Component("controller")).
			Add(logging.AgentID(cfg.AgentID)).
			Add(logging.Str("issue", warning.String())).
			Msg("agent spec warning")
	}

	return &Controller{
		spec:      cfg.Spec,
		store:     cfg.Store,
		agentID:   cfg.AgentID,
		sessionID: cfg.SessionID,
	}, nil
}

// Bootstrap seeds the session with initial durable facts. Idempotent.
func (c *Controller) Bootstrap(ctx context.Context, seed fact.Facts) error {
	if err := state.ValidateDurable(seed); err != nil {
		return err
	}
	return c.store.Bootstrap(ctx, c.agentID, c.sessionID, seed)
}

// History returns the session's iteration records in append order.
func (c *Controller) History(ctx context.Context) ([]state.Record, error) {
	return c.store.History(ctx, c.agentID, c.sessionID)
}

// RunIteration executes exactly one iteration: load durable facts, derive
// the phase, let the control policy preempt, otherwise run the phase's
// actions in order with eager fact application, then persist the durable
// facts and one history record atomically.
func (c *Controller) RunIteration(ctx context.Context) (Result, error) {
	start := time.Now()

	durable, err := c.store.Load(ctx, c.agentID, c.sessionID)
	if err != nil {
		if !errors.Is(err, state.ErrNotFound) {
			return Result{}, fmt.Errorf("loading session state: %w", err)
		}
		durable = fact.Facts{}
	}

	history, err := c.store.History(ctx, c.agentID, c.sessionID)
	if err != nil {
		return Result{}, fmt.Errorf("loading session history: %w", err)
	}
	iteration := len(history) + 1

	st, err := state.NewIterationState(durable)
	if err != nil {
		return Result{}, fmt.Errorf("building iteration state: %w", err)
	}
	startHash, err := st.DurableHash()
	if err != nil {
		return Result{}, err
	}

	keys := st.DurableKeys()
	current := c.spec.Transition().DerivePhase(keys)

	logging.Debug().
		Add(logging.Component("controller")).
		Add(logging.AgentID(c.agentID)).
		Add(logging.SessionID(c.sessionID)).
		Add(logging.Iteration(iteration)).
		Add(logging.Phase(current)).
		Add(logging.Keys(keys.Sorted())).
		Msg("iteration start")

	if verdict := c.spec.Control().Evaluate(keys); verdict.Preempts() {
		result := c.preemptedResult(verdict, current, iteration, durable)
		if result.Outcome.Terminal() {
			// A terminal verdict still closes the session with an audit
			// record. The durable facts are unchanged and no action ran, so
			// by_action is empty.
			rec, recErr := state.NewRecord(iteration, current.Name(), nil)
			if recErr != nil {
				return Result{}, recErr
			}
			if err := c.store.Save(ctx, c.agentID, c.sessionID, durable, rec); err != nil {
				return Result{}, fmt.Errorf("recording terminal iteration %d: %w", iteration, err)
			}
		}
		c.logOutcome(result, time.Since(start))
		return result, nil
	}

	tpl, ok := c.spec.Procedure(current)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrNoProcedure, current)
	}

	st.BeginIteration()
	byAction := make(map[string]fact.Facts, tpl.Len())
	for _, action := range tpl.Actions() {
		emitted, actErr := action.Execute(ctx, st.Snapshot())
		if actErr != nil {
			// Short-circuit: remaining actions are skipped and nothing from
			// this iteration is persisted.
			result := Result{
				Outcome:   OutcomeFailed,
				Phase:     current,
				Iteration: iteration,
				Durable:   durable,
				ActionErr: actErr,
			}
			logging.Error().
				Add(logging.Component("controller")).
				Add(logging.AgentID(c.agentID)).
				Add(logging.SessionID(c.sessionID)).
				Add(logging.Iteration(iteration)).
				Add(logging.Phase(current)).
				Add(logging.Action(action.Name())).
				Add(logging.ErrorField(actErr)).
				Msg("action failed, discarding iteration")
			return result, nil
		}
		if err := st.Apply(emitted); err != nil {
			return Result{}, fmt.Errorf("applying facts from %q: %w", action.Name(), err)
		}
		byAction[action.Name()] = emitted
	}

	rec, err := state.NewRecord(iteration, current.Name(), byAction)
	if err != nil {
		return Result{}, err
	}
	durableAfter := st.DurableFacts()
	if err := c.store.Save(ctx, c.agentID, c.sessionID, durableAfter, rec); err != nil {
		return Result{}, fmt.Errorf("persisting iteration %d: %w", iteration, err)
	}

	endHash, err := st.DurableHash()
	if err != nil {
		return Result{}, err
	}
	next := c.spec.Transition().DerivePhase(st.DurableKeys())

	result := Result{
		Outcome:   OutcomeAdvanced,
		Phase:     next,
		Iteration: iteration,
		Durable:   durableAfter,
	}
	if endHash == startHash && next == current {
		result.Outcome = OutcomeStalled
		result.Phase = current
	}

	c.logOutcome(result, time.Since(start))
	return result, nil
}

func (c *Controller) preemptedResult(verdict policy.Verdict, current phase.Phase, iteration int, durable fact.Facts) Result {
	result := Result{
		Phase:     current,
		Iteration: iteration,
		Durable:   durable,
		Reason:    verdict.Kind,
		Missing:   verdict.Missing,
		Matched:   verdict.Matched,
	}
	switch verdict.Kind {
	case policy.VerdictCompleted:
		result.Outcome = OutcomeCompleted
	case policy.VerdictFailed:
		result.Outcome = OutcomeFailed
	default:
		result.Outcome = OutcomePaused
	}
	return result
}

func (c *Controller) logOutcome(result Result, elapsed time.Duration) {
	event := logging.Info()
	if result.Outcome == OutcomeFailed || result.Outcome == OutcomeStalled {
		event = logging.Warn()
	}
	event.
		Add(logging.Component("controller")).
		Add(logging.AgentID(c.agentID)).
		Add(logging.SessionID(c.sessionID)).
		Add(logging.Iteration(result.Iteration)).
		Add(logging.Phase(result.Phase)).
		Add(logging.Outcome(string(result.Outcome))).
		Add(logging.MissingKeys(result.Missing)).
		Add(logging.Duration(elapsed)).
		Msg("iteration finished")
}
