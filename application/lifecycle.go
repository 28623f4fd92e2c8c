package application

import (
	"fmt"

	"github.com/felixgeelhaar/statekit"
)

// Session lifecycle state IDs.
const (
	lifecycleActive    statekit.StateID = "active"
	lifecyclePaused    statekit.StateID = "paused"
	lifecycleCompleted statekit.StateID = "completed"
	lifecycleFailed    statekit.StateID = "failed"
	lifecycleStalled   statekit.StateID = "stalled"
)

// lifecycleContext carries session progress through the statechart.
type lifecycleContext struct {
	AgentID     string
	SessionID   string
	Iterations  int
	LastOutcome Outcome
}

// recordOutcome notes the outcome that caused a lifecycle transition.
// Statekit actions receive a pointer to the machine context; ours is a
// pointer already, hence the double indirection.
func recordOutcome(ctx **lifecycleContext, event statekit.Event) {
	if ctx == nil || *ctx == nil {
		return
	}
	if outcome, ok := event.Payload.(Outcome); ok {
		(*ctx).LastOutcome = outcome
	}
}

// newLifecycleMachine builds the session lifecycle statechart. The runner
// feeds iteration outcomes in as events; the chart owns which lifecycle
// transitions exist.
func newLifecycleMachine() (*statekit.MachineConfig[*lifecycleContext], error) {
	return statekit.NewMachine[*lifecycleContext]("session").
		WithInitial(lifecycleActive).
		WithContext(&lifecycleContext{}).
		WithAction("recordOutcome", recordOutcome).
		State(lifecycleActive).
			On("PAUSE").Target(lifecyclePaused).Do("recordOutcome").
			On("COMPLETE").Target(lifecycleCompleted).Do("recordOutcome").
			On("FAIL").Target(lifecycleFailed).Do("recordOutcome").
			On("STALL").Target(lifecycleStalled).Do("recordOutcome").
			Done().
		State(lifecyclePaused).
			On("RESUME").Target(lifecycleActive).
			Done().
		State(lifecycleCompleted).
			Final().
			Done().
		State(lifecycleFailed).
			Final().
			Done().
		State(lifecycleStalled).
			Final().
			Done().
		Build()
}

// lifecycle wraps a statekit interpreter over the session chart.
type lifecycle struct {
	interp *statekit.Interpreter[*lifecycleContext]
	ctx    *lifecycleContext
}

func newLifecycle(agentID, sessionID string) (*lifecycle, error) {
	machine, err := newLifecycleMachine()
	if err != nil {
		return nil, fmt.Errorf("building session lifecycle: %w", err)
	}
	ctx := &lifecycleContext{AgentID: agentID, SessionID: sessionID}
	interp := statekit.NewInterpreter(machine)
	interp.UpdateContext(func(c **lifecycleContext) {
		*c = ctx
	})
	interp.Start()
	return &lifecycle{interp: interp, ctx: ctx}, nil
}

// observe translates an iteration result into a lifecycle event.
func (l *lifecycle) observe(result Result) {
	l.ctx.Iterations = result.Iteration

	var eventType statekit.EventType
	switch result.Outcome {
	case OutcomeAdvanced:
		return
	case OutcomePaused:
		eventType = "PAUSE"
	case OutcomeCompleted:
		eventType = "COMPLETE"
	case OutcomeStalled:
		eventType = "STALL"
	case OutcomeFailed:
		eventType = "FAIL"
	}
	l.interp.Send(statekit.Event{Type: eventType, Payload: result.Outcome})
}

// resume moves a paused session back to active.
func (l *lifecycle) resume() {
	if l.interp.Matches(lifecyclePaused) {
		l.interp.Send(statekit.Event{Type: "RESUME"})
	}
}

// done reports whether the session reached a final lifecycle state.
func (l *lifecycle) done() bool {
	return l.interp.Done()
}

// paused reports whether the session is waiting on external input.
func (l *lifecycle) paused() bool {
	return l.interp.Matches(lifecyclePaused)
}
