package application

import (
	"github.com/felixgeelhaar/factrun/domain/fact"
	"github.com/felixgeelhaar/factrun/domain/phase"
	"github.com/felixgeelhaar/factrun/domain/policy"
)

// Outcome classifies the result of one iteration.
type Outcome string

const (
	// OutcomeAdvanced means the iteration ran and durable state moved.
	OutcomeAdvanced Outcome = "advanced"

	// OutcomePaused means the control policy is waiting on missing keys.
	OutcomePaused Outcome = "paused"

	// OutcomeCompleted means a completion key set is satisfied.
	OutcomeCompleted Outcome = "completed"

	// OutcomeFailed means either a failure key is present (terminal) or an
	// action returned an error (iteration-local, retryable).
	OutcomeFailed Outcome = "failed"

	// OutcomeStalled means the iteration ran but neither the durable state
	// nor the phase changed; the session would loop forever.
	OutcomeStalled Outcome = "stalled"
)

// Terminal reports whether the outcome ends the session.
func (o Outcome) Terminal() bool {
	return o == OutcomeCompleted || o == OutcomeFailed || o == OutcomeStalled
}

// Result describes one controller iteration.
type Result struct {
	// Outcome classifies what happened.
	Outcome Outcome

	// Phase is the phase after the iteration: the freshly derived phase when
	// the iteration advanced, otherwise the phase it ran (or would have run)
	// in.
	Phase phase.Phase

	// Iteration is the 1-based iteration number.
	Iteration int

	// Reason is the control verdict behind a preempted outcome. For a pause
	// it names which key set is unsatisfied (needs_state vs awaiting_input);
	// for completed and policy failures it names the terminal verdict. Zero
	// when the procedure ran.
	Reason policy.VerdictKind

	// Missing lists the unsatisfied policy keys when paused.
	Missing []string

	// Matched lists the keys that triggered completion or a terminal
	// failure.
	Matched []string

	// Durable is the durable fact state after the iteration.
	Durable fact.Facts

	// ActionErr is the action error for a retryable failed iteration. Nil
	// for a terminal failure raised by the control policy.
	ActionErr error
}

// Retryable reports whether re-running the iteration could succeed: only
// action failures are, terminal failures and stalls are not.
func (r Result) Retryable() bool {
	return r.Outcome == OutcomeFailed && r.ActionErr != nil
}
