package policy

import (
	"github.com/felixgeelhaar/factrun/domain/fact"
)

// VerdictKind classifies the result of evaluating the control policy.
type VerdictKind string

const (
	// VerdictNone means no control condition fired; the iteration proceeds.
	VerdictNone VerdictKind = "none"

	// VerdictFailed means a failure key is present; the session is over.
	VerdictFailed VerdictKind = "failed"

	// VerdictNeedsState means required state keys are missing; the session
	// pauses until state gathering supplies them.
	VerdictNeedsState VerdictKind = "needs_state"

	// VerdictAwaitingInput means user-required keys are missing; the session
	// pauses until external input supplies them.
	VerdictAwaitingInput VerdictKind = "awaiting_input"

	// VerdictCompleted means a completion key is present; the session is done.
	VerdictCompleted VerdictKind = "completed"
)

// Verdict is the outcome of one control policy evaluation. Missing lists the
// unsatisfied keys for the pausing verdicts; Matched lists the keys that
// triggered a terminal verdict.
type Verdict struct {
	Kind    VerdictKind
	Missing []string
	Matched []string
}

// Preempts reports whether the verdict stops the iteration before the
// procedure runs.
func (v Verdict) Preempts() bool {
	return v.Kind != VerdictNone
}

// Control is evaluated against the durable key set at the start of every
// iteration, before any procedure runs. Each of the four key sets is
// independent and optional.
type Control struct {
	// RequiredStateKeys must all be present for procedures to run.
	RequiredStateKeys fact.KeySet

	// UserRequiredKeys must all be present; missing ones pause the session
	// waiting for external input.
	UserRequiredKeys fact.KeySet

	// CompletionKeys signal success when any subset is fully present.
	CompletionKeys fact.KeySet

	// FailureKeys signal a terminal failure when any is present.
	FailureKeys fact.KeySet
}

// NewControl creates a validated control policy. Completion and failure keys
// must be disjoint; a shared key would make one durable fact mean both
// success and failure.
func NewControl(requiredState, userRequired, completion, failure fact.KeySet) (Control, error) {
	if completion.Intersects(failure) {
		return Control{}, ErrKeyOverlap
	}
	return Control{
		RequiredStateKeys: requiredState,
		UserRequiredKeys:  userRequired,
		CompletionKeys:    completion,
		FailureKeys:       failure,
	}, nil
}

// Evaluate checks the durable key set against the four conditions. Order is
// fixed: failure, then required state, then user input, then completion.
func (c Control) Evaluate(keys fact.KeySet) Verdict {
	if c.FailureKeys.Len() > 0 && keys.Intersects(c.FailureKeys) {
		var matched []string
		for _, k := range c.FailureKeys.Sorted() {
			if keys.Contains(k) {
				matched = append(matched, k)
			}
		}
		return Verdict{Kind: VerdictFailed, Matched: matched}
	}

	if missing := keys.Missing(c.RequiredStateKeys); len(missing) > 0 {
		return Verdict{Kind: VerdictNeedsState, Missing: missing}
	}

	if missing := keys.Missing(c.UserRequiredKeys); len(missing) > 0 {
		return Verdict{Kind: VerdictAwaitingInput, Missing: missing}
	}

	if c.CompletionKeys.Len() > 0 && keys.ContainsAll(c.CompletionKeys) {
		return Verdict{Kind: VerdictCompleted, Matched: c.CompletionKeys.Sorted()}
	}

	return Verdict{Kind: VerdictNone}
}

// ReferencedKeys returns every key the control policy mentions.
func (c Control) ReferencedKeys() fact.KeySet {
	return c.RequiredStateKeys.
		Union(c.UserRequiredKeys).
		Union(c.CompletionKeys).
		Union(c.FailureKeys)
}
