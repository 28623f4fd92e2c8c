package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/fortify/retry"

	"github.com/felixgeelhaar/factrun/infrastructure/logging"
)

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	// Controller executes the iterations.
	Controller *Controller

	// MaxIterations caps the run loop. Zero means the default.
	MaxIterations int

	// RetryMaxAttempts bounds the retries of a failed iteration. Zero means
	// the default.
	RetryMaxAttempts int

	// RetryInitialDelay is the first retry backoff delay.
	RetryInitialDelay time.Duration

	// RetryBackoffMultiplier is the exponential backoff multiplier.
	RetryBackoffMultiplier float64
}

// DefaultRunnerConfig returns a configuration with sensible defaults.
func DefaultRunnerConfig(ctrl *Controller) RunnerConfig {
	return RunnerConfig{
		Controller:             ctrl,
		MaxIterations:          100,
		RetryMaxAttempts:       3,
		RetryInitialDelay:      100 * time.Millisecond,
		RetryBackoffMultiplier: 2.0,
	}
}

// Runner drives a controller until the session reaches a terminal outcome or
// pauses. The controller never retries; the runner is the runtime boundary,
// so retryable iteration failures are retried here with exponential backoff,
// and the session lifecycle is tracked by a statechart.
type Runner struct {
	ctrl  *Controller
	max   int
	retry retry.Retry[Result]
}

// NewRunner creates a runner.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.Controller == nil {
		return nil, ErrNilSpec
	}
	defaults := DefaultRunnerConfig(cfg.Controller)
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = defaults.MaxIterations
	}
	if cfg.RetryMaxAttempts <= 0 {
		cfg.RetryMaxAttempts = defaults.RetryMaxAttempts
	}
	if cfg.RetryInitialDelay <= 0 {
		cfg.RetryInitialDelay = defaults.RetryInitialDelay
	}
	if cfg.RetryBackoffMultiplier <= 0 {
		cfg.RetryBackoffMultiplier = defaults.RetryBackoffMultiplier
	}

	return &Runner{
		ctrl: cfg.Controller,
		max:  cfg.MaxIterations,
		retry: retry.New[Result](retry.Config{
			MaxAttempts:   cfg.RetryMaxAttempts,
			InitialDelay:  cfg.RetryInitialDelay,
			BackoffPolicy: retry.BackoffExponential,
			Multiplier:    cfg.RetryBackoffMultiplier,
		}),
	}, nil
}

// retryableFailure carries a retryable iteration result through the retry
// executor as an error.
type retryableFailure struct {
	result Result
}

func (e *retryableFailure) Error() string {
	return fmt.Sprintf("iteration %d failed: %v", e.result.Iteration, e.result.ActionErr)
}

func (e *retryableFailure) Unwrap() error {
	return e.result.ActionErr
}

// Run drives iterations until the session completes, fails, stalls or
// pauses. A paused result is not an error: the caller decides when to invoke
// Run again, typically after supplying the missing input facts.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	lc, err := newLifecycle(r.ctrl.agentID, r.ctrl.sessionID)
	if err != nil {
		return Result{}, err
	}

	var last Result
	for i := 0; i < r.max; i++ {
		result, err := r.runOnce(ctx)
		if err != nil {
			return last, err
		}
		last = result
		lc.observe(result)

		if lc.done() {
			logging.Info().
				Add(logging.Component("runner")).
				Add(logging.AgentID(r.ctrl.agentID)).
				Add(logging.SessionID(r.ctrl.sessionID)).
				Add(logging.Iteration(result.Iteration)).
				Add(logging.Outcome(string(result.Outcome))).
				Msg("session finished")
			return result, nil
		}
		if lc.paused() {
			logging.Info().
				Add(logging.Component("runner")).
				Add(logging.AgentID(r.ctrl.agentID)).
				Add(logging.SessionID(r.ctrl.sessionID)).
				Add(logging.Iteration(result.Iteration)).
				Add(logging.MissingKeys(result.Missing)).
				Msg("session paused")
			return result, nil
		}
	}

	return last, fmt.Errorf("%w: %d iterations", ErrIterationBudget, r.max)
}

// runOnce executes one iteration, retrying retryable failures with backoff.
func (r *Runner) runOnce(ctx context.Context) (Result, error) {
	attempt := 0
	result, err := r.retry.Do(ctx, func(ctx context.Context) (Result, error) {
		attempt++
		res, err := r.ctrl.RunIteration(ctx)
		if err != nil {
			return Result{}, err
		}
		if res.Retryable() {
			logging.Warn().
				Add(logging.Component("runner")).
				Add(logging.AgentID(r.ctrl.agentID)).
				Add(logging.SessionID(r.ctrl.sessionID)).
				Add(logging.Iteration(res.Iteration)).
				Add(logging.Attempt(attempt)).
				Add(logging.ErrorField(res.ActionErr)).
				Msg("retrying failed iteration")
			return Result{}, &retryableFailure{result: res}
		}
		return res, nil
	})
	if err != nil {
		// Retries exhausted on an action failure: surface the failed result
		// instead of an error so the lifecycle can settle on failed.
		if failure, ok := lastRetryable(err); ok {
			return failure.result, nil
		}
		return Result{}, err
	}
	return result, nil
}

func lastRetryable(err error) (*retryableFailure, bool) {
	var failure *retryableFailure
	if errors.As(err, &failure) {
		return failure, true
	}
	return nil, false
}
