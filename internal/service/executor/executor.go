// Package executor applies ordered action lists through an Actuator.
// Execution is best-effort, never transactional: a failed action is
// recorded and the rest of the plan still runs.
package executor

import (
	"context"
	"time"

	"github.com/mholen/hvacctl/internal/actuator"
	"github.com/mholen/hvacctl/internal/audit"
	"github.com/mholen/hvacctl/internal/domain/plan"
	"github.com/mholen/hvacctl/internal/logger"
)

// Retry defaults for the batch surface.
const (
	DefaultAttempts    = 3
	DefaultBaseBackoff = 2 * time.Second
)

// RetryOptions controls the retrying executor variant.
type RetryOptions struct {
	// Attempts is the maximum number of tries per action.
	Attempts int
	// BaseBackoff is multiplied by the attempt number to produce the
	// delay after a failure.
	BaseBackoff time.Duration
	// DryRun is passed through to force operations.
	DryRun bool
}

// Execute applies the actions in list order through the actuator. Order
// is preserved exactly as configured: sequencing constraints (say, damper
// before valve) belong to the configuration, not to the executor. It
// returns true only when every action succeeded.
//
// A force without a value is a configuration error: it is logged as
// failed without touching the actuator, and processing continues.
func Execute(
	ctx context.Context,
	act actuator.Actuator,
	actions []plan.ActionSpec,
	dryRun bool,
	auditLog *audit.Logger,
) bool {
	allOK := true

	for _, action := range actions {
		if err := action.Validate(); err != nil {
			allOK = false

			logAudit(ctx, auditLog, audit.Entry{
				"action":  "auto_action",
				"point":   action.Point,
				"success": false,
				"message": err.Error(),
			})

			continue
		}

		result, err := perform(ctx, act, action, dryRun)
		if err != nil {
			// Context cancellation: record the abort and keep walking the
			// list; remaining calls fail fast the same way.
			result = actuator.Result{
				Point:   action.Point,
				Message: err.Error(),
			}
		}

		logAudit(ctx, auditLog, audit.Entry{
			"action":        "auto_" + string(action.Operation),
			"point":         result.Point,
			"value":         result.RequestedValue,
			"success":       result.Success,
			"message":       result.Message,
			"updated_value": result.ObservedValue,
			"dry_run":       dryRun,
		})

		allOK = allOK && result.Success
	}

	return allOK
}

// ExecuteWithRetry is the batch variant: each action gets up to
// opts.Attempts tries with a linear backoff (base delay times attempt
// number) between failures, stopping at first success. Like Execute it is
// best-effort across actions and returns the aggregate outcome.
func ExecuteWithRetry(
	ctx context.Context,
	act actuator.Actuator,
	actions []plan.ActionSpec,
	opts RetryOptions,
	auditLog *audit.Logger,
) bool {
	if opts.Attempts <= 0 {
		opts.Attempts = DefaultAttempts
	}

	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = DefaultBaseBackoff
	}

	allOK := true

	for _, action := range actions {
		if err := action.Validate(); err != nil {
			allOK = false

			logger.ErrorKV(ctx, "Invalid batch operation", "point", action.Point, "error", err)
			logAudit(ctx, auditLog, audit.Entry{
				"action":  string(action.Operation),
				"point":   action.Point,
				"success": false,
				"message": err.Error(),
			})

			continue
		}

		if !runWithRetry(ctx, act, action, opts, auditLog) {
			allOK = false
		}
	}

	return allOK
}

// runWithRetry drives the attempts for a single action.
func runWithRetry(
	ctx context.Context,
	act actuator.Actuator,
	action plan.ActionSpec,
	opts RetryOptions,
	auditLog *audit.Logger,
) bool {
	for attempt := 1; attempt <= opts.Attempts; attempt++ {
		result, err := perform(ctx, act, action, opts.DryRun)
		if err != nil {
			result = actuator.Result{
				Point:   action.Point,
				Message: err.Error(),
			}
		}

		logAudit(ctx, auditLog, audit.Entry{
			"action":        string(action.Operation),
			"point":         result.Point,
			"value":         result.RequestedValue,
			"success":       result.Success,
			"message":       result.Message,
			"updated_value": result.ObservedValue,
			"dry_run":       opts.DryRun,
			"attempt":       attempt,
		})

		if result.Success {
			logger.InfoKV(ctx, "Batch operation succeeded",
				"operation", action.Operation, "point", action.Point, "attempt", attempt)

			return true
		}

		logger.WarnKV(ctx, "Batch operation failed",
			"operation", action.Operation, "point", action.Point, "attempt", attempt, "message", result.Message)

		if attempt < opts.Attempts {
			if !sleep(ctx, opts.BaseBackoff*time.Duration(attempt)) {
				return false
			}
		}
	}

	return false
}

// perform issues one actuator call for the action.
func perform(
	ctx context.Context,
	act actuator.Actuator,
	action plan.ActionSpec,
	dryRun bool,
) (actuator.Result, error) {
	switch action.Operation {
	case plan.OpForce:
		return act.Force(ctx, action.Point, *action.Value, dryRun)
	case plan.OpUnforce:
		return act.Unforce(ctx, action.Point)
	default:
		return act.Read(ctx, action.Point)
	}
}

// sleep waits for the backoff delay, honoring cancellation. It returns
// false when the context ended first.
func sleep(ctx context.Context, delay time.Duration) bool {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// logAudit appends one audit record, reporting write failures to the
// diagnostic log so a broken audit file never interrupts actuation.
func logAudit(ctx context.Context, auditLog *audit.Logger, entry audit.Entry) {
	if err := auditLog.Log(entry); err != nil {
		logger.ErrorKV(ctx, "Audit write failed", "error", err)
	}
}
