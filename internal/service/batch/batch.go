// Package batch runs an operations file (an ordered list of force,
// unforce and read commands) through the retrying executor.
package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mholen/hvacctl/internal/actuator"
	"github.com/mholen/hvacctl/internal/audit"
	"github.com/mholen/hvacctl/internal/domain/plan"
	"github.com/mholen/hvacctl/internal/logger"
	"github.com/mholen/hvacctl/internal/service/executor"
)

// ErrOperationsFailed is returned when at least one operation exhausted
// its retries.
var ErrOperationsFailed = errors.New("one or more batch operations failed")

// LoadOperations reads an operations file: either a bare JSON list of
// actions or an object with an "operations" list.
func LoadOperations(path string) ([]plan.ActionSpec, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read operations file: %w", err)
	}

	var operations []plan.ActionSpec
	if err = json.Unmarshal(contents, &operations); err == nil {
		return operations, nil
	}

	var wrapped struct {
		Operations []plan.ActionSpec `json:"operations"`
	}

	if err = json.Unmarshal(contents, &wrapped); err != nil {
		return nil, fmt.Errorf("decode operations file: %w", err)
	}

	return wrapped.Operations, nil
}

// Run executes the operations best-effort with per-operation retries and
// returns ErrOperationsFailed when any of them never succeeded.
func Run(
	ctx context.Context,
	act actuator.Actuator,
	operations []plan.ActionSpec,
	opts executor.RetryOptions,
	auditLog *audit.Logger,
) error {
	ctx = logger.WithName(ctx, "batch")

	logger.InfoKV(ctx, "Running batch operations",
		"operations", len(operations),
		"attempts", opts.Attempts,
		"dry_run", opts.DryRun)

	if executor.ExecuteWithRetry(ctx, act, operations, opts, auditLog) {
		return nil
	}

	return ErrOperationsFailed
}
