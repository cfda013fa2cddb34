package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mholen/hvacctl/internal/actuator"
	"github.com/mholen/hvacctl/internal/audit"
	"github.com/mholen/hvacctl/internal/config"
)

// forceDryRun records force intent without committing.
var forceDryRun bool

// errOperationFailed is returned when a single point operation did not
// succeed remotely.
var errOperationFailed = errors.New("operation failed")

// readCmd reads one point.
var readCmd = &cobra.Command{
	Use:   "read <point>",
	Short: "Read one point's current value.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPointOperation(cmd, "read", func(ctx context.Context, act actuator.Actuator) (actuator.Result, error) {
			return act.Read(ctx, args[0])
		})
	},
}

// forceCmd overrides one point's value.
var forceCmd = &cobra.Command{
	Use:   "force <point> <value>",
	Short: "Override one point's value.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPointOperation(cmd, "force", func(ctx context.Context, act actuator.Actuator) (actuator.Result, error) {
			return act.Force(ctx, args[0], args[1], forceDryRun)
		})
	},
}

// unforceCmd releases one point's override.
var unforceCmd = &cobra.Command{
	Use:   "unforce <point>",
	Short: "Release one point's override.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPointOperation(cmd, "unforce", func(ctx context.Context, act actuator.Actuator) (actuator.Result, error) {
			return act.Unforce(ctx, args[0])
		})
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	forceCmd.Flags().BoolVar(&forceDryRun, "dry-run", false, "record force intent without committing")

	rootCmd.AddCommand(readCmd, forceCmd, unforceCmd)
}

// runPointOperation executes one actuator call, appends the audit record
// and prints the outcome.
func runPointOperation(
	cmd *cobra.Command,
	operation string,
	call func(ctx context.Context, act actuator.Actuator) (actuator.Result, error),
) error {
	ctx, stop := signalContext()
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	act, err := buildActuator(cfg)
	if err != nil {
		return err
	}

	auditLog, err := openAudit(cfg)
	if err != nil {
		return err
	}

	defer func() {
		_ = auditLog.Close()
	}()

	result, err := call(ctx, act)
	if err != nil {
		return err
	}

	_ = auditLog.Log(audit.Entry{
		"action":        operation,
		"point":         result.Point,
		"value":         result.RequestedValue,
		"success":       result.Success,
		"message":       result.Message,
		"updated_value": result.ObservedValue,
		"dry_run":       result.DryRun,
	})

	if !result.Success {
		return fmt.Errorf("%w: %s", errOperationFailed, result.Message)
	}

	if result.ObservedValue != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "%s = %s %s\n", result.Point, result.ObservedValue, result.Unit)
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), result.Message)
	}

	return nil
}
