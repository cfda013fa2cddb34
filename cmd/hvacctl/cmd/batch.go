package cmd

import (
	"github.com/spf13/cobra"

	"github.com/mholen/hvacctl/internal/config"
	"github.com/mholen/hvacctl/internal/service/batch"
	"github.com/mholen/hvacctl/internal/service/executor"
)

var (
	// batchRetries is the maximum attempts per operation.
	batchRetries int
	// batchBackoffSeconds is the base backoff between failed attempts.
	batchBackoffSeconds float64
	// batchDryRun records force intent without committing.
	batchDryRun bool

	// batchCmd applies an operations file with retries.
	batchCmd = &cobra.Command{
		Use:   "batch <operations-file>",
		Short: "Apply an operations file with per-operation retries.",
		Long: `Run an ordered list of force, unforce and read operations from a JSON file
(either a bare list or an object with an "operations" list). Each operation
is retried with a linearly growing backoff until it succeeds or the attempt
budget is exhausted; a failed operation never stops the rest of the list.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			operations, err := batch.LoadOperations(args[0])
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

			return batch.Run(ctx, act, operations, executor.RetryOptions{
				Attempts:    batchRetries,
				BaseBackoff: secondsToDuration(batchBackoffSeconds),
				DryRun:      batchDryRun,
			}, auditLog)
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	batchCmd.Flags().IntVar(&batchRetries, "retries", executor.DefaultAttempts,
		"maximum attempts per operation")
	batchCmd.Flags().Float64Var(&batchBackoffSeconds, "backoff-seconds", 2,
		"base backoff in seconds, multiplied by the attempt number")
	batchCmd.Flags().BoolVar(&batchDryRun, "dry-run", false,
		"record force intent without committing")

	rootCmd.AddCommand(batchCmd)
}
