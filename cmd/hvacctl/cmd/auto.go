package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/mholen/hvacctl/internal/config"
	"github.com/mholen/hvacctl/internal/repository/state"
	"github.com/mholen/hvacctl/internal/service/controller"
)

var (
	// autoOnce runs exactly one evaluation cycle.
	autoOnce bool
	// autoDryRun overrides the configured dry-run flag.
	autoDryRun bool
	// autoCycleSeconds overrides the configured cycle period.
	autoCycleSeconds float64
	// autoCooldownSeconds overrides the configured cooldown.
	autoCooldownSeconds float64
	// autoStatePath overrides the configured state file.
	autoStatePath string

	// autoCmd runs the automatic control loop.
	autoCmd = &cobra.Command{
		Use:   "auto",
		Short: "Run the automatic setpoint control loop.",
		Long: `Evaluate the configured sensors, classify the indoor climate and apply the
matching action list, with cooldown suppression between identical action
classes. With --once a single cycle runs and the exit status reports its
outcome; otherwise the loop runs until interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
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

			statePath := cfg.StatePath
			if autoStatePath != "" {
				statePath = autoStatePath
			}

			opts := []controller.Option{
				controller.WithCycleInterval(secondsToDuration(autoCycleSeconds)),
				controller.WithCooldown(secondsToDuration(autoCooldownSeconds)),
			}

			if cmd.Flags().Changed("dry-run") {
				opts = append(opts, controller.WithDryRun(autoDryRun))
			}

			loop := controller.New(cfg, act, state.NewFileRepository(statePath), auditLog, opts...)

			if autoOnce {
				return loop.RunOnce(ctx)
			}

			return loop.Run(ctx)
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	autoCmd.Flags().BoolVar(&autoOnce, "once", false, "evaluate a single cycle and exit")
	autoCmd.Flags().BoolVar(&autoDryRun, "dry-run", false, "record force intent without committing")
	autoCmd.Flags().Float64Var(&autoCycleSeconds, "cycle-seconds", 0, "override cycle period in seconds")
	autoCmd.Flags().Float64Var(&autoCooldownSeconds, "cooldown-seconds", 0, "override cooldown in seconds")
	autoCmd.Flags().StringVar(&autoStatePath, "state-path", "", "override controller state file path")

	rootCmd.AddCommand(autoCmd)
}

// secondsToDuration converts a seconds flag to a duration, zero stays zero.
func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
