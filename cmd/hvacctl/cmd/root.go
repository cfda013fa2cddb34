package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mholen/hvacctl/internal/actuator"
	"github.com/mholen/hvacctl/internal/actuator/httpapi"
	"github.com/mholen/hvacctl/internal/audit"
	"github.com/mholen/hvacctl/internal/config"
	"github.com/mholen/hvacctl/internal/logger"
	"github.com/mholen/hvacctl/internal/version"
)

var (
	// configPath stores the path to the configuration YAML file.
	configPath string
	// logLevel stores the requested minimum diagnostic log level.
	logLevel string

	// rootCmd is the base command every surface hangs off.
	rootCmd = &cobra.Command{
		Use:   "hvacctl",
		Short: "HVAC setpoint controller for a remote building-management endpoint.",
		Long: `hvacctl reads sensor points from a building-management endpoint, classifies
the indoor climate and forces or releases setpoint overrides accordingly.

Surfaces:
  auto     run the automatic control loop (once or forever)
  batch    apply an operations file with per-operation retries
  read     read one point
  force    override one point's value
  unforce  release one point's override
  watch    periodically snapshot the whole point catalog

Every actuation attempt and every evaluation is appended to a JSONL audit
log for machine consumption; diagnostics go to stderr.`,
		SilenceUsage: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if level, ok := logger.ParseLogLevel(logLevel); ok {
				logger.SetLevel(level)
			}
		},
	}

	// errEndpointRequired is returned by commands that need a remote
	// endpoint when the configuration has none.
	errEndpointRequired = errors.New("endpoint.base_url must be configured")
)

// Execute runs the hvacctl CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c",
		config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"minimum diagnostic log level (debug, info, warn, error)")
}

// signalContext returns a context cancelled by SIGTERM or SIGINT.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
}

// buildActuator constructs the HTTP actuator from the endpoint settings.
func buildActuator(cfg *config.Config) (actuator.Actuator, error) {
	if cfg.Endpoint.BaseURL == "" {
		return nil, errEndpointRequired
	}

	opts := []httpapi.Option{httpapi.WithCallTimeout(cfg.EndpointTimeout())}
	if cfg.Endpoint.InsecureTLS {
		opts = append(opts, httpapi.WithInsecureTLS())
	}

	client, err := httpapi.New(cfg.Endpoint.BaseURL, opts...)
	if err != nil {
		return nil, err
	}

	if cfg.Endpoint.SessionFile != "" {
		if err = client.LoadSession(cfg.Endpoint.SessionFile); err != nil {
			return nil, err
		}
	}

	return client, nil
}

// openAudit opens the configured JSONL audit log.
func openAudit(cfg *config.Config) (*audit.Logger, error) {
	return audit.Open(cfg.AuditLogPath)
}
