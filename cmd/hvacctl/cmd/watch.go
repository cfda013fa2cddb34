package cmd

import (
	"github.com/spf13/cobra"

	"github.com/mholen/hvacctl/internal/audit"
	"github.com/mholen/hvacctl/internal/config"
	"github.com/mholen/hvacctl/internal/repository/history"
	"github.com/mholen/hvacctl/internal/service/bulk"
)

var (
	// watchIntervalSeconds is the period between snapshots.
	watchIntervalSeconds float64
	// watchReadingsFile is the JSONL stream of snapshots.
	watchReadingsFile string
	// watchWorkers bounds the parallel read fan-out.
	watchWorkers int

	// watchCmd runs the periodic bulk-read loop.
	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Periodically snapshot the whole point catalog.",
		Long: `Read every cataloged point in parallel on a fixed interval and record each
snapshot three ways: appended to a JSONL readings stream, stored in the
sqlite history database, and (when a broker is configured) published to
MQTT. Failures of individual points or sinks never stop the loop.`,
		RunE: func(_ *cobra.Command, _ []string) error {
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

			readings, err := audit.Open(watchReadingsFile)
			if err != nil {
				return err
			}

			defer func() {
				_ = readings.Close()
			}()

			store, err := history.Open(cfg.HistoryPath)
			if err != nil {
				return err
			}

			defer func() {
				_ = store.Close()
			}()

			if err = store.Init(ctx); err != nil {
				return err
			}

			opts := []bulk.WatcherOption{
				bulk.WithReadingsLog(readings),
				bulk.WithHistory(store),
			}

			if cfg.MQTT.Broker != "" {
				publisher := bulk.NewMQTTPublisher(cfg.MQTT)
				if err = publisher.Connect(ctx); err != nil {
					return err
				}

				defer publisher.Close()

				opts = append(opts, bulk.WithPublisher(publisher))
			}

			reader := bulk.NewReader(act, cfg.Points, bulk.WithWorkers(watchWorkers))
			watcher := bulk.NewWatcher(reader, secondsToDuration(watchIntervalSeconds), opts...)

			return watcher.Run(ctx)
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	watchCmd.Flags().Float64Var(&watchIntervalSeconds, "interval-seconds", 3600,
		"period between snapshots in seconds")
	watchCmd.Flags().StringVar(&watchReadingsFile, "readings-file", "hvac_readings.jsonl",
		"JSONL file the snapshots are appended to")
	watchCmd.Flags().IntVar(&watchWorkers, "workers", bulk.DefaultWorkers,
		"parallel point reads")

	rootCmd.AddCommand(watchCmd)
}
