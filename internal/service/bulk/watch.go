package bulk

import (
	"context"
	"time"

	"github.com/mholen/hvacctl/internal/audit"
	"github.com/mholen/hvacctl/internal/logger"
	"github.com/mholen/hvacctl/internal/repository/history"
)

// Publisher pushes snapshots to an external sink.
type Publisher interface {
	Publish(ctx context.Context, snap *Snapshot) error
}

// Watcher runs the periodic bulk-read loop for dashboards: read all
// points, append the readings record, store history, publish. Per-cycle
// errors are logged and the loop continues.
type Watcher struct {
	reader   *Reader
	interval time.Duration

	// readings is the append-only JSONL stream of snapshots, nil to skip.
	readings *audit.Logger
	// store receives every snapshot, nil to skip.
	store *history.Repository
	// publisher forwards snapshots to a broker, nil to skip.
	publisher Publisher
}

// WatcherOption configures the watcher's optional sinks.
type WatcherOption func(*Watcher)

// WithReadingsLog appends every snapshot to a JSONL stream.
func WithReadingsLog(readings *audit.Logger) WatcherOption {
	return func(w *Watcher) {
		w.readings = readings
	}
}

// WithHistory stores every snapshot in the history repository.
func WithHistory(store *history.Repository) WatcherOption {
	return func(w *Watcher) {
		w.store = store
	}
}

// WithPublisher forwards every snapshot to the publisher.
func WithPublisher(publisher Publisher) WatcherOption {
	return func(w *Watcher) {
		w.publisher = publisher
	}
}

// NewWatcher creates a watcher reading on the given interval.
func NewWatcher(reader *Reader, interval time.Duration, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		reader:   reader,
		interval: interval,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Run loops until the context is cancelled. The first snapshot is taken
// immediately.
func (w *Watcher) Run(ctx context.Context) error {
	ctx = logger.WithName(ctx, "watch")

	logger.InfoKV(ctx, "Watching points", "interval", w.interval.String())

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	cycle := 0

	for {
		cycle++
		w.runCycle(ctx, cycle)

		select {
		case <-ctx.Done():
			logger.Infof(ctx, "Watch stopped after %d cycles", cycle)
			return nil
		case <-ticker.C:
		}
	}
}

// runCycle takes one snapshot and feeds every configured sink.
func (w *Watcher) runCycle(ctx context.Context, cycle int) {
	snap := w.reader.ReadAll(ctx)

	okPoints := 0

	for _, sample := range snap.Points {
		if sample.Success {
			okPoints++
		}
	}

	logger.InfoKV(ctx, "Snapshot taken",
		"cycle", cycle, "ok_points", okPoints, "total_points", len(snap.Points))

	if w.readings != nil {
		if err := w.readings.Log(audit.Entry{
			"cycle":           cycle,
			"points":          snap.Points,
			"temperature_avg": snap.TemperatureAvg,
			"humidity_avg":    snap.HumidityAvg,
		}); err != nil {
			logger.ErrorKV(ctx, "Readings write failed", "error", err)
		}
	}

	if w.store != nil {
		if err := w.store.SaveSnapshot(ctx, snap.HistorySnapshot()); err != nil {
			logger.ErrorKV(ctx, "History write failed", "error", err)
		}
	}

	if w.publisher != nil {
		if err := w.publisher.Publish(ctx, snap); err != nil {
			logger.ErrorKV(ctx, "Snapshot publish failed", "error", err)
		}
	}
}
