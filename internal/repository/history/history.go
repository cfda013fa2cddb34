// Package history stores bulk-read snapshots in a local sqlite database
// so the dashboard surface has queryable history beyond the JSONL stream.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Register the sqlite3 driver.
	_ "github.com/mattn/go-sqlite3"
)

// PointSample is one point reading inside a snapshot.
type PointSample struct {
	Point    string
	Name     string
	Value    string
	Unit     string
	Category string
	Success  bool
	Error    string
}

// Snapshot is one bulk-read cycle: every point sample plus the
// per-category averages computed over the successful readings.
type Snapshot struct {
	TakenAt        time.Time
	Points         []PointSample
	TemperatureAvg *float64
	HumidityAvg    *float64
	PressureAvg    *float64
}

// CycleSummary is the stored header of one snapshot, newest first.
type CycleSummary struct {
	ID             int64
	TakenAt        time.Time
	TemperatureAvg *float64
	HumidityAvg    *float64
	PressureAvg    *float64
	OKPoints       int
	TotalPoints    int
}

// Repository persists snapshots to sqlite.
type Repository struct {
	db *sql.DB
}

// Open creates (or reopens) the snapshot database at path.
func Open(path string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	return &Repository{db: db}, nil
}

// Init creates the schema when absent.
func (r *Repository) Init(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS cycles (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	taken_at        TEXT    NOT NULL,
	temperature_avg REAL,
	humidity_avg    REAL,
	pressure_avg    REAL,
	ok_points       INTEGER NOT NULL,
	total_points    INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS readings (
	cycle_id INTEGER NOT NULL REFERENCES cycles(id),
	point    TEXT    NOT NULL,
	name     TEXT,
	value    TEXT,
	unit     TEXT,
	category TEXT,
	success  INTEGER NOT NULL,
	error    TEXT
);
CREATE INDEX IF NOT EXISTS idx_readings_cycle ON readings(cycle_id);`

	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create history schema: %w", err)
	}

	return nil
}

// SaveSnapshot stores one snapshot and all its point samples atomically.
func (r *Repository) SaveSnapshot(ctx context.Context, snap *Snapshot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin history transaction: %w", err)
	}

	defer func() {
		_ = tx.Rollback()
	}()

	okPoints := 0

	for _, sample := range snap.Points {
		if sample.Success {
			okPoints++
		}
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO cycles (taken_at, temperature_avg, humidity_avg, pressure_avg, ok_points, total_points)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		snap.TakenAt.UTC().Format(time.RFC3339Nano),
		snap.TemperatureAvg,
		snap.HumidityAvg,
		snap.PressureAvg,
		okPoints,
		len(snap.Points),
	)
	if err != nil {
		return fmt.Errorf("insert cycle: %w", err)
	}

	cycleID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("cycle id: %w", err)
	}

	for _, sample := range snap.Points {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO readings (cycle_id, point, name, value, unit, category, success, error)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			cycleID,
			sample.Point,
			sample.Name,
			sample.Value,
			sample.Unit,
			sample.Category,
			sample.Success,
			sample.Error,
		); err != nil {
			return fmt.Errorf("insert reading for %s: %w", sample.Point, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit history transaction: %w", err)
	}

	return nil
}

// RecentCycles returns up to limit snapshot headers, newest first.
func (r *Repository) RecentCycles(ctx context.Context, limit int) ([]CycleSummary, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, taken_at, temperature_avg, humidity_avg, pressure_avg, ok_points, total_points
		 FROM cycles ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query cycles: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	var summaries []CycleSummary

	for rows.Next() {
		var (
			summary CycleSummary
			takenAt string
		)

		if err = rows.Scan(
			&summary.ID,
			&takenAt,
			&summary.TemperatureAvg,
			&summary.HumidityAvg,
			&summary.PressureAvg,
			&summary.OKPoints,
			&summary.TotalPoints,
		); err != nil {
			return nil, fmt.Errorf("scan cycle: %w", err)
		}

		if parsed, parseErr := time.Parse(time.RFC3339Nano, takenAt); parseErr == nil {
			summary.TakenAt = parsed
		}

		summaries = append(summaries, summary)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cycles: %w", err)
	}

	return summaries, nil
}

// Close releases the underlying database handle.
func (r *Repository) Close() error {
	return r.db.Close()
}
