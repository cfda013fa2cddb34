// Package bulk reads many points in parallel for the dashboard surface:
// one snapshot per cycle with per-point isolation and per-category
// averages. This runs outside the control loop's strict path and shares
// no mutable state with it.
package bulk

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mholen/hvacctl/internal/actuator"
	"github.com/mholen/hvacctl/internal/config"
	"github.com/mholen/hvacctl/internal/domain/climate"
	"github.com/mholen/hvacctl/internal/repository/history"
)

// DefaultWorkers bounds the parallel read fan-out.
const DefaultWorkers = 5

// Sample is one point reading inside a snapshot.
type Sample struct {
	// Point is the remote point identifier.
	Point string `json:"point"`
	// Name is the catalog's human-readable name.
	Name string `json:"name"`
	// Value is the raw value text, empty on failure.
	Value string `json:"value,omitempty"`
	// Unit is the catalog display unit.
	Unit string `json:"unit,omitempty"`
	// Category groups the point for averaging.
	Category string `json:"category,omitempty"`
	// Success reports whether the read succeeded.
	Success bool `json:"success"`
	// Error carries the failure reason when Success is false.
	Error string `json:"error,omitempty"`
	// Timestamp is when the point was read.
	Timestamp time.Time `json:"timestamp"`
}

// Snapshot is one complete bulk-read cycle.
type Snapshot struct {
	TakenAt        time.Time         `json:"timestamp"`
	Points         map[string]Sample `json:"points"`
	TemperatureAvg *float64          `json:"temperature_avg,omitempty"`
	HumidityAvg    *float64          `json:"humidity_avg,omitempty"`
	PressureAvg    *float64          `json:"pressure_avg,omitempty"`
}

// Reader reads a point catalog through a bounded worker pool.
type Reader struct {
	act     actuator.Actuator
	points  map[string]config.PointDef
	workers int
}

// Option configures reader behaviour.
type Option func(*Reader)

// WithWorkers bounds the parallel fan-out.
func WithWorkers(workers int) Option {
	return func(r *Reader) {
		if workers > 0 {
			r.workers = workers
		}
	}
}

// NewReader creates a reader over the given catalog. An empty catalog
// falls back to the built-in default points.
func NewReader(act actuator.Actuator, points map[string]config.PointDef, opts ...Option) *Reader {
	if len(points) == 0 {
		points = DefaultPoints()
	}

	r := &Reader{
		act:     act,
		points:  points,
		workers: DefaultWorkers,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// DefaultPoints is the built-in catalog used when the configuration
// carries no points section.
func DefaultPoints() map[string]config.PointDef {
	return map[string]config.PointDef{
		"360.005-JV40_Pos": {Name: "Ventilation Damper Position", Unit: "%", Category: "ventilation"},
		"360.005-JV50_Pos": {Name: "Heating Valve Position", Unit: "%", Category: "heating"},
		"360.005-JP40_Pos": {Name: "Cooling Valve Position", Unit: "%", Category: "cooling"},
		"360.005-RT40":     {Name: "Room Temperature", Unit: "°C", Category: "temperature"},
		"360.005-RH40":     {Name: "Room Humidity", Unit: "%", Category: "humidity"},
		"360.005-SB40":     {Name: "Supply Air Humidity", Unit: "%", Category: "humidity"},
	}
}

// ReadAll reads every catalog point in parallel. Failures stay isolated
// per point; the snapshot always contains one sample per catalog entry.
func (r *Reader) ReadAll(ctx context.Context) *Snapshot {
	snap := &Snapshot{
		TakenAt: time.Now(),
		Points:  make(map[string]Sample, len(r.points)),
	}

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		semaphore = make(chan struct{}, r.workers)
	)

	for point, def := range r.points {
		wg.Add(1)

		go func(point string, def config.PointDef) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			sample := r.readOne(ctx, point, def)

			mu.Lock()
			snap.Points[point] = sample
			mu.Unlock()
		}(point, def)
	}

	wg.Wait()

	r.computeAverages(snap)

	return snap
}

// readOne fetches a single point and maps it to a sample.
func (r *Reader) readOne(ctx context.Context, point string, def config.PointDef) Sample {
	name := def.Name
	if name == "" {
		name = point
	}

	sample := Sample{
		Point:     point,
		Name:      name,
		Unit:      def.Unit,
		Category:  def.Category,
		Timestamp: time.Now(),
	}

	result, err := r.act.Read(ctx, point)
	if err != nil {
		sample.Error = err.Error()

		return sample
	}

	if !result.Success {
		sample.Error = result.Message

		return sample
	}

	sample.Value = result.ObservedValue
	sample.Success = true

	return sample
}

// computeAverages fills the per-category averages over the successful,
// numeric samples.
func (r *Reader) computeAverages(snap *Snapshot) {
	sums := make(map[string]float64)
	counts := make(map[string]int)

	for _, sample := range snap.Points {
		if !sample.Success {
			continue
		}

		value := climate.ParseValue(sample.Value)
		if value == nil {
			continue
		}

		sums[sample.Category] += *value
		counts[sample.Category]++
	}

	average := func(category string) *float64 {
		if counts[category] == 0 {
			return nil
		}

		avg := sums[category] / float64(counts[category])

		return &avg
	}

	snap.TemperatureAvg = average("temperature")
	snap.HumidityAvg = average("humidity")
	snap.PressureAvg = average("pressure")
}

// Summary renders a human-readable report of the snapshot.
func (s *Snapshot) Summary() string {
	var b strings.Builder

	fmt.Fprintf(&b, "HVAC system state @ %s\n", s.TakenAt.Format(time.RFC3339))
	b.WriteString(strings.Repeat("=", 50) + "\n")

	if s.TemperatureAvg != nil {
		fmt.Fprintf(&b, "Avg temperature: %.1f°C\n", *s.TemperatureAvg)
	}

	if s.HumidityAvg != nil {
		fmt.Fprintf(&b, "Avg humidity: %.1f%%\n", *s.HumidityAvg)
	}

	b.WriteString("\nIndividual points:\n")

	names := make([]string, 0, len(s.Points))
	for point := range s.Points {
		names = append(names, point)
	}

	sort.Strings(names)

	for _, point := range names {
		sample := s.Points[point]
		if sample.Success {
			fmt.Fprintf(&b, "  - %s: %s %s\n", sample.Name, sample.Value, sample.Unit)
		} else {
			fmt.Fprintf(&b, "  - %s: ERROR - %s\n", sample.Name, sample.Error)
		}
	}

	return b.String()
}

// HistorySnapshot converts the snapshot to its storage representation.
func (s *Snapshot) HistorySnapshot() *history.Snapshot {
	stored := &history.Snapshot{
		TakenAt:        s.TakenAt,
		TemperatureAvg: s.TemperatureAvg,
		HumidityAvg:    s.HumidityAvg,
		PressureAvg:    s.PressureAvg,
	}

	names := make([]string, 0, len(s.Points))
	for point := range s.Points {
		names = append(names, point)
	}

	sort.Strings(names)

	for _, point := range names {
		sample := s.Points[point]
		stored.Points = append(stored.Points, history.PointSample{
			Point:    sample.Point,
			Name:     sample.Name,
			Value:    sample.Value,
			Unit:     sample.Unit,
			Category: sample.Category,
			Success:  sample.Success,
			Error:    sample.Error,
		})
	}

	return stored
}
