package bulk

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mholen/hvacctl/internal/actuator/fake"
	"github.com/mholen/hvacctl/internal/config"
)

// testCatalog is a small point catalog spanning two averaged categories.
func testCatalog() map[string]config.PointDef {
	return map[string]config.PointDef{
		"RT40": {Name: "Room Temperature", Unit: "°C", Category: "temperature"},
		"RT41": {Name: "Supply Temperature", Unit: "°C", Category: "temperature"},
		"RH40": {Name: "Room Humidity", Unit: "%", Category: "humidity"},
		"JV40": {Name: "Damper Position", Unit: "%", Category: "ventilation"},
	}
}

// TestReadAllCollectsEveryPoint verifies one sample per catalog entry and
// the per-category averages over numeric values.
func TestReadAllCollectsEveryPoint(t *testing.T) {
	t.Parallel()

	act := fake.New()
	act.SetValue("RT40", "21,5")
	act.SetValue("RT41", "18,5")
	act.SetValue("RH40", "55")
	act.SetValue("JV40", "80")

	snap := NewReader(act, testCatalog()).ReadAll(context.Background())

	require.Len(t, snap.Points, 4)
	require.True(t, snap.Points["RT40"].Success)
	require.Equal(t, "21,5", snap.Points["RT40"].Value)
	require.Equal(t, "Room Temperature", snap.Points["RT40"].Name)

	require.NotNil(t, snap.TemperatureAvg)
	require.InDelta(t, 20.0, *snap.TemperatureAvg, 1e-9)
	require.NotNil(t, snap.HumidityAvg)
	require.InDelta(t, 55.0, *snap.HumidityAvg, 1e-9)
	require.Nil(t, snap.PressureAvg, "no pressure points in the catalog")
}

// TestReadAllIsolatesFailures verifies a failing point degrades its own
// sample only and drops out of the averages.
func TestReadAllIsolatesFailures(t *testing.T) {
	t.Parallel()

	act := fake.New()
	act.SetValue("RT40", "21")
	act.FailPoint("RT41", "dialog timeout")
	act.SetValue("RH40", "55")
	act.SetValue("JV40", "80")

	snap := NewReader(act, testCatalog()).ReadAll(context.Background())

	require.Len(t, snap.Points, 4)
	require.False(t, snap.Points["RT41"].Success)
	require.Equal(t, "dialog timeout", snap.Points["RT41"].Error)
	require.True(t, snap.Points["RT40"].Success)

	require.NotNil(t, snap.TemperatureAvg)
	require.InDelta(t, 21.0, *snap.TemperatureAvg, 1e-9)
}

// TestReadAllSkipsNonNumericValues verifies undecodable values are kept in
// the snapshot but excluded from averages.
func TestReadAllSkipsNonNumericValues(t *testing.T) {
	t.Parallel()

	act := fake.New()
	act.SetValue("RT40", "On")
	act.SetValue("RT41", "20")
	act.SetValue("RH40", "55")
	act.SetValue("JV40", "80")

	snap := NewReader(act, testCatalog()).ReadAll(context.Background())

	require.True(t, snap.Points["RT40"].Success)
	require.NotNil(t, snap.TemperatureAvg)
	require.InDelta(t, 20.0, *snap.TemperatureAvg, 1e-9)
}

// TestReadAllWorkersBound verifies a single-worker pool still reads the
// whole catalog.
func TestReadAllWorkersBound(t *testing.T) {
	t.Parallel()

	act := fake.New()
	for point := range testCatalog() {
		act.SetValue(point, "1")
	}

	snap := NewReader(act, testCatalog(), WithWorkers(1)).ReadAll(context.Background())
	require.Len(t, snap.Points, 4)

	for point, sample := range snap.Points {
		require.True(t, sample.Success, "point %s", point)
	}
}

// TestDefaultCatalogFallback verifies the built-in catalog applies when
// the configuration has no points section.
func TestDefaultCatalogFallback(t *testing.T) {
	t.Parallel()

	act := fake.New()
	for point := range DefaultPoints() {
		act.SetValue(point, "1")
	}

	snap := NewReader(act, nil).ReadAll(context.Background())
	require.Len(t, snap.Points, len(DefaultPoints()))
	require.Contains(t, snap.Points, "360.005-RT40")
}

// TestSummaryRendersPointsAndErrors verifies the report lists values and
// failure reasons.
func TestSummaryRendersPointsAndErrors(t *testing.T) {
	t.Parallel()

	act := fake.New()
	act.SetValue("RT40", "21")
	act.FailPoint("RT41", "dialog timeout")
	act.SetValue("RH40", "55")
	act.SetValue("JV40", "80")

	summary := NewReader(act, testCatalog()).ReadAll(context.Background()).Summary()

	require.Contains(t, summary, "Room Temperature: 21")
	require.Contains(t, summary, "ERROR - dialog timeout")
	require.Contains(t, summary, "Avg humidity: 55.0%")
}

// TestHistorySnapshotConversion verifies the storage mapping keeps every
// sample with a stable order.
func TestHistorySnapshotConversion(t *testing.T) {
	t.Parallel()

	act := fake.New()
	act.SetValue("RT40", "21")
	act.SetValue("RT41", "19")
	act.SetValue("RH40", "55")
	act.FailPoint("JV40", "dialog timeout")

	stored := NewReader(act, testCatalog()).ReadAll(context.Background()).HistorySnapshot()

	require.Len(t, stored.Points, 4)
	require.Equal(t, "JV40", stored.Points[0].Point, "points are sorted")
	require.False(t, stored.Points[0].Success)
	require.NotNil(t, stored.TemperatureAvg)
}
