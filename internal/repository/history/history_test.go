package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// openTestRepository creates an initialized repository in a temp dir.
func openTestRepository(t *testing.T) *Repository {
	t.Helper()

	repo, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, repo.Close())
	})

	require.NoError(t, repo.Init(context.Background()))

	return repo
}

// testSnapshot builds a snapshot with one failed point.
func testSnapshot(takenAt time.Time) *Snapshot {
	temperatureAvg := 21.5

	return &Snapshot{
		TakenAt:        takenAt,
		TemperatureAvg: &temperatureAvg,
		Points: []PointSample{
			{Point: "RT40", Name: "Room Temperature", Value: "21,5", Unit: "°C", Category: "temperature", Success: true},
			{Point: "RH40", Name: "Room Humidity", Value: "55", Unit: "%", Category: "humidity", Success: true},
			{Point: "JV40", Name: "Damper Position", Category: "ventilation", Error: "dialog timeout"},
		},
	}
}

// TestSaveAndQuerySnapshot verifies a snapshot round-trips into a cycle
// summary with point counts.
func TestSaveAndQuerySnapshot(t *testing.T) {
	t.Parallel()

	repo := openTestRepository(t)
	takenAt := time.Date(2026, 3, 12, 8, 30, 0, 0, time.UTC)

	require.NoError(t, repo.SaveSnapshot(context.Background(), testSnapshot(takenAt)))

	cycles, err := repo.RecentCycles(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, cycles, 1)
	require.True(t, cycles[0].TakenAt.Equal(takenAt))
	require.Equal(t, 2, cycles[0].OKPoints)
	require.Equal(t, 3, cycles[0].TotalPoints)
	require.NotNil(t, cycles[0].TemperatureAvg)
	require.InDelta(t, 21.5, *cycles[0].TemperatureAvg, 1e-9)
	require.Nil(t, cycles[0].HumidityAvg)
}

// TestRecentCyclesNewestFirst verifies ordering and the limit.
func TestRecentCyclesNewestFirst(t *testing.T) {
	t.Parallel()

	repo := openTestRepository(t)
	base := time.Date(2026, 3, 12, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		snap := testSnapshot(base.Add(time.Duration(i) * time.Hour))
		require.NoError(t, repo.SaveSnapshot(context.Background(), snap))
	}

	cycles, err := repo.RecentCycles(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, cycles, 3)
	require.True(t, cycles[0].TakenAt.After(cycles[1].TakenAt))
	require.True(t, cycles[1].TakenAt.After(cycles[2].TakenAt))
}

// TestInitIsIdempotent verifies the schema creation can run repeatedly.
func TestInitIsIdempotent(t *testing.T) {
	t.Parallel()

	repo := openTestRepository(t)
	require.NoError(t, repo.Init(context.Background()))
	require.NoError(t, repo.Init(context.Background()))
}

// TestRecentCyclesEmpty verifies an empty database yields no summaries.
func TestRecentCyclesEmpty(t *testing.T) {
	t.Parallel()

	repo := openTestRepository(t)

	cycles, err := repo.RecentCycles(context.Background(), 10)
	require.NoError(t, err)
	require.Empty(t, cycles)
}
