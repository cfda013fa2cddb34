package controller

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mholen/hvacctl/internal/actuator/fake"
	"github.com/mholen/hvacctl/internal/audit"
	"github.com/mholen/hvacctl/internal/config"
	"github.com/mholen/hvacctl/internal/domain/plan"
	"github.com/mholen/hvacctl/internal/repository/state"
)

// strPtr is a test helper for optional action values.
func strPtr(s string) *string {
	return &s
}

// testConfig builds a controller configuration with distinct action
// lists per condition class.
func testConfig() *config.Config {
	cfg := config.Default()

	cfg.Sensors = config.Sensors{
		IndoorTemp: "RT40",
		IndoorRH:   "RH40",
	}

	cfg.Actions = plan.ActionTable{
		AirQuality:       []plan.ActionSpec{{Operation: plan.OpForce, Point: "air-damper", Value: strPtr("100")}},
		CondensationRisk: []plan.ActionSpec{{Operation: plan.OpForce, Point: "heater", Value: strPtr("80")}},
		HighRH:           []plan.ActionSpec{{Operation: plan.OpForce, Point: "fan", Value: strPtr("100")}},
		Normal:           []plan.ActionSpec{{Operation: plan.OpUnforce, Point: "fan"}},
	}

	return cfg
}

// forcedPoints extracts the points of all committed force calls.
func forcedPoints(act *fake.Actuator) []string {
	var points []string

	for _, call := range act.Calls() {
		if call.Op == "force" {
			points = append(points, call.Point)
		}
	}

	return points
}

// newTestController wires a controller over a fake actuator, a temp-dir
// state file and a fixed clock.
func newTestController(
	t *testing.T,
	act *fake.Actuator,
	cfg *config.Config,
	now time.Time,
) (*Controller, *state.FileRepository) {
	t.Helper()

	statePath := filepath.Join(t.TempDir(), "state.json")
	states := state.NewFileRepository(statePath)

	loop := New(cfg, act, states, audit.Discard(), WithClock(func() time.Time { return now }))

	return loop, states
}

// TestCycleExecutesHighHumidityActions verifies indoor RH over the limit
// triggers the high humidity list and persists the class key.
func TestCycleExecutesHighHumidityActions(t *testing.T) {
	t.Parallel()

	act := fake.New()
	act.SetValue("RT40", "21,0")
	act.SetValue("RH40", "65")

	now := time.Now()
	loop, states := newTestController(t, act, testConfig(), now)

	require.NoError(t, loop.RunOnce(context.Background()))
	require.Equal(t, []string{"fan"}, forcedPoints(act))

	persisted, err := states.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, plan.ClassHighRH, persisted.LastActionKey)
	require.True(t, persisted.LastActionsOK)
	require.True(t, persisted.LastActionTime.Equal(now))
}

// TestCycleCondensationRisk verifies a cold outdoor reading below the
// dew point minus the margin triggers the condensation list.
func TestCycleCondensationRisk(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Sensors.OutdoorTemp = "RT90"

	act := fake.New()
	act.SetValue("RT40", "21")
	act.SetValue("RH40", "50")
	act.SetValue("RT90", "-5")

	loop, states := newTestController(t, act, cfg, time.Now())

	require.NoError(t, loop.RunOnce(context.Background()))
	require.Equal(t, []string{"heater"}, forcedPoints(act))

	persisted, err := states.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, plan.ClassCondensationRisk, persisted.LastActionKey)
}

// TestCycleAirQualityWins verifies CO2 over the limit short-circuits
// even when humidity conditions also fire.
func TestCycleAirQualityWins(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Sensors.CO2 = "CO250"
	maxCO2 := 1000.0
	cfg.Thresholds.MaxCO2PPM = &maxCO2

	act := fake.New()
	act.SetValue("RT40", "21")
	act.SetValue("RH40", "80")
	act.SetValue("CO250", "1200")

	loop, states := newTestController(t, act, cfg, time.Now())

	require.NoError(t, loop.RunOnce(context.Background()))
	require.Equal(t, []string{"air-damper"}, forcedPoints(act))

	persisted, err := states.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, plan.ClassPoorAirQuality, persisted.LastActionKey)
}

// TestCycleMissingRequiredSensor verifies an undecodable required value
// aborts the cycle without classification or state mutation.
func TestCycleMissingRequiredSensor(t *testing.T) {
	t.Parallel()

	act := fake.New()
	act.SetValue("RT40", "21")
	act.FailPoint("RH40", "dialog timeout")

	loop, states := newTestController(t, act, testConfig(), time.Now())

	err := loop.RunOnce(context.Background())
	require.ErrorIs(t, err, ErrRequiredSensorsUnavailable)
	require.Empty(t, forcedPoints(act))

	persisted, loadErr := states.Load(context.Background())
	require.NoError(t, loadErr)
	require.Equal(t, state.ControllerState{}, persisted, "no state may be written")
}

// TestCycleCooldownSuppression verifies a repeat of the same class
// within the cooldown skips execution and leaves the state untouched.
func TestCycleCooldownSuppression(t *testing.T) {
	t.Parallel()

	act := fake.New()
	act.SetValue("RT40", "21")
	act.SetValue("RH40", "65")

	now := time.Now()
	loop, states := newTestController(t, act, testConfig(), now)

	seeded := state.ControllerState{
		LastActionKey:  plan.ClassHighRH,
		LastActionTime: now.Add(-time.Minute),
		LastActionsOK:  true,
	}
	require.NoError(t, states.Save(context.Background(), seeded))

	require.NoError(t, loop.RunOnce(context.Background()))
	require.Empty(t, forcedPoints(act), "executor must not run during cooldown")

	persisted, err := states.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, seeded.LastActionKey, persisted.LastActionKey)
	require.True(t, seeded.LastActionTime.Equal(persisted.LastActionTime))
}

// TestCycleReexecutesAfterCooldown verifies execution resumes once the
// cooldown has elapsed.
func TestCycleReexecutesAfterCooldown(t *testing.T) {
	t.Parallel()

	act := fake.New()
	act.SetValue("RT40", "21")
	act.SetValue("RH40", "65")

	now := time.Now()
	loop, states := newTestController(t, act, testConfig(), now)

	require.NoError(t, states.Save(context.Background(), state.ControllerState{
		LastActionKey:  plan.ClassHighRH,
		LastActionTime: now.Add(-2 * time.Hour),
	}))

	require.NoError(t, loop.RunOnce(context.Background()))
	require.Equal(t, []string{"fan"}, forcedPoints(act))

	persisted, err := states.Load(context.Background())
	require.NoError(t, err)
	require.True(t, persisted.LastActionTime.Equal(now))
}

// TestCycleDifferentClassBypassesCooldown verifies the cooldown only
// applies to repeats of the same class key.
func TestCycleDifferentClassBypassesCooldown(t *testing.T) {
	t.Parallel()

	act := fake.New()
	act.SetValue("RT40", "21")
	act.SetValue("RH40", "65")

	now := time.Now()
	loop, states := newTestController(t, act, testConfig(), now)

	require.NoError(t, states.Save(context.Background(), state.ControllerState{
		LastActionKey:  plan.ClassNormal,
		LastActionTime: now.Add(-time.Minute),
	}))

	require.NoError(t, loop.RunOnce(context.Background()))
	require.Equal(t, []string{"fan"}, forcedPoints(act))
}

// TestCyclePersistsPartialFailure verifies the class key and timestamp
// are persisted even when actions fail, with the outcome recorded.
func TestCyclePersistsPartialFailure(t *testing.T) {
	t.Parallel()

	act := fake.New()
	act.SetValue("RT40", "21")
	act.SetValue("RH40", "65")
	act.FailPoint("fan", "force rejected")

	now := time.Now()
	loop, states := newTestController(t, act, testConfig(), now)

	require.NoError(t, loop.RunOnce(context.Background()))

	persisted, err := states.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, plan.ClassHighRH, persisted.LastActionKey)
	require.False(t, persisted.LastActionsOK)
	require.True(t, persisted.LastActionTime.Equal(now))
}

// TestCycleNormalState verifies the quiet state runs the normal list.
func TestCycleNormalState(t *testing.T) {
	t.Parallel()

	act := fake.New()
	act.SetValue("RT40", "21")
	act.SetValue("RH40", "40")

	loop, states := newTestController(t, act, testConfig(), time.Now())

	require.NoError(t, loop.RunOnce(context.Background()))

	var unforced []string

	for _, call := range act.Calls() {
		if call.Op == "unforce" {
			unforced = append(unforced, call.Point)
		}
	}

	require.Equal(t, []string{"fan"}, unforced)

	persisted, err := states.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, plan.ClassNormal, persisted.LastActionKey)
}

// TestCycleDryRunCommitsNothing verifies the dry-run override reaches
// the actuator without committing overrides.
func TestCycleDryRunCommitsNothing(t *testing.T) {
	t.Parallel()

	act := fake.New()
	act.SetValue("RT40", "21")
	act.SetValue("RH40", "65")

	statePath := filepath.Join(t.TempDir(), "state.json")
	loop := New(testConfig(), act, state.NewFileRepository(statePath), audit.Discard(),
		WithDryRun(true))

	require.NoError(t, loop.RunOnce(context.Background()))

	_, committed := act.ForcedValue("fan")
	require.False(t, committed)
}

// TestRunStopsOnCancel verifies the run-forever loop observes
// cancellation at the sleep point.
func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	act := fake.New()
	act.SetValue("RT40", "21")
	act.SetValue("RH40", "40")

	statePath := filepath.Join(t.TempDir(), "state.json")
	loop := New(testConfig(), act, state.NewFileRepository(statePath), audit.Discard(),
		WithCycleInterval(10*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)

	go func() {
		done <- loop.Run(ctx)
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run loop did not stop on cancellation")
	}
}
