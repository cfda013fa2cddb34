package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mholen/hvacctl/internal/actuator"
	"github.com/mholen/hvacctl/internal/audit"
	"github.com/mholen/hvacctl/internal/config"
	"github.com/mholen/hvacctl/internal/domain/climate"
	"github.com/mholen/hvacctl/internal/domain/plan"
	"github.com/mholen/hvacctl/internal/logger"
	"github.com/mholen/hvacctl/internal/repository/state"
	"github.com/mholen/hvacctl/internal/service/executor"
)

// ErrRequiredSensorsUnavailable is returned by a cycle that could not
// decode the required indoor temperature or humidity values.
var ErrRequiredSensorsUnavailable = errors.New("required indoor sensor values unavailable")

// Controller drives the evaluation cycles: read sensors, classify,
// select actions, check the cooldown, execute, persist. Cycles never run
// concurrently; the next one does not start before the previous one has
// persisted.
type Controller struct {
	cfg      *config.Config
	act      actuator.Actuator
	states   state.Repository
	auditLog *audit.Logger

	cycleInterval time.Duration
	cooldown      time.Duration
	dryRun        bool

	// now is the clock, replaceable in tests.
	now func() time.Time
}

// Option configures controller behaviour beyond the configuration file.
type Option func(*Controller)

// WithDryRun overrides the configured dry-run flag.
func WithDryRun(dryRun bool) Option {
	return func(c *Controller) {
		c.dryRun = dryRun
	}
}

// WithCycleInterval overrides the configured cycle period.
func WithCycleInterval(interval time.Duration) Option {
	return func(c *Controller) {
		if interval > 0 {
			c.cycleInterval = interval
		}
	}
}

// WithCooldown overrides the configured cooldown.
func WithCooldown(cooldown time.Duration) Option {
	return func(c *Controller) {
		if cooldown > 0 {
			c.cooldown = cooldown
		}
	}
}

// WithClock replaces the controller's clock.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a controller over the given actuator and state repository.
func New(
	cfg *config.Config,
	act actuator.Actuator,
	states state.Repository,
	auditLog *audit.Logger,
	opts ...Option,
) *Controller {
	c := &Controller{
		cfg:           cfg,
		act:           act,
		states:        states,
		auditLog:      auditLog,
		cycleInterval: cfg.CycleInterval(),
		cooldown:      cfg.Cooldown(),
		dryRun:        cfg.DryRun,
		now:           time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// RunOnce evaluates exactly one cycle and returns its status.
func (c *Controller) RunOnce(ctx context.Context) error {
	return c.cycle(logger.WithName(ctx, "controller"))
}

// Run evaluates cycles forever, sleeping the cycle interval between
// them, until the context is cancelled. A failed cycle is logged and the
// loop continues; the whole cycle is the unit of retry.
func (c *Controller) Run(ctx context.Context) error {
	ctx = logger.WithName(ctx, "controller")

	logger.InfoKV(ctx, "Controller running",
		"interval", c.cycleInterval.String(),
		"cooldown", c.cooldown.String(),
		"dry_run", c.dryRun)

	ticker := time.NewTicker(c.cycleInterval)
	defer ticker.Stop()

	for {
		if err := c.cycle(ctx); err != nil {
			logger.ErrorKV(ctx, "Cycle failed", "error", err)
		}

		// The sleep between cycles is the only suspension point that must
		// observe cancellation promptly.
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Context canceled, exiting")
			return nil
		case <-ticker.C:
		}
	}
}

// cycle runs one evaluation: load state, read sensors, classify, select,
// cooldown-check, execute, persist.
func (c *Controller) cycle(ctx context.Context) error {
	prior, err := c.states.Load(ctx)
	if err != nil {
		// Treated as no prior state; a damaged store never stalls the loop.
		logger.WarnKV(ctx, "State load failed, assuming no prior action", "error", err)

		prior = state.ControllerState{}
	}

	frame, err := c.readFrame(ctx)
	if err != nil {
		return err
	}

	conditions := climate.Classify(frame, c.cfg.Thresholds)
	selected := plan.Select(conditions, c.cfg.Actions, c.cfg.CombineActions)
	now := c.now()

	if selected.ClassKey == prior.LastActionKey && now.Sub(prior.LastActionTime) < c.cooldown {
		logger.InfoKV(ctx, "Cooldown active, skipping actions",
			"action_key", selected.ClassKey,
			"since", now.Sub(prior.LastActionTime).String())

		entry := c.conditionEntry(frame, conditions)
		entry["action"] = "auto_evaluate"
		entry["success"] = true
		entry["message"] = "cooldown active, skipping actions"
		entry["action_key"] = selected.ClassKey
		c.logAudit(ctx, entry)

		return nil
	}

	entry := c.conditionEntry(frame, conditions)
	entry["action"] = "auto_evaluate"
	entry["success"] = true
	entry["message"] = "evaluation complete"
	entry["action_key"] = selected.ClassKey
	entry["selected_actions"] = selected.Actions
	c.logAudit(ctx, entry)

	logger.InfoKV(ctx, "Executing action plan",
		"action_key", selected.ClassKey,
		"actions", len(selected.Actions),
		"dry_run", c.dryRun)

	actionsOK := executor.Execute(ctx, c.act, selected.Actions, c.dryRun, c.auditLog)

	// The class key and timestamp are persisted regardless of per-action
	// success so a repeated attempt at the same class still respects the
	// cooldown; LastActionsOK keeps the real outcome visible.
	if err = c.states.Save(ctx, state.ControllerState{
		LastActionKey:  selected.ClassKey,
		LastActionTime: now,
		LastActionsOK:  actionsOK,
	}); err != nil {
		return fmt.Errorf("persist controller state: %w", err)
	}

	if !actionsOK {
		logger.WarnKV(ctx, "Some actions failed", "action_key", selected.ClassKey)
	}

	return nil
}

// readFrame reads the required sensors, then the optional ones. A
// required value that fails to decode aborts the cycle; optional
// failures degrade the dependent conditions instead.
func (c *Controller) readFrame(ctx context.Context) (*climate.SensorFrame, error) {
	frame := &climate.SensorFrame{
		IndoorTemp: c.readPoint(ctx, c.cfg.Sensors.IndoorTemp),
		IndoorRH:   c.readPoint(ctx, c.cfg.Sensors.IndoorRH),
	}

	if !frame.RequiredOK() {
		c.logAudit(ctx, audit.Entry{
			"action":            "auto_evaluate",
			"success":           false,
			"message":           "failed to decode required indoor sensor values",
			"indoor_temp_value": frame.IndoorTemp.Raw,
			"indoor_rh_value":   frame.IndoorRH.Raw,
		})

		return nil, fmt.Errorf("%w: indoor_temp=%q indoor_rh=%q",
			ErrRequiredSensorsUnavailable, frame.IndoorTemp.Raw, frame.IndoorRH.Raw)
	}

	if point := c.cfg.Sensors.OutdoorTemp; point != "" {
		reading := c.readPoint(ctx, point)
		frame.OutdoorTemp = &reading
	}

	if point := c.cfg.Sensors.CO; point != "" {
		reading := c.readPoint(ctx, point)
		frame.CO = &reading
	}

	if point := c.cfg.Sensors.CO2; point != "" {
		reading := c.readPoint(ctx, point)
		frame.CO2 = &reading
	}

	return frame, nil
}

// readPoint fetches and decodes one sensor value.
func (c *Controller) readPoint(ctx context.Context, point string) climate.Reading {
	result, err := c.act.Read(ctx, point)
	if err != nil {
		return climate.Reading{
			Point:     point,
			OK:        false,
			Message:   err.Error(),
			Timestamp: c.now(),
		}
	}

	return climate.Reading{
		Point:     point,
		Raw:       result.ObservedValue,
		Value:     climate.ParseValue(result.ObservedValue),
		Unit:      result.Unit,
		Forced:    result.Forced,
		OK:        result.Success,
		Message:   result.Message,
		Timestamp: c.now(),
	}
}

// conditionEntry builds the audit fields describing one evaluation.
// Optional sensors appear as null when absent or undecodable.
func (c *Controller) conditionEntry(frame *climate.SensorFrame, conditions climate.ConditionSet) audit.Entry {
	entry := audit.Entry{
		"indoor_temp_c":     *frame.IndoorTemp.Value,
		"indoor_rh_percent": *frame.IndoorRH.Value,
		"dew_point_c":       conditions.DewPointC,
		"high_rh":           conditions.HighRH,
		"condensation_risk": conditions.CondensationRisk,
		"poor_air_quality":  conditions.PoorAirQuality,
	}

	entry["outdoor_temp_c"] = optionalValue(frame.OutdoorTemp)
	entry["co_ppm"] = optionalValue(frame.CO)
	entry["co2_ppm"] = optionalValue(frame.CO2)

	return entry
}

// logAudit appends one audit record without letting a write failure
// interrupt the cycle.
func (c *Controller) logAudit(ctx context.Context, entry audit.Entry) {
	if err := c.auditLog.Log(entry); err != nil {
		logger.ErrorKV(ctx, "Audit write failed", "error", err)
	}
}

// optionalValue returns the decoded value of an optional reading, or nil.
func optionalValue(reading *climate.Reading) any {
	if reading == nil || reading.Value == nil {
		return nil
	}

	return *reading.Value
}
