package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mholen/hvacctl/internal/domain/climate"
	"github.com/mholen/hvacctl/internal/domain/plan"
)

// Config is the validated controller configuration document.
type Config struct {
	// Endpoint describes the remote building-management surface.
	Endpoint Endpoint `yaml:"endpoint"`
	// Sensors maps the semantic sensor roles to remote point identifiers.
	Sensors Sensors `yaml:"sensors"`
	// Thresholds configures the condition boundaries.
	Thresholds climate.Thresholds `yaml:"thresholds"`
	// Actions holds the action lists per condition class.
	Actions plan.ActionTable `yaml:"actions"`
	// Points is the optional bulk-read catalog; built-in defaults apply
	// when empty.
	Points map[string]PointDef `yaml:"points,omitempty"`
	// MQTT configures the optional snapshot publisher; an empty broker
	// disables it.
	MQTT MQTT `yaml:"mqtt,omitempty"`

	// CycleSeconds is the period between evaluation cycles.
	CycleSeconds float64 `yaml:"cycle_seconds"`
	// CooldownSeconds is the minimum time before the same action class
	// may be re-applied.
	CooldownSeconds float64 `yaml:"cooldown_seconds"`
	// CombineActions stacks condensation and high humidity action lists
	// when both conditions fire.
	CombineActions bool `yaml:"combine_actions"`
	// DryRun makes force actions record intent without committing.
	DryRun bool `yaml:"dry_run"`

	// StatePath is where the controller persists its cooldown state.
	StatePath string `yaml:"state_path"`
	// AuditLogPath is the append-only JSONL action log.
	AuditLogPath string `yaml:"audit_log_path"`
	// HistoryPath is the sqlite database holding bulk-read snapshots.
	HistoryPath string `yaml:"history_path"`
}

// Endpoint holds connection parameters for the remote surface.
type Endpoint struct {
	// BaseURL is the endpoint root, e.g. https://building.example.com.
	BaseURL string `yaml:"base_url"`
	// SessionFile is the captured login session (cookies, CSRF token).
	SessionFile string `yaml:"session_file"`
	// TimeoutSeconds bounds one API round trip.
	TimeoutSeconds float64 `yaml:"timeout_seconds"`
	// InsecureTLS skips certificate verification for self-signed
	// endpoint certificates.
	InsecureTLS bool `yaml:"insecure_tls"`
}

// Sensors names the remote points feeding the classifier. Indoor
// temperature and humidity are required; the rest are optional and
// disable their conditions when absent.
type Sensors struct {
	IndoorTemp  string `yaml:"indoor_temp"`
	IndoorRH    string `yaml:"indoor_rh"`
	OutdoorTemp string `yaml:"outdoor_temp,omitempty"`
	CO          string `yaml:"co,omitempty"`
	CO2         string `yaml:"co2,omitempty"`
}

// PointDef describes one bulk-read catalog entry.
type PointDef struct {
	// Name is the human-readable point name.
	Name string `yaml:"name"`
	// Unit is the display unit.
	Unit string `yaml:"unit"`
	// Category groups the point for averaging (temperature, humidity,
	// pressure) and display.
	Category string `yaml:"category"`
	// Setpoint marks points that are actuatable rather than measured.
	Setpoint bool `yaml:"setpoint"`
}

// MQTT configures the optional bulk snapshot publisher.
type MQTT struct {
	Broker   string `yaml:"broker"`
	Port     int    `yaml:"port"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
}

const (
	// DefaultConfigFilename is the default configuration file name.
	DefaultConfigFilename = "hvacctl.yaml"

	// DefaultCycleSeconds is the default evaluation period.
	DefaultCycleSeconds = 300.0

	// DefaultCooldownSeconds is the default re-actuation cooldown.
	DefaultCooldownSeconds = 900.0

	// DefaultMaxRHPercent is the default high humidity boundary.
	DefaultMaxRHPercent = 60.0

	// DefaultCondensationMarginC is the default dew point safety margin.
	DefaultCondensationMarginC = 2.0

	// DefaultEndpointTimeoutSeconds bounds one endpoint round trip.
	DefaultEndpointTimeoutSeconds = 30.0

	// DefaultStatePath is the default controller state file.
	DefaultStatePath = "state/hvacctl-state.json"

	// DefaultAuditLogPath is the default JSONL action log.
	DefaultAuditLogPath = "logs/hvac-actions.jsonl"

	// DefaultHistoryPath is the default bulk snapshot database.
	DefaultHistoryPath = "state/hvacctl-history.db"

	// DefaultMQTTPort is used when a broker is configured without a port.
	DefaultMQTTPort = 1883

	// DefaultFilePermissions is used when writing configuration files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errIndoorSensorsRequired is returned when the required sensor
	// mappings are missing.
	errIndoorSensorsRequired = errors.New("sensors.indoor_temp and sensors.indoor_rh must be provided")
)

// Load reads configuration from the provided path, applies defaults and
// validates required fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	cfg := Default()
	if err = yaml.Unmarshal(contents, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err = Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Default returns a configuration populated with every default value.
func Default() *Config {
	return &Config{
		Endpoint: Endpoint{
			TimeoutSeconds: DefaultEndpointTimeoutSeconds,
		},
		Thresholds: climate.Thresholds{
			MaxRHPercent:        DefaultMaxRHPercent,
			CondensationMarginC: DefaultCondensationMarginC,
		},
		CycleSeconds:    DefaultCycleSeconds,
		CooldownSeconds: DefaultCooldownSeconds,
		CombineActions:  true,
		StatePath:       DefaultStatePath,
		AuditLogPath:    DefaultAuditLogPath,
		HistoryPath:     DefaultHistoryPath,
	}
}

// Validate checks required fields, fills fallback defaults and rejects
// malformed action specs at load time rather than mid-cycle.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.Sensors.IndoorTemp == "" || cfg.Sensors.IndoorRH == "" {
		return errIndoorSensorsRequired
	}

	if cfg.Endpoint.BaseURL != "" {
		if _, err := url.ParseRequestURI(cfg.Endpoint.BaseURL); err != nil {
			return fmt.Errorf("invalid endpoint URL: %w", err)
		}
	}

	if cfg.Endpoint.TimeoutSeconds <= 0 {
		cfg.Endpoint.TimeoutSeconds = DefaultEndpointTimeoutSeconds
	}

	if cfg.CycleSeconds <= 0 {
		cfg.CycleSeconds = DefaultCycleSeconds
	}

	if cfg.CooldownSeconds <= 0 {
		cfg.CooldownSeconds = DefaultCooldownSeconds
	}

	if cfg.StatePath == "" {
		cfg.StatePath = DefaultStatePath
	}

	if cfg.AuditLogPath == "" {
		cfg.AuditLogPath = DefaultAuditLogPath
	}

	if cfg.HistoryPath == "" {
		cfg.HistoryPath = DefaultHistoryPath
	}

	if cfg.MQTT.Broker != "" && cfg.MQTT.Port <= 0 {
		cfg.MQTT.Port = DefaultMQTTPort
	}

	for _, actions := range [][]plan.ActionSpec{
		cfg.Actions.AirQuality,
		cfg.Actions.CondensationRisk,
		cfg.Actions.HighRH,
		cfg.Actions.Normal,
	} {
		for _, action := range actions {
			if err := action.Validate(); err != nil {
				return fmt.Errorf("invalid action for point %q: %w", action.Point, err)
			}
		}
	}

	return nil
}

// CycleInterval returns the evaluation period as a duration.
func (c *Config) CycleInterval() time.Duration {
	return time.Duration(c.CycleSeconds * float64(time.Second))
}

// Cooldown returns the re-actuation cooldown as a duration.
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.CooldownSeconds * float64(time.Second))
}

// EndpointTimeout returns the per-call endpoint timeout as a duration.
func (c *Config) EndpointTimeout() time.Duration {
	return time.Duration(c.Endpoint.TimeoutSeconds * float64(time.Second))
}
