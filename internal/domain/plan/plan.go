// Package plan maps classified conditions to actuation plans. Selection
// follows a fixed precedence order; the resulting class key is a nominal
// label used only for cooldown comparison.
package plan

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mholen/hvacctl/internal/domain/climate"
)

// Operation is the kind of actuation a single action performs.
type Operation string

// Supported operations.
const (
	OpForce   Operation = "force"
	OpUnforce Operation = "unforce"
	OpRead    Operation = "read"
)

// Class key labels. Combined keys join the fired condition names with "+"
// in precedence order.
const (
	ClassNormal           = "normal"
	ClassPoorAirQuality   = "poor_air_quality"
	ClassCondensationRisk = "condensation_risk"
	ClassHighRH           = "high_rh"
)

var (
	// errPointRequired is returned when an action has no point.
	errPointRequired = errors.New("action point must be provided")
	// errValueRequired is returned when a force action has no value.
	errValueRequired = errors.New("force action requires a value")
)

// ActionSpec is one actuation command. Value is required iff the
// operation is force.
type ActionSpec struct {
	// Operation selects force, unforce or read.
	Operation Operation `yaml:"action" json:"action"`
	// Point is the remote point the action targets.
	Point string `yaml:"point" json:"point"`
	// Value is the value to force, unset for unforce and read.
	Value *string `yaml:"value,omitempty" json:"value,omitempty"`
}

// Validate checks the action for configuration errors.
func (a ActionSpec) Validate() error {
	if a.Point == "" {
		return errPointRequired
	}

	switch a.Operation {
	case OpForce:
		if a.Value == nil {
			return errValueRequired
		}
	case OpUnforce, OpRead:
	default:
		return fmt.Errorf("unsupported action: %q", a.Operation)
	}

	return nil
}

// ActionTable holds the configured action lists per condition class.
// List order is significant and preserved: sequencing (damper before
// valve, say) is the configuration's responsibility, not the selector's.
type ActionTable struct {
	AirQuality       []ActionSpec `yaml:"on_air_quality"`
	CondensationRisk []ActionSpec `yaml:"on_condensation_risk"`
	HighRH           []ActionSpec `yaml:"on_high_rh"`
	Normal           []ActionSpec `yaml:"on_normal"`
}

// ActionPlan is the selected, ordered list of actions plus the class key
// identifying which conditions produced it.
type ActionPlan struct {
	// ClassKey labels the triggering condition set. It carries identity
	// only: plans from different conditions are different classes even
	// when their action lists coincide.
	ClassKey string
	// Actions is the ordered command list to execute.
	Actions []ActionSpec
}

// Select maps a condition set to an action plan using the fixed
// precedence poor_air_quality > condensation_risk > high_rh > normal.
// Poor air quality always short-circuits regardless of combine. With
// combine set, condensation risk and high humidity stack their action
// lists and join their names in the class key. Normal actions never run
// alongside a triggered condition.
func Select(conditions climate.ConditionSet, table ActionTable, combine bool) ActionPlan {
	if conditions.PoorAirQuality {
		return ActionPlan{
			ClassKey: ClassPoorAirQuality,
			Actions:  table.AirQuality,
		}
	}

	var (
		keys     []string
		selected []ActionSpec
	)

	if conditions.CondensationRisk {
		keys = append(keys, ClassCondensationRisk)
		selected = append(selected, table.CondensationRisk...)

		if !combine {
			return ActionPlan{ClassKey: ClassCondensationRisk, Actions: selected}
		}
	}

	if conditions.HighRH {
		keys = append(keys, ClassHighRH)
		selected = append(selected, table.HighRH...)

		if !combine {
			return ActionPlan{ClassKey: strings.Join(keys, "+"), Actions: selected}
		}
	}

	if len(keys) == 0 {
		return ActionPlan{
			ClassKey: ClassNormal,
			Actions:  table.Normal,
		}
	}

	return ActionPlan{
		ClassKey: strings.Join(keys, "+"),
		Actions:  selected,
	}
}
