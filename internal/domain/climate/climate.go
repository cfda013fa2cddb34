package climate

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// PointKind describes the physical quantity a point measures.
type PointKind string

// Known point kinds. Generic covers dampers, valve positions and anything
// else the classifier has no use for.
const (
	KindTemperature PointKind = "temperature"
	KindHumidity    PointKind = "humidity"
	KindPressure    PointKind = "pressure"
	KindCO          PointKind = "co"
	KindCO2         PointKind = "co2"
	KindGeneric     PointKind = "generic"
)

// Reading is one sensor value fetched from the remote endpoint.
// Value is nil when the raw text could not be decoded as a number;
// callers must treat nil as unknown, never as zero.
type Reading struct {
	// Point is the remote point identifier the value was read from.
	Point string
	// Raw is the value text exactly as the endpoint returned it.
	Raw string
	// Value is the decoded numeric value, nil on decode failure.
	Value *float64
	// Unit is the display unit reported by the endpoint, if any.
	Unit string
	// Forced reports whether the point currently carries an override.
	Forced bool
	// OK reports whether the read itself succeeded.
	OK bool
	// Message carries the failure reason when OK is false.
	Message string
	// Timestamp is when the reading was taken.
	Timestamp time.Time
}

// SensorFrame holds the readings of one evaluation cycle. Indoor
// temperature and relative humidity are required; the rest are optional
// and nil when the sensor is not configured.
type SensorFrame struct {
	IndoorTemp  Reading
	IndoorRH    Reading
	OutdoorTemp *Reading
	CO          *Reading
	CO2         *Reading
}

// RequiredOK reports whether both required readings carry a decoded value.
func (f *SensorFrame) RequiredOK() bool {
	return f.IndoorTemp.Value != nil && f.IndoorRH.Value != nil
}

// Thresholds configures the condition boundaries. The CO and CO2 limits
// are optional; a nil limit disables the corresponding air quality term.
type Thresholds struct {
	// MaxRHPercent is the relative humidity at or above which the
	// high humidity condition fires.
	MaxRHPercent float64 `yaml:"max_rh"`
	// CondensationMarginC is the safety margin subtracted from the dew
	// point before comparing against the outdoor temperature.
	CondensationMarginC float64 `yaml:"condensation_margin_c"`
	// MaxCOPPM is the optional carbon monoxide limit in ppm.
	MaxCOPPM *float64 `yaml:"max_co_ppm,omitempty"`
	// MaxCO2PPM is the optional carbon dioxide limit in ppm.
	MaxCO2PPM *float64 `yaml:"max_co2_ppm,omitempty"`
}

// ConditionSet is the classified system condition derived from one frame.
type ConditionSet struct {
	// DewPointC is the indoor dew point in degrees Celsius.
	DewPointC float64
	// HighRH is true when indoor humidity reached the configured limit.
	HighRH bool
	// CondensationRisk is true when the outdoor temperature is at or
	// below the dew point minus the condensation margin.
	CondensationRisk bool
	// PoorAirQuality is true when CO or CO2 reached its configured limit.
	PoorAirQuality bool
}

// Magnus formula coefficients for dew point over water.
const (
	magnusA = 17.62
	magnusB = 243.12
)

// minRHPercent floors relative humidity to avoid the logarithm
// singularity at RH = 0.
const minRHPercent = 0.1

// ParseValue decodes a sensor value string into a float. The endpoint
// renders numbers with a locale-dependent decimal separator, so a comma
// is accepted as a decimal point. Returns nil when the text is empty or
// not numeric.
func ParseValue(raw string) *float64 {
	text := strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	if text == "" {
		return nil
	}

	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil
	}

	return &value
}

// DewPointC computes the dew point in degrees Celsius from air
// temperature and relative humidity using the Magnus formula.
func DewPointC(tempC, rhPercent float64) float64 {
	gamma := (magnusA * tempC / (magnusB + tempC)) + math.Log(math.Max(rhPercent, minRHPercent)/100.0)

	return (magnusB * gamma) / (magnusA - gamma)
}

// Classify derives the condition set from a frame and thresholds. It is a
// pure, total function: missing optional sensors simply disable the
// conditions that depend on them, they never make a condition unknown.
// The required readings must carry values; check SensorFrame.RequiredOK
// before calling.
func Classify(frame *SensorFrame, thresholds Thresholds) ConditionSet {
	indoorTemp := *frame.IndoorTemp.Value
	indoorRH := *frame.IndoorRH.Value

	conditions := ConditionSet{
		DewPointC: DewPointC(indoorTemp, indoorRH),
		HighRH:    indoorRH >= thresholds.MaxRHPercent,
	}

	if frame.OutdoorTemp != nil && frame.OutdoorTemp.Value != nil {
		conditions.CondensationRisk = *frame.OutdoorTemp.Value <= conditions.DewPointC-thresholds.CondensationMarginC
	}

	if thresholds.MaxCOPPM != nil && frame.CO != nil && frame.CO.Value != nil {
		conditions.PoorAirQuality = conditions.PoorAirQuality || *frame.CO.Value >= *thresholds.MaxCOPPM
	}

	if thresholds.MaxCO2PPM != nil && frame.CO2 != nil && frame.CO2.Value != nil {
		conditions.PoorAirQuality = conditions.PoorAirQuality || *frame.CO2.Value >= *thresholds.MaxCO2PPM
	}

	return conditions
}
