// Package record contains the immutable event record types shared by the
// store, transport, and model layers. Records are created at ingestion and
// never mutated afterwards.
package record

import "time"

// Controller identifies a feedback control loop.
type Controller string

const (
	ControllerTemp Controller = "temp"
	ControllerCO2  Controller = "co2"
)

// Controllers lists every controller a gain model is maintained for.
var Controllers = []Controller{ControllerTemp, ControllerCO2}

// Hemisphere selects the season mapping for the tank's location.
type Hemisphere string

const (
	Northern Hemisphere = "northern"
	Southern Hemisphere = "southern"
)

// Domain defaults applied when an inbound payload omits a numeric field.
const (
	DefaultTemperature = 25.0
	DefaultAmbientTemp = 22.0
	DefaultPH          = 7.0
	DefaultTDS         = 300.0
	DefaultTankVolume  = 200.0
	DefaultHour        = 12
)

// SensorRecord is a single snapshot of tank telemetry.
type SensorRecord struct {
	Timestamp   time.Time
	Temperature float64
	AmbientTemp float64
	PH          float64
	TDS         float64
	HeaterOn    bool
	CO2On       bool
}

// PerformanceRecord captures how a controller behaved with a given gain
// triple under the environmental context in effect at the time.
type PerformanceRecord struct {
	Timestamp        time.Time
	Controller       Controller
	Kp               float64
	Ki               float64
	Kd               float64
	SettlingTime     float64 // seconds to settle after a disturbance
	Overshoot        float64 // peak deviation past the setpoint
	SteadyStateError float64
	Temperature      float64
	AmbientTemp      float64
	TDS              float64
	PH               float64
	Hour             int
	Season           int
	TankVolume       float64
}

// WaterChangeRecord describes one completed (or aborted) water change.
type WaterChangeRecord struct {
	StartTime       time.Time
	EndTime         time.Time
	Volume          float64 // litres removed and replaced
	TempBefore      float64
	TempAfter       float64
	PHBefore        float64
	PHAfter         float64
	TDSBefore       float64
	TDSAfter        float64
	DurationMinutes int
	Completed       bool
}

// FilterMaintenanceRecord describes a filter clean or media replacement.
type FilterMaintenanceRecord struct {
	Timestamp     time.Time
	FilterType    string
	DaysSinceLast int
	TDSBefore     float64
	TDSAfter      float64
	Notes         string
}

// GainPrediction is the model output for one controller and season.
type GainPrediction struct {
	Controller Controller
	Season     int
	Kp         float64
	Ki         float64
	Kd         float64
	Confidence float64
	Model      string
	Timestamp  time.Time
}

// CyclePrediction is the model output for the water-change interval.
type CyclePrediction struct {
	PredictedDaysRemaining  float64
	PredictedTotalCycleDays float64
	DaysSinceLastChange     float64
	CurrentTDS              float64
	TDSIncreaseRate         float64
	Confidence              float64
	Model                   string
	NeedsChangeSoon         bool
	Timestamp               time.Time
}

// SeasonOf maps a calendar month to one of four season buckets:
// 0=winter, 1=spring, 2=summer, 3=autumn for the northern hemisphere.
// The southern mapping is shifted by two buckets.
func SeasonOf(t time.Time, h Hemisphere) int {
	s := (int(t.Month()) % 12) / 3
	if h == Southern {
		s = (s + 2) % 4
	}
	return s
}

// SeasonName returns the northern-hemisphere name of a season bucket.
func SeasonName(season int) string {
	names := [4]string{"winter", "spring", "summer", "autumn"}
	if season < 0 || season > 3 {
		return "unknown"
	}
	return names[season]
}
