package record

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrMalformed is returned when an inbound payload cannot be decoded.
// Callers log and drop the event; it must never abort ingestion.
var ErrMalformed = errors.New("malformed event")

// sensorPayload mirrors the flat JSON published on the telemetry topic.
// Pointer fields distinguish "absent" from zero so defaults can be applied.
type sensorPayload struct {
	Timestamp   *int64   `json:"timestamp"`
	Temperature *float64 `json:"temperature"`
	AmbientTemp *float64 `json:"ambient_temp"`
	PH          *float64 `json:"ph"`
	TDS         *float64 `json:"tds"`
	Heater      string   `json:"heater"`
	CO2         string   `json:"co2"`
}

type performancePayload struct {
	Timestamp        *int64   `json:"timestamp"`
	Controller       string   `json:"controller"`
	Kp               *float64 `json:"kp"`
	Ki               *float64 `json:"ki"`
	Kd               *float64 `json:"kd"`
	SettlingTime     *float64 `json:"settling_time"`
	Overshoot        *float64 `json:"overshoot"`
	SteadyStateError *float64 `json:"steady_state_error"`
	Temperature      *float64 `json:"temperature"`
	AmbientTemp      *float64 `json:"ambient_temp"`
	TDS              *float64 `json:"tds"`
	PH               *float64 `json:"ph"`
	Hour             *int     `json:"hour"`
	Season           *int     `json:"season"`
	TankVolume       *float64 `json:"tank_volume"`
}

type waterChangePayload struct {
	StartTime  *int64   `json:"startTime"`
	EndTime    *int64   `json:"endTime"`
	Volume     *float64 `json:"volume"`
	TempBefore *float64 `json:"tempBefore"`
	TempAfter  *float64 `json:"tempAfter"`
	PHBefore   *float64 `json:"phBefore"`
	PHAfter    *float64 `json:"phAfter"`
	TDSBefore  *float64 `json:"tdsBefore"`
	TDSAfter   *float64 `json:"tdsAfter"`
	Duration   *int     `json:"duration"`
	Successful *bool    `json:"successful"`
}

type filterMaintenancePayload struct {
	Timestamp     *int64   `json:"timestamp"`
	FilterType    string   `json:"filter_type"`
	DaysSinceLast *int     `json:"days_since_last"`
	TDSBefore     *float64 `json:"tds_before"`
	TDSAfter      *float64 `json:"tds_after"`
	Notes         string   `json:"notes"`
}

func f64(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

func ts(p *int64, def time.Time) time.Time {
	if p == nil {
		return def
	}
	return time.Unix(*p, 0).UTC()
}

// DecodeSensor parses a telemetry payload, applying domain defaults for
// missing numeric fields. A missing timestamp is taken as now.
func DecodeSensor(payload []byte, now time.Time) (SensorRecord, error) {
	var p sensorPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return SensorRecord{}, fmt.Errorf("%w: sensor: %v", ErrMalformed, err)
	}
	return SensorRecord{
		Timestamp:   ts(p.Timestamp, now),
		Temperature: f64(p.Temperature, DefaultTemperature),
		AmbientTemp: f64(p.AmbientTemp, DefaultAmbientTemp),
		PH:          f64(p.PH, DefaultPH),
		TDS:         f64(p.TDS, DefaultTDS),
		HeaterOn:    p.Heater == "ON",
		CO2On:       p.CO2 == "ON",
	}, nil
}

// DecodePerformance parses a controller performance payload. The season is
// derived from the timestamp when the publisher did not include one.
func DecodePerformance(payload []byte, now time.Time, h Hemisphere) (PerformanceRecord, error) {
	var p performancePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return PerformanceRecord{}, fmt.Errorf("%w: performance: %v", ErrMalformed, err)
	}
	ctrl := Controller(p.Controller)
	if ctrl != ControllerTemp && ctrl != ControllerCO2 {
		return PerformanceRecord{}, fmt.Errorf("%w: performance: unknown controller %q", ErrMalformed, p.Controller)
	}
	t := ts(p.Timestamp, now)
	rec := PerformanceRecord{
		Timestamp:        t,
		Controller:       ctrl,
		Kp:               f64(p.Kp, 0),
		Ki:               f64(p.Ki, 0),
		Kd:               f64(p.Kd, 0),
		SettlingTime:     f64(p.SettlingTime, 0),
		Overshoot:        f64(p.Overshoot, 0),
		SteadyStateError: f64(p.SteadyStateError, 0),
		Temperature:      f64(p.Temperature, DefaultTemperature),
		AmbientTemp:      f64(p.AmbientTemp, DefaultAmbientTemp),
		TDS:              f64(p.TDS, DefaultTDS),
		PH:               f64(p.PH, DefaultPH),
		TankVolume:       f64(p.TankVolume, DefaultTankVolume),
	}
	if p.Hour != nil {
		rec.Hour = *p.Hour
	} else {
		rec.Hour = t.Hour()
	}
	if p.Season != nil {
		rec.Season = *p.Season
	} else {
		rec.Season = SeasonOf(t, h)
	}
	return rec, nil
}

// DecodeWaterChange parses a water change event payload.
func DecodeWaterChange(payload []byte, now time.Time) (WaterChangeRecord, error) {
	var p waterChangePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return WaterChangeRecord{}, fmt.Errorf("%w: water change: %v", ErrMalformed, err)
	}
	end := ts(p.EndTime, now)
	start := ts(p.StartTime, end)
	rec := WaterChangeRecord{
		StartTime:  start,
		EndTime:    end,
		Volume:     f64(p.Volume, 0),
		TempBefore: f64(p.TempBefore, DefaultTemperature),
		TempAfter:  f64(p.TempAfter, DefaultTemperature),
		PHBefore:   f64(p.PHBefore, DefaultPH),
		PHAfter:    f64(p.PHAfter, DefaultPH),
		TDSBefore:  f64(p.TDSBefore, DefaultTDS),
		TDSAfter:   f64(p.TDSAfter, DefaultTDS),
		Completed:  true,
	}
	if p.Duration != nil {
		rec.DurationMinutes = *p.Duration
	} else if !end.Before(start) {
		rec.DurationMinutes = int(end.Sub(start) / time.Minute)
	}
	if p.Successful != nil {
		rec.Completed = *p.Successful
	}
	return rec, nil
}

// DecodeFilterMaintenance parses a filter maintenance event payload.
func DecodeFilterMaintenance(payload []byte, now time.Time) (FilterMaintenanceRecord, error) {
	var p filterMaintenancePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return FilterMaintenanceRecord{}, fmt.Errorf("%w: filter maintenance: %v", ErrMalformed, err)
	}
	rec := FilterMaintenanceRecord{
		Timestamp:  ts(p.Timestamp, now),
		FilterType: p.FilterType,
		TDSBefore:  f64(p.TDSBefore, 0),
		TDSAfter:   f64(p.TDSAfter, 0),
		Notes:      p.Notes,
	}
	if rec.FilterType == "" {
		rec.FilterType = "mechanical"
	}
	if p.DaysSinceLast != nil {
		rec.DaysSinceLast = *p.DaysSinceLast
	}
	return rec, nil
}
