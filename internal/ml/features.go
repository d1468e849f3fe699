// Package ml contains the feature extraction, model training, prediction,
// and confidence scoring engine. This package is pure: no storage, transport,
// or clock access — time always arrives as a parameter.
package ml

import (
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/sweeney/aquarium-ml/internal/record"
)

// overshootFloor keeps the sample-weight denominator positive when a
// controller run recorded zero overshoot.
const overshootFloor = 0.01

// GainSamples is the training set for one controller's gain models:
// one shared feature matrix, three target vectors, one weight vector.
// All slices always have equal length.
type GainSamples struct {
	X       [][]float64
	Kp      []float64
	Ki      []float64
	Kd      []float64
	Weights []float64
}

// Len returns the number of usable samples.
func (s GainSamples) Len() int { return len(s.X) }

// ExtractGainFeatures transforms performance history for one controller into
// feature/target/weight tuples.
//
// Feature vector (7 dims): primary sensor (temperature for "temp", pH for
// "co2"), ambient temperature, TDS, the other of pH/temperature, hour of
// day, day of week, tank volume.
//
// Records with a non-positive settling time or an all-zero gain triple are
// dropped silently: they are missing the fields that make a sample usable,
// which is a data-quality condition, not an error. Weights are
// 1/(settling·max(overshoot, 0.01)), normalized so the mean weight is 1,
// biasing the fit toward historically well-tuned samples.
func ExtractGainFeatures(history []record.PerformanceRecord, ctrl record.Controller) GainSamples {
	var s GainSamples
	for _, rec := range history {
		if rec.SettlingTime <= 0 {
			continue
		}
		if rec.Kp == 0 && rec.Ki == 0 && rec.Kd == 0 {
			continue
		}

		primary, secondary := rec.Temperature, rec.PH
		if ctrl == record.ControllerCO2 {
			primary, secondary = rec.PH, rec.Temperature
		}
		s.X = append(s.X, []float64{
			primary,
			rec.AmbientTemp,
			rec.TDS,
			secondary,
			float64(rec.Hour),
			float64(rec.Timestamp.Weekday()),
			rec.TankVolume,
		})
		s.Kp = append(s.Kp, rec.Kp)
		s.Ki = append(s.Ki, rec.Ki)
		s.Kd = append(s.Kd, rec.Kd)

		overshoot := rec.Overshoot
		if overshoot < overshootFloor {
			overshoot = overshootFloor
		}
		s.Weights = append(s.Weights, 1.0/(rec.SettlingTime*overshoot))
	}

	if len(s.Weights) > 0 {
		mean := stat.Mean(s.Weights, nil)
		if mean > 0 {
			floats.Scale(1/mean, s.Weights)
		}
	}
	return s
}

// CycleFeatureConfig holds the extraction constants for the water-change
// interval features.
type CycleFeatureConfig struct {
	// TankVolume converts change volume into a percentage.
	TankVolume float64
	// DefaultFilterDays is assumed when no filter maintenance precedes a
	// water change.
	DefaultFilterDays float64
	// Hemisphere selects the season bucket mapping.
	Hemisphere record.Hemisphere
}

// CycleSamples is the training set for the water-change interval model.
type CycleSamples struct {
	X [][]float64
	Y []float64
}

// Len returns the number of usable samples.
func (s CycleSamples) Len() int { return len(s.X) }

// cycleFeatureVector builds the canonical 14-dim feature row describing the
// state at one water change. The maintenance-derived fields make filter
// effects visible to the model.
func cycleFeatureVector(daysSincePrev, tdsBefore, tdsAfter, tdsRate, volumePct,
	phBefore, phAfter, tempBefore, tempAfter float64,
	at time.Time, cfg CycleFeatureConfig,
	daysSinceFilter float64, filterInPeriod, filterTDSDelta float64) []float64 {
	return []float64{
		daysSincePrev,
		tdsBefore,
		tdsAfter,
		tdsRate,
		volumePct,
		phBefore,
		phAfter,
		tempBefore,
		tempAfter,
		float64(at.Weekday()),
		float64(record.SeasonOf(at, cfg.Hemisphere)),
		daysSinceFilter,
		filterInPeriod,
		filterTDSDelta,
	}
}

// filterContext resolves the maintenance-derived features for the cycle
// running from `from` to `until`. maint must be in chronological order.
func filterContext(maint []record.FilterMaintenanceRecord, from, until time.Time, cfg CycleFeatureConfig) (daysSince, inPeriod, tdsDelta float64) {
	daysSince = cfg.DefaultFilterDays
	for _, fm := range maint {
		if !fm.Timestamp.After(from) {
			daysSince = from.Sub(fm.Timestamp).Hours() / 24
			continue
		}
		if !fm.Timestamp.After(until) {
			inPeriod = 1
			if fm.TDSBefore > 0 && fm.TDSAfter > 0 {
				tdsDelta = fm.TDSBefore - fm.TDSAfter
			}
		}
	}
	return daysSince, inPeriod, tdsDelta
}

// ExtractCycleFeatures builds feature rows from consecutive water-change
// pairs. changes and maint must be in chronological order; incomplete
// changes and non-positive intervals are dropped silently. The target is
// the number of days until the next change.
func ExtractCycleFeatures(changes []record.WaterChangeRecord, maint []record.FilterMaintenanceRecord, cfg CycleFeatureConfig) CycleSamples {
	var s CycleSamples
	completed := completedChanges(changes)

	for i := 0; i < len(completed)-1; i++ {
		current := completed[i]
		next := completed[i+1]

		daysUntilNext := next.EndTime.Sub(current.EndTime).Hours() / 24
		if daysUntilNext <= 0 {
			continue
		}

		daysSincePrev := 7.0 // assumed cadence for the first usable pair
		if i > 0 {
			daysSincePrev = current.EndTime.Sub(completed[i-1].EndTime).Hours() / 24
		}

		elapsed := daysSincePrev
		if elapsed < 1 {
			elapsed = 1
		}
		tdsRate := (current.TDSBefore - current.TDSAfter) / elapsed

		volumePct := 0.0
		if cfg.TankVolume > 0 {
			volumePct = current.Volume / cfg.TankVolume * 100
		}

		daysSinceFilter, inPeriod, tdsDelta := filterContext(maint, current.EndTime, next.EndTime, cfg)

		s.X = append(s.X, cycleFeatureVector(
			daysSincePrev,
			current.TDSBefore, current.TDSAfter, tdsRate, volumePct,
			current.PHBefore, current.PHAfter,
			current.TempBefore, current.TempAfter,
			current.EndTime, cfg,
			daysSinceFilter, inPeriod, tdsDelta,
		))
		s.Y = append(s.Y, daysUntilNext)
	}
	return s
}

// LiveCycleState carries the prediction-time inputs assembled from the
// latest records.
type LiveCycleState struct {
	DaysSinceLast   float64
	CurrentTDS      float64
	TDSIncreaseRate float64
}

// LiveCycleFeatures builds the feature vector describing the currently open
// cycle, mirroring the training-time rows: the latest change plays the role
// of "current", and recent sensor averages stand in for the unseen "next"
// boundary.
func LiveCycleFeatures(changes []record.WaterChangeRecord, maint []record.FilterMaintenanceRecord, sensors []record.SensorRecord, now time.Time, cfg CycleFeatureConfig) ([]float64, LiveCycleState, error) {
	completed := completedChanges(changes)
	if len(completed) == 0 {
		return nil, LiveCycleState{}, ErrNoHistory
	}
	last := completed[len(completed)-1]

	daysSinceLast := now.Sub(last.EndTime).Hours() / 24
	if daysSinceLast < 0 {
		daysSinceLast = 0
	}

	currentTDS := last.TDSAfter
	currentPH := last.PHAfter
	currentTemp := last.TempAfter
	if len(sensors) > 0 {
		var tds, ph, temp float64
		for _, sr := range sensors {
			tds += sr.TDS
			ph += sr.PH
			temp += sr.Temperature
		}
		n := float64(len(sensors))
		currentTDS, currentPH, currentTemp = tds/n, ph/n, temp/n
	}

	elapsed := daysSinceLast
	if elapsed < 1 {
		elapsed = 1
	}
	tdsRate := (currentTDS - last.TDSAfter) / elapsed

	daysSincePrev := 7.0
	if len(completed) >= 2 {
		daysSincePrev = last.EndTime.Sub(completed[len(completed)-2].EndTime).Hours() / 24
	}

	volumePct := 0.0
	if cfg.TankVolume > 0 {
		volumePct = last.Volume / cfg.TankVolume * 100
	}

	// Filter age is measured from now for the open cycle; maintenance after
	// the last change counts as in-period.
	daysSinceFilter := cfg.DefaultFilterDays
	inPeriod, tdsDelta := 0.0, 0.0
	for _, fm := range maint {
		if fm.Timestamp.After(now) {
			continue
		}
		daysSinceFilter = now.Sub(fm.Timestamp).Hours() / 24
		if fm.Timestamp.After(last.EndTime) {
			inPeriod = 1
			if fm.TDSBefore > 0 && fm.TDSAfter > 0 {
				tdsDelta = fm.TDSBefore - fm.TDSAfter
			}
		}
	}

	vec := cycleFeatureVector(
		daysSincePrev,
		currentTDS, last.TDSAfter, tdsRate, volumePct,
		currentPH, last.PHAfter,
		currentTemp, last.TempAfter,
		now, cfg,
		daysSinceFilter, inPeriod, tdsDelta,
	)
	return vec, LiveCycleState{
		DaysSinceLast:   daysSinceLast,
		CurrentTDS:      currentTDS,
		TDSIncreaseRate: tdsRate,
	}, nil
}

func completedChanges(changes []record.WaterChangeRecord) []record.WaterChangeRecord {
	out := make([]record.WaterChangeRecord, 0, len(changes))
	for _, wc := range changes {
		if wc.Completed {
			out = append(out, wc)
		}
	}
	return out
}
