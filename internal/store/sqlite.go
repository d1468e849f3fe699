package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sweeney/aquarium-ml/internal/record"
)

// SQLite is the file-backed Store used by the daemon. modernc.org/sqlite is
// pure Go, so the binary stays cross-compilable without cgo.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// A single writer with WAL avoids SQLITE_BUSY between the ingest path
	// and the training readers.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

// transient tags a driver error so callers can treat it as retryable.
func transient(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (s *SQLite) AppendSensor(ctx context.Context, rec record.SensorRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sensor_readings (ts, temperature, ambient, ph, tds, heater_on, co2_on)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.Timestamp.Unix(), rec.Temperature, rec.AmbientTemp, rec.PH, rec.TDS,
		boolInt(rec.HeaterOn), boolInt(rec.CO2On))
	if err != nil {
		return transient("append sensor", err)
	}
	return nil
}

func (s *SQLite) AppendPerformance(ctx context.Context, rec record.PerformanceRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pid_performance
			(ts, controller, kp, ki, kd, settling_time, overshoot, steady_error,
			 temperature, ambient, tds, ph, hour, season, tank_volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Timestamp.Unix(), string(rec.Controller), rec.Kp, rec.Ki, rec.Kd,
		rec.SettlingTime, rec.Overshoot, rec.SteadyStateError,
		rec.Temperature, rec.AmbientTemp, rec.TDS, rec.PH,
		rec.Hour, rec.Season, rec.TankVolume)
	if err != nil {
		return transient("append performance", err)
	}
	return nil
}

func (s *SQLite) AppendWaterChange(ctx context.Context, rec record.WaterChangeRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO water_changes
			(start_ts, end_ts, volume, temp_before, temp_after,
			 ph_before, ph_after, tds_before, tds_after, duration_min, completed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.StartTime.Unix(), rec.EndTime.Unix(), rec.Volume,
		rec.TempBefore, rec.TempAfter, rec.PHBefore, rec.PHAfter,
		rec.TDSBefore, rec.TDSAfter, rec.DurationMinutes, boolInt(rec.Completed))
	if err != nil {
		return transient("append water change", err)
	}
	return nil
}

func (s *SQLite) AppendFilterMaintenance(ctx context.Context, rec record.FilterMaintenanceRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO filter_maintenance (ts, filter_type, days_since_last, tds_before, tds_after, notes)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.Timestamp.Unix(), rec.FilterType, rec.DaysSinceLast,
		rec.TDSBefore, rec.TDSAfter, rec.Notes)
	if err != nil {
		return transient("append filter maintenance", err)
	}
	return nil
}

func (s *SQLite) RecentSensors(ctx context.Context, since time.Time) ([]record.SensorRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, temperature, ambient, ph, tds, heater_on, co2_on
		FROM sensor_readings WHERE ts >= ? ORDER BY ts`, since.Unix())
	if err != nil {
		return nil, transient("query sensors", err)
	}
	defer rows.Close()

	var out []record.SensorRecord
	for rows.Next() {
		var rec record.SensorRecord
		var ts int64
		var heater, co2 int
		if err := rows.Scan(&ts, &rec.Temperature, &rec.AmbientTemp, &rec.PH, &rec.TDS, &heater, &co2); err != nil {
			return nil, transient("scan sensor", err)
		}
		rec.Timestamp = time.Unix(ts, 0).UTC()
		rec.HeaterOn = heater != 0
		rec.CO2On = co2 != 0
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, transient("iterate sensors", err)
	}
	return out, nil
}

func (s *SQLite) Performance(ctx context.Context, ctrl record.Controller, season int) ([]record.PerformanceRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, controller, kp, ki, kd, settling_time, overshoot, steady_error,
		       temperature, ambient, tds, ph, hour, season, tank_volume
		FROM pid_performance WHERE controller = ? AND season = ? ORDER BY ts`,
		string(ctrl), season)
	if err != nil {
		return nil, transient("query performance", err)
	}
	defer rows.Close()

	var out []record.PerformanceRecord
	for rows.Next() {
		var rec record.PerformanceRecord
		var ts int64
		var controller string
		if err := rows.Scan(&ts, &controller, &rec.Kp, &rec.Ki, &rec.Kd,
			&rec.SettlingTime, &rec.Overshoot, &rec.SteadyStateError,
			&rec.Temperature, &rec.AmbientTemp, &rec.TDS, &rec.PH,
			&rec.Hour, &rec.Season, &rec.TankVolume); err != nil {
			return nil, transient("scan performance", err)
		}
		rec.Timestamp = time.Unix(ts, 0).UTC()
		rec.Controller = record.Controller(controller)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, transient("iterate performance", err)
	}
	return out, nil
}

func (s *SQLite) WaterChanges(ctx context.Context) ([]record.WaterChangeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT start_ts, end_ts, volume, temp_before, temp_after,
		       ph_before, ph_after, tds_before, tds_after, duration_min, completed
		FROM water_changes ORDER BY end_ts`)
	if err != nil {
		return nil, transient("query water changes", err)
	}
	defer rows.Close()

	var out []record.WaterChangeRecord
	for rows.Next() {
		var rec record.WaterChangeRecord
		var start, end int64
		var completed int
		if err := rows.Scan(&start, &end, &rec.Volume,
			&rec.TempBefore, &rec.TempAfter, &rec.PHBefore, &rec.PHAfter,
			&rec.TDSBefore, &rec.TDSAfter, &rec.DurationMinutes, &completed); err != nil {
			return nil, transient("scan water change", err)
		}
		rec.StartTime = time.Unix(start, 0).UTC()
		rec.EndTime = time.Unix(end, 0).UTC()
		rec.Completed = completed != 0
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, transient("iterate water changes", err)
	}
	return out, nil
}

func (s *SQLite) FilterMaintenance(ctx context.Context) ([]record.FilterMaintenanceRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, filter_type, days_since_last, tds_before, tds_after, notes
		FROM filter_maintenance ORDER BY ts`)
	if err != nil {
		return nil, transient("query filter maintenance", err)
	}
	defer rows.Close()

	var out []record.FilterMaintenanceRecord
	for rows.Next() {
		var rec record.FilterMaintenanceRecord
		var ts int64
		if err := rows.Scan(&ts, &rec.FilterType, &rec.DaysSinceLast,
			&rec.TDSBefore, &rec.TDSAfter, &rec.Notes); err != nil {
			return nil, transient("scan filter maintenance", err)
		}
		rec.Timestamp = time.Unix(ts, 0).UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, transient("iterate filter maintenance", err)
	}
	return out, nil
}

func (s *SQLite) LogGainPrediction(ctx context.Context, pred record.GainPrediction) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO gain_predictions (ts, controller, season, kp, ki, kd, confidence, model)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		pred.Timestamp.Unix(), string(pred.Controller), pred.Season,
		pred.Kp, pred.Ki, pred.Kd, pred.Confidence, pred.Model)
	if err != nil {
		return transient("log gain prediction", err)
	}
	return nil
}

func (s *SQLite) LogCyclePrediction(ctx context.Context, pred record.CyclePrediction) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cycle_predictions
			(ts, days_remaining, total_days, days_since, tds, tds_rate, confidence, model)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		pred.Timestamp.Unix(), pred.PredictedDaysRemaining, pred.PredictedTotalCycleDays,
		pred.DaysSinceLastChange, pred.CurrentTDS, pred.TDSIncreaseRate,
		pred.Confidence, pred.Model)
	if err != nil {
		return transient("log cycle prediction", err)
	}
	return nil
}

func (s *SQLite) RealizeCyclePredictions(ctx context.Context, actualDays float64, at time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE cycle_predictions SET actual_days = ?, realized_ts = ?
		WHERE actual_days IS NULL`, actualDays, at.Unix())
	if err != nil {
		return 0, transient("realize cycle predictions", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, transient("realize cycle predictions", err)
	}
	return int(n), nil
}

func (s *SQLite) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sensor_readings WHERE ts < ?`, cutoff.Unix())
	if err != nil {
		return 0, transient("prune sensors", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, transient("prune sensors", err)
	}
	return n, nil
}
