// Package store persists telemetry and event records and the prediction
// audit log. The interface is implemented by a SQLite-backed store for the
// daemon and an in-memory store for tests.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/sweeney/aquarium-ml/internal/record"
)

// ErrUnavailable marks a transient storage failure. Callers skip the
// current training or ingestion step and retry on the next cycle; it is
// never fatal to the daemon.
var ErrUnavailable = errors.New("store unavailable")

// Store is the persistence boundary between ingestion, training, and the
// prediction audit log.
type Store interface {
	AppendSensor(ctx context.Context, rec record.SensorRecord) error
	AppendPerformance(ctx context.Context, rec record.PerformanceRecord) error
	AppendWaterChange(ctx context.Context, rec record.WaterChangeRecord) error
	AppendFilterMaintenance(ctx context.Context, rec record.FilterMaintenanceRecord) error

	// RecentSensors returns readings at or after since, oldest first.
	RecentSensors(ctx context.Context, since time.Time) ([]record.SensorRecord, error)

	// Performance returns the records for one controller and season,
	// oldest first.
	Performance(ctx context.Context, ctrl record.Controller, season int) ([]record.PerformanceRecord, error)

	// WaterChanges returns all water change records, oldest first.
	WaterChanges(ctx context.Context) ([]record.WaterChangeRecord, error)

	// FilterMaintenance returns all maintenance records, oldest first.
	FilterMaintenance(ctx context.Context) ([]record.FilterMaintenanceRecord, error)

	// LogGainPrediction appends a published gain prediction to the audit log.
	LogGainPrediction(ctx context.Context, pred record.GainPrediction) error

	// LogCyclePrediction appends a cycle prediction to the audit log.
	LogCyclePrediction(ctx context.Context, pred record.CyclePrediction) error

	// RealizeCyclePredictions backfills the actual cycle length onto every
	// unrealized cycle prediction once the next water change lands, and
	// returns how many rows it settled.
	RealizeCyclePredictions(ctx context.Context, actualDays float64, at time.Time) (int, error)

	// PruneBefore drops sensor readings older than the cutoff. Event and
	// prediction rows are kept: they are small and feed every retrain.
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)

	Close() error
}
