package store

import (
	"context"
	"sync"
	"time"

	"github.com/sweeney/aquarium-ml/internal/record"
)

// Memory is an in-process Store for tests. It mirrors the ordering
// guarantees of the SQLite store and can be forced to fail to exercise
// the transient-error path.
type Memory struct {
	mu          sync.Mutex
	sensors     []record.SensorRecord
	performance []record.PerformanceRecord
	changes     []record.WaterChangeRecord
	maintenance []record.FilterMaintenanceRecord

	gainLog  []record.GainPrediction
	cycleLog []record.CyclePrediction
	realized int

	// Fail makes every operation return ErrUnavailable while set.
	Fail bool
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory { return &Memory{} }

func (m *Memory) failing() bool {
	return m.Fail
}

func (m *Memory) AppendSensor(_ context.Context, rec record.SensorRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing() {
		return ErrUnavailable
	}
	m.sensors = append(m.sensors, rec)
	return nil
}

func (m *Memory) AppendPerformance(_ context.Context, rec record.PerformanceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing() {
		return ErrUnavailable
	}
	m.performance = append(m.performance, rec)
	return nil
}

func (m *Memory) AppendWaterChange(_ context.Context, rec record.WaterChangeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing() {
		return ErrUnavailable
	}
	m.changes = append(m.changes, rec)
	return nil
}

func (m *Memory) AppendFilterMaintenance(_ context.Context, rec record.FilterMaintenanceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing() {
		return ErrUnavailable
	}
	m.maintenance = append(m.maintenance, rec)
	return nil
}

func (m *Memory) RecentSensors(_ context.Context, since time.Time) ([]record.SensorRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing() {
		return nil, ErrUnavailable
	}
	var out []record.SensorRecord
	for _, rec := range m.sensors {
		if !rec.Timestamp.Before(since) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *Memory) Performance(_ context.Context, ctrl record.Controller, season int) ([]record.PerformanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing() {
		return nil, ErrUnavailable
	}
	var out []record.PerformanceRecord
	for _, rec := range m.performance {
		if rec.Controller == ctrl && rec.Season == season {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *Memory) WaterChanges(_ context.Context) ([]record.WaterChangeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing() {
		return nil, ErrUnavailable
	}
	return append([]record.WaterChangeRecord(nil), m.changes...), nil
}

func (m *Memory) FilterMaintenance(_ context.Context) ([]record.FilterMaintenanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing() {
		return nil, ErrUnavailable
	}
	return append([]record.FilterMaintenanceRecord(nil), m.maintenance...), nil
}

func (m *Memory) LogGainPrediction(_ context.Context, pred record.GainPrediction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing() {
		return ErrUnavailable
	}
	m.gainLog = append(m.gainLog, pred)
	return nil
}

func (m *Memory) LogCyclePrediction(_ context.Context, pred record.CyclePrediction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing() {
		return ErrUnavailable
	}
	m.cycleLog = append(m.cycleLog, pred)
	return nil
}

func (m *Memory) RealizeCyclePredictions(_ context.Context, actualDays float64, at time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing() {
		return 0, ErrUnavailable
	}
	n := len(m.cycleLog) - m.realized
	m.realized = len(m.cycleLog)
	return n, nil
}

func (m *Memory) PruneBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing() {
		return 0, ErrUnavailable
	}
	kept := m.sensors[:0]
	var dropped int64
	for _, rec := range m.sensors {
		if rec.Timestamp.Before(cutoff) {
			dropped++
			continue
		}
		kept = append(kept, rec)
	}
	m.sensors = kept
	return dropped, nil
}

func (m *Memory) Close() error { return nil }

// GainLog returns the logged gain predictions, for assertions.
func (m *Memory) GainLog() []record.GainPrediction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]record.GainPrediction(nil), m.gainLog...)
}

// CycleLog returns the logged cycle predictions, for assertions.
func (m *Memory) CycleLog() []record.CyclePrediction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]record.CyclePrediction(nil), m.cycleLog...)
}

// Realized returns how many cycle predictions have been realized.
func (m *Memory) Realized() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.realized
}
