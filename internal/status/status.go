// Package status provides a thread-safe status tracker for the aquarium-ml
// daemon. It is read by HTTP handlers and the retained MQTT status snapshot.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/aquarium-ml/internal/record"
)

// Config contains daemon configuration for display.
type Config struct {
	Broker        string
	TopicPrefix   string
	DatabasePath  string
	HTTPAddr      string
	GainInterval  time.Duration
	CycleInterval time.Duration
}

// ModelState describes one trained (or untrained) model.
type ModelState struct {
	Trained   bool
	TrainedAt time.Time
	Samples   int
	Score     float64
}

// IngestCounts tracks how many events of each kind were accepted, plus the
// malformed payloads that were dropped.
type IngestCounts struct {
	Sensor            int
	Performance       int
	WaterChange       int
	FilterMaintenance int
	Malformed         int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type — safe to use after the lock is released.
type Snapshot struct {
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Counts        IngestCounts

	// GainModels is keyed by GainKey (controller/season name).
	GainModels map[string]ModelState
	CycleModel ModelState

	// LastGains is keyed by controller.
	LastGains map[record.Controller]record.GainPrediction
	LastCycle *record.CyclePrediction

	Config Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// GainKey names one controller/season model slot, e.g. "temp/spring".
func GainKey(ctrl record.Controller, season int) string {
	return string(ctrl) + "/" + record.SeasonName(season)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime:  startTime,
			GainModels: make(map[string]ModelState),
			LastGains:  make(map[record.Controller]record.GainPrediction),
			Config:     cfg,
		},
	}
}

// IncSensor counts one accepted sensor reading.
func (t *Tracker) IncSensor() {
	t.mu.Lock()
	t.snap.Counts.Sensor++
	t.mu.Unlock()
}

// IncPerformance counts one accepted performance record.
func (t *Tracker) IncPerformance() {
	t.mu.Lock()
	t.snap.Counts.Performance++
	t.mu.Unlock()
}

// IncWaterChange counts one accepted water change event.
func (t *Tracker) IncWaterChange() {
	t.mu.Lock()
	t.snap.Counts.WaterChange++
	t.mu.Unlock()
}

// IncFilterMaintenance counts one accepted maintenance event.
func (t *Tracker) IncFilterMaintenance() {
	t.mu.Lock()
	t.snap.Counts.FilterMaintenance++
	t.mu.Unlock()
}

// IncMalformed counts one dropped malformed payload.
func (t *Tracker) IncMalformed() {
	t.mu.Lock()
	t.snap.Counts.Malformed++
	t.mu.Unlock()
}

// SetGainModel records the training state for one controller/season slot.
func (t *Tracker) SetGainModel(ctrl record.Controller, season int, st ModelState) {
	t.mu.Lock()
	t.snap.GainModels[GainKey(ctrl, season)] = st
	t.mu.Unlock()
}

// SetCycleModel records the water-change model training state.
func (t *Tracker) SetCycleModel(st ModelState) {
	t.mu.Lock()
	t.snap.CycleModel = st
	t.mu.Unlock()
}

// SetLastGain records the latest published gain prediction.
func (t *Tracker) SetLastGain(pred record.GainPrediction) {
	t.mu.Lock()
	t.snap.LastGains[pred.Controller] = pred
	t.mu.Unlock()
}

// SetLastCycle records the latest published cycle prediction.
func (t *Tracker) SetLastCycle(pred record.CyclePrediction) {
	t.mu.Lock()
	t.snap.LastCycle = &pred
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.GainModels = make(map[string]ModelState, len(t.snap.GainModels))
	for k, v := range t.snap.GainModels {
		s.GainModels[k] = v
	}
	s.LastGains = make(map[record.Controller]record.GainPrediction, len(t.snap.LastGains))
	for k, v := range t.snap.LastGains {
		s.LastGains[k] = v
	}
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
