// Package mqtt provides the broker transport: inbound telemetry and event
// subscriptions, outbound retained predictions, with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/aquarium-ml/internal/record"
)

// Topics holds every topic the service touches, derived from one prefix so
// multiple tanks can share a broker.
type Topics struct {
	prefix string
}

// NewTopics builds the topic set for a prefix such as "aquarium".
func NewTopics(prefix string) Topics {
	return Topics{prefix: prefix}
}

// Inbound topics published by the tank controller.
func (t Topics) Data() string              { return t.prefix + "/data" }
func (t Topics) PIDPerformance() string    { return t.prefix + "/pid/performance" }
func (t Topics) WaterChangeEvent() string  { return t.prefix + "/waterchange/event" }
func (t Topics) FilterMaintenance() string { return t.prefix + "/filter/maintenance" }

// Subscriptions lists every inbound topic.
func (t Topics) Subscriptions() []string {
	return []string{t.Data(), t.PIDPerformance(), t.WaterChangeEvent(), t.FilterMaintenance()}
}

// Gains is the retained per-controller gain recommendation topic. Each
// controller gets its own topic so one retained value never clobbers
// another under last-value-wins.
func (t Topics) Gains(ctrl record.Controller) string {
	return t.prefix + "/ml/gains/" + string(ctrl)
}

// Prediction is the retained water-change forecast topic.
func (t Topics) Prediction() string { return t.prefix + "/ml/prediction" }

// Service is the lifecycle event topic.
func (t Topics) Service() string { return t.prefix + "/ml/service" }

// Handler receives one inbound message. Implementations must not block:
// the paho client invokes handlers on its network goroutine.
type Handler func(topic string, payload []byte)

// Bus is the broker connection used by the orchestrator.
type Bus interface {
	// Publish sends a payload. Retained publishes survive on the broker so
	// late subscribers receive the latest prediction immediately.
	Publish(topic string, payload []byte, retain bool) error

	// Subscribe registers the handler for the given topics.
	Subscribe(topics []string, h Handler) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the broker connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// ServiceEvent is a lifecycle event (STARTUP, SHUTDOWN, RETRAIN).
type ServiceEvent struct {
	Timestamp time.Time
	Event     string
	Reason    string
}

type gainPayload struct {
	Controller string  `json:"controller"`
	Season     int     `json:"season"`
	SeasonName string  `json:"season_name"`
	Kp         float64 `json:"kp"`
	Ki         float64 `json:"ki"`
	Kd         float64 `json:"kd"`
	Confidence float64 `json:"confidence"`
	Model      string  `json:"model"`
	Timestamp  string  `json:"timestamp"`
}

// FormatGainPayload creates the JSON payload for a gain recommendation.
func FormatGainPayload(pred record.GainPrediction) ([]byte, error) {
	return json.Marshal(gainPayload{
		Controller: string(pred.Controller),
		Season:     pred.Season,
		SeasonName: record.SeasonName(pred.Season),
		Kp:         pred.Kp,
		Ki:         pred.Ki,
		Kd:         pred.Kd,
		Confidence: pred.Confidence,
		Model:      pred.Model,
		Timestamp:  pred.Timestamp.UTC().Format(time.RFC3339),
	})
}

type cyclePayload struct {
	DaysRemaining   float64 `json:"predicted_days_remaining"`
	TotalCycleDays  float64 `json:"predicted_total_cycle_days"`
	DaysSinceChange float64 `json:"days_since_last_change"`
	CurrentTDS      float64 `json:"current_tds"`
	TDSIncreaseRate float64 `json:"tds_increase_rate"`
	Confidence      float64 `json:"confidence"`
	Model           string  `json:"model"`
	NeedsChangeSoon bool    `json:"needs_change_soon"`
	Timestamp       string  `json:"timestamp"`
}

// FormatCyclePayload creates the JSON payload for a water-change forecast.
func FormatCyclePayload(pred record.CyclePrediction) ([]byte, error) {
	return json.Marshal(cyclePayload{
		DaysRemaining:   pred.PredictedDaysRemaining,
		TotalCycleDays:  pred.PredictedTotalCycleDays,
		DaysSinceChange: pred.DaysSinceLastChange,
		CurrentTDS:      pred.CurrentTDS,
		TDSIncreaseRate: pred.TDSIncreaseRate,
		Confidence:      pred.Confidence,
		Model:           pred.Model,
		NeedsChangeSoon: pred.NeedsChangeSoon,
		Timestamp:       pred.Timestamp.UTC().Format(time.RFC3339),
	})
}

type servicePayload struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatServicePayload creates the JSON payload for a lifecycle event.
func FormatServicePayload(ev ServiceEvent) ([]byte, error) {
	return json.Marshal(servicePayload{
		Timestamp: ev.Timestamp.UTC().Format(time.RFC3339),
		Event:     ev.Event,
		Reason:    ev.Reason,
	})
}
