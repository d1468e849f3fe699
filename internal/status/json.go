package status

import (
	"encoding/json"
	"sort"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string                `json:"event,omitempty"`
	Reason        string                `json:"reason,omitempty"`
	UptimeSeconds int64                 `json:"uptime_seconds"`
	StartTime     string                `json:"start_time"`
	Timestamp     string                `json:"timestamp"`
	MQTT          MQTTStatus            `json:"mqtt"`
	Counts        CountsJSON            `json:"ingest_counts"`
	GainModels    map[string]ModelJSON  `json:"gain_models"`
	CycleModel    ModelJSON             `json:"cycle_model"`
	LastGains     map[string]GainJSON   `json:"last_gains,omitempty"`
	LastCycle     *CycleJSON            `json:"last_prediction,omitempty"`
	Config        ConfigJSON            `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of ingest counts.
type CountsJSON struct {
	Sensor            int `json:"sensor"`
	Performance       int `json:"performance"`
	WaterChange       int `json:"water_change"`
	FilterMaintenance int `json:"filter_maintenance"`
	Malformed         int `json:"malformed"`
}

// ModelJSON is the JSON representation of one model's training state.
type ModelJSON struct {
	Trained   bool    `json:"trained"`
	TrainedAt string  `json:"trained_at,omitempty"`
	Samples   int     `json:"samples,omitempty"`
	Score     float64 `json:"score,omitempty"`
}

// GainJSON is the JSON representation of the last gain prediction.
type GainJSON struct {
	Season     int     `json:"season"`
	Kp         float64 `json:"kp"`
	Ki         float64 `json:"ki"`
	Kd         float64 `json:"kd"`
	Confidence float64 `json:"confidence"`
	Timestamp  string  `json:"timestamp"`
}

// CycleJSON is the JSON representation of the last cycle prediction.
type CycleJSON struct {
	DaysRemaining   float64 `json:"predicted_days_remaining"`
	TotalCycleDays  float64 `json:"predicted_total_cycle_days"`
	Confidence      float64 `json:"confidence"`
	NeedsChangeSoon bool    `json:"needs_change_soon"`
	Timestamp       string  `json:"timestamp"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Broker           string `json:"broker"`
	TopicPrefix      string `json:"topic_prefix"`
	DatabasePath     string `json:"database_path"`
	HTTPAddr         string `json:"http_addr"`
	GainIntervalSec  int64  `json:"gain_interval_seconds"`
	CycleIntervalSec int64  `json:"cycle_interval_seconds"`
}

func modelJSON(st ModelState) ModelJSON {
	mj := ModelJSON{
		Trained: st.Trained,
		Samples: st.Samples,
		Score:   st.Score,
	}
	if !st.TrainedAt.IsZero() {
		mj.TrainedAt = st.TrainedAt.UTC().Format(time.RFC3339)
	}
	return mj
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Sensor:            snap.Counts.Sensor,
			Performance:       snap.Counts.Performance,
			WaterChange:       snap.Counts.WaterChange,
			FilterMaintenance: snap.Counts.FilterMaintenance,
			Malformed:         snap.Counts.Malformed,
		},
		GainModels: make(map[string]ModelJSON, len(snap.GainModels)),
		CycleModel: modelJSON(snap.CycleModel),
		Config: ConfigJSON{
			Broker:           snap.Config.Broker,
			TopicPrefix:      snap.Config.TopicPrefix,
			DatabasePath:     snap.Config.DatabasePath,
			HTTPAddr:         snap.Config.HTTPAddr,
			GainIntervalSec:  int64(snap.Config.GainInterval.Seconds()),
			CycleIntervalSec: int64(snap.Config.CycleInterval.Seconds()),
		},
	}

	keys := make([]string, 0, len(snap.GainModels))
	for k := range snap.GainModels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		inner.GainModels[k] = modelJSON(snap.GainModels[k])
	}

	if len(snap.LastGains) > 0 {
		inner.LastGains = make(map[string]GainJSON, len(snap.LastGains))
		for ctrl, pred := range snap.LastGains {
			inner.LastGains[string(ctrl)] = GainJSON{
				Season:     pred.Season,
				Kp:         pred.Kp,
				Ki:         pred.Ki,
				Kd:         pred.Kd,
				Confidence: pred.Confidence,
				Timestamp:  pred.Timestamp.UTC().Format(time.RFC3339),
			}
		}
	}
	if snap.LastCycle != nil {
		inner.LastCycle = &CycleJSON{
			DaysRemaining:   snap.LastCycle.PredictedDaysRemaining,
			TotalCycleDays:  snap.LastCycle.PredictedTotalCycleDays,
			Confidence:      snap.LastCycle.Confidence,
			NeedsChangeSoon: snap.LastCycle.NeedsChangeSoon,
			Timestamp:       snap.LastCycle.Timestamp.UTC().Format(time.RFC3339),
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for a retained MQTT service
// event (STARTUP, SHUTDOWN).
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
