package status

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/aquarium-ml/internal/record"
)

func TestNewTracker(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := Config{Broker: "tcp://localhost:1883", HTTPAddr: ":8080", TopicPrefix: "aquarium"}
	tr := NewTracker(start, cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Config.Broker != "tcp://localhost:1883" {
		t.Errorf("Config.Broker: got %q", snap.Config.Broker)
	}
	if snap.MQTTConnected {
		t.Error("expected MQTTConnected=false initially")
	}
	if len(snap.GainModels) != 0 {
		t.Errorf("expected no gain models initially, got %d", len(snap.GainModels))
	}
	if snap.CycleModel.Trained {
		t.Error("expected untrained cycle model initially")
	}
}

func TestIngestCounts(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.IncSensor()
	tr.IncSensor()
	tr.IncPerformance()
	tr.IncWaterChange()
	tr.IncFilterMaintenance()
	tr.IncMalformed()

	c := tr.Snapshot().Counts
	if c.Sensor != 2 {
		t.Errorf("Sensor: got %d, want 2", c.Sensor)
	}
	if c.Performance != 1 || c.WaterChange != 1 || c.FilterMaintenance != 1 {
		t.Errorf("unexpected counts: %+v", c)
	}
	if c.Malformed != 1 {
		t.Errorf("Malformed: got %d, want 1", c.Malformed)
	}
}

func TestGainKey(t *testing.T) {
	if got := GainKey(record.ControllerTemp, 1); got != "temp/spring" {
		t.Errorf("GainKey: got %q, want temp/spring", got)
	}
	if got := GainKey(record.ControllerCO2, 0); got != "co2/winter" {
		t.Errorf("GainKey: got %q, want co2/winter", got)
	}
}

func TestSetGainModel(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	at := time.Date(2026, 4, 1, 6, 0, 0, 0, time.UTC)

	tr.SetGainModel(record.ControllerTemp, 1, ModelState{Trained: true, TrainedAt: at, Samples: 60, Score: 0.8})

	snap := tr.Snapshot()
	st, ok := snap.GainModels["temp/spring"]
	if !ok {
		t.Fatal("expected temp/spring model state")
	}
	if !st.Trained || st.Samples != 60 {
		t.Errorf("unexpected state: %+v", st)
	}
}

func TestSetLastPredictions(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.SetLastGain(record.GainPrediction{Controller: record.ControllerTemp, Season: 2, Kp: 12})
	tr.SetLastCycle(record.CyclePrediction{PredictedDaysRemaining: 2.5, NeedsChangeSoon: true})

	snap := tr.Snapshot()
	if snap.LastGains[record.ControllerTemp].Kp != 12 {
		t.Errorf("LastGains: got %+v", snap.LastGains)
	}
	if snap.LastCycle == nil || !snap.LastCycle.NeedsChangeSoon {
		t.Errorf("LastCycle: got %+v", snap.LastCycle)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.SetGainModel(record.ControllerTemp, 0, ModelState{Trained: true, Samples: 50})

	snap1 := tr.Snapshot()
	tr.SetGainModel(record.ControllerTemp, 0, ModelState{Trained: true, Samples: 80})

	if snap1.GainModels["temp/winter"].Samples != 50 {
		t.Error("snapshot should be a copy; gain model state was modified")
	}
}

func TestSnapshotUptime(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		StartTime: start,
		Now:       start.Add(15 * time.Minute),
	}

	if snap.Uptime() != 15*time.Minute {
		t.Errorf("Uptime: got %v, want 15m", snap.Uptime())
	}
}

func TestFormatJSON(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		StartTime:     start,
		Now:           start.Add(15 * time.Minute),
		MQTTConnected: true,
		Counts:        IngestCounts{Sensor: 120, Performance: 8, Malformed: 2},
		GainModels: map[string]ModelState{
			"temp/spring": {Trained: true, TrainedAt: start, Samples: 60, Score: 0.8},
		},
		CycleModel: ModelState{Trained: false},
		Config:     Config{Broker: "tcp://localhost:1883", TopicPrefix: "aquarium"},
	}

	var parsed StatusJSON
	if err := json.Unmarshal(FormatJSON(snap), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Status.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", parsed.Status.UptimeSeconds)
	}
	if !parsed.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if parsed.Status.Counts.Sensor != 120 {
		t.Errorf("Counts.Sensor: got %d, want 120", parsed.Status.Counts.Sensor)
	}
	if parsed.Status.Counts.Malformed != 2 {
		t.Errorf("Counts.Malformed: got %d, want 2", parsed.Status.Counts.Malformed)
	}
	if !parsed.Status.GainModels["temp/spring"].Trained {
		t.Error("expected temp/spring trained")
	}
	if parsed.Status.CycleModel.Trained {
		t.Error("expected untrained cycle model")
	}
	// Event and Reason should be omitted
	if parsed.Status.Event != "" || parsed.Status.Reason != "" {
		t.Errorf("expected no event/reason for web format, got %q %q", parsed.Status.Event, parsed.Status.Reason)
	}
}

func TestFormatStatusEvent(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		StartTime: start,
		Now:       start.Add(time.Minute),
	}

	var parsed StatusJSON
	if err := json.Unmarshal(FormatStatusEvent(snap, "SHUTDOWN", "SIGTERM"), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Event != "SHUTDOWN" {
		t.Errorf("Event: got %q, want SHUTDOWN", parsed.Status.Event)
	}
	if parsed.Status.Reason != "SIGTERM" {
		t.Errorf("Reason: got %q, want SIGTERM", parsed.Status.Reason)
	}
}

func TestFormatStatusEventOmitsReasonWhenEmpty(t *testing.T) {
	snap := Snapshot{
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC),
	}

	var raw map[string]interface{}
	json.Unmarshal(FormatStatusEvent(snap, "STARTUP", ""), &raw)
	inner := raw["status"].(map[string]interface{})
	if _, exists := inner["reason"]; exists {
		t.Error("reason should be omitted when empty")
	}
	if inner["event"] != "STARTUP" {
		t.Errorf("event: got %v, want STARTUP", inner["event"])
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	var wg sync.WaitGroup

	// Writer
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			tr.IncSensor()
			tr.SetMQTTConnected(i%2 == 0)
			tr.SetGainModel(record.ControllerTemp, i%4, ModelState{Trained: true, Samples: i})
			tr.SetLastCycle(record.CyclePrediction{PredictedDaysRemaining: float64(i)})
		}
	}()

	// Reader
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			snap := tr.Snapshot()
			_ = snap.Uptime()
			_ = FormatJSON(snap)
		}
	}()

	wg.Wait()
}
