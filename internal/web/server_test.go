package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/aquarium-ml/internal/record"
	"github.com/sweeney/aquarium-ml/internal/status"
)

func newTestServer(t *testing.T) (*httptest.Server, *status.Tracker) {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := status.Config{
		Broker:      "tcp://192.168.1.200:1883",
		TopicPrefix: "aquarium",
		HTTPAddr:    ":8080",
	}
	tr := status.NewTracker(start, cfg)
	srv := New(":0", tr)
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts, tr
}

func TestJSONEndpoint(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.IncSensor()
	tr.IncSensor()
	tr.SetMQTTConnected(true)
	tr.SetGainModel(record.ControllerTemp, 1, status.ModelState{Trained: true, Samples: 60, Score: 0.8})

	resp, err := http.Get(ts.URL + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}

	if !sj.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if sj.Status.MQTT.Broker != "tcp://192.168.1.200:1883" {
		t.Errorf("MQTT.Broker: got %q", sj.Status.MQTT.Broker)
	}
	if sj.Status.Counts.Sensor != 2 {
		t.Errorf("Counts.Sensor: got %d, want 2", sj.Status.Counts.Sensor)
	}
	if !sj.Status.GainModels["temp/spring"].Trained {
		t.Error("expected temp/spring trained")
	}
}

func TestHTMLEndpointRoot(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.SetCycleModel(status.ModelState{Trained: true, Samples: 12, Score: 0.7})
	tr.SetLastCycle(record.CyclePrediction{
		PredictedDaysRemaining:  2.5,
		PredictedTotalCycleDays: 7.5,
		Confidence:              0.65,
		NeedsChangeSoon:         true,
	})

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type: got %q, want text/html", ct)
	}

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "Water Change Forecast") {
		t.Error("expected forecast section in HTML")
	}
	if !strings.Contains(string(body), "2.5") {
		t.Error("expected days remaining in HTML")
	}
}

func TestHTMLEndpointIndexHTML(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/index.html")
	if err != nil {
		t.Fatalf("GET /index.html: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
}

func TestForecastEndpoint(t *testing.T) {
	ts, tr := newTestServer(t)

	resp, err := http.Get(ts.URL + "/forecast.json")
	if err != nil {
		t.Fatalf("GET /forecast.json: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 404 {
		t.Errorf("status before any forecast: got %d, want 404", resp.StatusCode)
	}

	tr.SetLastCycle(record.CyclePrediction{
		PredictedDaysRemaining:  1.5,
		PredictedTotalCycleDays: 6.5,
		Confidence:              0.72,
		NeedsChangeSoon:         true,
		Timestamp:               time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC),
	})

	resp2, err := http.Get(ts.URL + "/forecast.json")
	if err != nil {
		t.Fatalf("GET /forecast.json: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp2.StatusCode)
	}

	var payload struct {
		DaysRemaining   float64 `json:"predicted_days_remaining"`
		Confidence      float64 `json:"confidence"`
		NeedsChangeSoon bool    `json:"needs_change_soon"`
		Timestamp       string  `json:"timestamp"`
	}
	if err := json.NewDecoder(resp2.Body).Decode(&payload); err != nil {
		t.Fatalf("decode forecast: %v", err)
	}
	if payload.DaysRemaining != 1.5 {
		t.Errorf("predicted_days_remaining: got %v, want 1.5", payload.DaysRemaining)
	}
	if payload.Confidence != 0.72 {
		t.Errorf("confidence: got %v, want 0.72", payload.Confidence)
	}
	if !payload.NeedsChangeSoon {
		t.Error("expected needs_change_soon=true")
	}
	if payload.Timestamp != "2026-01-02T03:00:00Z" {
		t.Errorf("timestamp: got %q", payload.Timestamp)
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/nonexistent")
	if err != nil {
		t.Fatalf("GET /nonexistent: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestStateChangesReflectedInResponse(t *testing.T) {
	ts, tr := newTestServer(t)

	resp1, _ := http.Get(ts.URL + "/index.json")
	var sj1 status.StatusJSON
	json.NewDecoder(resp1.Body).Decode(&sj1)
	resp1.Body.Close()
	if sj1.Status.CycleModel.Trained {
		t.Error("expected untrained cycle model initially")
	}

	tr.SetCycleModel(status.ModelState{Trained: true, Samples: 9})
	tr.SetMQTTConnected(true)

	resp2, _ := http.Get(ts.URL + "/index.json")
	var sj2 status.StatusJSON
	json.NewDecoder(resp2.Body).Decode(&sj2)
	resp2.Body.Close()

	if !sj2.Status.CycleModel.Trained {
		t.Error("expected trained cycle model after update")
	}
	if !sj2.Status.MQTT.Connected {
		t.Error("expected MQTT connected after update")
	}
}
