package main

import (
	"encoding/json"
	"errors"
	"syscall"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/aquarium-ml/internal/mqtt"
	"github.com/sweeney/aquarium-ml/internal/status"
)

func TestSignalName(t *testing.T) {
	if got := signalName(syscall.SIGINT); got != "SIGINT" {
		t.Errorf("SIGINT: got %q", got)
	}
	if got := signalName(syscall.SIGTERM); got != "SIGTERM" {
		t.Errorf("SIGTERM: got %q", got)
	}
	if got := signalName(syscall.SIGHUP); got != "UNKNOWN" {
		t.Errorf("SIGHUP: got %q, want UNKNOWN", got)
	}
}

func TestNewLogger(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		if _, err := newLogger(level); err != nil {
			t.Errorf("level %q: %v", level, err)
		}
	}
	if _, err := newLogger("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestPublishLifecycle(t *testing.T) {
	bus := mqtt.NewFakeBus()
	topics := mqtt.NewTopics("aquarium")
	tracker := status.NewTracker(time.Now(), status.Config{Broker: "tcp://test:1883"})

	publishLifecycle(bus, topics, tracker, zap.NewNop(), "STARTUP", "")

	msgs := bus.MessagesOn("aquarium/ml/service")
	if len(msgs) != 1 {
		t.Fatalf("expected 1 service message, got %d", len(msgs))
	}
	if !msgs[0].Retained {
		t.Error("expected retained lifecycle event")
	}

	var payload struct {
		Status struct {
			Event string `json:"event"`
		} `json:"status"`
	}
	if err := json.Unmarshal(msgs[0].Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Status.Event != "STARTUP" {
		t.Errorf("event: got %q, want STARTUP", payload.Status.Event)
	}
}

func TestPublishLifecycleBrokerDown(t *testing.T) {
	bus := mqtt.NewFakeBus()
	bus.PublishError = errors.New("broker unavailable")
	topics := mqtt.NewTopics("aquarium")
	tracker := status.NewTracker(time.Now(), status.Config{})

	// Must not panic; the failure is logged and ignored.
	publishLifecycle(bus, topics, tracker, zap.NewNop(), "SHUTDOWN", "SIGTERM")

	if len(bus.Messages()) != 0 {
		t.Errorf("expected no recorded messages, got %d", len(bus.Messages()))
	}
}
