// Command aquarium-ml learns PID gains and water-change timing from aquarium
// telemetry and publishes its predictions back to the MQTT broker.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sweeney/aquarium-ml/internal/config"
	"github.com/sweeney/aquarium-ml/internal/ml"
	"github.com/sweeney/aquarium-ml/internal/mqtt"
	"github.com/sweeney/aquarium-ml/internal/orchestrator"
	"github.com/sweeney/aquarium-ml/internal/status"
	"github.com/sweeney/aquarium-ml/internal/store"
	"github.com/sweeney/aquarium-ml/internal/web"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (defaults apply when empty)")
	broker := flag.String("broker", "", "MQTT broker address (overrides config)")
	httpAddr := flag.String("http", "", "HTTP status address (overrides config, \"off\" disables)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
	if *broker != "" {
		cfg.Broker = *broker
	}
	if *httpAddr != "" {
		cfg.HTTPAddr = *httpAddr
	}
	if cfg.HTTPAddr == "off" {
		cfg.HTTPAddr = ""
	}

	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("daemon exited", zap.Error(err))
	}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zcfg.Build()
}

func run(cfg config.Config, log *zap.Logger) error {
	st, err := store.OpenSQLite(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	bus, err := mqtt.NewClient(cfg.Broker, cfg.ClientID, log.Named("mqtt"))
	if err != nil {
		return fmt.Errorf("connect broker: %w", err)
	}
	defer bus.Close()

	tracker := status.NewTracker(time.Now(), status.Config{
		Broker:        cfg.Broker,
		TopicPrefix:   cfg.TopicPrefix,
		DatabasePath:  cfg.DatabasePath,
		HTTPAddr:      cfg.HTTPAddr,
		GainInterval:  cfg.GainInterval.Std(),
		CycleInterval: cfg.CycleInterval.Std(),
	})
	tracker.SetMQTTConnected(bus.IsConnected())

	topics := mqtt.NewTopics(cfg.TopicPrefix)
	publishLifecycle(bus, topics, tracker, log, "STARTUP", "")

	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("http server error", zap.Error(err))
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Info("http status server listening", zap.String("addr", cfg.HTTPAddr))
	}

	gainCfg := ml.DefaultGainConfig()
	gainCfg.MinSamples = cfg.MinGainSamples
	cycleCfg := ml.DefaultCycleConfig()
	cycleCfg.MinChanges = cfg.MinWaterChanges
	cycleCfg.Features.TankVolume = cfg.TankVolume

	orch := orchestrator.New(orchestrator.Config{
		Topics:           topics,
		Hemisphere:       cfg.HemisphereValue(),
		TankVolume:       cfg.TankVolume,
		GainInterval:     cfg.GainInterval.Std(),
		CycleInterval:    cfg.CycleInterval.Std(),
		Tick:             cfg.SchedulerTick.Std(),
		PublishThreshold: cfg.PublishThreshold,
		SensorRetention:  time.Duration(cfg.SensorRetentionDays) * 24 * time.Hour,
		Gain:             gainCfg,
		Cycle:            cycleCfg,
	}, st, bus, tracker, log.Named("orchestrator"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigCh
		log.Info("shutting down", zap.String("signal", s.String()))
		tracker.SetMQTTConnected(bus.IsConnected())
		publishLifecycle(bus, topics, tracker, log, "SHUTDOWN", signalName(s))
		cancel()
	}()

	log.Info("started",
		zap.String("broker", cfg.Broker),
		zap.String("topic_prefix", cfg.TopicPrefix),
		zap.String("database", cfg.DatabasePath),
		zap.Duration("gain_interval", cfg.GainInterval.Std()),
		zap.Duration("cycle_interval", cfg.CycleInterval.Std()))

	return orch.Run(ctx)
}

// publishLifecycle sends a retained status snapshot on the service topic so
// anyone watching the broker sees the daemon's last known state.
func publishLifecycle(bus mqtt.Bus, topics mqtt.Topics, tracker *status.Tracker, log *zap.Logger, event, reason string) {
	snap := tracker.Snapshot()
	payload := status.FormatStatusEvent(snap, event, reason)
	if err := bus.Publish(topics.Service(), payload, true); err != nil {
		log.Warn("lifecycle event not published", zap.String("event", event), zap.Error(err))
		return
	}
	log.Info("published lifecycle event", zap.String("event", event))
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}
