// Package orchestrator wires ingestion, training, and publishing together:
// it subscribes to the tank's telemetry topics, schedules periodic retrains,
// reacts to aquarium events, and publishes retained predictions.
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/aquarium-ml/internal/ml"
	"github.com/sweeney/aquarium-ml/internal/mqtt"
	"github.com/sweeney/aquarium-ml/internal/record"
	"github.com/sweeney/aquarium-ml/internal/status"
	"github.com/sweeney/aquarium-ml/internal/store"
)

const pruneInterval = 24 * time.Hour

// Config holds the orchestrator tunables.
type Config struct {
	Topics     mqtt.Topics
	Hemisphere record.Hemisphere
	TankVolume float64

	// GainInterval and CycleInterval are the periodic retrain cadences;
	// Tick is the scheduler resolution.
	GainInterval  time.Duration
	CycleInterval time.Duration
	Tick          time.Duration

	// PublishThreshold gates gain recommendations: below it they are
	// logged but never published. The water-change forecast is exempt; it
	// goes out on every successful pass with its confidence attached.
	PublishThreshold float64

	// SensorRetention bounds the raw reading history in the store.
	SensorRetention time.Duration

	Gain  ml.GainConfig
	Cycle ml.CycleConfig
}

// Orchestrator owns the model registry and the training schedule.
type Orchestrator struct {
	cfg     Config
	store   store.Store
	bus     mqtt.Bus
	tracker *status.Tracker
	log     *zap.Logger

	gains map[record.Controller]*ml.SeasonalGainModel
	cycle *ml.CycleLengthModel

	gainWorkers map[record.Controller]*worker
	cycleWorker *worker

	// now is replaced in tests.
	now func() time.Time

	mu           sync.Mutex
	lastGainRun  time.Time
	lastCycleRun time.Time
	lastPrune    time.Time
}

// New creates an Orchestrator with untrained models.
func New(cfg Config, st store.Store, bus mqtt.Bus, tracker *status.Tracker, log *zap.Logger) *Orchestrator {
	o := &Orchestrator{
		cfg:         cfg,
		store:       st,
		bus:         bus,
		tracker:     tracker,
		log:         log,
		gains:       make(map[record.Controller]*ml.SeasonalGainModel),
		gainWorkers: make(map[record.Controller]*worker),
		cycle:       ml.NewCycleLengthModel(cfg.Cycle),
		now:         time.Now,
	}
	for _, ctrl := range record.Controllers {
		ctrl := ctrl
		o.gains[ctrl] = ml.NewSeasonalGainModel(ctrl, cfg.Gain)
		o.gainWorkers[ctrl] = newWorker(func(ctx context.Context) {
			o.runGainTraining(ctx, ctrl)
		})
	}
	o.cycleWorker = newWorker(o.runCycleTraining)
	return o
}

// Run subscribes to the inbound topics and drives the schedule until ctx is
// cancelled. The first tick fires immediately so a restart does not wait a
// full interval before training.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.bus.Subscribe(o.cfg.Topics.Subscriptions(), o.HandleMessage); err != nil {
		return err
	}
	for _, w := range o.gainWorkers {
		go w.loop(ctx)
	}
	go o.cycleWorker.loop(ctx)

	o.tick(o.now())
	ticker := time.NewTicker(o.cfg.Tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			o.tick(o.now())
		}
	}
}

// tick checks which cadences are due and triggers the matching workers.
// Interval bookkeeping happens here so a slow training run cannot pile up
// extra triggers behind itself.
func (o *Orchestrator) tick(now time.Time) {
	o.mu.Lock()
	gainDue := now.Sub(o.lastGainRun) >= o.cfg.GainInterval
	if gainDue {
		o.lastGainRun = now
	}
	cycleDue := now.Sub(o.lastCycleRun) >= o.cfg.CycleInterval
	if cycleDue {
		o.lastCycleRun = now
	}
	pruneDue := o.cfg.SensorRetention > 0 && now.Sub(o.lastPrune) >= pruneInterval
	if pruneDue {
		o.lastPrune = now
	}
	o.mu.Unlock()

	if gainDue {
		for _, w := range o.gainWorkers {
			w.Trigger()
		}
	}
	if cycleDue {
		o.cycleWorker.Trigger()
	}
	if pruneDue {
		o.prune(now)
	}
}

func (o *Orchestrator) prune(now time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	cutoff := now.Add(-o.cfg.SensorRetention)
	n, err := o.store.PruneBefore(ctx, cutoff)
	if err != nil {
		o.log.Warn("prune failed", zap.Error(err))
		return
	}
	if n > 0 {
		o.log.Info("pruned sensor readings", zap.Int64("dropped", n), zap.Time("cutoff", cutoff))
	}
}

// runGainTraining retrains every season slot of one controller that has
// enough data, then publishes a recommendation for the current season.
// A season that fails leaves its previous model untouched.
func (o *Orchestrator) runGainTraining(ctx context.Context, ctrl record.Controller) {
	now := o.now()
	for season := 0; season < 4; season++ {
		history, err := o.store.Performance(ctx, ctrl, season)
		if err != nil {
			o.log.Warn("performance query failed, skipping season",
				zap.String("controller", string(ctrl)), zap.Int("season", season), zap.Error(err))
			continue
		}
		res, err := o.gains[ctrl].TrainSeason(history, season, now)
		if errors.Is(err, ml.ErrInsufficientData) {
			o.log.Debug("not enough data to train",
				zap.String("controller", string(ctrl)), zap.Int("season", season), zap.Error(err))
			continue
		}
		if err != nil {
			o.log.Error("gain training failed",
				zap.String("controller", string(ctrl)), zap.Int("season", season), zap.Error(err))
			continue
		}
		o.tracker.SetGainModel(ctrl, season, status.ModelState{
			Trained:   true,
			TrainedAt: now,
			Samples:   res.Samples,
			Score:     res.AvgR2,
		})
		o.log.Info("gain model trained",
			zap.String("controller", string(ctrl)),
			zap.String("season", record.SeasonName(season)),
			zap.Int("samples", res.Samples),
			zap.Float64("avg_r2", res.AvgR2))
	}
	o.publishGains(ctx, ctrl, now)
}

// publishGains predicts for the current season and publishes the retained
// recommendation when confidence clears the threshold.
func (o *Orchestrator) publishGains(ctx context.Context, ctrl record.Controller, now time.Time) {
	season := record.SeasonOf(now, o.cfg.Hemisphere)
	pred, err := o.gains[ctrl].Predict(o.gainContext(ctx, now), season, now)
	if errors.Is(err, ml.ErrNoModel) {
		o.log.Debug("no model for current season",
			zap.String("controller", string(ctrl)), zap.String("season", record.SeasonName(season)))
		return
	}
	if err != nil {
		o.log.Error("gain prediction failed", zap.String("controller", string(ctrl)), zap.Error(err))
		return
	}

	if err := o.store.LogGainPrediction(ctx, pred); err != nil {
		o.log.Warn("gain prediction not logged", zap.Error(err))
	}
	if pred.Confidence < o.cfg.PublishThreshold {
		o.log.Info("gain prediction below publish threshold",
			zap.String("controller", string(ctrl)),
			zap.Float64("confidence", pred.Confidence),
			zap.Float64("threshold", o.cfg.PublishThreshold))
		return
	}

	payload, err := mqtt.FormatGainPayload(pred)
	if err != nil {
		o.log.Error("format gain payload", zap.Error(err))
		return
	}
	if err := o.bus.Publish(o.cfg.Topics.Gains(ctrl), payload, true); err != nil {
		o.log.Warn("gain publish failed", zap.String("controller", string(ctrl)), zap.Error(err))
		return
	}
	o.tracker.SetLastGain(pred)
	o.log.Info("published gain recommendation",
		zap.String("controller", string(ctrl)),
		zap.Float64("kp", pred.Kp), zap.Float64("ki", pred.Ki), zap.Float64("kd", pred.Kd),
		zap.Float64("confidence", pred.Confidence))
}

// gainContext assembles the prediction context from the last hour of
// readings, falling back to domain defaults on an empty or failing store.
func (o *Orchestrator) gainContext(ctx context.Context, now time.Time) ml.GainContext {
	gc := ml.GainContext{
		Temperature: record.DefaultTemperature,
		AmbientTemp: record.DefaultAmbientTemp,
		TDS:         record.DefaultTDS,
		PH:          record.DefaultPH,
		Hour:        now.Hour(),
		Weekday:     int(now.Weekday()),
		TankVolume:  o.cfg.TankVolume,
	}
	sensors, err := o.store.RecentSensors(ctx, now.Add(-time.Hour))
	if err != nil || len(sensors) == 0 {
		return gc
	}
	var temp, ambient, tds, ph float64
	for _, sr := range sensors {
		temp += sr.Temperature
		ambient += sr.AmbientTemp
		tds += sr.TDS
		ph += sr.PH
	}
	n := float64(len(sensors))
	gc.Temperature = temp / n
	gc.AmbientTemp = ambient / n
	gc.TDS = tds / n
	gc.PH = ph / n
	return gc
}

// runCycleTraining retrains the water-change model and publishes a fresh
// retained forecast. Unlike gains, the forecast is not confidence gated:
// every successful pass publishes, with the confidence carried in the
// payload for the consumer to weigh.
func (o *Orchestrator) runCycleTraining(ctx context.Context) {
	now := o.now()
	changes, err := o.store.WaterChanges(ctx)
	if err != nil {
		o.log.Warn("water change query failed", zap.Error(err))
		return
	}
	maint, err := o.store.FilterMaintenance(ctx)
	if err != nil {
		o.log.Warn("filter maintenance query failed", zap.Error(err))
		return
	}

	res, err := o.cycle.Train(changes, maint, now)
	switch {
	case errors.Is(err, ml.ErrInsufficientData):
		o.log.Debug("not enough water changes to train", zap.Error(err))
	case err != nil:
		o.log.Error("cycle training failed", zap.Error(err))
	default:
		o.tracker.SetCycleModel(status.ModelState{
			Trained:   true,
			TrainedAt: now,
			Samples:   res.Samples,
			Score:     res.Score,
		})
		o.log.Info("cycle model trained",
			zap.Int("samples", res.Samples),
			zap.String("model", res.Model),
			zap.Float64("score", res.Score))
	}

	sensors, err := o.store.RecentSensors(ctx, now.Add(-24*time.Hour))
	if err != nil {
		o.log.Warn("sensor query failed, predicting from last change", zap.Error(err))
		sensors = nil
	}
	pred, err := o.cycle.Predict(changes, maint, sensors, now)
	if errors.Is(err, ml.ErrNoModel) || errors.Is(err, ml.ErrNoHistory) {
		o.log.Debug("no cycle forecast available", zap.Error(err))
		return
	}
	if err != nil {
		o.log.Error("cycle prediction failed", zap.Error(err))
		return
	}

	if err := o.store.LogCyclePrediction(ctx, pred); err != nil {
		o.log.Warn("cycle prediction not logged", zap.Error(err))
	}

	payload, err := mqtt.FormatCyclePayload(pred)
	if err != nil {
		o.log.Error("format cycle payload", zap.Error(err))
		return
	}
	if err := o.bus.Publish(o.cfg.Topics.Prediction(), payload, true); err != nil {
		o.log.Warn("cycle publish failed", zap.Error(err))
		return
	}
	o.tracker.SetLastCycle(pred)
	o.log.Info("published water change forecast",
		zap.Float64("days_remaining", pred.PredictedDaysRemaining),
		zap.Float64("confidence", pred.Confidence),
		zap.Bool("needs_change_soon", pred.NeedsChangeSoon))
}
