package ml

import (
	"fmt"
	"sync"
	"time"

	"github.com/sweeney/aquarium-ml/internal/record"
)

// Gain clamp ranges. Predictions outside these are symptoms of sparse
// training regions, not usable controller gains.
const (
	kpMin, kpMax = 1.0, 50.0
	kiMin, kiMax = 0.01, 5.0
	kdMin, kdMax = 0.1, 20.0
)

// GainConfig holds the tunables of a per-controller gain model.
type GainConfig struct {
	// MinSamples is the minimum usable record count per season.
	MinSamples int
	// Trees, MaxDepth, MinLeaf and LearningRate shape the boosted-tree
	// regressors fitted per gain target.
	Trees        int
	MaxDepth     int
	MinLeaf      int
	LearningRate float64
}

// DefaultGainConfig mirrors the service defaults.
func DefaultGainConfig() GainConfig {
	return GainConfig{
		MinSamples:   50,
		Trees:        50,
		MaxDepth:     3,
		MinLeaf:      2,
		LearningRate: 0.1,
	}
}

// trainedGainModel is the immutable trained state for one season: scaler,
// three fitted regressors, and the training-time quality scores. It is
// swapped into the registry atomically on a successful retrain and never
// mutated, so concurrent readers always see a consistent value.
type trainedGainModel struct {
	scaler    *scaler
	kp        regressor
	ki        regressor
	kd        regressor
	kpR2      float64
	kiR2      float64
	kdR2      float64
	avgR2     float64
	samples   int
	trainedAt time.Time
}

// GainTrainResult reports a completed seasonal training pass.
type GainTrainResult struct {
	Controller record.Controller
	Season     int
	Samples    int
	KpR2       float64
	KiR2       float64
	KdR2       float64
	AvgR2      float64
}

// GainContext is the environmental context a gain prediction is made for.
type GainContext struct {
	Temperature float64
	AmbientTemp float64
	TDS         float64
	PH          float64
	Hour        int
	Weekday     int
	TankVolume  float64
}

// SeasonalGainModel maintains four independently trained models for one
// controller, keyed by season bucket. Retraining fully replaces a season's
// state; a failed retrain leaves the previous state untouched.
type SeasonalGainModel struct {
	controller record.Controller
	cfg        GainConfig

	mu      sync.RWMutex
	seasons [4]*trainedGainModel
}

// NewSeasonalGainModel creates an untrained model for the given controller.
func NewSeasonalGainModel(controller record.Controller, cfg GainConfig) *SeasonalGainModel {
	return &SeasonalGainModel{controller: controller, cfg: cfg}
}

// Controller returns the controller this model serves.
func (m *SeasonalGainModel) Controller() record.Controller { return m.controller }

// TrainSeason fits the three gain regressors for one season from the given
// performance history. Returns ErrInsufficientData below the configured
// minimum (before or after the extractor's quality filter).
func (m *SeasonalGainModel) TrainSeason(history []record.PerformanceRecord, season int, now time.Time) (GainTrainResult, error) {
	if season < 0 || season > 3 {
		return GainTrainResult{}, fmt.Errorf("season %d out of range", season)
	}

	samples := ExtractGainFeatures(history, m.controller)
	if samples.Len() < m.cfg.MinSamples {
		return GainTrainResult{}, fmt.Errorf("%w: %s season %d: %d samples (need %d)",
			ErrInsufficientData, m.controller, season, samples.Len(), m.cfg.MinSamples)
	}

	sc := fitScaler(samples.X)
	scaled := sc.transformAll(samples.X)

	fitTarget := func(y []float64) (regressor, float64, error) {
		r := newBoostedRegressor(m.cfg.Trees, m.cfg.MaxDepth, m.cfg.MinLeaf, m.cfg.LearningRate)
		if err := r.fit(scaled, y, samples.Weights); err != nil {
			return nil, 0, err
		}
		return r, rSquared(r, scaled, y, samples.Weights), nil
	}

	kp, kpR2, err := fitTarget(samples.Kp)
	if err != nil {
		return GainTrainResult{}, fmt.Errorf("fit kp: %w", err)
	}
	ki, kiR2, err := fitTarget(samples.Ki)
	if err != nil {
		return GainTrainResult{}, fmt.Errorf("fit ki: %w", err)
	}
	kd, kdR2, err := fitTarget(samples.Kd)
	if err != nil {
		return GainTrainResult{}, fmt.Errorf("fit kd: %w", err)
	}

	trained := &trainedGainModel{
		scaler:    sc,
		kp:        kp,
		ki:        ki,
		kd:        kd,
		kpR2:      kpR2,
		kiR2:      kiR2,
		kdR2:      kdR2,
		avgR2:     (kpR2 + kiR2 + kdR2) / 3,
		samples:   samples.Len(),
		trainedAt: now,
	}

	m.mu.Lock()
	m.seasons[season] = trained
	m.mu.Unlock()

	return GainTrainResult{
		Controller: m.controller,
		Season:     season,
		Samples:    samples.Len(),
		KpR2:       kpR2,
		KiR2:       kiR2,
		KdR2:       kdR2,
		AvgR2:      trained.avgR2,
	}, nil
}

// Trained reports whether the given season has a trained model.
func (m *SeasonalGainModel) Trained(season int) bool {
	if season < 0 || season > 3 {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.seasons[season] != nil
}

// Predict evaluates the season's regressors against the given context.
// Returns ErrNoModel if that season never completed a training pass.
//
// Confidence is the cached training-time average R², clamped to [0,1].
// Scoring the model against a dataset consisting of its own single
// prediction is degenerate and deliberately not done here.
func (m *SeasonalGainModel) Predict(ctx GainContext, season int, now time.Time) (record.GainPrediction, error) {
	if season < 0 || season > 3 {
		return record.GainPrediction{}, fmt.Errorf("season %d out of range", season)
	}

	m.mu.RLock()
	trained := m.seasons[season]
	m.mu.RUnlock()
	if trained == nil {
		return record.GainPrediction{}, fmt.Errorf("%w: %s season %d", ErrNoModel, m.controller, season)
	}

	primary, secondary := ctx.Temperature, ctx.PH
	if m.controller == record.ControllerCO2 {
		primary, secondary = ctx.PH, ctx.Temperature
	}
	x := trained.scaler.transform([]float64{
		primary,
		ctx.AmbientTemp,
		ctx.TDS,
		secondary,
		float64(ctx.Hour),
		float64(ctx.Weekday),
		ctx.TankVolume,
	})

	return record.GainPrediction{
		Controller: m.controller,
		Season:     season,
		Kp:         clamp(trained.kp.predict(x), kpMin, kpMax),
		Ki:         clamp(trained.ki.predict(x), kiMin, kiMax),
		Kd:         clamp(trained.kd.predict(x), kdMin, kdMax),
		Confidence: clamp(trained.avgR2, 0, 1),
		Model:      "gradient_boost",
		Timestamp:  now,
	}, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
