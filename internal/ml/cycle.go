package ml

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/sweeney/aquarium-ml/internal/record"
)

// CycleConfig holds the tunables of the water-change interval model.
type CycleConfig struct {
	// MinChanges is the minimum completed-change count to attempt training.
	MinChanges int
	// Features configures the extraction constants.
	Features CycleFeatureConfig
	// ConfidenceFloor bounds prediction confidence from below.
	ConfidenceFloor float64
	// FullConfidenceSamples is the sample count at which the
	// data-sufficiency factor reaches 1.
	FullConfidenceSamples int
	// SoonThresholdDays controls the NeedsChangeSoon flag.
	SoonThresholdDays float64
	// CVMinSamples enables k-fold selection at or above this count;
	// below it, selection falls back to in-sample scoring.
	CVMinSamples int
	// CVFolds is the fold count for cross-validated selection.
	CVFolds int
	// Seed drives the bagged forest's bootstrap resampling and the CV
	// fold shuffle, keeping retraining deterministic.
	Seed int64
}

// DefaultCycleConfig mirrors the service defaults.
func DefaultCycleConfig() CycleConfig {
	return CycleConfig{
		MinChanges: 5,
		Features: CycleFeatureConfig{
			TankVolume:        record.DefaultTankVolume,
			DefaultFilterDays: 30,
			Hemisphere:        record.Northern,
		},
		ConfidenceFloor:       0.1,
		FullConfidenceSamples: 20,
		SoonThresholdDays:     3,
		CVMinSamples:          15,
		CVFolds:               3,
		Seed:                  42,
	}
}

// trainedCycle is the immutable trained state of the interval model.
type trainedCycle struct {
	scaler    *scaler
	model     regressor
	modelName string
	r2        float64
	samples   int
	trainedAt time.Time
}

// CycleTrainResult reports a completed training pass.
type CycleTrainResult struct {
	Samples   int
	Model     string
	Score     float64
	AllScores map[string]float64
}

// CycleLengthModel predicts the interval between water changes with a small
// ensemble of candidate regressors spanning different bias/variance
// tradeoffs, keeping whichever fits best.
type CycleLengthModel struct {
	cfg CycleConfig

	mu      sync.RWMutex
	current *trainedCycle
}

// NewCycleLengthModel creates an untrained interval model.
func NewCycleLengthModel(cfg CycleConfig) *CycleLengthModel {
	return &CycleLengthModel{cfg: cfg}
}

// candidates returns fresh regressor instances for one training pass.
func (m *CycleLengthModel) candidates() []regressor {
	return []regressor{
		&linearRegressor{},
		newForestRegressor(50, 6, 2, m.cfg.Seed),
		newBoostedRegressor(50, 3, 2, 0.1),
	}
}

// Train extracts pair features from the change history, fits every
// candidate, and keeps the best-scoring one. Selection uses k-fold
// cross-validation when the sample count permits; below CVMinSamples the
// in-sample score decides. Returns ErrInsufficientData below the minimum
// completed-change count, before or after pair filtering, leaving any
// previously trained state untouched.
func (m *CycleLengthModel) Train(changes []record.WaterChangeRecord, maint []record.FilterMaintenanceRecord, now time.Time) (CycleTrainResult, error) {
	completed := completedChanges(changes)
	if len(completed) < m.cfg.MinChanges {
		return CycleTrainResult{}, fmt.Errorf("%w: %d water changes (need %d)",
			ErrInsufficientData, len(completed), m.cfg.MinChanges)
	}

	samples := ExtractCycleFeatures(changes, maint, m.cfg.Features)
	if samples.Len() < m.cfg.MinChanges-1 || samples.Len() < 2 {
		return CycleTrainResult{}, fmt.Errorf("%w: %d usable pairs after filtering (need %d)",
			ErrInsufficientData, samples.Len(), m.cfg.MinChanges-1)
	}

	sc := fitScaler(samples.X)
	scaled := sc.transformAll(samples.X)

	scores := make(map[string]float64, 3)
	var best regressor
	bestScore := 0.0
	useCV := samples.Len() >= m.cfg.CVMinSamples && m.cfg.CVFolds >= 2

	for _, cand := range m.candidates() {
		var score float64
		if useCV {
			score = crossValidate(cand, scaled, samples.Y, m.cfg.CVFolds, m.cfg.Seed)
		} else {
			if err := cand.fit(scaled, samples.Y, nil); err != nil {
				scores[cand.name()] = 0
				continue
			}
			score = rSquared(cand, scaled, samples.Y, nil)
		}
		scores[cand.name()] = score
		if best == nil || score > bestScore {
			best = cand
			bestScore = score
		}
	}
	if best == nil {
		return CycleTrainResult{}, fmt.Errorf("%w: no candidate could be fitted", ErrInsufficientData)
	}

	// Refit the winner on the full dataset; its in-sample R² is the quality
	// score reused as prediction-time confidence.
	if err := best.fit(scaled, samples.Y, nil); err != nil {
		return CycleTrainResult{}, fmt.Errorf("refit %s: %w", best.name(), err)
	}
	finalR2 := rSquared(best, scaled, samples.Y, nil)

	m.mu.Lock()
	m.current = &trainedCycle{
		scaler:    sc,
		model:     best,
		modelName: best.name(),
		r2:        finalR2,
		samples:   samples.Len(),
		trainedAt: now,
	}
	m.mu.Unlock()

	return CycleTrainResult{
		Samples:   samples.Len(),
		Model:     best.name(),
		Score:     finalR2,
		AllScores: scores,
	}, nil
}

// Trained reports whether a training pass has completed.
func (m *CycleLengthModel) Trained() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current != nil
}

// Predict builds the live feature vector from the most recent records and
// evaluates the selected regressor. Returns ErrNoModel when untrained and
// ErrNoHistory with zero completed change records.
//
// Confidence is the stored training R² scaled by a data-sufficiency factor
// min(1, samples/FullConfidenceSamples), floored at ConfidenceFloor and
// clamped to [0,1].
func (m *CycleLengthModel) Predict(changes []record.WaterChangeRecord, maint []record.FilterMaintenanceRecord, sensors []record.SensorRecord, now time.Time) (record.CyclePrediction, error) {
	m.mu.RLock()
	trained := m.current
	m.mu.RUnlock()
	if trained == nil {
		return record.CyclePrediction{}, fmt.Errorf("%w: cycle", ErrNoModel)
	}

	vec, live, err := LiveCycleFeatures(changes, maint, sensors, now, m.cfg.Features)
	if err != nil {
		return record.CyclePrediction{}, err
	}

	total := trained.model.predict(trained.scaler.transform(vec))
	if total < 0 {
		total = 0
	}
	remaining := total - live.DaysSinceLast
	if remaining < 0 {
		remaining = 0
	}

	sufficiency := float64(trained.samples) / float64(m.cfg.FullConfidenceSamples)
	if sufficiency > 1 {
		sufficiency = 1
	}
	confidence := clamp(trained.r2, 0, 1) * sufficiency
	if confidence < m.cfg.ConfidenceFloor {
		confidence = m.cfg.ConfidenceFloor
	}

	return record.CyclePrediction{
		PredictedDaysRemaining:  remaining,
		PredictedTotalCycleDays: total,
		DaysSinceLastChange:     live.DaysSinceLast,
		CurrentTDS:              live.CurrentTDS,
		TDSIncreaseRate:         live.TDSIncreaseRate,
		Confidence:              clamp(confidence, 0, 1),
		Model:                   trained.modelName,
		NeedsChangeSoon:         remaining < m.cfg.SoonThresholdDays,
		Timestamp:               now,
	}, nil
}

// crossValidate returns the mean held-out R² over k contiguous folds of a
// seeded shuffle. Folds too small to score are skipped.
func crossValidate(r regressor, X [][]float64, y []float64, folds int, seed int64) float64 {
	n := len(y)
	idx := rand.New(rand.NewSource(seed)).Perm(n)

	var scores []float64
	for f := 0; f < folds; f++ {
		lo := f * n / folds
		hi := (f + 1) * n / folds
		if hi-lo < 2 || n-(hi-lo) < 2 {
			continue
		}
		var trainX, testX [][]float64
		var trainY, testY []float64
		for pos, i := range idx {
			if pos >= lo && pos < hi {
				testX = append(testX, X[i])
				testY = append(testY, y[i])
			} else {
				trainX = append(trainX, X[i])
				trainY = append(trainY, y[i])
			}
		}
		if err := r.fit(trainX, trainY, nil); err != nil {
			continue
		}
		scores = append(scores, rSquared(r, testX, testY, nil))
	}
	if len(scores) == 0 {
		return 0
	}
	return stat.Mean(scores, nil)
}
