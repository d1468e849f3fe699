package ml

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/aquarium-ml/internal/record"
)

// tempHistory builds n usable performance records whose kp tracks the water
// temperature, so at least one target is learnable.
func tempHistory(n int) []record.PerformanceRecord {
	base := time.Date(2026, 4, 6, 0, 0, 0, 0, time.UTC)
	out := make([]record.PerformanceRecord, 0, n)
	for i := 0; i < n; i++ {
		at := base.Add(time.Duration(i) * 3 * time.Hour)
		temp := 24 + float64(i%20)*0.1
		out = append(out, record.PerformanceRecord{
			Timestamp:    at,
			Controller:   record.ControllerTemp,
			Kp:           2 + 0.5*temp,
			Ki:           0.4,
			Kd:           1.5,
			SettlingTime: 90 + float64(i%7)*10,
			Overshoot:    0.2 + float64(i%5)*0.05,
			Temperature:  temp,
			AmbientTemp:  21 + float64(i%4)*0.5,
			TDS:          300 + float64(i%30),
			PH:           7.0,
			Hour:         at.Hour(),
			Season:       1,
			TankVolume:   200,
		})
	}
	return out
}

func TestTrainSeasonInsufficientData(t *testing.T) {
	m := NewSeasonalGainModel(record.ControllerTemp, DefaultGainConfig())

	_, err := m.TrainSeason(tempHistory(10), 1, time.Now())
	require.ErrorIs(t, err, ErrInsufficientData)
	assert.False(t, m.Trained(1))
}

func TestTrainSeasonAndPredict(t *testing.T) {
	m := NewSeasonalGainModel(record.ControllerTemp, DefaultGainConfig())
	now := time.Date(2026, 4, 20, 6, 0, 0, 0, time.UTC)

	res, err := m.TrainSeason(tempHistory(60), 1, now)
	require.NoError(t, err)
	assert.Equal(t, 60, res.Samples)
	assert.LessOrEqual(t, res.AvgR2, 1.0)
	assert.True(t, m.Trained(1))
	assert.False(t, m.Trained(2))

	ctx := GainContext{
		Temperature: 25, AmbientTemp: 22, TDS: 310, PH: 7.0,
		Hour: 12, Weekday: 3, TankVolume: 200,
	}
	pred, err := m.Predict(ctx, 1, now)
	require.NoError(t, err)

	assert.Equal(t, record.ControllerTemp, pred.Controller)
	assert.Equal(t, 1, pred.Season)
	assert.Equal(t, "gradient_boost", pred.Model)
	assert.GreaterOrEqual(t, pred.Kp, kpMin)
	assert.LessOrEqual(t, pred.Kp, kpMax)
	assert.GreaterOrEqual(t, pred.Ki, kiMin)
	assert.LessOrEqual(t, pred.Ki, kiMax)
	assert.GreaterOrEqual(t, pred.Kd, kdMin)
	assert.LessOrEqual(t, pred.Kd, kdMax)
	assert.GreaterOrEqual(t, pred.Confidence, 0.0)
	assert.LessOrEqual(t, pred.Confidence, 1.0)
}

// A context near the training mean must predict near the mean target, not
// just inside the clamp ranges.
func TestPredictNearTrainingMean(t *testing.T) {
	base := time.Date(2026, 4, 6, 0, 0, 0, 0, time.UTC)
	history := make([]record.PerformanceRecord, 0, 60)
	for i := 0; i < 60; i++ {
		temp := 24.5 + float64(i%5)*0.25
		history = append(history, record.PerformanceRecord{
			Timestamp:    base.Add(time.Duration(i) * 2 * time.Hour),
			Controller:   record.ControllerTemp,
			Kp:           9.5 + float64(i%3)*0.5,
			Ki:           0.5,
			Kd:           1.2,
			SettlingTime: 10 + float64(i%5),
			Overshoot:    0.3,
			Temperature:  temp,
			AmbientTemp:  22,
			TDS:          300 + float64(i%20),
			PH:           7.0,
			Hour:         12,
			Season:       1,
			TankVolume:   200,
		})
	}

	m := NewSeasonalGainModel(record.ControllerTemp, DefaultGainConfig())
	now := time.Date(2026, 4, 20, 6, 0, 0, 0, time.UTC)
	_, err := m.TrainSeason(history, 1, now)
	require.NoError(t, err)

	ctx := GainContext{
		Temperature: 25, AmbientTemp: 22, TDS: 310, PH: 7.0,
		Hour: 12, Weekday: 3, TankVolume: 200,
	}
	pred, err := m.Predict(ctx, 1, now)
	require.NoError(t, err)

	// Targets span [9.5, 10.5]; anything outside [9, 11] means the model
	// extrapolated instead of fitting.
	assert.InDelta(t, 10.0, pred.Kp, 1.0)
	assert.InDelta(t, 0.5, pred.Ki, 0.2)
	assert.InDelta(t, 1.2, pred.Kd, 0.3)
}

func TestTrainSeasonDeterministic(t *testing.T) {
	history := tempHistory(60)
	now := time.Date(2026, 4, 20, 6, 0, 0, 0, time.UTC)
	ctx := GainContext{
		Temperature: 25.3, AmbientTemp: 22, TDS: 305, PH: 7.0,
		Hour: 9, Weekday: 1, TankVolume: 200,
	}

	a := NewSeasonalGainModel(record.ControllerTemp, DefaultGainConfig())
	b := NewSeasonalGainModel(record.ControllerTemp, DefaultGainConfig())
	_, err := a.TrainSeason(history, 2, now)
	require.NoError(t, err)
	_, err = b.TrainSeason(history, 2, now)
	require.NoError(t, err)

	pa, err := a.Predict(ctx, 2, now)
	require.NoError(t, err)
	pb, err := b.Predict(ctx, 2, now)
	require.NoError(t, err)

	assert.Equal(t, pa.Kp, pb.Kp)
	assert.Equal(t, pa.Ki, pb.Ki)
	assert.Equal(t, pa.Kd, pb.Kd)
	assert.Equal(t, pa.Confidence, pb.Confidence)
}

func TestPredictNoModel(t *testing.T) {
	m := NewSeasonalGainModel(record.ControllerCO2, DefaultGainConfig())
	_, err := m.Predict(GainContext{}, 0, time.Now())
	require.ErrorIs(t, err, ErrNoModel)
}

func TestFailedRetrainKeepsPreviousModel(t *testing.T) {
	m := NewSeasonalGainModel(record.ControllerTemp, DefaultGainConfig())
	now := time.Now()

	_, err := m.TrainSeason(tempHistory(60), 0, now)
	require.NoError(t, err)

	ctx := GainContext{Temperature: 25, AmbientTemp: 22, TDS: 300, PH: 7, Hour: 12, Weekday: 2, TankVolume: 200}
	before, err := m.Predict(ctx, 0, now)
	require.NoError(t, err)

	_, err = m.TrainSeason(tempHistory(5), 0, now.Add(time.Hour))
	require.ErrorIs(t, err, ErrInsufficientData)

	after, err := m.Predict(ctx, 0, now)
	require.NoError(t, err)
	assert.Equal(t, before.Kp, after.Kp)
	assert.Equal(t, before.Confidence, after.Confidence)
}
