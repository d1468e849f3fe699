package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/aquarium-ml/internal/record"
)

func openTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "aquarium.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSensorRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.AppendSensor(ctx, record.SensorRecord{
			Timestamp:   base.Add(time.Duration(i) * time.Minute),
			Temperature: 25 + float64(i),
			AmbientTemp: 22,
			PH:          7.1,
			TDS:         310,
			HeaterOn:    i == 0,
		}))
	}

	got, err := s.RecentSensors(ctx, base.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 26.0, got[0].Temperature)
	assert.False(t, got[0].HeaterOn)
	assert.Equal(t, base.Add(time.Minute), got[0].Timestamp)
}

func TestPerformanceFilteredByControllerAndSeason(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	recs := []record.PerformanceRecord{
		{Timestamp: at, Controller: record.ControllerTemp, Season: 1, Kp: 10, SettlingTime: 90, Overshoot: 0.2},
		{Timestamp: at.Add(time.Hour), Controller: record.ControllerTemp, Season: 2, Kp: 11, SettlingTime: 95, Overshoot: 0.3},
		{Timestamp: at.Add(2 * time.Hour), Controller: record.ControllerCO2, Season: 1, Kp: 12, SettlingTime: 80, Overshoot: 0.1},
	}
	for _, rec := range recs {
		require.NoError(t, s.AppendPerformance(ctx, rec))
	}

	got, err := s.Performance(ctx, record.ControllerTemp, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 10.0, got[0].Kp)
	assert.Equal(t, record.ControllerTemp, got[0].Controller)
}

func TestWaterChangeRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	end := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.AppendWaterChange(ctx, record.WaterChangeRecord{
		StartTime:       end.Add(-30 * time.Minute),
		EndTime:         end,
		Volume:          50,
		TDSBefore:       420,
		TDSAfter:        300,
		DurationMinutes: 30,
		Completed:       true,
	}))
	require.NoError(t, s.AppendFilterMaintenance(ctx, record.FilterMaintenanceRecord{
		Timestamp:  end.Add(time.Hour),
		FilterType: "mechanical",
		TDSBefore:  400,
		TDSAfter:   320,
	}))

	changes, err := s.WaterChanges(ctx)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.True(t, changes[0].Completed)
	assert.Equal(t, 420.0, changes[0].TDSBefore)

	maint, err := s.FilterMaintenance(ctx)
	require.NoError(t, err)
	require.Len(t, maint, 1)
	assert.Equal(t, "mechanical", maint[0].FilterType)
}

func TestRealizeCyclePredictions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		require.NoError(t, s.LogCyclePrediction(ctx, record.CyclePrediction{
			Timestamp:               at.Add(time.Duration(i) * time.Hour),
			PredictedDaysRemaining:  3,
			PredictedTotalCycleDays: 8,
			Confidence:              0.7,
			Model:                   "linear",
		}))
	}

	n, err := s.RealizeCyclePredictions(ctx, 7.5, at.AddDate(0, 0, 8))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Already realized rows are not settled twice.
	n, err = s.RealizeCyclePredictions(ctx, 9, at.AddDate(0, 0, 17))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestPruneBefore(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.AppendSensor(ctx, record.SensorRecord{
			Timestamp: base.AddDate(0, 0, i), Temperature: 25, AmbientTemp: 22, PH: 7, TDS: 300,
		}))
	}

	dropped, err := s.PruneBefore(ctx, base.AddDate(0, 0, 2))
	require.NoError(t, err)
	assert.Equal(t, int64(2), dropped)

	got, err := s.RecentSensors(ctx, time.Time{})
	require.NoError(t, err)
	assert.Len(t, got, 3)
}
