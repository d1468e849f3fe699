package orchestrator

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/aquarium-ml/internal/record"
)

const handleTimeout = 5 * time.Second

// HandleMessage dispatches one inbound broker message. Malformed payloads
// are counted and dropped; a store failure is logged but never stops
// ingestion of later events.
func (o *Orchestrator) HandleMessage(topic string, payload []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()
	now := o.now()

	switch topic {
	case o.cfg.Topics.Data():
		rec, err := record.DecodeSensor(payload, now)
		if err != nil {
			o.dropMalformed(topic, err)
			return
		}
		if err := o.store.AppendSensor(ctx, rec); err != nil {
			o.log.Warn("sensor reading not stored", zap.Error(err))
			return
		}
		o.tracker.IncSensor()

	case o.cfg.Topics.PIDPerformance():
		rec, err := record.DecodePerformance(payload, now, o.cfg.Hemisphere)
		if err != nil {
			o.dropMalformed(topic, err)
			return
		}
		if err := o.store.AppendPerformance(ctx, rec); err != nil {
			o.log.Warn("performance record not stored", zap.Error(err))
			return
		}
		o.tracker.IncPerformance()

	case o.cfg.Topics.WaterChangeEvent():
		rec, err := record.DecodeWaterChange(payload, now)
		if err != nil {
			o.dropMalformed(topic, err)
			return
		}
		if err := o.store.AppendWaterChange(ctx, rec); err != nil {
			o.log.Warn("water change not stored", zap.Error(err))
			return
		}
		o.tracker.IncWaterChange()
		if rec.Completed {
			o.settlePredictions(ctx, rec)
		}
		o.cycleWorker.Trigger()

	case o.cfg.Topics.FilterMaintenance():
		rec, err := record.DecodeFilterMaintenance(payload, now)
		if err != nil {
			o.dropMalformed(topic, err)
			return
		}
		if err := o.store.AppendFilterMaintenance(ctx, rec); err != nil {
			o.log.Warn("filter maintenance not stored", zap.Error(err))
			return
		}
		o.tracker.IncFilterMaintenance()
		o.cycleWorker.Trigger()

	default:
		o.log.Debug("unexpected topic", zap.String("topic", topic))
	}
}

func (o *Orchestrator) dropMalformed(topic string, err error) {
	o.tracker.IncMalformed()
	if errors.Is(err, record.ErrMalformed) {
		o.log.Warn("dropping malformed event", zap.String("topic", topic), zap.Error(err))
		return
	}
	o.log.Error("decode failed", zap.String("topic", topic), zap.Error(err))
}

// settlePredictions closes the loop on outstanding forecasts: a completed
// water change fixes the actual cycle length, which is written back onto
// every unrealized prediction for later accuracy review.
func (o *Orchestrator) settlePredictions(ctx context.Context, change record.WaterChangeRecord) {
	changes, err := o.store.WaterChanges(ctx)
	if err != nil {
		o.log.Warn("water change history unavailable, predictions left open", zap.Error(err))
		return
	}

	// Previous completed change strictly before this one.
	var prev *record.WaterChangeRecord
	for i := range changes {
		c := changes[i]
		if !c.Completed || !c.EndTime.Before(change.EndTime) {
			continue
		}
		if prev == nil || c.EndTime.After(prev.EndTime) {
			prev = &changes[i]
		}
	}
	if prev == nil {
		return
	}

	actual := change.EndTime.Sub(prev.EndTime).Hours() / 24
	n, err := o.store.RealizeCyclePredictions(ctx, actual, change.EndTime)
	if err != nil {
		o.log.Warn("realizing predictions failed", zap.Error(err))
		return
	}
	if n > 0 {
		o.log.Info("realized cycle predictions",
			zap.Int("count", n), zap.Float64("actual_days", actual))
	}
}
