package jobs

import (
	"context"
	"log"
	"time"

	"github.com/cmc-dx/rmrp/internal/artifact"
	"github.com/cmc-dx/rmrp/internal/ranking"
	"github.com/cmc-dx/rmrp/internal/shared/events"
	"github.com/cmc-dx/rmrp/internal/shared/metrics"
)

// Auditor records audit entries for scheduler actions
type Auditor interface {
	Record(ctx context.Context, action string, details map[string]any)
}

// Scheduler periodically persists the engine's learned state so a
// restarted replica resumes from the latest trails instead of the
// defaults. Feedback updates the engine immediately; the scheduler only
// makes them durable on cycle boundaries.
type Scheduler struct {
	engine   *ranking.Engine
	store    artifact.Store
	key      string
	bus      *events.Bus
	auditor  Auditor
	interval time.Duration

	stopCh chan struct{}
}

// NewScheduler creates a scheduler saving engine state under key
func NewScheduler(engine *ranking.Engine, store artifact.Store, key string, bus *events.Bus, auditor Auditor, interval time.Duration) *Scheduler {
	return &Scheduler{
		engine:   engine,
		store:    store,
		key:      key,
		bus:      bus,
		auditor:  auditor,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the retrain loop. Blocks until ctx is cancelled or Stop
// is called.
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stopCh:
			return nil
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	close(s.stopCh)
}

// runCycle snapshots and saves the engine state. A failed save keeps
// the previous artifact in place and is retried on the next cycle.
func (s *Scheduler) runCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("jobs: retrain cycle panic: %v", r)
			metrics.RecordRetrainCycle("panic")
		}
	}()

	state := s.engine.SnapshotState()

	if err := s.store.Save(ctx, s.key, state); err != nil {
		log.Printf("jobs: failed to save engine state: %v", err)
		metrics.RecordRetrainCycle("error")
		return
	}

	s.publish(ctx, "model.saved", map[string]any{
		"artifact_key": s.key,
		"graph_hash":   state.GraphHash,
		"edges":        len(state.Trails),
	})

	if s.auditor != nil {
		s.auditor.Record(ctx, "model.saved", map[string]any{
			"artifact_key": s.key,
			"graph_hash":   state.GraphHash,
		})
	}

	metrics.RecordRetrainCycle("ok")
}

func (s *Scheduler) publish(ctx context.Context, eventType string, data any) {
	if s.bus == nil {
		return
	}
	event := events.NewEvent(eventType, "jobs", data)
	if err := s.bus.Publish(ctx, event); err != nil {
		log.Printf("jobs: failed to publish %s event: %v", eventType, err)
	}
}
