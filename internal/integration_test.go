package internal_test

import (
	"context"
	"testing"
	"time"

	"github.com/cmc-dx/rmrp/internal/artifact"
	"github.com/cmc-dx/rmrp/internal/ranking"
	"github.com/cmc-dx/rmrp/internal/shared/config"
	"github.com/cmc-dx/rmrp/internal/snapshot"
	"github.com/cmc-dx/rmrp/internal/wardgraph"
)

func engineParams() config.EngineConfig {
	return config.EngineConfig{
		Alpha:       1.0,
		Beta:        2.0,
		OccWeight:   0.7,
		DistWeight:  0.3,
		UpdateAlpha: 0.6,
	}
}

// memStore holds per-day bed status records keyed by date string.
type memStore struct {
	days map[string][]snapshot.Record
}

func (s *memStore) Insert(ctx context.Context, records []snapshot.Record) error {
	if s.days == nil {
		s.days = make(map[string][]snapshot.Record)
	}
	for _, rec := range records {
		key := rec.ReportDate.Format("2006-01-02")
		s.days[key] = append(s.days[key], rec)
	}
	return nil
}

func (s *memStore) LatestForDay(ctx context.Context, day time.Time) ([]snapshot.Record, error) {
	return s.days[day.Format("2006-01-02")], nil
}

// TestRecommendationFlow runs the full path a transfer request takes:
// yesterday's bed reports are reconciled into a live state, the engine
// ranks wards for a parsed diagnosis code, feedback shifts the trails,
// and the learned state survives a save/restore round trip.
func TestRecommendationFlow(t *testing.T) {
	ctx := context.Background()

	graph, err := wardgraph.New(wardgraph.DefaultConfig())
	if err != nil {
		t.Fatalf("loading default graph: %v", err)
	}

	diag, err := wardgraph.ParseDiagnosis("02-cerebral infarction")
	if err != nil {
		t.Fatalf("ParseDiagnosis: %v", err)
	}
	if diag != wardgraph.DiagStroke {
		t.Fatalf("diagnosis = %s, want %s", diag, wardgraph.DiagStroke)
	}

	// Only yesterday has reports; the reconciler substitutes it for today
	now := time.Date(2025, 6, 18, 10, 0, 0, 0, time.UTC)
	store := &memStore{}
	var records []snapshot.Record
	for _, ward := range graph.WardsFor(diag) {
		info, _ := graph.Ward(ward)
		records = append(records, snapshot.Record{
			Ward:       ward,
			ReportDate: now.AddDate(0, 0, -1).Truncate(24 * time.Hour),
			ReportedAt: now.Add(-20 * time.Hour),
			InUse:      info.Capacity / 2,
		})
	}
	if err := store.Insert(ctx, records); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	reconciler := snapshot.NewReconciler(store, time.Second)
	triple, err := reconciler.Reconcile(ctx, now)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if triple.Today.Source != snapshot.SlotLag1 {
		t.Fatalf("today source = %s, want substituted from lag1", triple.Today.Source)
	}

	live := snapshot.LiveState(triple.Today.Records)
	for _, ward := range graph.WardsFor(diag) {
		info, _ := graph.Ward(ward)
		state := live[ward]
		state.Total = info.Capacity
		live[ward] = state
	}

	engine := ranking.NewEngine(graph, engineParams())
	result, err := engine.Recommend(diag, live, 3)
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if result.Fallback {
		t.Fatal("half-occupied wards should not trigger fallback")
	}
	if len(result.Wards) == 0 {
		t.Fatal("no wards recommended")
	}
	top := result.Wards[0].Ward

	// Rejecting the top ward repeatedly decays its trail strength and
	// lowers its score
	learner := ranking.NewLearner(engine)
	for i := 0; i < 10; i++ {
		applied, dropped := learner.Apply([]ranking.FeedbackRecord{
			{Diagnosis: diag, Ward: top, Accepted: false},
		})
		if applied != 1 || dropped != 0 {
			t.Fatalf("Apply = (%d, %d)", applied, dropped)
		}
	}

	for _, entry := range engine.Trails() {
		if entry.Diagnosis == diag && entry.Ward == top && entry.Strength > 0.01 {
			t.Errorf("trail for %s/%s = %v, want decayed below 0.01", diag, top, entry.Strength)
		}
	}

	result2, err := engine.Recommend(diag, live, 3)
	if err != nil {
		t.Fatalf("Recommend after feedback: %v", err)
	}
	var before, after float64
	for _, sw := range result.Wards {
		if sw.Ward == top {
			before = sw.Score
		}
	}
	found := false
	for _, sw := range result2.Wards {
		if sw.Ward == top {
			after = sw.Score
			found = true
		}
	}
	if found && after >= before {
		t.Errorf("score for %s = %v, want below %v after rejections", top, after, before)
	}

	// Persist and restore into a fresh engine
	artifacts := artifact.NewFilesystemStore(t.TempDir())
	if err := artifacts.Save(ctx, "hybrid-scheduler", engine.SnapshotState()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	restored := ranking.NewEngine(graph, engineParams())
	state, err := artifacts.Load(ctx, "hybrid-scheduler")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := restored.RestoreState(state); err != nil {
		t.Fatalf("RestoreState: %v", err)
	}

	result3, err := restored.Recommend(diag, live, 3)
	if err != nil {
		t.Fatalf("Recommend on restored engine: %v", err)
	}
	if result3.Wards[0].Ward != result2.Wards[0].Ward {
		t.Errorf("restored ranking %s differs from live ranking %s",
			result3.Wards[0].Ward, result2.Wards[0].Ward)
	}
}
