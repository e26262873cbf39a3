package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cmc-dx/rmrp/internal/ranking"
	"github.com/cmc-dx/rmrp/internal/shared/config"
	"github.com/cmc-dx/rmrp/internal/wardgraph"
)

type fakeStore struct {
	mu    sync.Mutex
	saved map[string]ranking.State
	err   error
	calls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{saved: make(map[string]ranking.State)}
}

func (s *fakeStore) Load(ctx context.Context, key string) (ranking.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.saved[key]
	if !ok {
		return ranking.State{}, errors.New("not found")
	}
	return state, nil
}

func (s *fakeStore) Save(ctx context.Context, key string, state ranking.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return s.err
	}
	s.saved[key] = state
	return nil
}

type fakeAuditor struct {
	mu      sync.Mutex
	actions []string
}

func (a *fakeAuditor) Record(ctx context.Context, action string, details map[string]any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.actions = append(a.actions, action)
}

func testEngine(t *testing.T) *ranking.Engine {
	t.Helper()

	g, err := wardgraph.New(wardgraph.Config{
		BaseFloor: 1,
		Wards: []wardgraph.WardInfo{
			{Code: "A", Name: "Ward A", Capacity: 10, Floor: 1},
			{Code: "B", Name: "Ward B", Capacity: 10, Floor: 1},
		},
		Edges: map[wardgraph.Diagnosis][]wardgraph.Ward{
			wardgraph.DiagStroke: {"A", "B"},
		},
		PriorityWeights: map[wardgraph.Diagnosis]map[wardgraph.Ward]float64{
			wardgraph.DiagStroke: {"A": 0.6, "B": 0.4},
		},
		TransferRates: map[wardgraph.Diagnosis]float64{
			wardgraph.DiagStroke: 0.5,
		},
	})
	if err != nil {
		t.Fatalf("building test graph: %v", err)
	}

	return ranking.NewEngine(g, config.EngineConfig{
		Alpha:       1.0,
		Beta:        2.0,
		OccWeight:   0.7,
		DistWeight:  0.3,
		UpdateAlpha: 0.6,
	})
}

func TestRunCycleSavesState(t *testing.T) {
	engine := testEngine(t)
	store := newFakeStore()
	auditor := &fakeAuditor{}

	s := NewScheduler(engine, store, "hybrid-scheduler", nil, auditor, time.Hour)
	s.runCycle(context.Background())

	state, ok := store.saved["hybrid-scheduler"]
	if !ok {
		t.Fatal("state not saved")
	}
	if state.GraphHash != engine.Graph().Hash() {
		t.Errorf("graph hash = %s", state.GraphHash)
	}
	if len(state.Trails) != 2 {
		t.Errorf("trails = %d, want 2", len(state.Trails))
	}
	if len(auditor.actions) != 1 || auditor.actions[0] != "model.saved" {
		t.Errorf("audit actions = %v", auditor.actions)
	}
}

func TestRunCycleRetriesAfterSaveError(t *testing.T) {
	engine := testEngine(t)
	store := newFakeStore()
	store.err = errors.New("connection refused")

	s := NewScheduler(engine, store, "hybrid-scheduler", nil, nil, time.Hour)
	s.runCycle(context.Background())

	if len(store.saved) != 0 {
		t.Fatal("state should not be saved on error")
	}

	store.mu.Lock()
	store.err = nil
	store.mu.Unlock()

	s.runCycle(context.Background())
	if _, ok := store.saved["hybrid-scheduler"]; !ok {
		t.Fatal("state should be saved once the store recovers")
	}
	if store.calls != 2 {
		t.Errorf("calls = %d, want 2", store.calls)
	}
}

func TestSchedulerStops(t *testing.T) {
	engine := testEngine(t)
	s := NewScheduler(engine, newFakeStore(), "hybrid-scheduler", nil, nil, time.Hour)

	done := make(chan error, 1)
	go func() { done <- s.Start(context.Background()) }()

	s.Stop()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start returned %v after Stop", err)
		}
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

type panicStore struct{ fakeStore }

func (s *panicStore) Save(ctx context.Context, key string, state ranking.State) error {
	panic("store gone")
}

func TestRunCycleRecoversPanic(t *testing.T) {
	engine := testEngine(t)
	s := NewScheduler(engine, &panicStore{}, "hybrid-scheduler", nil, nil, time.Hour)

	// Must not crash the process
	s.runCycle(context.Background())
}
