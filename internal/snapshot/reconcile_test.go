package snapshot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cmc-dx/rmrp/internal/wardgraph"
)

func rec(ward string, inUse int) Record {
	return Record{Ward: wardgraph.Ward("W" + ward), InUse: inUse}
}

func day(slot Slot, records ...Record) DayReport {
	return DayReport{Source: slot, Records: records}
}

func TestFillSubstitution(t *testing.T) {
	a := rec("72", 10)
	b := rec("75", 20)
	c := rec("76", 30)

	tests := []struct {
		name    string
		today   DayReport
		lag1    DayReport
		lag7    DayReport
		sources [3]Slot // expected Today, Lag1, Lag7 sources
	}{
		{
			"all present",
			day(SlotToday, a), day(SlotLag1, b), day(SlotLag7, c),
			[3]Slot{SlotToday, SlotLag1, SlotLag7},
		},
		{
			"today empty takes lag1",
			day(SlotToday), day(SlotLag1, b), day(SlotLag7, c),
			[3]Slot{SlotLag1, SlotLag1, SlotLag7},
		},
		{
			"today and lag1 empty take lag7",
			day(SlotToday), day(SlotLag1), day(SlotLag7, c),
			[3]Slot{SlotLag7, SlotLag7, SlotLag7},
		},
		{
			"lag1 empty takes today",
			day(SlotToday, a), day(SlotLag1), day(SlotLag7, c),
			[3]Slot{SlotToday, SlotToday, SlotLag7},
		},
		{
			"lag7 empty takes lag1",
			day(SlotToday, a), day(SlotLag1, b), day(SlotLag7),
			[3]Slot{SlotToday, SlotLag1, SlotLag1},
		},
		{
			"lag1 and lag7 empty take today",
			day(SlotToday, a), day(SlotLag1), day(SlotLag7),
			[3]Slot{SlotToday, SlotToday, SlotToday},
		},
		{
			"only lag1 present",
			day(SlotToday), day(SlotLag1, b), day(SlotLag7),
			[3]Slot{SlotLag1, SlotLag1, SlotLag1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			triple, err := fill(tt.today, tt.lag1, tt.lag7)
			if err != nil {
				t.Fatalf("fill: %v", err)
			}

			got := [3]Slot{triple.Today.Source, triple.Lag1.Source, triple.Lag7.Source}
			if got != tt.sources {
				t.Errorf("sources = %v, want %v", got, tt.sources)
			}

			for _, d := range []DayReport{triple.Today, triple.Lag1, triple.Lag7} {
				if d.Empty() {
					t.Error("no slot may remain empty after substitution")
				}
			}
		})
	}
}

func TestFillAllEmpty(t *testing.T) {
	_, err := fill(day(SlotToday), day(SlotLag1), day(SlotLag7))
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("err = %v, want ErrNoData", err)
	}
}

func TestFillIdempotent(t *testing.T) {
	a := rec("72", 10)

	first, err := fill(day(SlotToday, a), day(SlotLag1), day(SlotLag7))
	if err != nil {
		t.Fatalf("fill: %v", err)
	}

	second, err := fill(first.Today, first.Lag1, first.Lag7)
	if err != nil {
		t.Fatalf("fill (repeat): %v", err)
	}

	if second.Today.Source != first.Today.Source ||
		second.Lag1.Source != first.Lag1.Source ||
		second.Lag7.Source != first.Lag7.Source {
		t.Errorf("fill is not idempotent: %+v vs %+v", second, first)
	}
}

type fakeStore struct {
	data  map[string][]Record // keyed by day
	err   error
	delay time.Duration
}

func (f *fakeStore) Insert(ctx context.Context, records []Record) error { return nil }

func (f *fakeStore) LatestForDay(ctx context.Context, day time.Time) ([]Record, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.data[day.Format("2006-01-02")], nil
}

func TestReconcile(t *testing.T) {
	now := time.Date(2025, 6, 18, 14, 30, 0, 0, time.UTC)
	store := &fakeStore{data: map[string][]Record{
		"2025-06-17": {rec("72", 12)}, // lag1 only
	}}

	r := NewReconciler(store, time.Second)
	triple, err := r.Reconcile(context.Background(), now)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	if triple.Today.Source != SlotLag1 {
		t.Errorf("today source = %s, want lag1", triple.Today.Source)
	}
	if triple.Lag7.Source != SlotLag1 {
		t.Errorf("lag7 source = %s, want lag1", triple.Lag7.Source)
	}
	if !triple.Today.Day.Equal(time.Date(2025, 6, 18, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("today day = %v", triple.Today.Day)
	}
}

func TestReconcileTimeoutTreatedAsMissing(t *testing.T) {
	store := &fakeStore{delay: 200 * time.Millisecond}

	r := NewReconciler(store, 10*time.Millisecond)
	_, err := r.Reconcile(context.Background(), time.Now())
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("err = %v, want ErrNoData", err)
	}
}

func TestLiveState(t *testing.T) {
	records := []Record{
		{Ward: "W72", Admissions: 2, Discharges: 1, InUse: 30, Appointments: 3, Checkups: 1},
		{Ward: "SICU", InUse: 25},
	}

	state := LiveState(records)

	if got := state["W72"]; got.Total != 37 || got.Occupied != 30 {
		t.Errorf("W72 = %+v, want total 37 occupied 30", got)
	}
	if got := state["SICU"]; got.Total != 25 || got.Occupied != 25 {
		t.Errorf("SICU = %+v, want total 25 occupied 25", got)
	}
}
