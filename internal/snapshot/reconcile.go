package snapshot

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/cmc-dx/rmrp/internal/shared/metrics"
)

// Reconciler assembles the three-day observation window used by the
// feature builder and the ranking engine. Each day is fetched with its
// own deadline; a fetch that fails or times out is treated as an empty
// day and repaired by substitution.
type Reconciler struct {
	store   Store
	timeout time.Duration
}

// NewReconciler creates a reconciler over a bed status store
func NewReconciler(store Store, timeout time.Duration) *Reconciler {
	return &Reconciler{store: store, timeout: timeout}
}

// Reconcile fetches the current day, the previous day and the same day
// one week back, then repairs empty days by substitution. It fails only
// when all three days are empty.
func (r *Reconciler) Reconcile(ctx context.Context, now time.Time) (Triple, error) {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	slots := []struct {
		slot Slot
		day  time.Time
	}{
		{SlotToday, day},
		{SlotLag1, day.AddDate(0, 0, -1)},
		{SlotLag7, day.AddDate(0, 0, -7)},
	}

	reports := make([]DayReport, len(slots))

	var wg sync.WaitGroup
	for i, s := range slots {
		wg.Add(1)
		go func(i int, slot Slot, day time.Time) {
			defer wg.Done()

			fctx, cancel := context.WithTimeout(ctx, r.timeout)
			defer cancel()

			records, err := r.store.LatestForDay(fctx, day)
			if err != nil {
				log.Printf("snapshot: fetch %s (%s): %v", slot, day.Format("2006-01-02"), err)
				records = nil
			}
			reports[i] = DayReport{Day: day, Source: slot, Records: records}
		}(i, s.slot, s.day)
	}
	wg.Wait()

	triple, err := fill(reports[0], reports[1], reports[2])
	if err != nil {
		return Triple{}, err
	}

	if triple.Today.Source != SlotToday {
		metrics.RecordSnapshotSubstitution(string(SlotToday), string(triple.Today.Source))
	}
	if triple.Lag1.Source != SlotLag1 {
		metrics.RecordSnapshotSubstitution(string(SlotLag1), string(triple.Lag1.Source))
	}
	if triple.Lag7.Source != SlotLag7 {
		metrics.RecordSnapshotSubstitution(string(SlotLag7), string(triple.Lag7.Source))
	}

	return triple, nil
}

// fill repairs empty observation days by substitution. Precedence:
// today takes lag1 then lag7; lag1 takes today then lag7; lag7 takes
// lag1 then today. Later slots see earlier slots after their own
// substitution. Source always names the slot whose data a slot ended up
// carrying, so fill is idempotent over its own output.
func fill(today, lag1, lag7 DayReport) (Triple, error) {
	if today.Empty() && lag1.Empty() && lag7.Empty() {
		return Triple{}, ErrNoData
	}

	if today.Empty() {
		if !lag1.Empty() {
			today.Records, today.Source = lag1.Records, lag1.Source
		} else {
			today.Records, today.Source = lag7.Records, lag7.Source
		}
	}
	if lag1.Empty() {
		if !today.Empty() {
			lag1.Records, lag1.Source = today.Records, today.Source
		} else {
			lag1.Records, lag1.Source = lag7.Records, lag7.Source
		}
	}
	if lag7.Empty() {
		if !lag1.Empty() {
			lag7.Records, lag7.Source = lag1.Records, lag1.Source
		} else {
			lag7.Records, lag7.Source = today.Records, today.Source
		}
	}

	return Triple{Today: today, Lag1: lag1, Lag7: lag7}, nil
}
