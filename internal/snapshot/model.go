package snapshot

import (
	"errors"
	"time"

	"github.com/cmc-dx/rmrp/internal/shared/types"
	"github.com/cmc-dx/rmrp/internal/wardgraph"
)

// ErrNoData is returned when no bed status data exists for any of the
// reconciled observation days.
var ErrNoData = errors.New("no bed status data available")

// Record is a single per-ward bed status report as delivered by the
// hospital information system feed. Counters are daily cumulative values
// as of ReportedAt.
type Record struct {
	ID           types.ID       `json:"id"`
	Ward         wardgraph.Ward `json:"ward"`
	ReportDate   time.Time      `json:"report_date"`
	ReportedAt   time.Time      `json:"reported_at"`
	Admissions   int            `json:"admissions"`
	Discharges   int            `json:"discharges"`
	InUse        int            `json:"in_use"`
	Appointments int            `json:"appointments"`
	Checkups     int            `json:"checkups"`
}

// Total returns the ward's effective bed total for the report: every
// counted patient, whether admitted, discharged today, in a bed, booked
// or under assessment.
func (r Record) Total() int {
	return r.Admissions + r.Discharges + r.InUse + r.Appointments + r.Checkups
}

// BedState is the live per-ward occupancy view consumed by the ranking
// engine.
type BedState struct {
	Total    int `json:"total"`
	Occupied int `json:"occupied"`
}

// Slot names one of the three observation days the reconciler works with.
type Slot string

const (
	SlotToday Slot = "today"
	SlotLag1  Slot = "lag1"
	SlotLag7  Slot = "lag7"
)

// DayReport holds the latest report rows for one observation day. Source
// records which slot the data actually came from: it differs from the
// slot's own name when the day was empty and a neighbouring day was
// substituted.
type DayReport struct {
	Day     time.Time `json:"day"`
	Source  Slot      `json:"source"`
	Records []Record  `json:"records"`
}

// Empty reports whether the day carried no report rows at all.
func (d DayReport) Empty() bool {
	return len(d.Records) == 0
}

// Triple is the reconciled three-day observation window: the current day,
// the previous day and the same day one week back. After reconciliation
// every slot is populated.
type Triple struct {
	Today DayReport `json:"today"`
	Lag1  DayReport `json:"lag1"`
	Lag7  DayReport `json:"lag7"`
}

// LiveState aggregates report rows into the per-ward occupancy view used
// by the ranking engine.
func LiveState(records []Record) map[wardgraph.Ward]BedState {
	out := make(map[wardgraph.Ward]BedState, len(records))
	for _, r := range records {
		out[r.Ward] = BedState{Total: r.Total(), Occupied: r.InUse}
	}
	return out
}
