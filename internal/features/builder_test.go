package features

import (
	"math"
	"testing"
	"time"

	"github.com/cmc-dx/rmrp/internal/snapshot"
	"github.com/cmc-dx/rmrp/internal/wardgraph"
)

func report(slot snapshot.Slot, day time.Time, records ...snapshot.Record) snapshot.DayReport {
	return snapshot.DayReport{Day: day, Source: slot, Records: records}
}

func TestBuild(t *testing.T) {
	day := time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC) // a Saturday

	today := snapshot.Record{
		Ward: "W72", Admissions: 2, Discharges: 1, InUse: 30,
		Appointments: 4, Checkups: 3,
	} // total 40
	lag1 := snapshot.Record{
		Ward: "W72", Discharges: 5, InUse: 36, Admissions: 4,
	} // total 45
	lag7 := snapshot.Record{Ward: "W72", Discharges: 7, InUse: 20}

	triple := snapshot.Triple{
		Today: report(snapshot.SlotToday, day, today),
		Lag1:  report(snapshot.SlotLag1, day.AddDate(0, 0, -1), lag1),
		Lag7:  report(snapshot.SlotLag7, day.AddDate(0, 0, -7), lag7),
	}

	vectors := Build(triple, nil)
	if len(vectors) != 1 {
		t.Fatalf("got %d vectors, want 1", len(vectors))
	}
	v := vectors[0]

	if math.Abs(v.OccupancyRate-0.75) > 1e-9 {
		t.Errorf("occupancy rate = %v, want 0.75", v.OccupancyRate)
	}
	if v.FreeBeds != 10 {
		t.Errorf("free beds = %d, want 10", v.FreeBeds)
	}
	if math.Abs(v.OccupancyChange-(0.75-0.8)) > 1e-9 {
		t.Errorf("occupancy change = %v, want -0.05", v.OccupancyChange)
	}
	if v.PlannedAdmissions != 4 {
		t.Errorf("planned admissions = %d, want 4", v.PlannedAdmissions)
	}
	if v.PrevDischarges != 5 {
		t.Errorf("prev discharges = %d, want 5", v.PrevDischarges)
	}
	if v.PrevWeekDischarges != 7 {
		t.Errorf("prev week discharges = %d, want 7", v.PrevWeekDischarges)
	}
	if !v.IsWeekend || v.DayOfWeek != int(time.Saturday) {
		t.Errorf("day flags = (%d,%v), want Saturday/weekend", v.DayOfWeek, v.IsWeekend)
	}
	if v.MorningRatio != 0.5 || v.AfternoonRatio != 0.5 {
		t.Errorf("ratios = %v/%v, want even split without timed data", v.MorningRatio, v.AfternoonRatio)
	}
}

func TestBuildAdmissionSplit(t *testing.T) {
	day := time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC)
	triple := snapshot.Triple{
		Today: report(snapshot.SlotToday, day, snapshot.Record{Ward: "SCU", InUse: 2, Admissions: 4}),
		Lag1:  report(snapshot.SlotLag1, day.AddDate(0, 0, -1)),
		Lag7:  report(snapshot.SlotLag7, day.AddDate(0, 0, -7)),
	}

	times := map[wardgraph.Ward][]time.Time{
		"SCU": {
			day.Add(8 * time.Hour),
			day.Add(10 * time.Hour),
			day.Add(11 * time.Hour),
			day.Add(15 * time.Hour),
		},
	}

	vectors := Build(triple, times)
	if len(vectors) != 1 {
		t.Fatalf("got %d vectors, want 1", len(vectors))
	}

	v := vectors[0]
	if math.Abs(v.MorningRatio-0.75) > 1e-9 {
		t.Errorf("morning ratio = %v, want 0.75", v.MorningRatio)
	}
	if math.Abs(v.AfternoonRatio-0.25) > 1e-9 {
		t.Errorf("afternoon ratio = %v, want 0.25", v.AfternoonRatio)
	}
}

func TestBuildSortedAndMissingLags(t *testing.T) {
	day := time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC)
	triple := snapshot.Triple{
		Today: report(snapshot.SlotToday, day,
			snapshot.Record{Ward: "W75", InUse: 5},
			snapshot.Record{Ward: "EICU", InUse: 3},
		),
		Lag1: report(snapshot.SlotLag1, day.AddDate(0, 0, -1)),
		Lag7: report(snapshot.SlotLag7, day.AddDate(0, 0, -7)),
	}

	vectors := Build(triple, nil)
	if len(vectors) != 2 {
		t.Fatalf("got %d vectors, want 2", len(vectors))
	}
	if vectors[0].Ward != "EICU" || vectors[1].Ward != "W75" {
		t.Errorf("order = [%s %s], want [EICU W75]", vectors[0].Ward, vectors[1].Ward)
	}

	// No lag data: change and discharge history default to zero
	if vectors[0].OccupancyChange != 0 || vectors[0].PrevDischarges != 0 || vectors[0].PrevWeekDischarges != 0 {
		t.Errorf("lag-derived features should be zero: %+v", vectors[0])
	}
}
