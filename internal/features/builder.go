package features

import (
	"sort"
	"time"

	"github.com/cmc-dx/rmrp/internal/snapshot"
	"github.com/cmc-dx/rmrp/internal/wardgraph"
)

// defaultAdmissionRatio splits admissions evenly between morning and
// afternoon when no timed observations exist.
const defaultAdmissionRatio = 0.5

// Vector is the per-ward numeric feature set consumed by the congestion
// and discharge forecasters.
type Vector struct {
	Ward               wardgraph.Ward `json:"ward"`
	OccupancyRate      float64        `json:"occupancy_rate"`
	FreeBeds           int            `json:"free_beds"`
	OccupancyChange    float64        `json:"occupancy_change"`
	PlannedAdmissions  int            `json:"planned_admissions"`
	PrevDischarges     int            `json:"prev_discharges"`
	PrevWeekDischarges int            `json:"prev_week_discharges"`
	DayOfWeek          int            `json:"day_of_week"`
	IsWeekend          bool           `json:"is_weekend"`
	MorningRatio       float64        `json:"morning_ratio"`
	AfternoonRatio     float64        `json:"afternoon_ratio"`
}

// Build turns a reconciled observation window into per-ward feature
// vectors, sorted by ward code. admissionTimes optionally carries timed
// admission observations for the current day; wards without any get the
// even morning/afternoon split.
func Build(t snapshot.Triple, admissionTimes map[wardgraph.Ward][]time.Time) []Vector {
	lag1 := indexByWard(t.Lag1.Records)
	lag7 := indexByWard(t.Lag7.Records)

	day := t.Today.Day
	dow := int(day.Weekday())
	weekend := day.Weekday() == time.Saturday || day.Weekday() == time.Sunday

	out := make([]Vector, 0, len(t.Today.Records))
	for _, rec := range t.Today.Records {
		v := Vector{
			Ward:              rec.Ward,
			OccupancyRate:     occupancyRate(rec),
			FreeBeds:          freeBeds(rec),
			PlannedAdmissions: rec.Appointments,
			DayOfWeek:         dow,
			IsWeekend:         weekend,
		}

		if prev, ok := lag1[rec.Ward]; ok {
			v.OccupancyChange = v.OccupancyRate - occupancyRate(prev)
			v.PrevDischarges = prev.Discharges
		}
		if prev, ok := lag7[rec.Ward]; ok {
			v.PrevWeekDischarges = prev.Discharges
		}

		v.MorningRatio, v.AfternoonRatio = admissionSplit(admissionTimes[rec.Ward])

		out = append(out, v)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Ward < out[j].Ward })
	return out
}

func indexByWard(records []snapshot.Record) map[wardgraph.Ward]snapshot.Record {
	out := make(map[wardgraph.Ward]snapshot.Record, len(records))
	for _, r := range records {
		out[r.Ward] = r
	}
	return out
}

func occupancyRate(r snapshot.Record) float64 {
	total := r.Total()
	if total < 1 {
		return 0
	}
	return float64(r.InUse) / float64(total)
}

func freeBeds(r snapshot.Record) int {
	free := r.Total() - r.InUse
	if free < 0 {
		return 0
	}
	return free
}

func admissionSplit(times []time.Time) (morning, afternoon float64) {
	if len(times) == 0 {
		return defaultAdmissionRatio, defaultAdmissionRatio
	}
	count := 0
	for _, ts := range times {
		if ts.Hour() < 12 {
			count++
		}
	}
	morning = float64(count) / float64(len(times))
	return morning, 1 - morning
}
