package forecast

import (
	"context"
	"math"

	"github.com/cmc-dx/rmrp/internal/features"
	"github.com/cmc-dx/rmrp/internal/wardgraph"
)

// congestionThreshold marks a ward as congested when the predicted
// probability reaches it.
const congestionThreshold = 0.85

// CongestionForecast is one ward's congestion prediction
type CongestionForecast struct {
	Ward        wardgraph.Ward `json:"ward"`
	Probability float64        `json:"probability"`
	Congested   bool           `json:"congested"`
}

// DischargeForecast is one ward's predicted discharge count
type DischargeForecast struct {
	Ward       wardgraph.Ward `json:"ward"`
	Discharges int            `json:"discharges"`
}

// Predictor produces congestion and discharge forecasts from per-ward
// feature vectors. The implementation is chosen once at load time: the
// remote model service when configured, otherwise the local occupancy
// heuristic.
type Predictor interface {
	Name() string
	PredictCongestion(ctx context.Context, vectors []features.Vector) ([]CongestionForecast, error)
	PredictDischarges(ctx context.Context, vectors []features.Vector) ([]DischargeForecast, error)
}

// HeuristicPredictor is the local fallback. It projects congestion from
// the current occupancy trend and estimates discharges from recent
// history; it exists so the endpoints degrade gracefully when the model
// service is down or not deployed.
type HeuristicPredictor struct{}

// NewHeuristicPredictor creates the local fallback predictor
func NewHeuristicPredictor() *HeuristicPredictor {
	return &HeuristicPredictor{}
}

// Name identifies the predictor in responses and metrics
func (p *HeuristicPredictor) Name() string { return "heuristic" }

// PredictCongestion projects the occupancy trend forward one step
func (p *HeuristicPredictor) PredictCongestion(ctx context.Context, vectors []features.Vector) ([]CongestionForecast, error) {
	out := make([]CongestionForecast, len(vectors))
	for i, v := range vectors {
		prob := v.OccupancyRate + 0.5*v.OccupancyChange + 0.02*float64(v.PlannedAdmissions)
		prob = math.Max(0, math.Min(1, prob))
		out[i] = CongestionForecast{
			Ward:        v.Ward,
			Probability: prob,
			Congested:   prob >= congestionThreshold,
		}
	}
	return out, nil
}

// PredictDischarges averages the previous-day and previous-week counts
func (p *HeuristicPredictor) PredictDischarges(ctx context.Context, vectors []features.Vector) ([]DischargeForecast, error) {
	out := make([]DischargeForecast, len(vectors))
	for i, v := range vectors {
		predicted := int(math.Round(float64(v.PrevDischarges+v.PrevWeekDischarges) / 2))
		out[i] = DischargeForecast{Ward: v.Ward, Discharges: predicted}
	}
	return out, nil
}
