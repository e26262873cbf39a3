package ranking

import (
	"log"

	"github.com/cmc-dx/rmrp/internal/shared/metrics"
	"github.com/cmc-dx/rmrp/internal/wardgraph"
)

// Learner folds placement outcomes into the engine's trail table with an
// exponential moving average. Accepted placements pull a trail toward 1,
// rejected ones toward 0; the update never leaves the interval between
// the prior value and the reward.
type Learner struct {
	engine *Engine
}

// NewLearner creates a learner over an engine
func NewLearner(engine *Engine) *Learner {
	return &Learner{engine: engine}
}

// Apply folds a feedback batch into the trail table under a single write
// lock. Records referencing unknown edges are logged and dropped, never
// fatal. Records targeting the same edge are applied in batch order.
// Returns the applied and dropped counts. An empty batch is a no-op.
func (l *Learner) Apply(records []FeedbackRecord) (applied, dropped int) {
	if len(records) == 0 {
		return 0, 0
	}

	e := l.engine
	alpha := e.params.UpdateAlpha

	e.mu.Lock()
	for _, rec := range records {
		if !e.graph.HasEdge(rec.Diagnosis, rec.Ward) {
			log.Printf("ranking: %v: (%s,%s)", ErrUnknownEdge, rec.Diagnosis, rec.Ward)
			metrics.RecordFeedback("dropped")
			dropped++
			continue
		}

		reward := 0.0
		outcome := "rejected"
		if rec.Accepted {
			reward = 1.0
			outcome = "accepted"
		}

		edge := wardgraph.Edge{Diagnosis: rec.Diagnosis, Ward: rec.Ward}
		prior, ok := e.trails[edge]
		if !ok {
			prior = trailInit
		}
		e.trails[edge] = alpha*prior + (1-alpha)*reward

		metrics.RecordFeedback(outcome)
		applied++
	}
	e.mu.Unlock()

	return applied, dropped
}
