package ranking

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/cmc-dx/rmrp/internal/shared/config"
	"github.com/cmc-dx/rmrp/internal/snapshot"
	"github.com/cmc-dx/rmrp/internal/wardgraph"
)

const (
	// trailInit seeds every admissible edge before any feedback arrives
	trailInit = 1.0

	// Defaults for edges without configured preference data. The cost
	// side assumes a neutral 0.5 transfer rate while the desirability
	// side assumes a near-zero one, so unconfigured edges score low but
	// stay rankable.
	defaultPriorityWeight   = 0.01
	defaultDesirabilityRate = 0.01
	defaultCostRate         = 0.5
)

// Engine ranks candidate wards for a critical-care transfer. Static
// graph data is immutable after construction; the learned trail table is
// the only shared mutable state and is guarded by mu. Recommend takes a
// single read lock per request so one ranking always sees a consistent
// trail table.
type Engine struct {
	graph  *wardgraph.Graph
	params config.EngineConfig

	mu     sync.RWMutex
	trails map[wardgraph.Edge]float64
}

// NewEngine creates an engine with every admissible edge seeded at the
// initial trail strength.
func NewEngine(graph *wardgraph.Graph, params config.EngineConfig) *Engine {
	trails := make(map[wardgraph.Edge]float64)
	for _, e := range graph.Edges() {
		trails[e] = trailInit
	}
	return &Engine{graph: graph, params: params, trails: trails}
}

// Graph returns the engine's ward graph
func (e *Engine) Graph() *wardgraph.Graph {
	return e.graph
}

// Recommend ranks the admissible wards for a diagnosis against live bed
// state and returns the top k. Wards absent from the live state or at
// capacity are excluded. When nothing survives exclusion the admissible
// wards are ranked by ascending occupancy instead and the result is
// flagged as a fallback. Recommend never mutates engine state.
func (e *Engine) Recommend(diag wardgraph.Diagnosis, live map[wardgraph.Ward]snapshot.BedState, topK int) (Result, error) {
	candidates := e.graph.WardsFor(diag)
	if len(candidates) == 0 {
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedDiagnosis, diag)
	}
	if topK < 1 {
		return Result{}, fmt.Errorf("top k must be at least 1, got %d", topK)
	}

	scored := make([]ScoredWard, 0, len(candidates))

	e.mu.RLock()
	for _, w := range candidates {
		st, ok := live[w]
		if !ok || st.Occupied >= st.Total {
			continue
		}

		availability := 0.0
		if st.Total > 0 {
			availability = float64(st.Total-st.Occupied) / float64(st.Total)
			if availability < 0 {
				availability = 0
			}
		}

		pw, ok := e.graph.PriorityWeight(diag, w)
		if !ok {
			pw = defaultPriorityWeight
		}

		rate, haveRate := e.graph.TransferRate(diag)
		desirRate := rate
		costRate := rate
		if !haveRate {
			desirRate = defaultDesirabilityRate
			costRate = defaultCostRate
		}

		desirability := pw * desirRate * availability

		den := st.Total
		if den < 1 {
			den = 1
		}
		occupancyRatio := float64(st.Occupied) / float64(den)

		cost := (1 - pw) +
			e.params.OccWeight*occupancyRatio +
			e.params.DistWeight*(1-costRate) +
			e.graph.Distance(w)

		trail, ok := e.trails[wardgraph.Edge{Diagnosis: diag, Ward: w}]
		if !ok {
			trail = trailInit
		}

		score := math.Pow(trail, e.params.Alpha)*math.Pow(desirability, e.params.Beta) - cost
		scored = append(scored, ScoredWard{Ward: w, Score: score})
	}
	e.mu.RUnlock()

	if len(scored) == 0 {
		return e.fallback(candidates, live, topK), nil
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Ward < scored[j].Ward
	})

	if len(scored) > topK {
		scored = scored[:topK]
	}

	return Result{Wards: scored}, nil
}

// fallback ranks the admissible wards by ascending occupancy ratio when
// the primary path yields nothing. Wards without live data count as
// saturated.
func (e *Engine) fallback(candidates []wardgraph.Ward, live map[wardgraph.Ward]snapshot.BedState, topK int) Result {
	type occ struct {
		ward  wardgraph.Ward
		ratio float64
	}

	ranked := make([]occ, 0, len(candidates))
	for _, w := range candidates {
		ratio := 1.0
		if st, ok := live[w]; ok {
			den := st.Total
			if den < 1 {
				den = 1
			}
			ratio = float64(st.Occupied) / float64(den)
		}
		ranked = append(ranked, occ{ward: w, ratio: ratio})
	}

	if len(ranked) == 0 {
		return Result{Fallback: true, Message: "no admissible wards available"}
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].ratio != ranked[j].ratio {
			return ranked[i].ratio < ranked[j].ratio
		}
		return ranked[i].ward < ranked[j].ward
	})

	if len(ranked) > topK {
		ranked = ranked[:topK]
	}

	out := make([]ScoredWard, len(ranked))
	for i, r := range ranked {
		out[i] = ScoredWard{Ward: r.ward, Score: 0}
	}

	return Result{
		Wards:    out,
		Fallback: true,
		Message:  "no ward with free capacity, ranked by occupancy",
	}
}

// Trails returns a sorted copy of the learned trail table
func (e *Engine) Trails() []TrailEntry {
	e.mu.RLock()
	out := make([]TrailEntry, 0, len(e.trails))
	for edge, strength := range e.trails {
		out = append(out, TrailEntry{Diagnosis: edge.Diagnosis, Ward: edge.Ward, Strength: strength})
	}
	e.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Diagnosis != out[j].Diagnosis {
			return out[i].Diagnosis < out[j].Diagnosis
		}
		return out[i].Ward < out[j].Ward
	})
	return out
}
