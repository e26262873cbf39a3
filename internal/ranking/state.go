package ranking

import (
	"fmt"
	"strings"
	"time"

	"github.com/cmc-dx/rmrp/internal/wardgraph"
)

// stateVersion is bumped when the serialized layout changes
const stateVersion = 1

// State is the serializable engine state: the learned trail table plus
// enough metadata for a restarted process to resume learning without
// replaying feedback history. Trail keys are "diagnosis/ward".
type State struct {
	Version   int                `json:"version"`
	GraphHash string             `json:"graph_hash"`
	Trails    map[string]float64 `json:"trails"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// SnapshotState copies the trail table under a brief read lock so that
// serialization and upload happen outside any lock.
func (e *Engine) SnapshotState() State {
	e.mu.RLock()
	trails := make(map[string]float64, len(e.trails))
	for edge, strength := range e.trails {
		trails[edgeKey(edge)] = strength
	}
	e.mu.RUnlock()

	return State{
		Version:   stateVersion,
		GraphHash: e.graph.Hash(),
		Trails:    trails,
		UpdatedAt: time.Now().UTC(),
	}
}

// RestoreState replaces the trail table from a persisted state. A
// version or graph hash mismatch is an error; the caller decides whether
// to start fresh. Trail entries for edges no longer in the graph are
// dropped; edges missing from the state keep the initial strength.
func (e *Engine) RestoreState(s State) error {
	if s.Version != stateVersion {
		return fmt.Errorf("unsupported state version %d", s.Version)
	}
	if s.GraphHash != e.graph.Hash() {
		return fmt.Errorf("graph hash mismatch: state %s, graph %s", s.GraphHash, e.graph.Hash())
	}

	trails := make(map[wardgraph.Edge]float64)
	for _, edge := range e.graph.Edges() {
		trails[edge] = trailInit
	}
	for key, strength := range s.Trails {
		edge, err := parseEdgeKey(key)
		if err != nil {
			return err
		}
		if _, ok := trails[edge]; !ok {
			continue
		}
		if strength <= 0 {
			return fmt.Errorf("non-positive trail strength %v for %s", strength, key)
		}
		trails[edge] = strength
	}

	e.mu.Lock()
	e.trails = trails
	e.mu.Unlock()

	return nil
}

func edgeKey(e wardgraph.Edge) string {
	return fmt.Sprintf("%s/%s", e.Diagnosis, e.Ward)
}

func parseEdgeKey(key string) (wardgraph.Edge, error) {
	parts := strings.SplitN(key, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return wardgraph.Edge{}, fmt.Errorf("malformed trail key %q", key)
	}
	return wardgraph.Edge{Diagnosis: wardgraph.Diagnosis(parts[0]), Ward: wardgraph.Ward(parts[1])}, nil
}
