package wardgraph

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Graph is the immutable ward routing graph: admissible edges per diagnosis,
// normalized priority weights, transfer rates and ward metadata. It is built
// once at process start and safe for concurrent reads.
type Graph struct {
	cfg       Config
	wards     map[Ward]WardInfo
	weights   map[Edge]float64 // normalized per diagnosis
	distances map[Ward]float64
	hash      string
}

// New builds a Graph from a configuration, normalizing priority weights so
// that the weights of all edges sharing a diagnosis sum to 1 (or 0 when the
// raw weights for a diagnosis sum to 0).
func New(cfg Config) (*Graph, error) {
	if len(cfg.Wards) == 0 {
		return nil, fmt.Errorf("ward graph: no wards configured")
	}
	if len(cfg.Edges) == 0 {
		return nil, fmt.Errorf("ward graph: no admissible edges configured")
	}

	wards := make(map[Ward]WardInfo, len(cfg.Wards))
	for _, w := range cfg.Wards {
		if _, dup := wards[w.Code]; dup {
			return nil, fmt.Errorf("ward graph: duplicate ward %q", w.Code)
		}
		wards[w.Code] = w
	}

	for diag, candidates := range cfg.Edges {
		for _, w := range candidates {
			if _, ok := wards[w]; !ok {
				return nil, fmt.Errorf("ward graph: edge (%s,%s) references unknown ward", diag, w)
			}
		}
	}

	distances := make(map[Ward]float64, len(wards))
	for code, w := range wards {
		d := w.Floor - cfg.BaseFloor
		if d < 0 {
			d = -d
		}
		distances[code] = float64(d) * 0.1
	}

	weights := make(map[Edge]float64)
	for diag, raw := range cfg.PriorityWeights {
		var total float64
		for _, v := range raw {
			if v < 0 {
				return nil, fmt.Errorf("ward graph: negative priority weight for %s", diag)
			}
			total += v
		}
		for w, v := range raw {
			if total > 0 {
				weights[Edge{diag, w}] = v / total
			} else {
				weights[Edge{diag, w}] = 0
			}
		}
	}

	hash, err := configHash(cfg)
	if err != nil {
		return nil, fmt.Errorf("ward graph: %w", err)
	}

	return &Graph{
		cfg:       cfg,
		wards:     wards,
		weights:   weights,
		distances: distances,
		hash:      hash,
	}, nil
}

// Load reads a graph configuration from a JSON file, or falls back to the
// embedded defaults when path is empty.
func Load(path string) (*Graph, error) {
	if path == "" {
		return New(DefaultConfig())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ward graph: read %s: %w", path, err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("ward graph: parse %s: %w", path, err)
	}
	return New(cfg)
}

// Hash returns a stable digest of the graph configuration, recorded in
// persisted engine artifacts to detect configuration drift across restarts.
func (g *Graph) Hash() string {
	return g.hash
}

// Ward returns the static configuration for a ward
func (g *Graph) Ward(code Ward) (WardInfo, bool) {
	w, ok := g.wards[code]
	return w, ok
}

// Wards returns all configured wards sorted by code
func (g *Graph) Wards() []WardInfo {
	out := make([]WardInfo, 0, len(g.wards))
	for _, w := range g.wards {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// WardsFor returns the admissible candidate wards for a diagnosis, in
// configured preference order. The returned slice is a copy.
func (g *Graph) WardsFor(diag Diagnosis) []Ward {
	candidates := g.cfg.Edges[diag]
	if len(candidates) == 0 {
		return nil
	}
	out := make([]Ward, len(candidates))
	copy(out, candidates)
	return out
}

// HasEdge reports whether (diag, ward) is an admissible edge
func (g *Graph) HasEdge(diag Diagnosis, ward Ward) bool {
	for _, w := range g.cfg.Edges[diag] {
		if w == ward {
			return true
		}
	}
	return false
}

// Edges returns every admissible edge in the graph, sorted for determinism
func (g *Graph) Edges() []Edge {
	var out []Edge
	for diag, wards := range g.cfg.Edges {
		for _, w := range wards {
			out = append(out, Edge{diag, w})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Diagnosis != out[j].Diagnosis {
			return out[i].Diagnosis < out[j].Diagnosis
		}
		return out[i].Ward < out[j].Ward
	})
	return out
}

// PriorityWeight returns the normalized clinical preference weight for an
// edge, and whether the edge carries a configured weight.
func (g *Graph) PriorityWeight(diag Diagnosis, ward Ward) (float64, bool) {
	v, ok := g.weights[Edge{diag, ward}]
	return v, ok
}

// TransferRate returns the empirical transfer probability for a diagnosis
func (g *Graph) TransferRate(diag Diagnosis) (float64, bool) {
	v, ok := g.cfg.TransferRates[diag]
	return v, ok
}

// Distance returns the floor-derived distance cost for a ward
func (g *Graph) Distance(ward Ward) float64 {
	return g.distances[ward]
}

// configHash computes a sha256 digest over the canonical JSON encoding of
// the configuration. encoding/json sorts map keys, so the digest is stable
// for equal configurations.
func configHash(cfg Config) (string, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
