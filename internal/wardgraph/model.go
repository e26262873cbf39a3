package wardgraph

// Ward is a ward code as used by the bed-status feed (e.g. "W72", "SICU")
type Ward string

// Diagnosis is a normalized diagnosis category code (ICD-like, e.g. "I21")
type Diagnosis string

// Diagnosis categories covered by the transfer recommender
const (
	DiagAngina     Diagnosis = "I20"
	DiagInfarction Diagnosis = "I21"
	DiagArrest     Diagnosis = "I46"
	DiagHemorrhage Diagnosis = "I60"
	DiagStroke     Diagnosis = "I63"
	DiagAortic     Diagnosis = "I71"
)

// WardInfo is the static configuration for a single ward
type WardInfo struct {
	Code     Ward   `json:"code"`
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
	Floor    int    `json:"floor"`
}

// Edge identifies a permitted (diagnosis, ward) routing option
type Edge struct {
	Diagnosis Diagnosis `json:"diagnosis"`
	Ward      Ward      `json:"ward"`
}

// Config is the serializable ward graph configuration. It is loaded once at
// process start, either from the embedded defaults or from a JSON file.
type Config struct {
	// BaseFloor anchors the floor-distance cost: |floor - base| * 0.1
	BaseFloor int `json:"base_floor"`

	Wards []WardInfo `json:"wards"`

	// Edges lists the admissible wards per diagnosis, in clinical
	// preference order
	Edges map[Diagnosis][]Ward `json:"edges"`

	// PriorityWeights holds the raw (unnormalized) clinical preference
	// mass per admissible edge
	PriorityWeights map[Diagnosis]map[Ward]float64 `json:"priority_weights"`

	// TransferRates holds the empirical transfer probability per diagnosis
	TransferRates map[Diagnosis]float64 `json:"transfer_rates"`
}
