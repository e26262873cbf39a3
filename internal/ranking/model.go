package ranking

import (
	"errors"

	"github.com/cmc-dx/rmrp/internal/wardgraph"
)

var (
	// ErrUnsupportedDiagnosis is returned when a diagnosis has no
	// admissible wards configured.
	ErrUnsupportedDiagnosis = errors.New("diagnosis has no admissible wards")

	// ErrUnknownEdge marks a feedback record whose (diagnosis, ward)
	// pair is not an admissible edge. Such records are dropped, not
	// fatal.
	ErrUnknownEdge = errors.New("feedback references unknown edge")
)

// ScoredWard is one ranked candidate
type ScoredWard struct {
	Ward  wardgraph.Ward `json:"ward"`
	Score float64        `json:"score"`
}

// Result is an ordered recommendation, best candidate first. Fallback
// marks a degraded ranking produced when no ward survived the primary
// scoring path.
type Result struct {
	Wards    []ScoredWard `json:"wards"`
	Fallback bool         `json:"fallback"`
	Message  string       `json:"message,omitempty"`
}

// FeedbackRecord is one placement outcome: whether the receiving ward
// accepted the recommended transfer.
type FeedbackRecord struct {
	Diagnosis wardgraph.Diagnosis `json:"diagnosis"`
	Ward      wardgraph.Ward      `json:"ward"`
	Accepted  bool                `json:"accepted"`
}

// TrailEntry is one learned edge weight, used by the diagnostic dump
type TrailEntry struct {
	Diagnosis wardgraph.Diagnosis `json:"diagnosis"`
	Ward      wardgraph.Ward      `json:"ward"`
	Strength  float64             `json:"strength"`
}
