package events

import (
	"testing"

	"github.com/cmc-dx/rmrp/internal/shared/types"
)

func TestStreamName(t *testing.T) {
	b := &Bus{prefix: "rmrp"}

	tests := []struct {
		eventType string
		want      string
	}{
		{"transfer.recommended", "rmrp-transfer-recommended"},
		{"transfer.feedback", "rmrp-transfer-feedback"},
		{"model.retrained", "rmrp-model-retrained"},
		{"model.saved", "rmrp-model-saved"},
		{"plain", "rmrp-plain"},
	}

	for _, tt := range tests {
		if got := b.streamName(tt.eventType); got != tt.want {
			t.Errorf("streamName(%q) = %q, want %q", tt.eventType, got, tt.want)
		}
	}
}

func TestNewEventWithActor(t *testing.T) {
	actorID := types.NewID()
	event := NewEvent("transfer.recommended", "ranking", map[string]any{"icd": "I63"}).
		WithActor(actorID, "clinician").
		WithCorrelation("req-123")

	if event.ID == "" {
		t.Error("event ID not generated")
	}
	if event.Timestamp.IsZero() {
		t.Error("event timestamp not set")
	}
	if event.ActorID != actorID || event.ActorType != "clinician" {
		t.Errorf("actor = (%s, %s), want (%s, clinician)", event.ActorID, event.ActorType, actorID)
	}
	if event.CorrelationID != "req-123" {
		t.Errorf("correlation = %q", event.CorrelationID)
	}
}
