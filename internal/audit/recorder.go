package audit

import (
	"context"
	"log"

	"github.com/cmc-dx/rmrp/internal/shared/metrics"
	"github.com/cmc-dx/rmrp/internal/shared/types"
)

// Recorder appends audit entries on behalf of a fixed actor. Recording
// failures are logged, never propagated: an audit outage must not block
// placement decisions.
type Recorder struct {
	repo      Repository
	actorType ActorType
	actorID   types.ID
}

// NewRecorder creates a recorder writing entries as the given actor
func NewRecorder(repo Repository, actorType ActorType, actorID types.ID) *Recorder {
	return &Recorder{repo: repo, actorType: actorType, actorID: actorID}
}

// NewSystemRecorder creates a recorder for service-initiated actions
func NewSystemRecorder(repo Repository) *Recorder {
	return NewRecorder(repo, ActorTypeSystem, types.NewID())
}

// Record appends one audit entry for the action
func (rec *Recorder) Record(ctx context.Context, action string, details map[string]any) {
	entry := NewEntry(rec.actorType, rec.actorID, action, details, "")
	if err := rec.repo.Append(ctx, entry); err != nil {
		log.Printf("audit: failed to record %s: %v", action, err)
		return
	}
	metrics.RecordAuditEntry()
}
