package bedfeed

import (
	"context"
)

// Feed is a source of per-ward bed status reports. Implementations poll
// a hospital information system and append reports into the bed status
// store; the rest of the service only ever reads the store.
type Feed interface {
	// Start opens the upstream connection and begins polling
	Start(ctx context.Context) error
	// Stop halts polling and closes the connection
	Stop(ctx context.Context) error
	// Health checks upstream connectivity
	Health(ctx context.Context) error
	// SourceSystem names the upstream system
	SourceSystem() string
}
