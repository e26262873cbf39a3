package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/EventStore/EventStore-Client-Go/v4/esdb"
	"github.com/google/uuid"

	"github.com/cmc-dx/rmrp/internal/shared/errors"
)

const (
	// StreamName is the stream where all audit entries are stored
	StreamName = "rmrp-audit"
	// EventType is the event type for audit entries
	EventType = "AuditEntry"
)

// KurrentDBRepository persists the audit chain in KurrentDB. The stream
// is inherently append-only, so entries cannot be modified or deleted.
type KurrentDBRepository struct {
	client   *esdb.Client
	mu       sync.Mutex
	lastHash string
	sequence int64
}

// NewKurrentDBRepository creates a new KurrentDB-based audit repository
func NewKurrentDBRepository(client *esdb.Client) *KurrentDBRepository {
	return &KurrentDBRepository{client: client}
}

// Initialize loads the last hash and sequence from the stream
func (r *KurrentDBRepository) Initialize(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	opts := esdb.ReadStreamOptions{
		Direction: esdb.Backwards,
		From:      esdb.End{},
	}

	stream, err := r.client.ReadStream(ctx, StreamName, opts, 1)
	if err != nil {
		// Stream doesn't exist yet - that's OK
		if esdbErr, ok := esdb.FromError(err); ok {
			if esdbErr.Code() == esdb.ErrorCodeResourceNotFound {
				r.lastHash = ""
				r.sequence = 0
				return nil
			}
		}
		return errors.Wrap(err, "failed to read audit stream")
	}
	defer stream.Close()

	event, err := stream.Recv()
	if err != nil {
		r.lastHash = ""
		r.sequence = 0
		return nil
	}

	if event.Event != nil && event.Event.EventType == EventType {
		var entry Entry
		if err := json.Unmarshal(event.Event.Data, &entry); err == nil {
			r.lastHash = entry.Hash
			r.sequence = entry.Sequence
		}
	}

	return nil
}

// Append chains and appends a new audit entry (thread-safe)
func (r *KurrentDBRepository) Append(ctx context.Context, entry *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sequence++
	entry.Sequence = r.sequence
	entry.PrevHash = r.lastHash
	entry.Hash = entry.ComputeHash()

	data, err := json.Marshal(entry)
	if err != nil {
		return errors.Wrap(err, "failed to marshal audit entry")
	}

	eventData := esdb.EventData{
		EventID:     uuid.New(),
		EventType:   EventType,
		ContentType: esdb.ContentTypeJson,
		Data:        data,
		Metadata: []byte(fmt.Sprintf(`{"sequence":%d,"hash":"%s"}`,
			entry.Sequence, entry.Hash)),
	}

	_, err = r.client.AppendToStream(ctx, StreamName, esdb.AppendToStreamOptions{}, eventData)
	if err != nil {
		return errors.Wrap(err, "failed to append audit entry")
	}

	r.lastHash = entry.Hash
	return nil
}

// List lists audit entries with filters, newest first
func (r *KurrentDBRepository) List(ctx context.Context, filter ListFilter) ([]*Entry, int, error) {
	opts := esdb.ReadStreamOptions{
		Direction: esdb.Backwards,
		From:      esdb.End{},
	}

	maxEvents := uint64(1000)
	if filter.Limit > 0 {
		// Read extra to account for filtering
		maxEvents = uint64(filter.Limit + filter.Offset + 100)
	}

	stream, err := r.client.ReadStream(ctx, StreamName, opts, maxEvents)
	if err != nil {
		if esdbErr, ok := esdb.FromError(err); ok {
			if esdbErr.Code() == esdb.ErrorCodeResourceNotFound {
				return []*Entry{}, 0, nil
			}
		}
		return nil, 0, errors.Wrap(err, "failed to read audit stream")
	}
	defer stream.Close()

	var entries []*Entry
	total := 0

	for {
		event, err := stream.Recv()
		if err != nil {
			break
		}

		if event.Event == nil || event.Event.EventType != EventType {
			continue
		}

		var entry Entry
		if err := json.Unmarshal(event.Event.Data, &entry); err != nil {
			continue
		}
		if !filter.matches(&entry) {
			continue
		}

		total++
		if filter.Offset > 0 && total <= filter.Offset {
			continue
		}
		if filter.Limit > 0 && len(entries) >= filter.Limit {
			continue
		}

		entries = append(entries, &entry)
	}

	return entries, total, nil
}

// VerifyChain verifies the integrity of the most recent entries
func (r *KurrentDBRepository) VerifyChain(ctx context.Context, limit int) (*VerifyResult, error) {
	opts := esdb.ReadStreamOptions{
		Direction: esdb.Backwards,
		From:      esdb.End{},
	}

	stream, err := r.client.ReadStream(ctx, StreamName, opts, uint64(limit))
	if err != nil {
		if esdbErr, ok := esdb.FromError(err); ok {
			if esdbErr.Code() == esdb.ErrorCodeResourceNotFound {
				return &VerifyResult{Valid: true}, nil
			}
		}
		return nil, errors.Wrap(err, "failed to read audit stream")
	}
	defer stream.Close()

	var entries []*Entry
	for {
		event, err := stream.Recv()
		if err != nil {
			break
		}
		if event.Event != nil && event.Event.EventType == EventType {
			var entry Entry
			if err := json.Unmarshal(event.Event.Data, &entry); err == nil {
				entries = append(entries, &entry)
			}
		}
	}

	// Reading backwards yields newest first; verify in chain order
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}

	return verifyEntries(entries), nil
}

// Verify interface implementation
var _ Repository = (*KurrentDBRepository)(nil)
