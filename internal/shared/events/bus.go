package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/EventStore/EventStore-Client-Go/v4/esdb"
	"github.com/cmc-dx/rmrp/internal/shared/config"
	"github.com/cmc-dx/rmrp/internal/shared/types"
	"github.com/google/uuid"
)

// Event represents a domain event
type Event struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	Source        string    `json:"source"`
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlation_id,omitempty"`

	// Actor information
	ActorID   types.ID `json:"actor_id"`
	ActorType string   `json:"actor_type"` // clinician, system, admin

	// Event data
	Data any `json:"data"`
}

// NewEvent creates a new event with auto-generated ID and timestamp
func NewEvent(eventType, source string, data any) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// WithActor sets the actor information on the event
func (e Event) WithActor(actorID types.ID, actorType string) Event {
	e.ActorID = actorID
	e.ActorType = actorType
	return e
}

// WithCorrelation sets the correlation ID for request tracing
func (e Event) WithCorrelation(correlationID string) Event {
	e.CorrelationID = correlationID
	return e
}

// Bus publishes domain events to KurrentDB. Each event type gets its own
// stream under the service prefix, e.g. transfer.recommended appends to
// rmrp-transfer-recommended.
type Bus struct {
	client *esdb.Client
	prefix string
}

// NewBus creates a new event bus connected to KurrentDB
func NewBus(ctx context.Context, cfg config.KurrentDBConfig) (*Bus, error) {
	settings, err := esdb.ParseConnectionString(connectionString(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	client, err := esdb.NewClient(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to create KurrentDB client: %w", err)
	}

	return &Bus{client: client, prefix: "rmrp"}, nil
}

func connectionString(cfg config.KurrentDBConfig) string {
	var auth string
	if cfg.Username != "" && cfg.Password != "" {
		auth = fmt.Sprintf("%s:%s@", cfg.Username, cfg.Password)
	}

	params := ""
	if cfg.Insecure {
		params = "?tls=false&tlsVerifyCert=false" +
			"&keepAliveInterval=10000&keepAliveTimeout=10000" +
			"&discoveryInterval=100&maxDiscoverAttempts=3&gossipTimeout=5"
	}

	return fmt.Sprintf("esdb://%s%s:%d%s", auth, cfg.Host, cfg.Port, params)
}

// Publish appends an event to its per-type stream
func (b *Bus) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	eventID, err := uuid.Parse(event.ID)
	if err != nil {
		eventID = uuid.New()
	}

	_, err = b.client.AppendToStream(ctx, b.streamName(event.Type), esdb.AppendToStreamOptions{
		ExpectedRevision: esdb.Any{},
	}, esdb.EventData{
		EventType:   event.Type,
		ContentType: esdb.ContentTypeJson,
		Data:        data,
		EventID:     eventID,
	})
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// streamName maps an event type to a stream-safe name, replacing dots
// because KurrentDB treats them as category separators.
func (b *Bus) streamName(eventType string) string {
	return b.prefix + "-" + strings.ReplaceAll(eventType, ".", "-")
}

// Close closes the event bus connection
func (b *Bus) Close() {
	if b.client != nil {
		b.client.Close()
	}
}

// Client returns the underlying KurrentDB client
func (b *Bus) Client() *esdb.Client {
	return b.client
}

// Health checks the KurrentDB connection by reading the $streams projection
func (b *Bus) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := b.client.ReadStream(ctx, "$streams", esdb.ReadStreamOptions{
		From:      esdb.Start{},
		Direction: esdb.Forwards,
	}, 1)
	if err != nil {
		return fmt.Errorf("KurrentDB health check failed: %w", err)
	}
	defer stream.Close()

	return nil
}
