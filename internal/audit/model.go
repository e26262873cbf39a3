package audit

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"

	"github.com/cmc-dx/rmrp/internal/shared/types"
)

// canonicalJSON produces deterministic JSON output with sorted map keys.
// This is critical for hash verification - Go maps have random iteration
// order, so keys must be sorted for consistent hashing.
func canonicalJSON(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	var parsed any
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, err
	}

	return canonicalMarshal(parsed)
}

func canonicalMarshal(v any) ([]byte, error) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			keyBytes, _ := json.Marshal(k)
			buf.Write(keyBytes)
			buf.WriteByte(':')
			valBytes, err := canonicalMarshal(val[k])
			if err != nil {
				return nil, err
			}
			buf.Write(valBytes)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil

	case []any:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			itemBytes, err := canonicalMarshal(item)
			if err != nil {
				return nil, err
			}
			buf.Write(itemBytes)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil

	default:
		return json.Marshal(val)
	}
}

// ActorType defines the type of actor
type ActorType string

const (
	ActorTypeClinician ActorType = "clinician"
	ActorTypeSystem    ActorType = "system"
	ActorTypeAdmin     ActorType = "admin"
)

// Audited actions
const (
	ActionRecommendation = "transfer.recommend"
	ActionFeedback       = "transfer.feedback"
	ActionModelRetrained = "model.retrained"
	ActionModelSaved     = "model.saved"
)

// Entry is an immutable, hash-chained audit record of one placement
// decision or model lifecycle event.
type Entry struct {
	ID        types.ID  `json:"id"`
	Sequence  int64     `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`
	Hash      string    `json:"hash"`
	PrevHash  string    `json:"prev_hash,omitempty"`

	ActorType ActorType `json:"actor_type"`
	ActorID   types.ID  `json:"actor_id"`

	Action  string         `json:"action"`
	Details map[string]any `json:"details,omitempty"`
}

// NewEntry creates an audit entry chained onto prevHash
func NewEntry(actorType ActorType, actorID types.ID, action string, details map[string]any, prevHash string) *Entry {
	entry := &Entry{
		ID:        types.NewID(),
		Timestamp: time.Now().UTC().Truncate(time.Microsecond),
		PrevHash:  prevHash,
		ActorType: actorType,
		ActorID:   actorID,
		Action:    action,
		Details:   details,
	}
	entry.Hash = entry.computeHash()
	return entry
}

// computeHash hashes the entry with canonical JSON so verification is
// independent of map key ordering and timezone.
func (e *Entry) computeHash() string {
	data := map[string]any{
		"id":         e.ID,
		"timestamp":  e.Timestamp.UTC().Format(time.RFC3339Nano),
		"prev_hash":  e.PrevHash,
		"actor_type": e.ActorType,
		"actor_id":   e.ActorID,
		"action":     e.Action,
	}
	if len(e.Details) > 0 {
		data["details"] = e.Details
	}

	jsonData, _ := canonicalJSON(data)
	hash := sha256.Sum256(jsonData)
	return hex.EncodeToString(hash[:])
}

// VerifyHash verifies the entry's hash
func (e *Entry) VerifyHash() bool {
	return e.Hash == e.computeHash()
}

// ComputeHash computes and returns the correct hash for this entry
func (e *Entry) ComputeHash() string {
	return e.computeHash()
}

// ListFilter defines filters for listing audit entries
type ListFilter struct {
	Action    string     `json:"action,omitempty"`
	ActorType *ActorType `json:"actor_type,omitempty"`
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Limit     int        `json:"limit,omitempty"`
	Offset    int        `json:"offset,omitempty"`
}

func (f ListFilter) matches(e *Entry) bool {
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.ActorType != nil && e.ActorType != *f.ActorType {
		return false
	}
	if f.StartTime != nil && e.Timestamp.Before(*f.StartTime) {
		return false
	}
	if f.EndTime != nil && e.Timestamp.After(*f.EndTime) {
		return false
	}
	return true
}
