package audit

import (
	"context"
	"fmt"
	"sync"
)

// Repository is an append-only store of audit entries. Append assigns
// the sequence number and chains the entry onto the previous hash.
type Repository interface {
	// Initialize loads the tail of the chain so new entries link correctly
	Initialize(ctx context.Context) error
	// Append chains and persists a new entry (thread-safe)
	Append(ctx context.Context, entry *Entry) error
	// List returns entries matching the filter, newest first
	List(ctx context.Context, filter ListFilter) ([]*Entry, int, error)
	// VerifyChain checks hash and linkage integrity of recent entries
	VerifyChain(ctx context.Context, limit int) (*VerifyResult, error)
}

// VerifyResult summarizes a chain verification pass
type VerifyResult struct {
	Valid      bool     `json:"valid"`
	Checked    int      `json:"checked"`
	Violations []string `json:"violations,omitempty"`
}

// InMemoryRepository keeps the audit chain in memory. Used when no
// event store is configured; entries do not survive a restart.
type InMemoryRepository struct {
	mu       sync.Mutex
	entries  []*Entry
	lastHash string
	sequence int64
}

// NewInMemoryRepository creates an empty in-memory audit repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{}
}

// Initialize is a no-op for the in-memory repository
func (r *InMemoryRepository) Initialize(ctx context.Context) error {
	return nil
}

// Append chains and stores a new entry
func (r *InMemoryRepository) Append(ctx context.Context, entry *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sequence++
	entry.Sequence = r.sequence
	entry.PrevHash = r.lastHash
	entry.Hash = entry.ComputeHash()

	r.entries = append(r.entries, entry)
	r.lastHash = entry.Hash
	return nil
}

// List returns matching entries, newest first
func (r *InMemoryRepository) List(ctx context.Context, filter ListFilter) ([]*Entry, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []*Entry
	for i := len(r.entries) - 1; i >= 0; i-- {
		if filter.matches(r.entries[i]) {
			matched = append(matched, r.entries[i])
		}
	}

	total := len(matched)
	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[filter.Offset:]
		}
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}

	return matched, total, nil
}

// VerifyChain checks the most recent entries for tampering
func (r *InMemoryRepository) VerifyChain(ctx context.Context, limit int) (*VerifyResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := 0
	if limit > 0 && len(r.entries) > limit {
		start = len(r.entries) - limit
	}

	return verifyEntries(r.entries[start:]), nil
}

// verifyEntries checks content hashes and linkage over entries in chain
// order (oldest first).
func verifyEntries(entries []*Entry) *VerifyResult {
	result := &VerifyResult{Valid: true, Checked: len(entries)}

	for i, entry := range entries {
		if !entry.VerifyHash() {
			result.Valid = false
			result.Violations = append(result.Violations,
				fmt.Sprintf("entry %d: stored hash does not match content", entry.Sequence))
		}
		if i > 0 && entry.PrevHash != entries[i-1].Hash {
			result.Valid = false
			result.Violations = append(result.Violations,
				fmt.Sprintf("entry %d: prev_hash does not match entry %d", entry.Sequence, entries[i-1].Sequence))
		}
	}

	return result
}

// Verify interface implementation
var _ Repository = (*InMemoryRepository)(nil)
