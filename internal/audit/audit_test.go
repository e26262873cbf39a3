package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cmc-dx/rmrp/internal/shared/types"
)

func appendEntries(t *testing.T, repo *InMemoryRepository, actions ...string) {
	t.Helper()
	for _, action := range actions {
		entry := NewEntry(ActorTypeSystem, types.NewID(), action, map[string]any{"n": 1}, "")
		if err := repo.Append(context.Background(), entry); err != nil {
			t.Fatalf("Append(%s): %v", action, err)
		}
	}
}

func TestChainLinkage(t *testing.T) {
	repo := NewInMemoryRepository()
	appendEntries(t, repo, ActionRecommendation, ActionFeedback, ActionModelRetrained)

	entries, total, err := repo.List(context.Background(), ListFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 3 || len(entries) != 3 {
		t.Fatalf("total = %d, len = %d, want 3", total, len(entries))
	}

	// Newest first
	if entries[0].Action != ActionModelRetrained {
		t.Errorf("first entry = %s, want newest", entries[0].Action)
	}
	if entries[0].Sequence != 3 {
		t.Errorf("sequence = %d, want 3", entries[0].Sequence)
	}
	if entries[0].PrevHash != entries[1].Hash {
		t.Error("prev_hash should link to the previous entry")
	}
	if entries[2].PrevHash != "" {
		t.Error("first entry should have empty prev_hash")
	}

	result, err := repo.VerifyChain(context.Background(), 0)
	if err != nil {
		t.Fatalf("VerifyChain: %v", err)
	}
	if !result.Valid || result.Checked != 3 {
		t.Errorf("verify = %+v, want valid over 3 entries", result)
	}
}

func TestVerifyChainDetectsTampering(t *testing.T) {
	repo := NewInMemoryRepository()
	appendEntries(t, repo, ActionRecommendation, ActionFeedback)

	repo.entries[0].Action = "tampered"

	result, err := repo.VerifyChain(context.Background(), 0)
	if err != nil {
		t.Fatalf("VerifyChain: %v", err)
	}
	if result.Valid {
		t.Fatal("tampered chain reported valid")
	}
	if len(result.Violations) == 0 {
		t.Fatal("expected violations")
	}
}

func TestVerifyHash(t *testing.T) {
	entry := NewEntry(ActorTypeClinician, types.NewID(), ActionFeedback,
		map[string]any{"ward": "W72", "accepted": true}, "abc")
	if !entry.VerifyHash() {
		t.Fatal("fresh entry must verify")
	}

	entry.Details["accepted"] = false
	if entry.VerifyHash() {
		t.Fatal("modified details must invalidate hash")
	}
}

func TestListFilters(t *testing.T) {
	repo := NewInMemoryRepository()
	appendEntries(t, repo,
		ActionRecommendation, ActionRecommendation, ActionFeedback, ActionModelSaved)

	entries, total, err := repo.List(context.Background(), ListFilter{Action: ActionRecommendation})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 2 || len(entries) != 2 {
		t.Fatalf("action filter: total = %d, len = %d, want 2", total, len(entries))
	}

	entries, total, err = repo.List(context.Background(), ListFilter{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 4 || len(entries) != 1 {
		t.Fatalf("paging: total = %d, len = %d", total, len(entries))
	}
	if entries[0].Sequence != 3 {
		t.Errorf("offset 1 newest-first should yield sequence 3, got %d", entries[0].Sequence)
	}
}

func TestRecorder(t *testing.T) {
	repo := NewInMemoryRepository()
	rec := NewSystemRecorder(repo)

	rec.Record(context.Background(), ActionModelSaved, map[string]any{"backend": "filesystem"})

	entries, _, err := repo.List(context.Background(), ListFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len = %d, want 1", len(entries))
	}
	if entries[0].ActorType != ActorTypeSystem {
		t.Errorf("actor type = %s", entries[0].ActorType)
	}
	if entries[0].Details["backend"] != "filesystem" {
		t.Errorf("details = %v", entries[0].Details)
	}
}

func TestListEndpoint(t *testing.T) {
	repo := NewInMemoryRepository()
	appendEntries(t, repo, ActionRecommendation, ActionFeedback)

	h := NewHandler(repo)
	h.devMode = true

	req := httptest.NewRequest(http.MethodGet, "/?action="+ActionFeedback, nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var out struct {
		Data  []*Entry `json:"data"`
		Total int      `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if out.Total != 1 || len(out.Data) != 1 {
		t.Fatalf("total = %d, len = %d, want 1", out.Total, len(out.Data))
	}
	if out.Data[0].Action != ActionFeedback {
		t.Errorf("action = %s", out.Data[0].Action)
	}
}

func TestVerifyEndpoint(t *testing.T) {
	repo := NewInMemoryRepository()
	appendEntries(t, repo, ActionRecommendation)

	h := NewHandler(repo)
	h.devMode = true

	req := httptest.NewRequest(http.MethodGet, "/verify", nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var result VerifyResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !result.Valid || result.Checked != 1 {
		t.Errorf("result = %+v", result)
	}
}
