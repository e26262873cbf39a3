package artifact

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cmc-dx/rmrp/internal/ranking"
)

func sampleState() ranking.State {
	return ranking.State{
		Version:   1,
		GraphHash: "abc123",
		Trails: map[string]float64{
			"I63/W75": 0.76,
			"I63/SCU": 1.0,
		},
		UpdatedAt: time.Date(2025, 6, 18, 10, 0, 0, 0, time.UTC),
	}
}

func TestFilesystemRoundtrip(t *testing.T) {
	store := NewFilesystemStore(t.TempDir())
	ctx := context.Background()

	if err := store.Save(ctx, "hybrid-scheduler", sampleState()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Load(ctx, "hybrid-scheduler")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got.GraphHash != "abc123" {
		t.Errorf("graph hash = %s, want abc123", got.GraphHash)
	}
	if got.Trails["I63/W75"] != 0.76 {
		t.Errorf("trail = %v, want 0.76", got.Trails["I63/W75"])
	}
}

func TestFilesystemMissingKey(t *testing.T) {
	store := NewFilesystemStore(t.TempDir())

	_, err := store.Load(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestFilesystemOverwriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store := NewFilesystemStore(dir)
	ctx := context.Background()

	state := sampleState()
	if err := store.Save(ctx, "k", state); err != nil {
		t.Fatalf("Save: %v", err)
	}

	state.Trails["I63/W75"] = 0.9
	if err := store.Save(ctx, "k", state); err != nil {
		t.Fatalf("Save (overwrite): %v", err)
	}

	got, err := store.Load(ctx, "k")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Trails["I63/W75"] != 0.9 {
		t.Errorf("trail = %v, want overwritten value 0.9", got.Trails["I63/W75"])
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temporary file left behind: %s", filepath.Join(dir, e.Name()))
		}
	}
}

func TestFilesystemCorruptPayload(t *testing.T) {
	dir := t.TempDir()
	store := NewFilesystemStore(dir)

	if err := os.WriteFile(filepath.Join(dir, "k.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := store.Load(context.Background(), "k"); err == nil {
		t.Fatal("expected decode error for corrupt artifact")
	}
}
