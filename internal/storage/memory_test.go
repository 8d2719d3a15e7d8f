package storage

import (
	"context"
	"testing"

	"github.com/withobsrvr/stackctl/internal/model"
)

func TestMemoryStorage(t *testing.T) {
	storage := NewMemoryStorage()
	if err := storage.Open(); err != nil {
		t.Fatalf("Failed to open storage: %v", err)
	}
	defer storage.Close()
	ctx := context.Background()

	if _, err := storage.Last(ctx, model.Kustomize, "/out"); !IsNotFound(err) {
		t.Errorf("Expected not found error, got %v", err)
	}

	e := createTestEmission("one", model.Kustomize, "/out", "kustomize/base/kustomization.yaml")
	if err := storage.Record(ctx, e); err != nil {
		t.Fatalf("Failed to record emission: %v", err)
	}

	// later changes by the caller do not leak into the stored copy
	e.Files[0] = "changed"

	last, err := storage.Last(ctx, model.Kustomize, "/out")
	if err != nil {
		t.Fatalf("Failed to get last emission: %v", err)
	}
	if last.Files[0] != "kustomize/base/kustomization.yaml" {
		t.Errorf("Stored emission was modified: %v", last.Files)
	}

	if err := storage.Record(ctx, createTestEmission("two", model.Kustomize, "/out")); err != nil {
		t.Fatalf("Failed to record emission: %v", err)
	}
	list, err := storage.List(ctx, 1)
	if err != nil {
		t.Fatalf("Failed to list emissions: %v", err)
	}
	if len(list) != 1 || list[0].ID != "two" {
		t.Errorf("Expected [two], got %v", list)
	}
}

func TestLedgerImplementations(t *testing.T) {
	var _ Ledger = (*BoltDBStorage)(nil)
	var _ Ledger = (*MemoryStorage)(nil)
}
