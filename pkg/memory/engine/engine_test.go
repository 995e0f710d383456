package engine

import (
	"context"
	"testing"

	"wheelermem/internal/config"
	"wheelermem/pkg/memory/ca"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := config.Default()
	cfg.Root = t.TempDir()
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func TestStoreThenListMemories(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	res, err := e.Store(ctx, "Fix authentication bug in login flow", "")
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if res.State != ca.Converged {
		t.Fatalf("expected convergence, got %v", res.State)
	}
	if res.Chunk != "code" {
		t.Fatalf("expected routing to code, got %s", res.Chunk)
	}

	entries, err := e.ListMemories(ctx, "")
	if err != nil {
		t.Fatalf("ListMemories: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].ID != res.ID {
		t.Fatalf("expected id %s, got %s", res.ID, entries[0].ID)
	}
}

func TestStoreIdempotentSameID(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	first, err := e.Store(ctx, "Buy groceries: milk, eggs, bread", "")
	if err != nil {
		t.Fatalf("Store (first): %v", err)
	}
	second, err := e.Store(ctx, "Buy groceries: milk, eggs, bread", "")
	if err != nil {
		t.Fatalf("Store (second): %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected the same id on repeated store, got %s vs %s", first.ID, second.ID)
	}

	entries, err := e.ListMemories(ctx, "")
	if err != nil {
		t.Fatalf("ListMemories: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected a single on-disk entry after storing identical text twice, got %d", len(entries))
	}
}

func TestStoreThenRecallThenInspectBrick(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	res, err := e.Store(ctx, "The capital of France is Paris.", "")
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	results, err := e.Recall(ctx, "The capital of France is Paris.", RecallOptions{TopK: 1})
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if len(results) != 1 || results[0].ID != res.ID {
		t.Fatalf("expected self-recall to return the stored memory, got %+v", results)
	}

	b, err := e.InspectBrick(ctx, res.ID)
	if err != nil {
		t.Fatalf("InspectBrick: %v", err)
	}
	if b.Verdict != ca.Converged {
		t.Fatalf("expected a converged brick, got %v", b.Verdict)
	}
	if len(b.History) < 2 {
		t.Fatalf("expected a multi-tick history, got %d frames", len(b.History))
	}
}

func TestStoreRejectsEmptyInput(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.Store(context.Background(), "", ""); err == nil {
		t.Fatal("expected an error storing empty text")
	}
}

func TestBatchStorePersistsConvergentEntries(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	texts := []string{
		"Fix authentication bug in login flow",
		"Buy groceries: milk, eggs, bread",
		"The mitochondria is the powerhouse of the cell",
	}
	results, err := e.BatchStore(ctx, texts, "")
	if err != nil {
		t.Fatalf("BatchStore: %v", err)
	}
	if len(results) != len(texts) {
		t.Fatalf("expected %d results, got %d", len(texts), len(results))
	}

	entries, err := e.ListMemories(ctx, "")
	if err != nil {
		t.Fatalf("ListMemories: %v", err)
	}
	converged := 0
	for _, r := range results {
		if r.State == ca.Converged {
			converged++
		}
	}
	if len(entries) != converged {
		t.Fatalf("expected %d persisted entries, got %d", converged, len(entries))
	}
}
