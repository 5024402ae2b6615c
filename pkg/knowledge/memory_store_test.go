package knowledge

import (
	"context"
	"errors"
	"testing"

	"github.com/concordia-ai/concord-oss/pkg/domain"
)

func seedStore(t *testing.T) *MemoryStore {
	t.Helper()
	store := NewMemoryStore(TermOverlapRanker{})
	docs := []domain.Document{
		{ID: "d1", Content: "refund policy allows returns within thirty days"},
		{ID: "d2", Content: "shipping takes five business days"},
		{ID: "d3", Content: "the refund policy excludes clearance items"},
		{ID: "d4", Content: "warranty covers manufacturing defects"},
		{ID: "d5", Content: "refund requests require the original receipt"},
	}
	if _, err := store.Writeback(context.Background(), docs, "support"); err != nil {
		t.Fatalf("seed writeback: %v", err)
	}
	return store
}

func TestGroundRanksByTermOverlap(t *testing.T) {
	store := seedStore(t)

	result, err := store.Ground(context.Background(), "refund policy", "support", 3, 0)
	if err != nil {
		t.Fatalf("ground: %v", err)
	}
	if len(result.Evidence) != 3 {
		t.Fatalf("expected 3 evidence items, got %d", len(result.Evidence))
	}
	for i := 1; i < len(result.Evidence); i++ {
		if result.Evidence[i].Score > result.Evidence[i-1].Score {
			t.Fatalf("evidence not sorted descending at index %d", i)
		}
	}
	if result.Evidence[0].Score != 1 {
		t.Fatalf("expected full-overlap top score, got %f", result.Evidence[0].Score)
	}
	if result.Coverage != result.Evidence[0].Score {
		t.Fatalf("coverage %f does not match top score %f", result.Coverage, result.Evidence[0].Score)
	}
	if result.Answer != result.Evidence[0].Document.Content {
		t.Fatalf("answer should be the top document's content")
	}
}

func TestGroundTieBreakIsDeterministic(t *testing.T) {
	store := NewMemoryStore(TermOverlapRanker{})
	docs := []domain.Document{
		{ID: "b", Content: "alpha beta"},
		{ID: "a", Content: "alpha gamma"},
	}
	if _, err := store.Writeback(context.Background(), docs, "ties"); err != nil {
		t.Fatalf("writeback: %v", err)
	}

	for range 20 {
		result, err := store.Ground(context.Background(), "alpha", "ties", 2, 0)
		if err != nil {
			t.Fatalf("ground: %v", err)
		}
		// Equal scores resolve by insertion order, so "b" stays first.
		if result.Evidence[0].Document.ID != "b" {
			t.Fatalf("expected insertion-order tie break, got %s first", result.Evidence[0].Document.ID)
		}
	}
}

func TestGroundFiltersByMinScore(t *testing.T) {
	store := seedStore(t)

	result, err := store.Ground(context.Background(), "refund policy", "support", 5, 0.9)
	if err != nil {
		t.Fatalf("ground: %v", err)
	}
	for _, ev := range result.Evidence {
		if ev.Score < 0.9 {
			t.Fatalf("evidence %s below min score: %f", ev.Document.ID, ev.Score)
		}
	}
}

func TestGroundUnknownSpaceIsEmpty(t *testing.T) {
	store := seedStore(t)

	result, err := store.Ground(context.Background(), "refund", "nowhere", 3, 0)
	if err != nil {
		t.Fatalf("ground: %v", err)
	}
	if len(result.Evidence) != 0 || result.Coverage != 0 || result.Answer != "" {
		t.Fatalf("expected empty grounding result, got %+v", result)
	}
}

func TestWritebackAssignsIDs(t *testing.T) {
	store := NewMemoryStore(TermOverlapRanker{})

	ids, err := store.Writeback(context.Background(), []domain.Document{{Content: "anonymous"}}, "s")
	if err != nil {
		t.Fatalf("writeback: %v", err)
	}
	if len(ids) != 1 || ids[0] == "" {
		t.Fatalf("expected one generated id, got %v", ids)
	}
}

func TestWritebackRejectsEmptyContent(t *testing.T) {
	store := NewMemoryStore(TermOverlapRanker{})

	ids, err := store.Writeback(context.Background(), []domain.Document{
		{ID: "ok", Content: "fine"},
		{ID: "bad", Content: ""},
	}, "s")
	if err == nil {
		t.Fatalf("expected error for empty content")
	}
	if len(ids) != 1 || ids[0] != "ok" {
		t.Fatalf("expected the valid doc to have been written, got %v", ids)
	}
}

func TestWritebackRejectsDuplicateID(t *testing.T) {
	store := seedStore(t)

	_, err := store.Writeback(context.Background(), []domain.Document{{ID: "d1", Content: "dup"}}, "support")
	if err == nil {
		t.Fatalf("expected duplicate id error")
	}
}

func TestSnapshotReturnsClones(t *testing.T) {
	store := seedStore(t)

	docs, err := store.Snapshot(context.Background(), "support")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(docs) != 5 {
		t.Fatalf("expected 5 docs, got %d", len(docs))
	}
	docs[0].Content = "mutated"

	again, err := store.Snapshot(context.Background(), "support")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if again[0].Content == "mutated" {
		t.Fatalf("snapshot exposed internal state")
	}
}

func TestGroundContextCancelled(t *testing.T) {
	store := seedStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := store.Ground(ctx, "refund", "support", 3, 0); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
