package memory

import (
	"context"
	"testing"

	"cloutgraph/pkg/store"
)

func TestUpsertPerson_SeedsNeutralScoreAndPreservesComputedScore(t *testing.T) {
	st := NewStore()
	ctx := context.Background()

	if err := st.UpsertPerson(ctx, store.UpsertPerson{Key: "jane", DisplayName: "Jane"}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	p, ok := st.Person("jane")
	if !ok {
		t.Fatal("expected node to exist")
	}
	if p.Score != store.NeutralScore {
		t.Fatalf("expected neutral score on create, got %d", p.Score)
	}

	if err := st.WriteScore(ctx, "jane", 73, 0.42); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	// A re-ingestion without an explicit score must not reset the computed one.
	if err := st.UpsertPerson(ctx, store.UpsertPerson{Key: "jane", DisplayName: "Jane D."}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	p, _ = st.Person("jane")
	if p.Score != 73 {
		t.Fatalf("expected computed score preserved, got %d", p.Score)
	}
	if p.DisplayName != "Jane D." {
		t.Fatalf("expected display name overwritten, got %q", p.DisplayName)
	}

	// An explicit score wins.
	explicit := 10
	if err := st.UpsertPerson(ctx, store.UpsertPerson{Key: "jane", DisplayName: "Jane D.", Score: &explicit}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	p, _ = st.Person("jane")
	if p.Score != 10 {
		t.Fatalf("expected explicit score written, got %d", p.Score)
	}
}

func TestUpsertEdge_IdempotentAndRefreshesLastSeen(t *testing.T) {
	st := NewStore()
	ctx := context.Background()

	for _, key := range []string{"a", "b"} {
		if err := st.UpsertPerson(ctx, store.UpsertPerson{Key: key}); err != nil {
			t.Fatalf("seed %q: %v", key, err)
		}
	}

	for i := 0; i < 3; i++ {
		if err := st.UpsertEdge(ctx, "a", "b", store.EdgeMeta{Source: "upload", Weight: 1}); err != nil {
			t.Fatalf("upsert %d: %v", i, err)
		}
	}

	edges, err := st.AllEdges(ctx)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(edges) != 1 {
		t.Fatalf("expected exactly one edge, got %d", len(edges))
	}
	if edges[0].LastSeen.Before(edges[0].CreatedAt) {
		t.Fatal("expected lastSeen at or after createdAt")
	}
}

func TestUpsertEdge_MissingEndpointFails(t *testing.T) {
	st := NewStore()
	ctx := context.Background()

	if err := st.UpsertPerson(ctx, store.UpsertPerson{Key: "a"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := st.UpsertEdge(ctx, "a", "ghost", store.EdgeMeta{Source: "upload", Weight: 1}); err == nil {
		t.Fatal("expected error for a missing target")
	}
	if err := st.UpsertEdge(ctx, "ghost", "a", store.EdgeMeta{Source: "upload", Weight: 1}); err == nil {
		t.Fatal("expected error for a missing anchor")
	}

	edges, err := st.AllEdges(ctx)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(edges) != 0 {
		t.Fatalf("expected no edges, got %d", len(edges))
	}
}

func TestWriteScore_UnknownKeyFails(t *testing.T) {
	st := NewStore()
	if err := st.WriteScore(context.Background(), "missing", 50, 0.1); err == nil {
		t.Fatal("expected error for unknown key")
	}
}
