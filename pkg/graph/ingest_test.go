package graph

import (
	"context"
	"errors"
	"strings"
	"testing"

	"cloutgraph/pkg/common"
	"cloutgraph/pkg/enrich"
	"cloutgraph/pkg/store/memory"
)

func profileFor(slug string) *common.Profile {
	return &common.Profile{
		ProfileURL: "https://www.linkedin.com/in/" + slug,
		FullName:   strings.ToUpper(slug[:1]) + slug[1:],
	}
}

func fetcherFor(profiles map[string]*common.Profile) enrich.ProfileFetcher {
	return enrich.FetcherFunc(func(_ context.Context, rawID string) (*common.Profile, error) {
		p, ok := profiles[rawID]
		if !ok {
			return nil, errors.New("profile not found upstream")
		}
		return p, nil
	})
}

func TestIngestBatch_UploaderAndTwoConnections(t *testing.T) {
	st := memory.NewStore()
	client := NewClient(NewClientParams{ParallelConnections: 2})

	report, err := client.IngestBatch(context.Background(), common.IngestBatch{
		UploaderRawID:   "alice",
		UploaderProfile: profileFor("alice"),
		Connections: []common.Connection{
			{RawID: "bob", Profile: profileFor("bob")},
			{RawID: "carol", Profile: profileFor("carol")},
		},
	}, nil, st)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if report.UploaderKey != "alice" {
		t.Fatalf("expected uploader key alice, got %q", report.UploaderKey)
	}
	if report.SucceededCount != 2 || report.FailedCount != 0 {
		t.Fatalf("expected 2 succeeded / 0 failed, got %d / %d", report.SucceededCount, report.FailedCount)
	}

	persons, err := st.AllPersons(context.Background())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(persons) != 3 {
		t.Fatalf("expected 3 nodes, got %d", len(persons))
	}

	edges, err := st.AllEdges(context.Background())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(edges) != 2 {
		t.Fatalf("expected 2 edges, got %d", len(edges))
	}
	seen := map[string]bool{}
	for _, e := range edges {
		if e.From != "alice" {
			t.Fatalf("expected edges from alice, got from %q", e.From)
		}
		seen[e.To] = true
	}
	if !seen["bob"] || !seen["carol"] {
		t.Fatalf("expected edges to bob and carol, got %v", seen)
	}
}

func TestIngestBatch_OneFetchFailureDoesNotAbortBatch(t *testing.T) {
	st := memory.NewStore()
	client := NewClient(NewClientParams{ParallelConnections: 4})

	fetcher := fetcherFor(map[string]*common.Profile{
		"bob":   profileFor("bob"),
		"carol": profileFor("carol"),
	})

	report, err := client.IngestBatch(context.Background(), common.IngestBatch{
		UploaderRawID:   "alice",
		UploaderProfile: profileFor("alice"),
		Connections: []common.Connection{
			{RawID: "bob"},
			{RawID: "missing"},
			{RawID: "carol"},
		},
	}, fetcher, st)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if report.SucceededCount != 2 {
		t.Fatalf("expected 2 succeeded, got %d", report.SucceededCount)
	}
	if report.FailedCount != 1 {
		t.Fatalf("expected 1 failed, got %d", report.FailedCount)
	}
	if report.Failed[0].RawID != "missing" {
		t.Fatalf("expected failure for raw id missing, got %q", report.Failed[0].RawID)
	}
	if !strings.Contains(report.Failed[0].Error, "connection unresolved") {
		t.Fatalf("expected descriptive unresolved error, got %q", report.Failed[0].Error)
	}

	edges, _ := st.AllEdges(context.Background())
	if len(edges) != 2 {
		t.Fatalf("expected 2 edges despite the failed fetch, got %d", len(edges))
	}
}

func TestIngestBatch_CancellationReportsSkippedConnections(t *testing.T) {
	st := memory.NewStore()
	client := NewClient(NewClientParams{ParallelConnections: 1})

	// The first fetch pulls the plug on the whole batch.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fetcher := enrich.FetcherFunc(func(_ context.Context, rawID string) (*common.Profile, error) {
		cancel()
		return nil, errors.New("upstream gone")
	})

	report, err := client.IngestBatch(ctx, common.IngestBatch{
		UploaderRawID:   "alice",
		UploaderProfile: profileFor("alice"),
		Connections: []common.Connection{
			{RawID: "bob"},
			{RawID: "carol"},
			{RawID: "dave"},
		},
	}, fetcher, st)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if report.SucceededCount != 0 {
		t.Fatalf("expected no successes after cancellation, got %v", report.Succeeded)
	}
	if report.FailedCount != 3 {
		t.Fatalf("expected all 3 connections reported failed, got %d", report.FailedCount)
	}
	seen := map[string]bool{}
	for _, f := range report.Failed {
		if f.RawID == "" {
			t.Fatalf("expected every failure to carry its raw id, got %v", report.Failed)
		}
		seen[f.RawID] = true
	}
	for _, rawID := range []string{"bob", "carol", "dave"} {
		if !seen[rawID] {
			t.Fatalf("expected a failure for %q, got %v", rawID, report.Failed)
		}
	}
}

func TestIngestBatch_UploaderFailureAbortsBatch(t *testing.T) {
	st := memory.NewStore()
	st.FailPerson["alice"] = errors.New("store unreachable")
	client := NewClient(NewClientParams{MaxRetries: 2})

	_, err := client.IngestBatch(context.Background(), common.IngestBatch{
		UploaderRawID:   "alice",
		UploaderProfile: profileFor("alice"),
		Connections: []common.Connection{
			{RawID: "bob", Profile: profileFor("bob")},
		},
	}, nil, st)
	if err == nil {
		t.Fatal("expected uploader failure to abort the batch")
	}

	persons, _ := st.AllPersons(context.Background())
	if len(persons) != 0 {
		t.Fatalf("expected no nodes after aborted batch, got %d", len(persons))
	}
}

func TestIngestBatch_RepeatedIngestionDoesNotDuplicate(t *testing.T) {
	st := memory.NewStore()
	client := NewClient(NewClientParams{})

	batch := common.IngestBatch{
		UploaderRawID:   "alice",
		UploaderProfile: profileFor("alice"),
		Connections: []common.Connection{
			{RawID: "bob", Profile: profileFor("bob")},
		},
	}

	for i := 0; i < 3; i++ {
		if _, err := client.IngestBatch(context.Background(), batch, nil, st); err != nil {
			t.Fatalf("run %d: expected nil error, got %v", i, err)
		}
	}

	persons, _ := st.AllPersons(context.Background())
	if len(persons) != 2 {
		t.Fatalf("expected 2 nodes after repeated ingestion, got %d", len(persons))
	}
	edges, _ := st.AllEdges(context.Background())
	if len(edges) != 1 {
		t.Fatalf("expected 1 edge after repeated ingestion, got %d", len(edges))
	}
}

func TestIngestBatch_ConnectionResolvingToUploaderIsRejected(t *testing.T) {
	st := memory.NewStore()
	client := NewClient(NewClientParams{})

	report, err := client.IngestBatch(context.Background(), common.IngestBatch{
		UploaderRawID:   "alice",
		UploaderProfile: profileFor("alice"),
		Connections: []common.Connection{
			// Same person under a case variant of the uploader's URL.
			{RawID: "alice-again", Profile: &common.Profile{
				ProfileURL: "https://www.linkedin.com/in/Alice/",
				FullName:   "Alice",
			}},
		},
	}, nil, st)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if report.FailedCount != 1 {
		t.Fatalf("expected the self-loop to be reported as failed, got %d failures", report.FailedCount)
	}
	if !strings.Contains(report.Failed[0].Error, "self-loop") {
		t.Fatalf("expected a self-loop error, got %q", report.Failed[0].Error)
	}

	edges, _ := st.AllEdges(context.Background())
	if len(edges) != 0 {
		t.Fatalf("expected no edges, got %d", len(edges))
	}
}

func TestIngestBatch_UnstableIdentityStillProcessed(t *testing.T) {
	st := memory.NewStore()
	client := NewClient(NewClientParams{})

	report, err := client.IngestBatch(context.Background(), common.IngestBatch{
		UploaderRawID:   "alice",
		UploaderProfile: profileFor("alice"),
		Connections: []common.Connection{
			{RawID: "ghost", Profile: &common.Profile{FullName: "Ghost"}},
		},
	}, nil, st)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if report.SucceededCount != 1 {
		t.Fatalf("expected the unstable connection to succeed, got %d", report.SucceededCount)
	}
	if len(report.Unstable) != 1 {
		t.Fatalf("expected 1 unstable key, got %v", report.Unstable)
	}
	if report.Unstable[0] != report.Succeeded[0] {
		t.Fatalf("expected unstable key %q to match succeeded key %q", report.Unstable[0], report.Succeeded[0])
	}
}
