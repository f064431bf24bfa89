package rank

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"cloutgraph/pkg/common"
	"cloutgraph/pkg/store"
	"cloutgraph/pkg/store/memory"
)

// slowEdgeStore stalls the edge load past the run deadline, forcing the run
// to time out before its first iteration.
type slowEdgeStore struct {
	*memory.Store
	delay time.Duration
}

func (s *slowEdgeStore) AllEdges(ctx context.Context) ([]common.Edge, error) {
	time.Sleep(s.delay)
	return s.Store.AllEdges(context.Background())
}

func seedGraph(t *testing.T, st *memory.Store, adjacency map[string][]string) {
	t.Helper()
	ctx := context.Background()

	keys := map[string]bool{}
	for from, tos := range adjacency {
		keys[from] = true
		for _, to := range tos {
			keys[to] = true
		}
	}
	for key := range keys {
		if err := st.UpsertPerson(ctx, store.UpsertPerson{Key: key, DisplayName: key}); err != nil {
			t.Fatalf("seed person %q: %v", key, err)
		}
	}
	for from, tos := range adjacency {
		failed, err := st.UpsertEdges(ctx, from, tos, store.EdgeMeta{Source: "seed", Weight: 1})
		if err != nil || len(failed) != 0 {
			t.Fatalf("seed edges from %q: %v %v", from, err, failed)
		}
	}
}

func scoreOf(t *testing.T, st *memory.Store, key string) common.Person {
	t.Helper()
	p, ok := st.Person(key)
	if !ok {
		t.Fatalf("person %q not found", key)
	}
	return p
}

func TestRun_HubReceivesTopScore(t *testing.T) {
	st := memory.NewStore()
	seedGraph(t, st, map[string][]string{
		"a": {"d"},
		"b": {"d"},
		"c": {"d"},
	})

	scorer := NewScorer(NewScorerParams{Store: st})
	report, err := scorer.Run(context.Background())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if report.Nodes != 4 || report.Edges != 3 {
		t.Fatalf("expected 4 nodes / 3 edges, got %d / %d", report.Nodes, report.Edges)
	}
	if !report.Converged {
		t.Fatal("expected the run to converge")
	}

	hub := scoreOf(t, st, "d")
	if hub.Score != 100 {
		t.Fatalf("expected hub score 100, got %d", hub.Score)
	}
	for _, key := range []string{"a", "b", "c"} {
		p := scoreOf(t, st, key)
		if p.Score != 0 {
			t.Fatalf("expected source %q score 0, got %d", key, p.Score)
		}
		if p.RawRank >= hub.RawRank {
			t.Fatalf("expected source %q raw rank below the hub's, got %f >= %f", key, p.RawRank, hub.RawRank)
		}
	}
}

func TestRun_SymmetricCycleYieldsNeutralScores(t *testing.T) {
	st := memory.NewStore()
	seedGraph(t, st, map[string][]string{
		"a": {"b"},
		"b": {"c"},
		"c": {"a"},
	})

	scorer := NewScorer(NewScorerParams{Store: st})
	report, err := scorer.Run(context.Background())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !report.Converged {
		t.Fatal("expected the run to converge")
	}

	// Every node has identical rank, so there is no ordering to express.
	for _, key := range []string{"a", "b", "c"} {
		if p := scoreOf(t, st, key); p.Score != store.NeutralScore {
			t.Fatalf("expected %q at the neutral score, got %d", key, p.Score)
		}
	}
}

func TestRun_IsIdempotent(t *testing.T) {
	st := memory.NewStore()
	seedGraph(t, st, map[string][]string{
		"a": {"b", "c"},
		"b": {"c"},
	})

	scorer := NewScorer(NewScorerParams{Store: st})
	if _, err := scorer.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	first := map[string]common.Person{}
	for _, key := range []string{"a", "b", "c"} {
		first[key] = scoreOf(t, st, key)
	}

	if _, err := scorer.Run(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	for _, key := range []string{"a", "b", "c"} {
		p := scoreOf(t, st, key)
		if p.Score != first[key].Score {
			t.Fatalf("score for %q changed between runs: %d -> %d", key, first[key].Score, p.Score)
		}
		if math.Abs(p.RawRank-first[key].RawRank) > 1e-9 {
			t.Fatalf("raw rank for %q changed between runs: %f -> %f", key, first[key].RawRank, p.RawRank)
		}
	}
}

func TestRun_EmptyGraphIsANoOp(t *testing.T) {
	st := memory.NewStore()
	scorer := NewScorer(NewScorerParams{Store: st})

	report, err := scorer.Run(context.Background())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if report.Nodes != 0 || report.Iterations != 0 {
		t.Fatalf("expected an empty no-op report, got %+v", report)
	}
	if scorer.State() != StateIdle {
		t.Fatalf("expected scorer back at idle, got %s", scorer.State())
	}
}

func TestRun_CollectsWriteFailuresAndContinues(t *testing.T) {
	st := memory.NewStore()
	seedGraph(t, st, map[string][]string{
		"a": {"d"},
		"b": {"d"},
	})
	st.FailScore["d"] = errors.New("disk full")

	scorer := NewScorer(NewScorerParams{Store: st})
	report, err := scorer.Run(context.Background())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if len(report.WriteFailures) != 1 {
		t.Fatalf("expected 1 write failure, got %v", report.WriteFailures)
	}
	if report.WriteFailures[0].Key != "d" {
		t.Fatalf("expected the failure itemized for d, got %q", report.WriteFailures[0].Key)
	}
	if report.FinalState != StateIdle {
		t.Fatalf("expected the run to finish despite the write failure, got %s", report.FinalState)
	}

	// The surviving writes landed.
	if p := scoreOf(t, st, "a"); p.Score != 0 {
		t.Fatalf("expected a at score 0, got %d", p.Score)
	}
}

func TestRun_LoadFailureEndsInFailedState(t *testing.T) {
	st := memory.NewStore()
	seedGraph(t, st, map[string][]string{"a": {"b"}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	scorer := NewScorer(NewScorerParams{Store: st})
	if _, err := scorer.Run(ctx); err == nil {
		t.Fatal("expected an error from the canceled run")
	}
	if scorer.State() != StateFailed {
		t.Fatalf("expected failed state, got %s", scorer.State())
	}

	// Nothing was written.
	if p := scoreOf(t, st, "a"); p.RawRank != 0 {
		t.Fatalf("expected no rank written, got %f", p.RawRank)
	}

	// A failed run does not wedge the scorer.
	report, err := scorer.Run(context.Background())
	if err != nil {
		t.Fatalf("expected a clean run after the failure, got %v", err)
	}
	if report.Nodes != 2 {
		t.Fatalf("expected 2 nodes, got %d", report.Nodes)
	}
}

func TestRun_TimedOutRunStillPersists(t *testing.T) {
	st := memory.NewStore()
	seedGraph(t, st, map[string][]string{
		"a": {"d"},
		"b": {"d"},
	})

	slow := &slowEdgeStore{Store: st, delay: 50 * time.Millisecond}
	scorer := NewScorer(NewScorerParams{Store: slow, Timeout: 10 * time.Millisecond})

	report, err := scorer.Run(context.Background())
	if !errors.Is(err, common.ErrConvergenceTimeout) {
		t.Fatalf("expected the convergence timeout, got %v", err)
	}
	if report == nil {
		t.Fatal("expected a report alongside the timeout")
	}
	if report.Converged {
		t.Fatal("expected the timed-out run not to be marked converged")
	}
	if len(report.WriteFailures) != 0 {
		t.Fatalf("expected every write to land, got failures %v", report.WriteFailures)
	}

	// The ranks computed before the deadline still landed.
	for _, key := range []string{"a", "b", "d"} {
		if p := scoreOf(t, st, key); p.RawRank == 0 {
			t.Fatalf("expected a raw rank written for %q despite the timeout", key)
		}
	}
	if report.FinalState != StateIdle {
		t.Fatalf("expected the run to finish, got %s", report.FinalState)
	}
}

func TestRun_StopsAtIterationCap(t *testing.T) {
	st := memory.NewStore()
	seedGraph(t, st, map[string][]string{
		"a": {"b"},
		"b": {"c"},
		"c": {"a", "b"},
	})

	scorer := NewScorer(NewScorerParams{Store: st, Tolerance: 1e-300, MaxIterations: 5})
	report, err := scorer.Run(context.Background())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if report.Converged {
		t.Fatal("expected the run not to converge under an unreachable tolerance")
	}
	if report.Iterations != 5 {
		t.Fatalf("expected exactly 5 iterations, got %d", report.Iterations)
	}
	// Scores from the capped run are still persisted.
	if p := scoreOf(t, st, "b"); p.RawRank == 0 {
		t.Fatal("expected a raw rank to be written despite the capped run")
	}
}
