// Package rank computes the clout score for every person in the graph: a
// damped rank iteration over the directed connection graph, rescaled to a
// 0-100 score and written back to the store.
package rank

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"cloutgraph/pkg/common"
	"cloutgraph/pkg/logger"
	"cloutgraph/pkg/store"
)

// State is the scorer's current phase. A run walks Idle -> Loading ->
// Iterating -> Normalizing -> Persisting -> Idle; Failed is reachable from
// every phase and is terminal for that run.
type State string

const (
	StateIdle        State = "idle"
	StateLoading     State = "loading"
	StateIterating   State = "iterating"
	StateNormalizing State = "normalizing"
	StatePersisting  State = "persisting"
	StateFailed      State = "failed"
)

const (
	defaultDampingFactor = 0.85
	defaultTolerance     = 1e-4
	defaultMaxIterations = 20
)

// Scorer runs whole-graph scoring against a GraphStore. Only one run may be
// active at a time.
//
// A Scorer should be created using NewScorer.
type Scorer struct {
	storeClient   store.GraphStore
	dampingFactor float64
	tolerance     float64
	maxIterations int
	timeout       time.Duration

	mu    sync.Mutex
	state State
}

// NewScorerParams defines the configuration for creating a Scorer.
//
// Timeout bounds one run end to end; zero means only the caller's context
// applies. The remaining fields fall back to the standard damping factor
// 0.85, tolerance 1e-4 and 20 iterations when unset.
type NewScorerParams struct {
	Store         store.GraphStore
	DampingFactor float64
	Tolerance     float64
	MaxIterations int
	Timeout       time.Duration
}

// NewScorer creates a Scorer configured with the provided parameters.
func NewScorer(params NewScorerParams) *Scorer {
	damping := params.DampingFactor
	if damping <= 0 || damping >= 1 {
		damping = defaultDampingFactor
	}
	tolerance := params.Tolerance
	if tolerance <= 0 {
		tolerance = defaultTolerance
	}
	maxIterations := params.MaxIterations
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}

	return &Scorer{
		storeClient:   params.Store,
		dampingFactor: damping,
		tolerance:     tolerance,
		maxIterations: maxIterations,
		timeout:       params.Timeout,
		state:         StateIdle,
	}
}

// WriteFailure itemizes one node whose score could not be written back.
type WriteFailure struct {
	Key   string `json:"key"`
	Error string `json:"error"`
}

// Report is the outcome of one scoring run.
type Report struct {
	Nodes         int            `json:"nodes"`
	Edges         int            `json:"edges"`
	Iterations    int            `json:"iterations"`
	Converged     bool           `json:"converged"`
	WriteFailures []WriteFailure `json:"write_failures,omitempty"`
	Duration      time.Duration  `json:"duration"`
	FinalState    State          `json:"final_state"`
}

// State returns the scorer's current phase.
func (s *Scorer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scorer) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// snapshot is a frozen view of the graph for one run. Edges written after
// the snapshot is taken are picked up by the next run.
type snapshot struct {
	keys     []string
	incoming [][]int
	outDeg   []int
	edges    int
}

// Run executes one full scoring pass. It is best effort at node granularity:
// per-node write failures are collected on the report and the run continues.
// When the deadline fires mid-iteration the ranks computed so far are still
// normalized and persisted, and Run returns the report together with
// common.ErrConvergenceTimeout.
func (s *Scorer) Run(ctx context.Context) (*Report, error) {
	// Failed is terminal for a run, not for the scorer; the next run starts
	// fresh from its own snapshot.
	s.mu.Lock()
	if s.state != StateIdle && s.state != StateFailed {
		state := s.state
		s.mu.Unlock()
		return nil, fmt.Errorf("scorer is busy (state %s)", state)
	}
	s.state = StateLoading
	s.mu.Unlock()

	// The run deadline bounds the computation, not the write-back: a timed-out
	// run still persists what it computed, so the persist loop keeps the
	// caller's context from before the timeout wrap.
	persistCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	logger.Info("[Rank] Run started")

	snap, err := s.load(ctx)
	if err != nil {
		s.setState(StateFailed)
		return nil, fmt.Errorf("failed to load graph snapshot: %w", err)
	}

	report := &Report{
		Nodes: len(snap.keys),
		Edges: snap.edges,
	}
	if report.Nodes == 0 {
		report.Converged = true
		report.FinalState = StateIdle
		s.setState(StateIdle)
		logger.Info("[Rank] Run complete", "nodes", 0)
		return report, nil
	}

	s.setState(StateIterating)
	ranks, iterations, converged, timedOut := s.iterate(ctx, snap)
	report.Iterations = iterations
	report.Converged = converged

	s.setState(StateNormalizing)
	scores := normalize(ranks)

	s.setState(StatePersisting)
	for i, key := range snap.keys {
		if err := s.storeClient.WriteScore(persistCtx, key, scores[i], ranks[i]); err != nil {
			report.WriteFailures = append(report.WriteFailures, WriteFailure{
				Key:   key,
				Error: err.Error(),
			})
		}
	}

	report.Duration = time.Since(start)
	report.FinalState = StateIdle
	s.setState(StateIdle)

	logger.Info("[Rank] Run complete",
		"nodes", report.Nodes,
		"edges", report.Edges,
		"iterations", report.Iterations,
		"converged", report.Converged,
		"write_failures", len(report.WriteFailures),
		"duration", report.Duration,
	)

	if timedOut {
		return report, common.ErrConvergenceTimeout
	}
	return report, nil
}

func (s *Scorer) load(ctx context.Context) (*snapshot, error) {
	persons, err := s.storeClient.AllPersons(ctx)
	if err != nil {
		return nil, err
	}
	edges, err := s.storeClient.AllEdges(ctx)
	if err != nil {
		return nil, err
	}

	index := make(map[string]int, len(persons))
	keys := make([]string, len(persons))
	for i, p := range persons {
		index[p.Key] = i
		keys[i] = p.Key
	}

	snap := &snapshot{
		keys:     keys,
		incoming: make([][]int, len(persons)),
		outDeg:   make([]int, len(persons)),
	}
	for _, e := range edges {
		from, ok := index[e.From]
		if !ok {
			continue
		}
		to, ok := index[e.To]
		if !ok || from == to {
			continue
		}
		snap.incoming[to] = append(snap.incoming[to], from)
		snap.outDeg[from]++
		snap.edges++
	}
	return snap, nil
}

// iterate runs the damped rank recurrence until the sum of absolute rank
// deltas drops below the tolerance, the iteration cap is hit, or the
// deadline fires. Each pass reads only the frozen previous-iteration slice.
// Dangling nodes simply leak their mass; ranks are only compared within one
// run, so the lost mass does not distort the ordering.
func (s *Scorer) iterate(ctx context.Context, snap *snapshot) (ranks []float64, iterations int, converged, timedOut bool) {
	n := len(snap.keys)
	base := (1 - s.dampingFactor) / float64(n)

	ranks = make([]float64, n)
	for i := range ranks {
		ranks[i] = 1 / float64(n)
	}
	next := make([]float64, n)

	for iterations < s.maxIterations {
		select {
		case <-ctx.Done():
			logger.Warn("[Rank] Deadline hit before convergence", "iterations", iterations)
			return ranks, iterations, false, true
		default:
		}

		for i := range next {
			sum := 0.0
			for _, u := range snap.incoming[i] {
				sum += ranks[u] / float64(snap.outDeg[u])
			}
			next[i] = base + s.dampingFactor*sum
		}

		delta := 0.0
		for i := range ranks {
			delta += math.Abs(next[i] - ranks[i])
		}
		ranks, next = next, ranks
		iterations++

		if delta < s.tolerance {
			return ranks, iterations, true, false
		}
	}
	return ranks, iterations, false, false
}

// normalize rescales raw ranks to rounded 0-100 scores. When every rank is
// identical there is no ordering to express and everyone gets the neutral
// score.
func normalize(ranks []float64) []int {
	scores := make([]int, len(ranks))
	if len(ranks) == 0 {
		return scores
	}

	min, max := ranks[0], ranks[0]
	for _, r := range ranks[1:] {
		if r < min {
			min = r
		}
		if r > max {
			max = r
		}
	}
	if max == min {
		for i := range scores {
			scores[i] = store.NeutralScore
		}
		return scores
	}

	for i, r := range ranks {
		scores[i] = int(math.Round(100 * (r - min) / (max - min)))
	}
	return scores
}
