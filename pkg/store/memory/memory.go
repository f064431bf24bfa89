// Package memory implements store.GraphStore with mutex-guarded maps. It
// backs local development without a Neo4j instance and doubles as the store
// for the orchestrator and scorer tests.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"cloutgraph/pkg/common"
	"cloutgraph/pkg/store"
)

var errNotFound = errors.New("person not found")

type edgeKey struct {
	from string
	to   string
}

// Store is an in-memory GraphStore. The Fail* maps inject write failures
// per canonical key so callers can exercise their partial-failure paths.
type Store struct {
	mu      sync.Mutex
	persons map[string]common.Person
	edges   map[edgeKey]common.Edge

	edgeChunkSize int

	FailPerson map[string]error
	FailEdgeTo map[string]error
	FailScore  map[string]error
}

func NewStore() *Store {
	return &Store{
		persons:       make(map[string]common.Person),
		edges:         make(map[edgeKey]common.Edge),
		edgeChunkSize: 100,
		FailPerson:    make(map[string]error),
		FailEdgeTo:    make(map[string]error),
		FailScore:     make(map[string]error),
	}
}

func (s *Store) UpsertPerson(ctx context.Context, p store.UpsertPerson) error {
	if err := ctx.Err(); err != nil {
		return &common.PersistenceError{Op: "upsert person", Key: p.Key, Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err, ok := s.FailPerson[p.Key]; ok {
		return &common.PersistenceError{Op: "upsert person", Key: p.Key, Err: err}
	}

	now := time.Now().UTC()
	existing, ok := s.persons[p.Key]
	if !ok {
		existing = common.Person{
			Key:       p.Key,
			Score:     store.NeutralScore,
			CreatedAt: now,
		}
	}
	existing.DisplayName = p.DisplayName
	existing.Payload = p.Payload
	existing.UpdatedAt = now
	if p.Score != nil {
		existing.Score = *p.Score
	}
	s.persons[p.Key] = existing
	return nil
}

func (s *Store) UpsertEdge(ctx context.Context, from, to string, meta store.EdgeMeta) error {
	if from == "" || to == "" {
		return &common.InvalidEdgeError{From: from, To: to, Why: "empty canonical key"}
	}
	if from == to {
		return &common.InvalidEdgeError{From: from, To: to, Why: "self-loop"}
	}
	if err := ctx.Err(); err != nil {
		return &common.PersistenceError{Op: "upsert edge", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err, ok := s.FailEdgeTo[to]; ok {
		return &common.PersistenceError{Op: "upsert edge", Key: from + "->" + to, Err: err}
	}
	// Edges only exist between known nodes, matching the Neo4j contract.
	for _, key := range []string{from, to} {
		if _, ok := s.persons[key]; !ok {
			return &common.PersistenceError{Op: "upsert edge", Key: from + "->" + to, Err: errNotFound}
		}
	}

	now := time.Now().UTC()
	k := edgeKey{from: from, to: to}
	existing, ok := s.edges[k]
	if !ok {
		existing = common.Edge{
			From:      from,
			To:        to,
			Source:    meta.Source,
			Weight:    meta.Weight,
			CreatedAt: now,
		}
	}
	existing.LastSeen = now
	s.edges[k] = existing
	return nil
}

func (s *Store) UpsertEdges(ctx context.Context, from string, to []string, meta store.EdgeMeta) (map[string]error, error) {
	failed := make(map[string]error)
	targets := store.DedupeStrings(to)

	_ = store.ChunkRange(len(targets), s.edgeChunkSize, func(start, end int) error {
		for _, t := range targets[start:end] {
			if err := s.UpsertEdge(ctx, from, t, meta); err != nil {
				failed[t] = err
			}
		}
		return nil
	})
	return failed, nil
}

func (s *Store) AllPersons(ctx context.Context) ([]common.Person, error) {
	if err := ctx.Err(); err != nil {
		return nil, &common.PersistenceError{Op: "read persons", Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]common.Person, 0, len(s.persons))
	for _, p := range s.persons {
		out = append(out, p)
	}
	return out, nil
}

func (s *Store) AllEdges(ctx context.Context) ([]common.Edge, error) {
	if err := ctx.Err(); err != nil {
		return nil, &common.PersistenceError{Op: "read edges", Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]common.Edge, 0, len(s.edges))
	for _, e := range s.edges {
		out = append(out, e)
	}
	return out, nil
}

func (s *Store) WriteScore(ctx context.Context, key string, score int, rawRank float64) error {
	if err := ctx.Err(); err != nil {
		return &common.PersistenceError{Op: "write score", Key: key, Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err, ok := s.FailScore[key]; ok {
		return &common.PersistenceError{Op: "write score", Key: key, Err: err}
	}

	p, ok := s.persons[key]
	if !ok {
		return &common.PersistenceError{Op: "write score", Key: key, Err: errNotFound}
	}
	p.Score = score
	p.RawRank = rawRank
	s.persons[key] = p
	return nil
}

// Person returns one node by key, for assertions in tests.
func (s *Store) Person(key string) (common.Person, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.persons[key]
	return p, ok
}
