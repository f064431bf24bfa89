package neo4j

import (
	"context"
	"errors"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"cloutgraph/pkg/common"
	"cloutgraph/pkg/logger"
	"cloutgraph/pkg/store"
)

var errEmptyKey = errors.New("empty canonical key")

// UpsertEdge ensures one directed CONNECTED_TO edge for the ordered pair.
// Repeats refresh lastSeen instead of creating a second edge.
func (s *Store) UpsertEdge(ctx context.Context, from, to string, meta store.EdgeMeta) error {
	if err := validateEdge(from, to); err != nil {
		return err
	}

	session := s.writeSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (a:Person {key: $from})
MATCH (b:Person {key: $to})
MERGE (a)-[e:CONNECTED_TO]->(b)
ON CREATE SET e.createdAt = $now,
              e.source = $source,
              e.weight = $weight
SET e.lastSeen = $now
`, map[string]any{
			"from":   from,
			"to":     to,
			"now":    nowString(),
			"source": meta.Source,
			"weight": meta.Weight,
		})
		if err != nil {
			return nil, err
		}
		summary, err := res.Consume(ctx)
		if err != nil {
			return nil, err
		}
		// lastSeen is set on every matched pair, so zero properties means an
		// endpoint was missing and the MERGE never ran.
		if summary.Counters().PropertiesSet() == 0 {
			return nil, errors.New("person not found")
		}
		return summary, nil
	})
	if err != nil {
		return &common.PersistenceError{Op: "upsert edge", Key: from + "->" + to, Err: err}
	}
	return nil
}

// UpsertEdges writes edges from one node to many targets, one transaction per
// chunk. Chunks that fail are reported per target; committed chunks stay
// committed.
func (s *Store) UpsertEdges(ctx context.Context, from string, to []string, meta store.EdgeMeta) (map[string]error, error) {
	failed := make(map[string]error)

	targets := make([]string, 0, len(to))
	for _, t := range store.DedupeStrings(to) {
		if err := validateEdge(from, t); err != nil {
			failed[t] = err
			continue
		}
		targets = append(targets, t)
	}
	if len(targets) == 0 {
		return failed, nil
	}

	session := s.writeSession(ctx)
	defer session.Close(ctx)

	_ = store.ChunkRange(len(targets), s.edgeChunkSize, func(start, end int) error {
		chunk := targets[start:end]
		result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			res, err := tx.Run(ctx, `
MATCH (a:Person {key: $from})
UNWIND $tos AS target
MATCH (b:Person {key: target})
MERGE (a)-[e:CONNECTED_TO]->(b)
ON CREATE SET e.createdAt = $now,
              e.source = $source,
              e.weight = $weight
SET e.lastSeen = $now
RETURN target
`, map[string]any{
				"from":   from,
				"tos":    chunk,
				"now":    nowString(),
				"source": meta.Source,
				"weight": meta.Weight,
			})
			if err != nil {
				return nil, err
			}
			matched := make(map[string]bool, len(chunk))
			for res.Next(ctx) {
				if t, ok := res.Record().Get("target"); ok {
					matched[asString(t)] = true
				}
			}
			return matched, res.Err()
		})
		if err != nil {
			logger.Warn("[Store] Edge chunk failed", "from", from, "size", len(chunk), "err", err)
			for _, t := range chunk {
				failed[t] = &common.PersistenceError{Op: "upsert edge", Key: from + "->" + t, Err: err}
			}
			return nil
		}
		// Targets the MATCH dropped were never written. A missing anchor node
		// drops the whole chunk.
		matched := result.(map[string]bool)
		for _, t := range chunk {
			if !matched[t] {
				failed[t] = &common.PersistenceError{Op: "upsert edge", Key: from + "->" + t, Err: errors.New("person not found")}
			}
		}
		// Chunk failures are reported per target, never aborting later chunks.
		return nil
	})

	return failed, nil
}

// AllEdges reads every directed (from, to) pair in the graph.
func (s *Store) AllEdges(ctx context.Context) ([]common.Edge, error) {
	session := s.readSession(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (a:Person)-[e:CONNECTED_TO]->(b:Person)
RETURN a.key AS from,
       b.key AS to,
       e.source AS source,
       e.weight AS weight,
       e.createdAt AS createdAt,
       e.lastSeen AS lastSeen
`, nil)
		if err != nil {
			return nil, err
		}

		edges := make([]common.Edge, 0)
		for res.Next(ctx) {
			rec := res.Record()
			from, _ := rec.Get("from")
			to, _ := rec.Get("to")
			source, _ := rec.Get("source")
			weight, _ := rec.Get("weight")
			createdAt, _ := rec.Get("createdAt")
			lastSeen, _ := rec.Get("lastSeen")

			edges = append(edges, common.Edge{
				From:      asString(from),
				To:        asString(to),
				Source:    asString(source),
				Weight:    asFloat(weight),
				CreatedAt: parseTime(createdAt),
				LastSeen:  parseTime(lastSeen),
			})
		}
		return edges, res.Err()
	})
	if err != nil {
		return nil, &common.PersistenceError{Op: "read edges", Err: err}
	}
	return result.([]common.Edge), nil
}

func validateEdge(from, to string) error {
	if from == "" || to == "" {
		return &common.InvalidEdgeError{From: from, To: to, Why: "empty canonical key"}
	}
	if from == to {
		return &common.InvalidEdgeError{From: from, To: to, Why: "self-loop"}
	}
	return nil
}
