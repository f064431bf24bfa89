package neo4j

import (
	"context"
	"errors"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"cloutgraph/pkg/common"
)

// WriteScore persists one node's normalized score and raw rank. The scorer
// is the only writer of these fields during a run.
func (s *Store) WriteScore(ctx context.Context, key string, score int, rawRank float64) error {
	if key == "" {
		return &common.PersistenceError{Op: "write score", Err: errEmptyKey}
	}

	session := s.writeSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (p:Person {key: $key})
SET p.score = $score,
    p.rawRank = $rawRank,
    p.scoredAt = $now
`, map[string]any{
			"key":     key,
			"score":   score,
			"rawRank": rawRank,
			"now":     nowString(),
		})
		if err != nil {
			return nil, err
		}
		summary, err := res.Consume(ctx)
		if err != nil {
			return nil, err
		}
		if summary.Counters().PropertiesSet() == 0 {
			return nil, errors.New("person not found")
		}
		return summary, nil
	})
	if err != nil {
		return &common.PersistenceError{Op: "write score", Key: key, Err: err}
	}
	return nil
}
