package neo4j

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"cloutgraph/pkg/common"
	"cloutgraph/pkg/store"
)

// UpsertPerson merges a person node on its canonical key. New nodes are
// seeded with the neutral score; existing nodes keep their computed score
// unless the caller explicitly supplied one. Display name and payload are
// always overwritten (last write wins at whole-payload granularity).
func (s *Store) UpsertPerson(ctx context.Context, p store.UpsertPerson) error {
	if p.Key == "" {
		return &common.PersistenceError{Op: "upsert person", Err: errEmptyKey}
	}

	hasScore := p.Score != nil
	score := 0
	if hasScore {
		score = *p.Score
	}

	session := s.writeSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MERGE (p:Person {key: $key})
ON CREATE SET p.createdAt = $now,
              p.score = $neutral,
              p.rawRank = 0.0
SET p.displayName = $name,
    p.payload = $payload,
    p.updatedAt = $now
FOREACH (_ IN CASE WHEN $hasScore THEN [1] ELSE [] END | SET p.score = $score)
`, map[string]any{
			"key":      p.Key,
			"name":     p.DisplayName,
			"payload":  string(p.Payload),
			"now":      nowString(),
			"neutral":  store.NeutralScore,
			"hasScore": hasScore,
			"score":    score,
		})
		if err != nil {
			return nil, err
		}
		return res.Consume(ctx)
	})
	if err != nil {
		return &common.PersistenceError{Op: "upsert person", Key: p.Key, Err: err}
	}
	return nil
}

// AllPersons reads every person node in the graph.
func (s *Store) AllPersons(ctx context.Context) ([]common.Person, error) {
	session := s.readSession(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (p:Person)
RETURN p.key AS key,
       p.displayName AS displayName,
       p.payload AS payload,
       p.score AS score,
       p.rawRank AS rawRank,
       p.createdAt AS createdAt,
       p.updatedAt AS updatedAt
`, nil)
		if err != nil {
			return nil, err
		}

		persons := make([]common.Person, 0)
		for res.Next(ctx) {
			rec := res.Record()
			key, _ := rec.Get("key")
			name, _ := rec.Get("displayName")
			payload, _ := rec.Get("payload")
			score, _ := rec.Get("score")
			rawRank, _ := rec.Get("rawRank")
			createdAt, _ := rec.Get("createdAt")
			updatedAt, _ := rec.Get("updatedAt")

			persons = append(persons, common.Person{
				Key:         asString(key),
				DisplayName: asString(name),
				Payload:     []byte(asString(payload)),
				Score:       asInt(score),
				RawRank:     asFloat(rawRank),
				CreatedAt:   parseTime(createdAt),
				UpdatedAt:   parseTime(updatedAt),
			})
		}
		return persons, res.Err()
	})
	if err != nil {
		return nil, &common.PersistenceError{Op: "read persons", Err: err}
	}
	return result.([]common.Person), nil
}
