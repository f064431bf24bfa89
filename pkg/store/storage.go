package store

import (
	"context"
	"encoding/json"

	"cloutgraph/pkg/common"
)

// NeutralScore is the clout score assigned to a node before any scorer run,
// and to every node when a run degenerates (single node, no rank spread).
// It lives on the 0-100 scale and is distinct from the 1/N rank seed the
// scorer uses internally.
const NeutralScore = 0

// UpsertPerson carries the fields merged into a person node. Score is only
// written when non-nil; a nil Score leaves any previously computed score
// untouched.
type UpsertPerson struct {
	Key         string
	DisplayName string
	Payload     json.RawMessage
	Score       *int
}

// EdgeMeta is the optional metadata stored on a CONNECTED_TO edge.
type EdgeMeta struct {
	Source string
	Weight float64
}

// GraphStore is the persisted property-graph collaborator. This core issues
// exactly these operations; richer traversals belong to the visualization
// and API layers outside this repository.
type GraphStore interface {
	// UpsertPerson creates the node or merges the given fields into it.
	// The write is atomic per node and safe to retry; failures surface as
	// *common.PersistenceError.
	UpsertPerson(ctx context.Context, p UpsertPerson) error

	// UpsertEdge ensures exactly one directed CONNECTED_TO edge exists for
	// the ordered (from, to) pair, refreshing metadata on repeats. Self-loops
	// are rejected with *common.InvalidEdgeError before any write.
	UpsertEdge(ctx context.Context, from, to string, meta EdgeMeta) error

	// UpsertEdges applies edges from one node to many targets in chunked
	// transactions. A failing chunk never rolls back previously committed
	// chunks; the returned map itemizes the targets that failed. The error
	// return is reserved for failures outside any single chunk.
	UpsertEdges(ctx context.Context, from string, to []string, meta EdgeMeta) (map[string]error, error)

	// AllPersons reads every person node. Used by the scorer to build its
	// snapshot and by the API to expose scores.
	AllPersons(ctx context.Context) ([]common.Person, error)

	// AllEdges reads every (from, to) pair.
	AllEdges(ctx context.Context) ([]common.Edge, error)

	// WriteScore persists one node's normalized score and raw rank.
	WriteScore(ctx context.Context, key string, score int, rawRank float64) error
}
