// Package neo4j implements store.GraphStore on top of the Neo4j bolt driver.
package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"cloutgraph/pkg/logger"
)

const defaultEdgeChunkSize = 500

// Store is a GraphStore backed by a Neo4j database. One Store owns one
// driver; open it at process start and close it at shutdown.
type Store struct {
	driver        neo4j.DriverWithContext
	database      string
	edgeChunkSize int
}

// NewStoreParams configures a Neo4j-backed store.
type NewStoreParams struct {
	URI      string
	Username string
	Password string
	Database string

	// EdgeChunkSize bounds the number of edges written per transaction in
	// the batched edge builder. A tunable, not a correctness property.
	EdgeChunkSize int

	ConnectTimeout time.Duration
	MaxPoolSize    int
}

// NewStore connects to Neo4j, verifies connectivity and ensures the unique
// constraint on the person canonical key.
func NewStore(ctx context.Context, params NewStoreParams) (*Store, error) {
	timeout := params.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	maxPool := params.MaxPoolSize
	if maxPool <= 0 {
		maxPool = 50
	}
	chunk := params.EdgeChunkSize
	if chunk <= 0 {
		chunk = defaultEdgeChunkSize
	}

	auth := neo4j.BasicAuth(params.Username, params.Password, "")
	driver, err := neo4j.NewDriverWithContext(params.URI, auth, func(cfg *neo4j.Config) {
		cfg.MaxConnectionPoolSize = maxPool
		cfg.SocketConnectTimeout = timeout
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init neo4j driver: %w", err)
	}

	vctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(vctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("failed to verify neo4j connectivity: %w", err)
	}

	s := &Store{
		driver:        driver,
		database:      params.Database,
		edgeChunkSize: chunk,
	}
	s.ensureSchema(ctx)

	return s, nil
}

// Close releases the underlying driver.
func (s *Store) Close(ctx context.Context) error {
	if s == nil || s.driver == nil {
		return nil
	}
	return s.driver.Close(ctx)
}

// ensureSchema creates the canonical-key constraint. Best effort; restricted
// users may not be allowed to touch the schema.
func (s *Store) ensureSchema(ctx context.Context) {
	session := s.writeSession(ctx)
	defer session.Close(ctx)

	res, err := session.Run(ctx,
		`CREATE CONSTRAINT person_key_unique IF NOT EXISTS FOR (p:Person) REQUIRE p.key IS UNIQUE`, nil)
	if err != nil {
		logger.Warn("[Store] Schema init failed, continuing", "err", err)
		return
	}
	_, _ = res.Consume(ctx)
}

func (s *Store) writeSession(ctx context.Context) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: s.database,
	})
}

func (s *Store) readSession(ctx context.Context) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: s.database,
	})
}

func nowString() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func parseTime(v any) time.Time {
	s, ok := v.(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	default:
		return 0
	}
}
