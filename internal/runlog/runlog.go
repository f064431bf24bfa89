// Package runlog keeps the relational ledger of ingestion batches and
// scoring runs: who asked for what, when it ran, and how it ended. The graph
// itself lives in Neo4j; this ledger is what the API reports status from.
package runlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"cloutgraph/pkg/common"
	"cloutgraph/pkg/rank"
)

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusSucceeded  = "succeeded"
	StatusPartial    = "partial"
	StatusFailed     = "failed"
)

var ErrNotFound = errors.New("record not found")

// BatchRecord is one row of the ingestion ledger. Report is the serialized
// batch report, present once the batch finished.
type BatchRecord struct {
	ID            string          `json:"id"`
	UploaderRawID string          `json:"uploader_raw_id"`
	Status        string          `json:"status"`
	Report        json.RawMessage `json:"report,omitempty"`
	Error         string          `json:"error,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// ScoreRunRecord is one row of the scoring ledger.
type ScoreRunRecord struct {
	ID        string          `json:"id"`
	Status    string          `json:"status"`
	Report    json.RawMessage `json:"report,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Store persists the ledger through a pgx pool.
//
// A Store should be created using NewStore.
type Store struct {
	conn *pgxpool.Pool
}

func NewStore(conn *pgxpool.Pool) *Store {
	return &Store{conn: conn}
}

// NewID generates a ledger record id.
func NewID() string {
	id, err := gonanoid.New()
	if err != nil {
		// The nanoid source is crypto/rand; failure means the platform has
		// no randomness at all.
		panic(fmt.Sprintf("failed to generate id: %v", err))
	}
	return id
}

func (s *Store) CreateBatch(ctx context.Context, id, uploaderRawID string) error {
	_, err := s.conn.Exec(ctx,
		`INSERT INTO ingest_batches (id, uploader_raw_id, status) VALUES ($1, $2, $3)`,
		id, uploaderRawID, StatusPending,
	)
	if err != nil {
		return fmt.Errorf("failed to create batch record: %w", err)
	}
	return nil
}

func (s *Store) MarkBatchProcessing(ctx context.Context, id string) error {
	_, err := s.conn.Exec(ctx,
		`UPDATE ingest_batches SET status = $2, updated_at = now() WHERE id = $1`,
		id, StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("failed to mark batch processing: %w", err)
	}
	return nil
}

// FinishBatch records the final report. A batch with itemized failures ends
// as partial, never as failed: the rest of the batch did land.
func (s *Store) FinishBatch(ctx context.Context, id string, report *common.BatchReport) error {
	status := StatusSucceeded
	if report.FailedCount > 0 {
		status = StatusPartial
	}

	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal batch report: %w", err)
	}

	_, err = s.conn.Exec(ctx,
		`UPDATE ingest_batches SET status = $2, report = $3, updated_at = now() WHERE id = $1`,
		id, status, data,
	)
	if err != nil {
		return fmt.Errorf("failed to finish batch record: %w", err)
	}
	return nil
}

func (s *Store) FailBatch(ctx context.Context, id string, cause error) error {
	_, err := s.conn.Exec(ctx,
		`UPDATE ingest_batches SET status = $2, error = $3, updated_at = now() WHERE id = $1`,
		id, StatusFailed, cause.Error(),
	)
	if err != nil {
		return fmt.Errorf("failed to fail batch record: %w", err)
	}
	return nil
}

func (s *Store) GetBatch(ctx context.Context, id string) (*BatchRecord, error) {
	var rec BatchRecord
	err := s.conn.QueryRow(ctx,
		`SELECT id, uploader_raw_id, status, COALESCE(report, 'null'), COALESCE(error, ''), created_at, updated_at
		 FROM ingest_batches WHERE id = $1`,
		id,
	).Scan(&rec.ID, &rec.UploaderRawID, &rec.Status, &rec.Report, &rec.Error, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get batch record: %w", err)
	}
	return &rec, nil
}

func (s *Store) CreateScoreRun(ctx context.Context, id string) error {
	_, err := s.conn.Exec(ctx,
		`INSERT INTO score_runs (id, status) VALUES ($1, $2)`,
		id, StatusPending,
	)
	if err != nil {
		return fmt.Errorf("failed to create score run record: %w", err)
	}
	return nil
}

func (s *Store) MarkScoreRunProcessing(ctx context.Context, id string) error {
	_, err := s.conn.Exec(ctx,
		`UPDATE score_runs SET status = $2, updated_at = now() WHERE id = $1`,
		id, StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("failed to mark score run processing: %w", err)
	}
	return nil
}

// FinishScoreRun records the final report. A run that was cut short by its
// deadline, or that collected write failures, ends as partial: the scores it
// did compute are persisted and usable.
func (s *Store) FinishScoreRun(ctx context.Context, id string, report *rank.Report, runErr error) error {
	status := StatusSucceeded
	if len(report.WriteFailures) > 0 || errors.Is(runErr, common.ErrConvergenceTimeout) {
		status = StatusPartial
	}

	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal score run report: %w", err)
	}

	_, err = s.conn.Exec(ctx,
		`UPDATE score_runs SET status = $2, report = $3, updated_at = now() WHERE id = $1`,
		id, status, data,
	)
	if err != nil {
		return fmt.Errorf("failed to finish score run record: %w", err)
	}
	return nil
}

func (s *Store) FailScoreRun(ctx context.Context, id string, cause error) error {
	_, err := s.conn.Exec(ctx,
		`UPDATE score_runs SET status = $2, error = $3, updated_at = now() WHERE id = $1`,
		id, StatusFailed, cause.Error(),
	)
	if err != nil {
		return fmt.Errorf("failed to fail score run record: %w", err)
	}
	return nil
}

func (s *Store) GetScoreRun(ctx context.Context, id string) (*ScoreRunRecord, error) {
	var rec ScoreRunRecord
	err := s.conn.QueryRow(ctx,
		`SELECT id, status, COALESCE(report, 'null'), COALESCE(error, ''), created_at, updated_at
		 FROM score_runs WHERE id = $1`,
		id,
	).Scan(&rec.ID, &rec.Status, &rec.Report, &rec.Error, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get score run record: %w", err)
	}
	return &rec, nil
}
