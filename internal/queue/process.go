package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cloutgraph/internal/runlog"
	"cloutgraph/pkg/common"
	"cloutgraph/pkg/enrich"
	"cloutgraph/pkg/graph"
	"cloutgraph/pkg/leaselock"
	"cloutgraph/pkg/logger"
	"cloutgraph/pkg/rank"
	"cloutgraph/pkg/store"
)

// scoreLockKey serializes scoring across all workers. A second run started
// while one is active would read half-written scores.
const scoreLockKey = "score_run"

// QueueIngestMsg asks the worker to run one ingestion batch. BatchID refers
// to the ledger record created when the batch was accepted.
type QueueIngestMsg struct {
	BatchID string             `json:"batch_id"`
	Batch   common.IngestBatch `json:"batch"`
}

// QueueScoreMsg asks the worker to run one whole-graph scoring pass.
type QueueScoreMsg struct {
	RunID string `json:"run_id"`
}

// ProcessIngestMessage runs one queued ingestion batch and records the
// outcome in the ledger. Ingestion is idempotent, so a returned error is
// safe to retry.
func ProcessIngestMessage(
	ctx context.Context,
	graphClient *graph.Client,
	fetcher enrich.ProfileFetcher,
	storeClient store.GraphStore,
	ledger *runlog.Store,
	body string,
) error {
	var data QueueIngestMsg
	if err := json.Unmarshal([]byte(body), &data); err != nil {
		return fmt.Errorf("failed to unmarshal ingest message: %w", err)
	}

	logger.Info("[Queue] Processing ingest batch", "batch_id", data.BatchID)

	if err := ledger.MarkBatchProcessing(ctx, data.BatchID); err != nil {
		// The ledger is status bookkeeping, not the source of truth; the
		// batch still runs.
		logger.Warn("[Queue] Failed to mark batch processing", "batch_id", data.BatchID, "err", err)
	}

	report, err := graphClient.IngestBatch(ctx, data.Batch, fetcher, storeClient)
	if err != nil {
		if ferr := ledger.FailBatch(ctx, data.BatchID, err); ferr != nil {
			logger.Error("[Queue] Failed to record batch failure", "batch_id", data.BatchID, "err", ferr)
		}
		return fmt.Errorf("failed to ingest batch %s: %w", data.BatchID, err)
	}

	if err := ledger.FinishBatch(ctx, data.BatchID, report); err != nil {
		return fmt.Errorf("failed to record batch report for %s: %w", data.BatchID, err)
	}

	return nil
}

// ProcessScoreMessage runs one queued scoring pass under the cluster-wide
// score lock. A run cut short by its deadline still persisted scores and is
// recorded as partial instead of being retried; a lock held by another
// worker returns an error so the message lands on the retry queue.
func ProcessScoreMessage(
	ctx context.Context,
	scorer *rank.Scorer,
	locks *leaselock.Client,
	ledger *runlog.Store,
	body string,
) error {
	var data QueueScoreMsg
	if err := json.Unmarshal([]byte(body), &data); err != nil {
		return fmt.Errorf("failed to unmarshal score message: %w", err)
	}

	logger.Info("[Queue] Processing score run", "run_id", data.RunID)

	if err := ledger.MarkScoreRunProcessing(ctx, data.RunID); err != nil {
		logger.Warn("[Queue] Failed to mark score run processing", "run_id", data.RunID, "err", err)
	}

	var report *rank.Report
	err := locks.WithLease(ctx, scoreLockKey, leaselock.Options{}, func(ctx context.Context) error {
		var runErr error
		report, runErr = scorer.Run(ctx)
		return runErr
	})
	if errors.Is(err, leaselock.ErrBusy) {
		return fmt.Errorf("scoring pass %s deferred: %w", data.RunID, err)
	}
	if err != nil && !errors.Is(err, common.ErrConvergenceTimeout) {
		if ferr := ledger.FailScoreRun(ctx, data.RunID, err); ferr != nil {
			logger.Error("[Queue] Failed to record score run failure", "run_id", data.RunID, "err", ferr)
		}
		return fmt.Errorf("failed to run scoring pass %s: %w", data.RunID, err)
	}

	if ferr := ledger.FinishScoreRun(ctx, data.RunID, report, err); ferr != nil {
		return fmt.Errorf("failed to record score run report for %s: %w", data.RunID, ferr)
	}

	return nil
}
