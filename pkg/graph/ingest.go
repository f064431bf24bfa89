package graph

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"cloutgraph/internal/util"
	"cloutgraph/pkg/common"
	"cloutgraph/pkg/enrich"
	"cloutgraph/pkg/identity"
	"cloutgraph/pkg/logger"
	"cloutgraph/pkg/store"
)

type connectionResult struct {
	rawID    string
	key      string
	unstable bool
	err      error
}

// IngestBatch processes one ingestion batch: it anchors the uploader node,
// then resolves, upserts and links every connection with bounded parallelism.
// The batch is never atomic; per-connection failures are itemized in the
// report while the rest of the batch proceeds. Only an uploader failure
// aborts the whole batch, since every edge needs the uploader as anchor.
func (c *Client) IngestBatch(
	ctx context.Context,
	batch common.IngestBatch,
	fetcher enrich.ProfileFetcher,
	storeClient store.GraphStore,
) (*common.BatchReport, error) {
	uploader, uploaderUnstable, err := c.upsertPerson(ctx, batch.UploaderRawID, batch.UploaderProfile, fetcher, storeClient)
	if err != nil {
		return nil, fmt.Errorf("failed to ingest uploader %q: %w", batch.UploaderRawID, err)
	}

	logger.Info("[Ingest] Batch started",
		"uploader", uploader,
		"connections", len(batch.Connections),
	)

	// The uploader write above is strictly ordered before every edge write.
	// Connection writes carry no ordering guarantee relative to each other.
	results := make([]connectionResult, len(batch.Connections))
	mutex := sync.Mutex{}

	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(c.parallelConnections)
	for i, conn := range batch.Connections {
		idx, cn := i, conn
		eg.Go(func() error {
			select {
			case <-gCtx.Done():
				// A connection skipped after cancellation is still reported.
				mutex.Lock()
				results[idx] = connectionResult{rawID: cn.RawID, err: gCtx.Err()}
				mutex.Unlock()
				return nil
			default:
				key, unstable, err := c.upsertPerson(gCtx, cn.RawID, cn.Profile, fetcher, storeClient)
				mutex.Lock()
				results[idx] = connectionResult{rawID: cn.RawID, key: key, unstable: unstable, err: err}
				mutex.Unlock()
				// Per-connection failures never abort the batch.
				return nil
			}
		})
	}
	_ = eg.Wait()

	targets := make([]string, 0, len(results))
	for _, r := range results {
		if r.err == nil {
			targets = append(targets, r.key)
		}
	}

	edgeFailures, err := storeClient.UpsertEdges(ctx, uploader, targets, store.EdgeMeta{
		Source: c.edgeSource,
		Weight: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build edges for uploader %q: %w", uploader, err)
	}

	report := &common.BatchReport{UploaderKey: uploader}
	if uploaderUnstable {
		report.Unstable = append(report.Unstable, uploader)
	}
	for _, r := range results {
		if r.err == nil {
			if edgeErr, ok := edgeFailures[r.key]; ok {
				r.err = edgeErr
			}
		}
		if r.err != nil {
			report.Failed = append(report.Failed, common.ConnectionFailure{
				RawID: r.rawID,
				Error: r.err.Error(),
			})
			continue
		}
		report.Succeeded = append(report.Succeeded, r.key)
		if r.unstable {
			report.Unstable = append(report.Unstable, r.key)
		}
	}
	report.SucceededCount = len(report.Succeeded)
	report.FailedCount = len(report.Failed)

	logger.Info("[Ingest] Batch complete",
		"uploader", uploader,
		"succeeded", report.SucceededCount,
		"failed", report.FailedCount,
	)

	return report, nil
}

// upsertPerson fetches the profile when the batch did not carry one, resolves
// the canonical key and merges the node into the store. It returns the key
// and whether the identity had to be synthesized.
func (c *Client) upsertPerson(
	ctx context.Context,
	rawID string,
	profile *common.Profile,
	fetcher enrich.ProfileFetcher,
	storeClient store.GraphStore,
) (string, bool, error) {
	if profile == nil {
		if fetcher == nil {
			return "", false, fmt.Errorf("no profile payload and no fetcher for %q", rawID)
		}
		fetched, err := fetcher.FetchProfile(ctx, rawID)
		if err != nil {
			return "", false, fmt.Errorf("connection unresolved: %w", err)
		}
		profile = fetched
	}

	res, err := identity.Resolve(*profile)
	if err != nil && !errors.Is(err, common.ErrNoStableIdentity) {
		return "", false, err
	}
	if !res.Stable() {
		logger.Warn("[Ingest] No stable identity, node cannot be deduplicated",
			"raw_id", rawID,
			"key", res.Key,
		)
	}

	err = util.RetryErrWithContext(ctx, c.maxRetries, func(ctx context.Context) error {
		return storeClient.UpsertPerson(ctx, store.UpsertPerson{
			Key:         res.Key,
			DisplayName: profile.FullName,
			Payload:     profile.Raw,
		})
	})
	if err != nil {
		return "", false, err
	}

	return res.Key, !res.Stable(), nil
}
