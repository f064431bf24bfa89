// Package graph coordinates the ingestion of profile batches into the
// persisted graph: identity resolution, node upserts and edge creation with
// per-item failure reporting.
package graph

// Client is the ingestion orchestrator. It bounds the number of connections
// processed in parallel and retries persistence calls per batch item.
//
// A Client should be created using NewClient.
type Client struct {
	parallelConnections int
	maxRetries          int
	edgeSource          string
}

// NewClientParams defines the configuration for creating a Client.
//
// ParallelConnections bounds concurrent connection processing within one
// batch, capping pressure on the store and on the rate-limited enrichment
// provider. EdgeSource tags every edge with how it was learned.
type NewClientParams struct {
	ParallelConnections int
	MaxRetries          int
	EdgeSource          string
}

// NewClient creates a Client configured with the provided parameters.
func NewClient(params NewClientParams) *Client {
	parallel := params.ParallelConnections
	if parallel <= 0 {
		parallel = 8
	}
	maxRetries := params.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	edgeSource := params.EdgeSource
	if edgeSource == "" {
		edgeSource = "upload"
	}

	return &Client{
		parallelConnections: parallel,
		maxRetries:          maxRetries,
		edgeSource:          edgeSource,
	}
}
