// Package enrich defines the profile enrichment collaborator: the external
// service that turns a raw harvested identifier into a profile payload. The
// ingestion core treats fetch failures as "connection unresolved", never as
// fatal to a batch.
package enrich

import (
	"context"

	"cloutgraph/pkg/common"
)

// ProfileFetcher resolves a raw identifier (usually a profile URL) to a
// profile payload.
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, rawID string) (*common.Profile, error)
}

// FetcherFunc adapts a function to the ProfileFetcher interface.
type FetcherFunc func(ctx context.Context, rawID string) (*common.Profile, error)

func (f FetcherFunc) FetchProfile(ctx context.Context, rawID string) (*common.Profile, error) {
	return f(ctx, rawID)
}
