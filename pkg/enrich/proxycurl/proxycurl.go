// Package proxycurl implements the enrichment collaborator against a
// Proxycurl-compatible profile API.
package proxycurl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"cloutgraph/internal/util"
	"cloutgraph/pkg/common"
)

// Client fetches profile payloads over HTTP. The provider is rate limited,
// so every request passes through a shared limiter before it goes out.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
}

// NewClientParams configures a proxycurl client.
type NewClientParams struct {
	BaseURL string
	APIKey  string

	// RequestsPerSecond caps outbound calls; the provider enforces its own
	// limit and responds 429 beyond it.
	RequestsPerSecond float64
	MaxRetries        int
	Timeout           time.Duration
}

func NewClient(params NewClientParams) *Client {
	rps := params.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	maxRetries := params.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL:    params.BaseURL,
		apiKey:     params.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		maxRetries: maxRetries,
	}
}

// FetchProfile resolves a raw identifier to a profile payload. Transient
// failures are retried; the final error marks the connection unresolved and
// is reported per batch item by the caller.
func (c *Client) FetchProfile(ctx context.Context, rawID string) (*common.Profile, error) {
	return util.RetryWithContext(ctx, c.maxRetries, func(ctx context.Context) (*common.Profile, error) {
		return c.fetchOnce(ctx, rawID)
	})
}

func (c *Client) fetchOnce(ctx context.Context, rawID string) (*common.Profile, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/api/v2/linkedin?url=%s", c.baseURL, url.QueryEscape(rawID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch profile: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("profile fetch returned status %d", resp.StatusCode)
	}

	var profile common.Profile
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, fmt.Errorf("failed to decode profile payload: %w", err)
	}
	profile.Raw = json.RawMessage(body)
	return &profile, nil
}
