package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"storyreel-pipeline/types"
)

// OpenverseClient searches the Openverse image catalog (keyless REST API)
type OpenverseClient struct {
	httpClient *http.Client
	baseURL    string
	pace       *pacer
}

// NewOpenverseClient creates an Openverse image search client
func NewOpenverseClient(timeoutSec int, gapSec float64) *OpenverseClient {
	return &OpenverseClient{
		httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		baseURL:    "https://api.openverse.org",
		pace:       newPacer(gapSec),
	}
}

func (o *OpenverseClient) Name() string { return "openverse" }

// Search returns ranked image candidates for the query
func (o *OpenverseClient) Search(ctx context.Context, query string, c Constraints) ([]types.MediaCandidate, error) {
	if err := o.pace.wait(ctx); err != nil {
		return nil, &ProviderError{Provider: o.Name(), Err: err}
	}

	limit := c.Limit
	if limit <= 0 {
		limit = 10
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("page_size", fmt.Sprintf("%d", limit))
	params.Set("license_type", "all-cc")
	if c.Locale != "" {
		params.Set("tags", c.Locale)
	}

	searchURL := o.baseURL + "/v1/images/?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, "GET", searchURL, nil)
	if err != nil {
		return nil, &ProviderError{Provider: o.Name(), Err: err}
	}
	req.Header.Set("User-Agent", "storyreel-pipeline/1.0")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: o.Name(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{Provider: o.Name(), Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	var result struct {
		Results []struct {
			URL    string `json:"url"`
			Width  int    `json:"width"`
			Height int    `json:"height"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &ProviderError{Provider: o.Name(), Err: fmt.Errorf("decode response: %w", err)}
	}

	var candidates []types.MediaCandidate
	for i, r := range result.Results {
		if r.URL == "" {
			continue
		}
		cand := types.MediaCandidate{
			SourceName: o.Name(),
			URL:        r.URL,
			Rank:       i,
		}
		// Openverse sometimes omits dimensions; leave them unset rather
		// than defaulting to zero
		if r.Width > 0 {
			cand.ReportedWidth = types.IntPtr(r.Width)
		}
		if r.Height > 0 {
			cand.ReportedHeight = types.IntPtr(r.Height)
		}
		candidates = append(candidates, cand)
	}
	return candidates, nil
}
