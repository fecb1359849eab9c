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

// PexelsVideoClient searches Pexels stock video (requires PEXELS_API_KEY)
type PexelsVideoClient struct {
	httpClient    *http.Client
	baseURL       string
	apiKey        string
	maxFileHeight int
	pace          *pacer
}

// NewPexelsVideoClient creates a Pexels stock-video search client
func NewPexelsVideoClient(apiKey string, timeoutSec int, gapSec float64, maxFileHeight int) *PexelsVideoClient {
	return &PexelsVideoClient{
		httpClient:    &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		baseURL:       "https://api.pexels.com",
		apiKey:        apiKey,
		maxFileHeight: maxFileHeight,
		pace:          newPacer(gapSec),
	}
}

func (p *PexelsVideoClient) Name() string { return "pexels" }

// Search returns ranked video candidates for the query. Pexels reports one
// hit per clip with several encodings; the adapter picks the largest file
// not exceeding the configured height cap and reports its measurements.
func (p *PexelsVideoClient) Search(ctx context.Context, query string, c Constraints) ([]types.MediaCandidate, error) {
	if p.apiKey == "" {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("PEXELS_API_KEY not set")}
	}
	if err := p.pace.wait(ctx); err != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: err}
	}

	limit := c.Limit
	if limit <= 0 {
		limit = 10
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("per_page", fmt.Sprintf("%d", limit))
	params.Set("orientation", "landscape")
	if c.Locale != "" {
		params.Set("locale", c.Locale)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", p.baseURL+"/videos/search?"+params.Encode(), nil)
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: err}
	}
	req.Header.Set("Authorization", p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	var result struct {
		Videos []struct {
			Duration   float64 `json:"duration"`
			VideoFiles []struct {
				Width  int    `json:"width"`
				Height int    `json:"height"`
				Link   string `json:"link"`
			} `json:"video_files"`
		} `json:"videos"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("decode response: %w", err)}
	}

	var candidates []types.MediaCandidate
	for i, v := range result.Videos {
		best := -1
		for j, f := range v.VideoFiles {
			if f.Link == "" {
				continue
			}
			if p.maxFileHeight > 0 && f.Height > p.maxFileHeight {
				continue
			}
			if best < 0 || f.Height > v.VideoFiles[best].Height {
				best = j
			}
		}
		if best < 0 {
			continue
		}
		f := v.VideoFiles[best]
		cand := types.MediaCandidate{
			SourceName: p.Name(),
			URL:        f.Link,
			Rank:       i,
			IsVideo:    true,
		}
		if f.Width > 0 {
			cand.ReportedWidth = types.IntPtr(f.Width)
		}
		if f.Height > 0 {
			cand.ReportedHeight = types.IntPtr(f.Height)
		}
		if v.Duration > 0 {
			cand.ReportedDurationSec = types.FloatPtr(v.Duration)
		}
		candidates = append(candidates, cand)
	}
	return candidates, nil
}
