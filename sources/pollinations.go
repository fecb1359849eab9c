package sources

import (
	"context"
	"fmt"
	"hash/fnv"
	"net/url"

	"storyreel-pipeline/types"
)

// PollinationsClient synthesizes AI images via Pollinations.ai (free, no key
// needed). Generation happens at download time: the candidate URL encodes
// the prompt and a deterministic seed, so the same query always renders the
// same image.
type PollinationsClient struct {
	seedBase int
}

// NewPollinationsClient creates a Pollinations image synthesis client
func NewPollinationsClient(seedBase int) *PollinationsClient {
	return &PollinationsClient{seedBase: seedBase}
}

func (p *PollinationsClient) Name() string { return "pollinations" }

// Search returns a single synthesis candidate for the query
func (p *PollinationsClient) Search(ctx context.Context, query string, c Constraints) ([]types.MediaCandidate, error) {
	if query == "" {
		return nil, nil
	}

	width, height := c.FrameWidth, c.FrameHeight
	if width <= 0 || height <= 0 {
		width, height = 1920, 1080
	}

	prompt := query + ", cinematic, dramatic lighting, photorealistic, no text, no watermark"
	imageURL := fmt.Sprintf(
		"https://image.pollinations.ai/prompt/%s?width=%d&height=%d&nologo=true&model=flux&seed=%d",
		url.PathEscape(prompt),
		width, height,
		p.seed(query),
	)

	return []types.MediaCandidate{{
		SourceName:     p.Name(),
		URL:            imageURL,
		ReportedWidth:  types.IntPtr(width),
		ReportedHeight: types.IntPtr(height),
		Rank:           0,
	}}, nil
}

// seed derives a stable per-query seed so repeated runs reproduce the image
func (p *PollinationsClient) seed(query string) int {
	h := fnv.New32a()
	h.Write([]byte(query))
	return int(h.Sum32()%100000) + p.seedBase
}
