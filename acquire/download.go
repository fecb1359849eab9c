package acquire

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const maxDownloadBytes = 200 * 1024 * 1024

// Fetcher downloads a URL to a local path and reports the declared
// content type. Split out as an interface so cascade tests never hit the
// network.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL, destPath string) (contentType string, err error)
}

// HTTPFetcher is the production Fetcher
type HTTPFetcher struct {
	httpClient *http.Client
}

// NewHTTPFetcher creates a Fetcher with the given per-request timeout
func NewHTTPFetcher(timeoutSec int) *HTTPFetcher {
	return &HTTPFetcher{
		httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
	}
}

// Fetch streams the URL to destPath. The destination is a scratch path;
// promotion into the cache happens only after validation succeeds.
func (h *HTTPFetcher) Fetch(ctx context.Context, rawURL, destPath string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; storyreel-pipeline/1.0)")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return "", err
	}
	_, err = io.Copy(out, io.LimitReader(resp.Body, maxDownloadBytes))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(destPath)
		return "", err
	}

	ct := resp.Header.Get("Content-Type")
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = ct[:i]
	}
	return strings.TrimSpace(ct), nil
}
