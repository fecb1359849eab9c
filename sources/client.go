package sources

import (
	"context"
	"fmt"
	"sync"
	"time"

	"storyreel-pipeline/types"
)

// Constraints carries the target frame and optional hints for a search.
// TargetDurationSec is set only when the caller wants video candidates.
type Constraints struct {
	FrameWidth        int
	FrameHeight       int
	TargetDurationSec *float64
	Locale            string
	Limit             int
}

// Client is one external content provider. Search returns an empty slice
// (never an error) when the provider simply has no results; it returns a
// *ProviderError only on transport or auth failure, which callers treat as
// "this provider is unavailable for this attempt".
type Client interface {
	Name() string
	Search(ctx context.Context, query string, c Constraints) ([]types.MediaCandidate, error)
}

// ProviderError marks a network/auth failure talking to a source
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s unavailable: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// pacer enforces a fixed minimum gap between requests to one provider.
// Burst requests trigger provider throttling, so the spacing is mandatory.
type pacer struct {
	gap time.Duration

	mu   sync.Mutex
	next time.Time
}

func newPacer(gapSec float64) *pacer {
	return &pacer{gap: time.Duration(gapSec * float64(time.Second))}
}

func (p *pacer) wait(ctx context.Context) error {
	p.mu.Lock()
	now := time.Now()
	at := p.next
	if at.Before(now) {
		at = now
	}
	p.next = at.Add(p.gap)
	p.mu.Unlock()

	d := time.Until(at)
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
