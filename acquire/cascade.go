package acquire

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"storyreel-pipeline/cache"
	"storyreel-pipeline/compositor"
	"storyreel-pipeline/config"
	"storyreel-pipeline/score"
	"storyreel-pipeline/sources"
	"storyreel-pipeline/types"
)

// cascade states, in strict order
type state int

const (
	stateCacheLookup state = iota
	statePrimarySearch
	stateSimplifiedSearch
	stateLocalStock
	statePlaceholder
	stateDone
)

// nextState is the cascade's transition table: every tier failure advances
// exactly one step, and SyntheticPlaceholder is the terminal safety net
var nextState = map[state]state{
	stateCacheLookup:      statePrimarySearch,
	statePrimarySearch:    stateSimplifiedSearch,
	stateSimplifiedSearch: stateLocalStock,
	stateLocalStock:       statePlaceholder,
	statePlaceholder:      stateDone,
}

var stateTiers = map[state]types.Tier{
	stateCacheLookup:      types.TierCache,
	statePrimarySearch:    types.TierPrimary,
	stateSimplifiedSearch: types.TierSimplified,
	stateLocalStock:       types.TierLocalStock,
	statePlaceholder:      types.TierPlaceholder,
}

// Cascade resolves one validated AcquiredAsset per scene by walking its
// tiers in order. Its contract is total coverage: every scene exits with a
// usable asset, because the placeholder tier cannot fail. Tier errors are
// logged at the tier boundary and never escape.
type Cascade struct {
	cfg     *config.Config
	cache   *cache.Cache
	scorer  *score.Scorer
	clients []sources.Client
	fetcher Fetcher
	comp    compositor.Compositor
	stock   *StockStore
	workDir string
}

// New creates a Cascade over the given providers
func New(cfg *config.Config, contentCache *cache.Cache, scorer *score.Scorer,
	clients []sources.Client, fetcher Fetcher, comp compositor.Compositor,
	stock *StockStore, workDir string) *Cascade {
	return &Cascade{
		cfg:     cfg,
		cache:   contentCache,
		scorer:  scorer,
		clients: clients,
		fetcher: fetcher,
		comp:    comp,
		stock:   stock,
		workDir: workDir,
	}
}

// Acquire walks the tiers for one scene. It returns an error only when the
// run itself is cancelled; otherwise it always returns an asset.
func (c *Cascade) Acquire(ctx context.Context, scene types.Scene) (*types.AcquiredAsset, error) {
	query := sceneQuery(scene)

	for st := stateCacheLookup; st != stateDone; st = nextState[st] {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		asset, err := c.runTier(ctx, st, scene, query)
		if err == nil && asset != nil {
			log.Printf("[acquire] Scene %d resolved via %s (%s)", scene.Number, asset.OriginTier, asset.Kind)
			return asset, nil
		}
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			log.Printf("[acquire] ⚠️ Scene %d tier %s failed: %v, advancing", scene.Number, stateTiers[st], err)
		}
	}

	// Unreachable: the placeholder tier always yields an asset
	return nil, fmt.Errorf("scene %d: cascade exhausted", scene.Number)
}

func (c *Cascade) runTier(ctx context.Context, st state, scene types.Scene, query string) (*types.AcquiredAsset, error) {
	switch st {
	case stateCacheLookup:
		return c.fromCache(ctx, query)
	case statePrimarySearch:
		return c.searchTier(ctx, types.TierPrimary, scene, query)
	case stateSimplifiedSearch:
		simplified := simplifyQuery(query, c.cfg.Cascade.SimplifiedWords)
		if simplified == "" || simplified == cache.NormalizeQuery(query) {
			return nil, &NoCandidatesError{Tier: types.TierSimplified, Query: query}
		}
		return c.searchTier(ctx, types.TierSimplified, scene, simplified)
	case stateLocalStock:
		return c.fromStock(ctx, scene, query)
	case statePlaceholder:
		return c.fromPlaceholder(ctx, scene, query), nil
	}
	return nil, fmt.Errorf("unknown cascade state %d", st)
}

// fromCache short-circuits the whole cascade on a committed cache entry
func (c *Cascade) fromCache(ctx context.Context, query string) (*types.AcquiredAsset, error) {
	entry, ok := c.cache.Get(query)
	if !ok {
		return nil, &NoCandidatesError{Tier: types.TierCache, Query: query}
	}
	info, err := c.comp.Probe(ctx, entry.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("cached file unreadable: %w", err)
	}
	return c.assetFrom(entry.LocalPath, types.AssetKind(entry.Kind), info, types.TierCache, query), nil
}

// searchTier queries every provider, merges and ranks candidates, then
// tries downloads in ranked order up to the tier's candidate budget.
// A failed candidate advances to the next candidate, not the next tier.
func (c *Cascade) searchTier(ctx context.Context, tier types.Tier, scene types.Scene, query string) (*types.AcquiredAsset, error) {
	constraints := sources.Constraints{
		FrameWidth:        c.cfg.Frame.Width,
		FrameHeight:       c.cfg.Frame.Height,
		TargetDurationSec: types.FloatPtr(scene.TargetDurationSec),
		Limit:             c.cfg.Cascade.CandidatesPerTier * 2,
	}

	var merged []types.MediaCandidate
	for _, client := range c.clients {
		cands, err := client.Search(ctx, query, constraints)
		if err != nil {
			// Provider unavailable for this attempt: skip it, keep going
			log.Printf("[acquire] %v", err)
			continue
		}
		merged = append(merged, cands...)
	}

	ranked := c.scorer.Rank(merged, c.cfg.Frame.Width, c.cfg.Frame.Height, types.FloatPtr(scene.TargetDurationSec))
	if len(ranked) == 0 {
		return nil, &NoCandidatesError{Tier: tier, Query: query}
	}

	budget := c.cfg.Cascade.CandidatesPerTier
	if budget > len(ranked) {
		budget = len(ranked)
	}
	for i := 0; i < budget; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		asset, err := c.downloadCandidate(ctx, tier, scene, query, ranked[i])
		if err != nil {
			log.Printf("[acquire] Scene %d candidate %d/%d rejected: %v", scene.Number, i+1, budget, err)
			continue
		}
		return asset, nil
	}
	return nil, &NoCandidatesError{Tier: tier, Query: query}
}

// downloadCandidate fetches one candidate to scratch, validates it, and
// promotes it into the cache
func (c *Cascade) downloadCandidate(ctx context.Context, tier types.Tier, scene types.Scene, query string, cand types.ScoredCandidate) (*types.AcquiredAsset, error) {
	kind := types.KindImage
	if cand.IsVideo {
		kind = types.KindVideo
	}

	scratch := filepath.Join(c.workDir, fmt.Sprintf("dl_%d_%s%s", scene.Number, cache.Key(cand.URL), extFor(cand.URL, kind)))
	contentType, err := c.fetcher.Fetch(ctx, cand.URL, scratch)
	if err != nil {
		return nil, &InvalidCandidateError{URL: cand.URL, Reason: err.Error()}
	}
	defer os.Remove(scratch)

	info, err := c.validate(ctx, scratch, contentType, kind, scene.TargetDurationSec)
	if err != nil {
		return nil, err
	}

	entry, err := c.cache.Put(query, scratch, string(kind))
	if err != nil {
		return nil, fmt.Errorf("cache commit: %w", err)
	}
	return c.assetFrom(entry.LocalPath, kind, info, tier, query), nil
}

// validate enforces the download acceptance rules: non-trivial size, a
// content kind that matches what the provider claimed, decodability, and
// minimum pixel/duration thresholds
func (c *Cascade) validate(ctx context.Context, path, contentType string, kind types.AssetKind, targetSec float64) (*compositor.MediaInfo, error) {
	fi, err := os.Stat(path)
	if err != nil || fi.Size() < c.cfg.Cascade.MinFileBytes {
		return nil, &InvalidCandidateError{URL: path, Reason: "download empty or truncated"}
	}

	if contentType != "" && contentType != "application/octet-stream" {
		want := "image/"
		if kind == types.KindVideo {
			want = "video/"
		}
		if !strings.HasPrefix(contentType, want) {
			return nil, &InvalidCandidateError{URL: path, Reason: fmt.Sprintf("content type %s, expected %s*", contentType, want)}
		}
	}

	info, err := c.comp.Probe(ctx, path)
	if err != nil {
		return nil, &InvalidCandidateError{URL: path, Reason: fmt.Sprintf("not decodable: %v", err)}
	}
	if info.Width < c.cfg.Cascade.MinImageWidth || info.Height < c.cfg.Cascade.MinImageHeight {
		return nil, &InvalidCandidateError{URL: path, Reason: fmt.Sprintf("too small: %dx%d", info.Width, info.Height)}
	}
	if kind == types.KindVideo {
		minSec := c.cfg.Cascade.MinVideoSec
		if ratioMin := targetSec * c.cfg.Scoring.MinDurationRatio; ratioMin > minSec {
			minSec = ratioMin
		}
		if info.DurationSec < minSec {
			return nil, &InvalidCandidateError{URL: path, Reason: fmt.Sprintf("clip %.1fs shorter than required %.1fs", info.DurationSec, minSec)}
		}
	}
	return info, nil
}

// fromStock serves a themed local asset for the failed query
func (c *Cascade) fromStock(ctx context.Context, scene types.Scene, query string) (*types.AcquiredAsset, error) {
	path, err := c.stock.Pick(query)
	if err != nil {
		return nil, err
	}
	info, err := c.comp.Probe(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("stock file %s unreadable: %w", filepath.Base(path), err)
	}
	kind := types.KindImage
	if IsVideoFile(path) {
		kind = types.KindVideo
	}
	return c.assetFrom(path, kind, info, types.TierLocalStock, query), nil
}

// fromPlaceholder is the terminal tier and cannot fail
func (c *Cascade) fromPlaceholder(ctx context.Context, scene types.Scene, query string) *types.AcquiredAsset {
	outPath := filepath.Join(c.workDir, fmt.Sprintf("placeholder_%03d.jpg", scene.Number))
	placeholderCard(ctx, c.comp, scene.NarrationText, outPath, c.cfg.Frame.Width, c.cfg.Frame.Height)
	return &types.AcquiredAsset{
		Kind:         types.KindPlaceholder,
		LocalPath:    outPath,
		ActualWidth:  c.cfg.Frame.Width,
		ActualHeight: c.cfg.Frame.Height,
		OriginTier:   types.TierPlaceholder,
		OriginQuery:  query,
	}
}

func (c *Cascade) assetFrom(path string, kind types.AssetKind, info *compositor.MediaInfo, tier types.Tier, query string) *types.AcquiredAsset {
	asset := &types.AcquiredAsset{
		Kind:         kind,
		LocalPath:    path,
		ActualWidth:  info.Width,
		ActualHeight: info.Height,
		OriginTier:   tier,
		OriginQuery:  query,
	}
	if kind == types.KindVideo {
		asset.ActualDurationSec = types.FloatPtr(info.DurationSec)
	}
	return asset
}

// sceneQuery prefers the scene's visual query, falling back to keywords
// pulled from the narration itself
func sceneQuery(scene types.Scene) string {
	if strings.TrimSpace(scene.VisualQuery) != "" {
		return scene.VisualQuery
	}
	return simplifyQuery(scene.NarrationText, 4)
}

// fillerWords are dropped when reducing a query to its core keywords
var fillerWords = map[string]bool{
	"the": true, "a": true, "an": true, "was": true, "were": true,
	"had": true, "have": true, "has": true, "her": true, "his": true,
	"their": true, "they": true, "she": true, "he": true, "it": true,
	"this": true, "that": true, "and": true, "or": true, "but": true,
	"for": true, "from": true, "with": true, "into": true, "over": true,
}

// simplifyQuery keeps the first maxWords meaningful terms of a query
func simplifyQuery(query string, maxWords int) string {
	if maxWords <= 0 {
		maxWords = 3
	}
	var kept []string
	for _, w := range strings.Fields(query) {
		clean := strings.ToLower(strings.Trim(w, ".,!?\"'"))
		if len(clean) <= 3 || fillerWords[clean] {
			continue
		}
		kept = append(kept, clean)
		if len(kept) == maxWords {
			break
		}
	}
	return strings.Join(kept, " ")
}

// extFor guesses a file extension for the scratch download
func extFor(rawURL string, kind types.AssetKind) string {
	ext := strings.ToLower(filepath.Ext(strings.SplitN(rawURL, "?", 2)[0]))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".webp", ".mp4", ".mov", ".webm":
		return ext
	}
	if kind == types.KindVideo {
		return ".mp4"
	}
	return ".jpg"
}
