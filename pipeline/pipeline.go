// Package pipeline runs the three stages of a video build: parallel
// acquisition, parallel rendering, sequential assembly.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"storyreel-pipeline/config"
	"storyreel-pipeline/types"
)

// Acquirer resolves one visual asset per scene (the acquisition cascade)
type Acquirer interface {
	Acquire(ctx context.Context, scene types.Scene) (*types.AcquiredAsset, error)
}

// Renderer turns an asset + scene into a fixed-length segment
type Renderer interface {
	Render(ctx context.Context, asset *types.AcquiredAsset, scene types.Scene, outDir string) (*types.SceneSegment, error)
}

// Assembler concatenates segments into the final artifact
type Assembler interface {
	Assemble(ctx context.Context, title string, segments []types.SceneSegment, provenance []types.SceneProvenance, outDir string) (*types.FinalVideo, error)
}

// Pipeline wires the stages together for one run directory
type Pipeline struct {
	cfg       *config.Config
	acquirer  Acquirer
	renderer  Renderer
	assembler Assembler
}

// New creates a Pipeline
func New(cfg *config.Config, acquirer Acquirer, renderer Renderer, assembler Assembler) *Pipeline {
	return &Pipeline{cfg: cfg, acquirer: acquirer, renderer: renderer, assembler: assembler}
}

// Run executes the full build for a script and returns the final video
func (p *Pipeline) Run(ctx context.Context, s *types.Script, runDir string) (*types.FinalVideo, error) {
	log.Printf("[pipeline] Acquiring visuals for %d scenes...", len(s.Scenes))
	assets, err := p.acquireAll(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("acquisition: %w", err)
	}

	log.Printf("[pipeline] Rendering %d scene segments...", len(s.Scenes))
	segments, err := p.renderAll(ctx, s, assets, filepath.Join(runDir, "segments"))
	if err != nil {
		return nil, err
	}

	provenance := make([]types.SceneProvenance, len(s.Scenes))
	for i, scene := range s.Scenes {
		provenance[i] = types.SceneProvenance{
			SceneNumber: scene.Number,
			Tier:        assets[i].OriginTier,
			Query:       assets[i].OriginQuery,
			Kind:        assets[i].Kind,
			AssetPath:   assets[i].LocalPath,
			DurationSec: segments[i].DurationSec,
		}
	}

	log.Println("[pipeline] Assembling timeline...")
	return p.assembler.Assemble(ctx, s.Title, segments, provenance, runDir)
}

// acquireAll resolves every scene's asset on a bounded worker pool.
// Scenes are independent, so this is embarrassingly parallel; the limit
// keeps total provider pressure in check alongside each client's pacer.
func (p *Pipeline) acquireAll(ctx context.Context, s *types.Script) ([]*types.AcquiredAsset, error) {
	assets := make([]*types.AcquiredAsset, len(s.Scenes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workerCount(p.cfg.Concurrency.AcquireWorkers, 4))
	for i := range s.Scenes {
		i := i
		g.Go(func() error {
			asset, err := p.acquirer.Acquire(gctx, s.Scenes[i])
			if err != nil {
				return err
			}
			assets[i] = asset
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return assets, nil
}

// renderAll encodes segments on a pool bounded by the encoder slots
func (p *Pipeline) renderAll(ctx context.Context, s *types.Script, assets []*types.AcquiredAsset, outDir string) ([]types.SceneSegment, error) {
	segments := make([]types.SceneSegment, len(s.Scenes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workerCount(p.cfg.Concurrency.RenderWorkers, 2))
	for i := range s.Scenes {
		i := i
		g.Go(func() error {
			seg, err := p.renderer.Render(gctx, assets[i], s.Scenes[i], outDir)
			if err != nil {
				return err
			}
			segments[i] = *seg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return segments, nil
}

func workerCount(configured, fallback int) int {
	if configured > 0 {
		return configured
	}
	return fallback
}
