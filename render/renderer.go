package render

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"

	"storyreel-pipeline/compositor"
	"storyreel-pipeline/config"
	"storyreel-pipeline/types"
)

// probeSlack absorbs container rounding when verifying segment durations
const probeSlack = 0.02

// RenderError marks a scene whose asset could not become a valid
// fixed-length segment, after the plain-render degradation was tried
type RenderError struct {
	SceneNumber int
	Stage       string
	AssetPath   string
	Err         error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render scene %d (%s, asset %s): %v", e.SceneNumber, e.Stage, e.AssetPath, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// Renderer turns one (asset, scene) pair into a SceneSegment whose duration
// equals the scene's narration duration within one frame interval
type Renderer struct {
	cfg  *config.Config
	comp compositor.Compositor
	seed int64
}

// New creates a Renderer. Seed 0 selects a fixed default so runs are
// reproducible unless variety is explicitly requested.
func New(cfg *config.Config, comp compositor.Compositor) *Renderer {
	seed := cfg.Render.Seed
	if seed == 0 {
		seed = 1
	}
	return &Renderer{cfg: cfg, comp: comp, seed: seed}
}

// sceneRNG derives an independent generator per scene. Render runs on a
// worker pool, so a shared generator would race and tie offsets to worker
// scheduling; keying by scene number keeps each scene's treatment stable
// no matter which worker picks it up.
func (r *Renderer) sceneRNG(sceneNumber int) *rand.Rand {
	return rand.New(rand.NewSource(r.seed + int64(sceneNumber)))
}

// Render produces the scene's segment in outDir
func (r *Renderer) Render(ctx context.Context, asset *types.AcquiredAsset, scene types.Scene, outDir string) (*types.SceneSegment, error) {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, &RenderError{SceneNumber: scene.Number, Stage: "prepare", AssetPath: asset.LocalPath, Err: err}
	}

	silent := filepath.Join(outDir, fmt.Sprintf("visual_%03d.mp4", scene.Number))
	target := scene.TargetDurationSec
	rng := r.sceneRNG(scene.Number)

	var err error
	switch asset.Kind {
	case types.KindVideo:
		err = r.fitVideo(ctx, asset, silent, target, rng)
	default:
		// Images and placeholder cards get the same motion treatment
		err = r.motionStill(ctx, asset, silent, target, rng)
	}
	if err != nil {
		// Degrade to a plain scaled-and-padded static rendering before
		// giving up on the scene
		log.Printf("[render] ⚠️ Scene %d motion path failed: %v, degrading to static render", scene.Number, err)
		if err = r.comp.RenderStill(ctx, asset.LocalPath, silent, target); err != nil {
			return nil, &RenderError{SceneNumber: scene.Number, Stage: "visual", AssetPath: asset.LocalPath, Err: err}
		}
	}

	muxed := filepath.Join(outDir, fmt.Sprintf("segment_%03d.mp4", scene.Number))
	if err := r.comp.MuxNarration(ctx, silent, scene.AudioPath, muxed); err != nil {
		return nil, &RenderError{SceneNumber: scene.Number, Stage: "mux", AssetPath: asset.LocalPath, Err: err}
	}
	if !r.cfg.Render.KeepSegments {
		os.Remove(silent)
	}

	info, err := r.comp.Probe(ctx, muxed)
	if err != nil {
		return nil, &RenderError{SceneNumber: scene.Number, Stage: "verify", AssetPath: asset.LocalPath, Err: err}
	}
	if math.Abs(info.DurationSec-target) > r.tolerance() {
		return nil, &RenderError{
			SceneNumber: scene.Number, Stage: "verify", AssetPath: asset.LocalPath,
			Err: fmt.Errorf("segment is %.3fs, target %.3fs", info.DurationSec, target),
		}
	}

	return &types.SceneSegment{
		SceneNumber: scene.Number,
		VideoPath:   muxed,
		DurationSec: info.DurationSec,
	}, nil
}

// fitVideo loops short clips and trims long ones to the exact target,
// with a randomized-but-bounded start offset for long clips
func (r *Renderer) fitVideo(ctx context.Context, asset *types.AcquiredAsset, outPath string, target float64, rng *rand.Rand) error {
	clipDur := 0.0
	if asset.ActualDurationSec != nil {
		clipDur = *asset.ActualDurationSec
	}
	if clipDur <= 0 {
		info, err := r.comp.Probe(ctx, asset.LocalPath)
		if err != nil {
			return err
		}
		clipDur = info.DurationSec
	}

	spec := compositor.ClipSpec{DurationSec: target}
	if clipDur < target {
		spec.LoopCount = int(target/clipDur) + 1
	} else if clipDur > target {
		// Never start inside the final target-duration window, or the
		// remaining footage would be shorter than the segment needs
		maxStart := clipDur - target
		if maxStart > 0 {
			spec.StartOffsetSec = rng.Float64() * maxStart
		}
	}
	return r.comp.FitClip(ctx, asset.LocalPath, outPath, spec)
}

// motionStill applies the Ken Burns treatment with a seeded anchor so the
// drift direction varies between scenes but reproduces across runs
func (r *Renderer) motionStill(ctx context.Context, asset *types.AcquiredAsset, outPath string, target float64, rng *rand.Rand) error {
	spec := compositor.MotionSpec{
		ZoomFactor: r.cfg.Render.KenBurnsZoomFactor,
		AnchorX:    0.2 + 0.6*rng.Float64(),
		AnchorY:    0.2 + 0.6*rng.Float64(),
	}
	return r.comp.RenderMotion(ctx, asset.LocalPath, outPath, target, spec)
}

// tolerance is one frame interval plus probe slack
func (r *Renderer) tolerance() float64 {
	fps := r.cfg.Frame.FPS
	if fps <= 0 {
		fps = 30
	}
	return 1.0/float64(fps) + probeSlack
}
