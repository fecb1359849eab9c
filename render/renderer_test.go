package render

import (
	"context"
	"errors"
	"sync"
	"testing"

	"storyreel-pipeline/compositor"
	"storyreel-pipeline/config"
	"storyreel-pipeline/types"
)

// fakeComp records which rendering paths were taken and answers probes
// with configurable durations; safe for concurrent renders
type fakeComp struct {
	motionErr error
	stillErr  error
	probeSec  float64

	mu          sync.Mutex
	motionCalls int
	stillCalls  int
	fitSpecs    []compositor.ClipSpec
	muxCalls    int
}

func (f *fakeComp) Probe(ctx context.Context, path string) (*compositor.MediaInfo, error) {
	return &compositor.MediaInfo{Width: 1920, Height: 1080, DurationSec: f.probeSec, HasVideo: true, HasAudio: true}, nil
}

func (f *fakeComp) RenderMotion(ctx context.Context, in, out string, d float64, s compositor.MotionSpec) error {
	f.mu.Lock()
	f.motionCalls++
	f.mu.Unlock()
	return f.motionErr
}

func (f *fakeComp) RenderStill(ctx context.Context, in, out string, d float64) error {
	f.mu.Lock()
	f.stillCalls++
	f.mu.Unlock()
	return f.stillErr
}

func (f *fakeComp) FitClip(ctx context.Context, in, out string, s compositor.ClipSpec) error {
	f.mu.Lock()
	f.fitSpecs = append(f.fitSpecs, s)
	f.mu.Unlock()
	return nil
}

func (f *fakeComp) MuxNarration(ctx context.Context, v, a, out string) error {
	f.mu.Lock()
	f.muxCalls++
	f.mu.Unlock()
	return nil
}

func (f *fakeComp) RenderCard(ctx context.Context, text, out string) error { return nil }
func (f *fakeComp) FadeEdges(ctx context.Context, in, out string, d, fi, fo float64) error {
	return nil
}
func (f *fakeComp) Concat(ctx context.Context, segs []string, out string) error { return nil }
func (f *fakeComp) MixMusic(ctx context.Context, v, m, out string, s compositor.MusicSpec) error {
	return nil
}

func imageAsset() *types.AcquiredAsset {
	return &types.AcquiredAsset{
		Kind:         types.KindImage,
		LocalPath:    "asset.jpg",
		ActualWidth:  1920,
		ActualHeight: 1080,
		OriginTier:   types.TierPrimary,
	}
}

func videoAsset(durationSec float64) *types.AcquiredAsset {
	return &types.AcquiredAsset{
		Kind:              types.KindVideo,
		LocalPath:         "clip.mp4",
		ActualWidth:       1920,
		ActualHeight:      1080,
		ActualDurationSec: types.FloatPtr(durationSec),
		OriginTier:        types.TierPrimary,
	}
}

func testScene(targetSec float64) types.Scene {
	return types.Scene{Number: 3, NarrationText: "words", AudioPath: "scene.mp3", TargetDurationSec: targetSec}
}

func TestImageGetsMotionTreatmentAndNarration(t *testing.T) {
	comp := &fakeComp{probeSec: 6.0}
	r := New(config.Default(), comp)

	seg, err := r.Render(context.Background(), imageAsset(), testScene(6.0), t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if comp.motionCalls != 1 || comp.stillCalls != 0 {
		t.Fatalf("expected exactly one motion render, got motion=%d still=%d", comp.motionCalls, comp.stillCalls)
	}
	if comp.muxCalls != 1 {
		t.Fatalf("narration was not muxed")
	}
	if seg.SceneNumber != 3 || seg.DurationSec != 6.0 {
		t.Fatalf("bad segment: %+v", seg)
	}
}

func TestMotionFailureDegradesToStaticRender(t *testing.T) {
	comp := &fakeComp{probeSec: 5.0, motionErr: errors.New("zoompan unsupported")}
	r := New(config.Default(), comp)

	if _, err := r.Render(context.Background(), imageAsset(), testScene(5.0), t.TempDir()); err != nil {
		t.Fatalf("degraded path should succeed: %v", err)
	}
	if comp.stillCalls != 1 {
		t.Fatalf("static fallback was not attempted")
	}
}

func TestBothRenderPathsFailingIsRenderError(t *testing.T) {
	comp := &fakeComp{motionErr: errors.New("bad"), stillErr: errors.New("worse")}
	r := New(config.Default(), comp)

	_, err := r.Render(context.Background(), imageAsset(), testScene(5.0), t.TempDir())
	var rerr *RenderError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected RenderError, got %v", err)
	}
	if rerr.SceneNumber != 3 {
		t.Fatalf("error lost scene context: %+v", rerr)
	}
}

func TestDurationMismatchIsRenderError(t *testing.T) {
	// Probe reports a segment well off the 6s target
	comp := &fakeComp{probeSec: 4.2}
	r := New(config.Default(), comp)

	_, err := r.Render(context.Background(), imageAsset(), testScene(6.0), t.TempDir())
	var rerr *RenderError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected RenderError on duration mismatch, got %v", err)
	}
	if rerr.Stage != "verify" {
		t.Fatalf("expected verify stage, got %s", rerr.Stage)
	}
}

func TestOneFrameDeviationTolerated(t *testing.T) {
	comp := &fakeComp{probeSec: 6.0 + 1.0/30.0}
	r := New(config.Default(), comp)

	if _, err := r.Render(context.Background(), imageAsset(), testScene(6.0), t.TempDir()); err != nil {
		t.Fatalf("one frame of deviation must pass: %v", err)
	}
}

func TestShortClipIsLooped(t *testing.T) {
	comp := &fakeComp{probeSec: 9.0}
	r := New(config.Default(), comp)

	if _, err := r.Render(context.Background(), videoAsset(2.5), testScene(9.0), t.TempDir()); err != nil {
		t.Fatal(err)
	}
	if len(comp.fitSpecs) != 1 {
		t.Fatalf("expected one clip fit, got %d", len(comp.fitSpecs))
	}
	spec := comp.fitSpecs[0]
	if spec.LoopCount < 3 {
		t.Fatalf("2.5s clip needs at least 3 extra loops for 9s, got %d", spec.LoopCount)
	}
	if spec.StartOffsetSec != 0 {
		t.Fatalf("looped clip must start at zero, got %f", spec.StartOffsetSec)
	}
	if spec.DurationSec != 9.0 {
		t.Fatalf("fit duration %f != target", spec.DurationSec)
	}
}

func TestLongClipTrimStaysOutOfFinalWindow(t *testing.T) {
	comp := &fakeComp{probeSec: 6.0}
	r := New(config.Default(), comp)

	// 20s clip against a 6s target: offset must stay within [0, 14]
	if _, err := r.Render(context.Background(), videoAsset(20.0), testScene(6.0), t.TempDir()); err != nil {
		t.Fatal(err)
	}
	spec := comp.fitSpecs[0]
	if spec.StartOffsetSec < 0 || spec.StartOffsetSec > 14.0 {
		t.Fatalf("offset %f would leave less footage than the target needs", spec.StartOffsetSec)
	}
	if spec.LoopCount != 0 {
		t.Fatalf("long clip must not loop")
	}
}

func TestConcurrentRendersKeepPerSceneOffsets(t *testing.T) {
	cfg := config.Default()
	cfg.Render.Seed = 42

	// Render 8 scenes through one shared Renderer, all at once; each scene's
	// trim offset must match a sequential render of the same scene, so the
	// outcome is independent of worker scheduling
	shared := &fakeComp{probeSec: 6.0}
	r := New(cfg, shared)
	var wg sync.WaitGroup
	for n := 1; n <= 8; n++ {
		n := n
		wg.Add(1)
		go func() {
			defer wg.Done()
			scene := types.Scene{Number: n, AudioPath: "scene.mp3", TargetDurationSec: 6.0}
			if _, err := r.Render(context.Background(), videoAsset(20.0), scene, t.TempDir()); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	concurrent := make(map[float64]bool)
	for _, spec := range shared.fitSpecs {
		concurrent[spec.StartOffsetSec] = true
	}
	if len(concurrent) != 8 {
		t.Fatalf("expected 8 distinct per-scene offsets, got %d", len(concurrent))
	}

	for n := 1; n <= 8; n++ {
		comp := &fakeComp{probeSec: 6.0}
		seq := New(cfg, comp)
		scene := types.Scene{Number: n, AudioPath: "scene.mp3", TargetDurationSec: 6.0}
		if _, err := seq.Render(context.Background(), videoAsset(20.0), scene, t.TempDir()); err != nil {
			t.Fatal(err)
		}
		if got := comp.fitSpecs[0].StartOffsetSec; !concurrent[got] {
			t.Fatalf("scene %d sequential offset %f never produced by the concurrent pass", n, got)
		}
	}
}

func TestSeededOffsetsReproduce(t *testing.T) {
	cfg := config.Default()
	cfg.Render.Seed = 42

	var offsets [2]float64
	for run := 0; run < 2; run++ {
		comp := &fakeComp{probeSec: 6.0}
		r := New(cfg, comp)
		if _, err := r.Render(context.Background(), videoAsset(20.0), testScene(6.0), t.TempDir()); err != nil {
			t.Fatal(err)
		}
		offsets[run] = comp.fitSpecs[0].StartOffsetSec
	}
	if offsets[0] != offsets[1] {
		t.Fatalf("same seed produced different offsets: %f vs %f", offsets[0], offsets[1])
	}
}
