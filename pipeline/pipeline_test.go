package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"storyreel-pipeline/config"
	"storyreel-pipeline/types"
)

// fakeAcquirer tracks concurrent callers and hands every scene a placeholder
type fakeAcquirer struct {
	inFlight int32
	peak     int32
	err      error
}

func (f *fakeAcquirer) Acquire(ctx context.Context, scene types.Scene) (*types.AcquiredAsset, error) {
	cur := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		old := atomic.LoadInt32(&f.peak)
		if cur <= old || atomic.CompareAndSwapInt32(&f.peak, old, cur) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	if f.err != nil {
		return nil, f.err
	}
	return &types.AcquiredAsset{
		Kind:        types.KindPlaceholder,
		LocalPath:   "placeholder.jpg",
		OriginTier:  types.TierPlaceholder,
		OriginQuery: scene.VisualQuery,
	}, nil
}

type fakeRenderer struct{}

func (fakeRenderer) Render(ctx context.Context, asset *types.AcquiredAsset, scene types.Scene, outDir string) (*types.SceneSegment, error) {
	return &types.SceneSegment{
		SceneNumber: scene.Number,
		VideoPath:   outDir + "/seg.mp4",
		DurationSec: scene.TargetDurationSec,
	}, nil
}

type fakeAssembler struct {
	mu         sync.Mutex
	segments   []types.SceneSegment
	provenance []types.SceneProvenance
}

func (f *fakeAssembler) Assemble(ctx context.Context, title string, segments []types.SceneSegment, provenance []types.SceneProvenance, outDir string) (*types.FinalVideo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.segments = segments
	f.provenance = provenance
	total := 0.0
	for _, s := range segments {
		total += s.DurationSec
	}
	return &types.FinalVideo{Path: outDir + "/final.mp4", TotalDurationSec: total, SceneCount: len(segments), Scenes: provenance}, nil
}

func threeSceneScript() *types.Script {
	return &types.Script{
		Title: "Harbor Story",
		Scenes: []types.Scene{
			{Number: 1, VisualQuery: "harbor dawn", TargetDurationSec: 5},
			{Number: 2, VisualQuery: "storm clouds", TargetDurationSec: 7},
			{Number: 3, VisualQuery: "calm sea", TargetDurationSec: 5},
		},
	}
}

func TestAllPlaceholdersStillProduceFullVideo(t *testing.T) {
	cfg := config.Default()
	asm := &fakeAssembler{}
	p := New(cfg, &fakeAcquirer{}, fakeRenderer{}, asm)

	final, err := p.Run(context.Background(), threeSceneScript(), t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if final.SceneCount != 3 {
		t.Fatalf("expected 3 scenes, got %d", final.SceneCount)
	}
	if final.TotalDurationSec != 17.0 {
		t.Fatalf("expected 17s total, got %f", final.TotalDurationSec)
	}
	for i, prov := range asm.provenance {
		if prov.Tier != types.TierPlaceholder {
			t.Fatalf("scene %d provenance should mark the placeholder tier, got %s", i+1, prov.Tier)
		}
	}
}

func TestSegmentsKeepSceneOrderDespiteParallelism(t *testing.T) {
	cfg := config.Default()
	asm := &fakeAssembler{}
	p := New(cfg, &fakeAcquirer{}, fakeRenderer{}, asm)

	if _, err := p.Run(context.Background(), threeSceneScript(), t.TempDir()); err != nil {
		t.Fatal(err)
	}
	for i, seg := range asm.segments {
		if seg.SceneNumber != i+1 {
			t.Fatalf("segment %d carries scene %d", i, seg.SceneNumber)
		}
	}
}

func TestAcquisitionPoolIsBounded(t *testing.T) {
	cfg := config.Default()
	cfg.Concurrency.AcquireWorkers = 2

	acq := &fakeAcquirer{}
	script := &types.Script{Title: "Wide"}
	for i := 1; i <= 12; i++ {
		script.Scenes = append(script.Scenes, types.Scene{Number: i, VisualQuery: "q", TargetDurationSec: 1})
	}

	p := New(cfg, acq, fakeRenderer{}, &fakeAssembler{})
	if _, err := p.Run(context.Background(), script, t.TempDir()); err != nil {
		t.Fatal(err)
	}
	if peak := atomic.LoadInt32(&acq.peak); peak > 2 {
		t.Fatalf("acquisition pool exceeded its bound: peak %d", peak)
	}
}

func TestAcquisitionFailureAbortsRun(t *testing.T) {
	cfg := config.Default()
	acq := &fakeAcquirer{err: errors.New("cancelled")}
	p := New(cfg, acq, fakeRenderer{}, &fakeAssembler{})

	if _, err := p.Run(context.Background(), threeSceneScript(), t.TempDir()); err == nil {
		t.Fatal("expected error to propagate")
	}
}
