package script

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"storyreel-pipeline/compositor"
)

// fakeComp answers audio probes from a per-path duration table
type fakeComp struct {
	durations map[string]float64
}

func (f *fakeComp) Probe(ctx context.Context, path string) (*compositor.MediaInfo, error) {
	d, ok := f.durations[filepath.Base(path)]
	if !ok {
		return nil, fmt.Errorf("unknown file %s", path)
	}
	return &compositor.MediaInfo{DurationSec: d, HasAudio: true}, nil
}

func (f *fakeComp) RenderStill(ctx context.Context, in, out string, d float64) error { return nil }
func (f *fakeComp) RenderMotion(ctx context.Context, in, out string, d float64, s compositor.MotionSpec) error {
	return nil
}
func (f *fakeComp) FitClip(ctx context.Context, in, out string, s compositor.ClipSpec) error {
	return nil
}
func (f *fakeComp) RenderCard(ctx context.Context, text, out string) error   { return nil }
func (f *fakeComp) MuxNarration(ctx context.Context, v, a, out string) error { return nil }
func (f *fakeComp) FadeEdges(ctx context.Context, in, out string, d, fi, fo float64) error {
	return nil
}
func (f *fakeComp) Concat(ctx context.Context, segs []string, out string) error { return nil }
func (f *fakeComp) MixMusic(ctx context.Context, v, m, out string, s compositor.MusicSpec) error {
	return nil
}

func writeScript(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "script.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadResolvesRelativeAudioPaths(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, `{
		"title": "Harbor Story",
		"scenes": [
			{"narration_text": "First.", "audio_path": "audio/scene_001.mp3", "visual_query": "harbor dawn"},
			{"narration_text": "Second.", "audio_path": "audio/scene_002.mp3", "visual_query": "storm"}
		]
	}`)

	s, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if s.Scenes[0].Number != 1 || s.Scenes[1].Number != 2 {
		t.Fatalf("scene numbering not applied: %+v", s.Scenes)
	}
	want := filepath.Join(dir, "audio", "scene_001.mp3")
	if s.Scenes[0].AudioPath != want {
		t.Fatalf("audio path not resolved: %s", s.Scenes[0].AudioPath)
	}
}

func TestLoadRejectsEmptyScript(t *testing.T) {
	path := writeScript(t, t.TempDir(), `{"title": "Empty", "scenes": []}`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for script with no scenes")
	}
}

func TestMeasureDurationsOverridesTargets(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, `{
		"title": "Harbor Story",
		"scenes": [
			{"narration_text": "First.", "audio_path": "a.mp3", "target_duration_sec": 99},
			{"narration_text": "Second.", "audio_path": "b.mp3"}
		]
	}`)
	s, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	comp := &fakeComp{durations: map[string]float64{"a.mp3": 5.25, "b.mp3": 7.5}}
	if err := MeasureDurations(context.Background(), s, comp); err != nil {
		t.Fatal(err)
	}
	// The measured file duration is authoritative, not the script's claim
	if s.Scenes[0].TargetDurationSec != 5.25 {
		t.Fatalf("scene 1 kept its estimated duration: %f", s.Scenes[0].TargetDurationSec)
	}
	if s.TotalSec != 12.75 {
		t.Fatalf("total not recalculated: %f", s.TotalSec)
	}
}

func TestMeasureDurationsFailsOnUnreadableAudio(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, `{
		"title": "Broken",
		"scenes": [{"narration_text": "x", "audio_path": "missing.mp3"}]
	}`)
	s, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := MeasureDurations(context.Background(), s, &fakeComp{durations: map[string]float64{}}); err == nil {
		t.Fatal("expected probe failure to surface")
	}
}
