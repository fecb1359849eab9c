package timeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"

	"storyreel-pipeline/compositor"
	"storyreel-pipeline/config"
	"storyreel-pipeline/types"
)

// AssemblyError marks a concatenation/mixing failure; fatal for the run
type AssemblyError struct {
	Stage string
	Err   error
}

func (e *AssemblyError) Error() string {
	return fmt.Sprintf("assembly %s: %v", e.Stage, e.Err)
}

func (e *AssemblyError) Unwrap() error { return e.Err }

// Assembler concatenates scene segments into the final video, applies
// boundary transitions, and optionally mixes a background music bed under
// the narration
type Assembler struct {
	cfg  *config.Config
	comp compositor.Compositor
}

// New creates an Assembler
func New(cfg *config.Config, comp compositor.Compositor) *Assembler {
	return &Assembler{cfg: cfg, comp: comp}
}

// Assemble joins segments in scene order and emits the FinalVideo plus its
// provenance sidecar. provenance must carry one record per segment.
func (a *Assembler) Assemble(ctx context.Context, title string, segments []types.SceneSegment, provenance []types.SceneProvenance, outDir string) (*types.FinalVideo, error) {
	if len(segments) == 0 {
		return nil, &AssemblyError{Stage: "concat", Err: fmt.Errorf("no segments")}
	}

	ordered := make([]types.SceneSegment, len(segments))
	copy(ordered, segments)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].SceneNumber < ordered[j].SceneNumber
	})

	paths, err := a.prepareSegments(ctx, ordered, outDir)
	if err != nil {
		return nil, err
	}

	concatPath := filepath.Join(outDir, "timeline.mp4")
	if err := a.comp.Concat(ctx, paths, concatPath); err != nil {
		return nil, &AssemblyError{Stage: "concat", Err: err}
	}

	finalPath := concatPath
	if a.cfg.Timeline.MusicFile != "" {
		mixed, err := a.mixMusic(ctx, concatPath, sumDurations(ordered), outDir)
		if err != nil {
			log.Printf("[timeline] ⚠️ Music mix failed: %v, using narration only", err)
		} else {
			finalPath = mixed
		}
	}

	info, err := a.comp.Probe(ctx, finalPath)
	if err != nil {
		return nil, &AssemblyError{Stage: "verify", Err: err}
	}
	if err := a.checkTotal(info.DurationSec, ordered); err != nil {
		return nil, err
	}

	final := &types.FinalVideo{
		Path:             finalPath,
		TotalDurationSec: info.DurationSec,
		SceneCount:       len(ordered),
		Width:            info.Width,
		Height:           info.Height,
		Scenes:           provenance,
	}

	if err := a.writeSidecar(title, final, outDir); err != nil {
		return nil, err
	}

	log.Printf("[timeline] ✅ Final video: %s (%.1fs, %d scenes)", finalPath, info.DurationSec, len(ordered))
	return final, nil
}

// prepareSegments applies boundary fades when transitions are enabled. The
// first segment only fades in from black and the last only fades out, so
// the very edges of the video meet silence/black cleanly.
func (a *Assembler) prepareSegments(ctx context.Context, ordered []types.SceneSegment, outDir string) ([]string, error) {
	paths := make([]string, len(ordered))
	if !a.cfg.Timeline.TransitionsEnabled {
		for i, seg := range ordered {
			paths[i] = seg.VideoPath
		}
		return paths, nil
	}

	fade := a.cfg.Timeline.FadeSec
	for i, seg := range ordered {
		fadeIn, fadeOut := fade, fade
		// Keep fades from swallowing very short segments
		if seg.DurationSec < fade*3 {
			fadeIn, fadeOut = seg.DurationSec/6, seg.DurationSec/6
		}
		out := filepath.Join(outDir, fmt.Sprintf("faded_%03d.mp4", seg.SceneNumber))
		if err := a.comp.FadeEdges(ctx, seg.VideoPath, out, seg.DurationSec, fadeIn, fadeOut); err != nil {
			return nil, &AssemblyError{Stage: "transition", Err: fmt.Errorf("scene %d: %w", seg.SceneNumber, err)}
		}
		paths[i] = out
	}
	return paths, nil
}

// mixMusic loops or trims the configured music file under the timeline
func (a *Assembler) mixMusic(ctx context.Context, videoPath string, totalSec float64, outDir string) (string, error) {
	musicInfo, err := a.comp.Probe(ctx, a.cfg.Timeline.MusicFile)
	if err != nil {
		return "", fmt.Errorf("probe music: %w", err)
	}

	spec := compositor.MusicSpec{
		TotalDurationSec: totalSec,
		Volume:           a.cfg.Timeline.MusicVolume,
	}
	if musicInfo.DurationSec > 0 && musicInfo.DurationSec < totalSec {
		spec.LoopCount = int(totalSec/musicInfo.DurationSec) + 1
	}

	outPath := filepath.Join(outDir, "timeline_music.mp4")
	if err := a.comp.MixMusic(ctx, videoPath, a.cfg.Timeline.MusicFile, outPath, spec); err != nil {
		return "", err
	}
	return outPath, nil
}

// checkTotal verifies the assembly-total invariant: the measured duration
// stays within a bounded adjustment of the sum of segment durations
func (a *Assembler) checkTotal(measured float64, ordered []types.SceneSegment) error {
	expected := sumDurations(ordered)
	bound := 0.5 + float64(len(ordered))*0.05
	if math.Abs(measured-expected) > bound {
		return &AssemblyError{
			Stage: "verify",
			Err:   fmt.Errorf("total %.3fs deviates from segment sum %.3fs by more than %.2fs", measured, expected, bound),
		}
	}
	return nil
}

// writeSidecar emits the human-inspectable provenance record
func (a *Assembler) writeSidecar(title string, final *types.FinalVideo, outDir string) error {
	record := struct {
		Title string `json:"title"`
		*types.FinalVideo
		TransitionsEnabled bool    `json:"transitions_enabled"`
		FadeSec            float64 `json:"fade_sec,omitempty"`
		MusicFile          string  `json:"music_file,omitempty"`
	}{
		Title:              title,
		FinalVideo:         final,
		TransitionsEnabled: a.cfg.Timeline.TransitionsEnabled,
		FadeSec:            a.cfg.Timeline.FadeSec,
		MusicFile:          a.cfg.Timeline.MusicFile,
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return &AssemblyError{Stage: "sidecar", Err: err}
	}
	path := filepath.Join(outDir, "provenance.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return &AssemblyError{Stage: "sidecar", Err: err}
	}
	log.Printf("[timeline] Provenance sidecar: %s", path)
	return nil
}

func sumDurations(segments []types.SceneSegment) float64 {
	total := 0.0
	for _, seg := range segments {
		total += seg.DurationSec
	}
	return total
}
