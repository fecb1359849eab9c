package script

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"storyreel-pipeline/compositor"
	"storyreel-pipeline/types"
)

// Load reads a script file produced by the upstream generator. Audio paths
// are resolved relative to the script file's directory when not absolute.
func Load(path string) (*types.Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	var s types.Script
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	if len(s.Scenes) == 0 {
		return nil, fmt.Errorf("script %s has no scenes", path)
	}

	base := filepath.Dir(path)
	for i := range s.Scenes {
		if s.Scenes[i].Number == 0 {
			s.Scenes[i].Number = i + 1
		}
		if s.Scenes[i].AudioPath != "" && !filepath.IsAbs(s.Scenes[i].AudioPath) {
			s.Scenes[i].AudioPath = filepath.Join(base, s.Scenes[i].AudioPath)
		}
	}
	return &s, nil
}

// MeasureDurations probes every scene's narration file and overwrites the
// target durations with the measured values. The audio file is the
// authority: estimates from text never reach the renderer.
func MeasureDurations(ctx context.Context, s *types.Script, comp compositor.Compositor) error {
	total := 0.0
	for i := range s.Scenes {
		scene := &s.Scenes[i]
		info, err := comp.Probe(ctx, scene.AudioPath)
		if err != nil {
			return fmt.Errorf("scene %d audio %s: %w", scene.Number, scene.AudioPath, err)
		}
		if !info.HasAudio || info.DurationSec <= 0 {
			return fmt.Errorf("scene %d audio %s has no measurable audio", scene.Number, scene.AudioPath)
		}
		scene.TargetDurationSec = info.DurationSec
		total += info.DurationSec
	}
	s.TotalSec = total
	log.Printf("[script] Measured %d scenes, %.1fs narration total", len(s.Scenes), total)
	return nil
}
