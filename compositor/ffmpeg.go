package compositor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// FFmpeg implements Compositor by shelling out to ffmpeg/ffprobe
type FFmpeg struct {
	Width  int
	Height int
	FPS    int
	Preset string
	CRF    int
}

// NewFFmpeg creates an ffmpeg-backed compositor for the given frame
func NewFFmpeg(width, height, fps int, preset string, crf int) *FFmpeg {
	return &FFmpeg{Width: width, Height: height, FPS: fps, Preset: preset, CRF: crf}
}

// Probe measures a media file with ffprobe
func (f *FFmpeg) Probe(ctx context.Context, path string) (*MediaInfo, error) {
	out, err := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	).Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe %s: %w", filepath.Base(path), err)
	}

	var probe struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
		Streams []struct {
			CodecType string `json:"codec_type"`
			Width     int    `json:"width"`
			Height    int    `json:"height"`
		} `json:"streams"`
	}
	if err := json.Unmarshal(out, &probe); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	info := &MediaInfo{}
	if probe.Format.Duration != "" {
		info.DurationSec, _ = strconv.ParseFloat(strings.TrimSpace(probe.Format.Duration), 64)
	}
	for _, s := range probe.Streams {
		switch s.CodecType {
		case "video":
			info.HasVideo = true
			if s.Width > 0 {
				info.Width = s.Width
				info.Height = s.Height
			}
		case "audio":
			info.HasAudio = true
		}
	}
	if !info.HasVideo && !info.HasAudio {
		return nil, fmt.Errorf("no decodable streams in %s", filepath.Base(path))
	}
	return info, nil
}

// RenderStill loops a static image for the duration, scaled and padded
func (f *FFmpeg) RenderStill(ctx context.Context, imagePath, outPath string, durationSec float64) error {
	return f.run(ctx, "-y",
		"-loop", "1",
		"-i", imagePath,
		"-vf", f.scalePadFilter(),
		"-t", fmt.Sprintf("%.3f", durationSec),
		"-r", strconv.Itoa(f.FPS),
		"-c:v", "libx264",
		"-preset", f.Preset,
		"-crf", strconv.Itoa(f.CRF),
		"-pix_fmt", "yuv420p",
		"-an",
		outPath,
	)
}

// RenderMotion applies a slow zoompan drift toward the spec's anchor point
func (f *FFmpeg) RenderMotion(ctx context.Context, imagePath, outPath string, durationSec float64, spec MotionSpec) error {
	totalFrames := int(durationSec * float64(f.FPS))
	if totalFrames < 1 {
		totalFrames = 1
	}
	zoomStep := (spec.ZoomFactor - 1.0) / float64(totalFrames)

	// Upscale before zoompan to avoid jitter, then back to the target frame
	filter := fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,"+
			"zoompan=z='min(zoom+%.6f,%.3f)':x='(iw-iw/zoom)*%.3f':y='(ih-ih/zoom)*%.3f':d=%d:fps=%d:s=%dx%d",
		f.Width*2, f.Height*2, f.Width*2, f.Height*2,
		zoomStep, spec.ZoomFactor,
		spec.AnchorX, spec.AnchorY,
		totalFrames, f.FPS,
		f.Width, f.Height,
	)

	return f.run(ctx, "-y",
		"-loop", "1",
		"-i", imagePath,
		"-vf", filter,
		"-t", fmt.Sprintf("%.3f", durationSec),
		"-c:v", "libx264",
		"-preset", f.Preset,
		"-crf", strconv.Itoa(f.CRF),
		"-pix_fmt", "yuv420p",
		"-an",
		outPath,
	)
}

// FitClip trims/loops a clip to the exact duration and normalizes it to the
// frame by scaling up then cropping, so nothing is ever stretched
func (f *FFmpeg) FitClip(ctx context.Context, clipPath, outPath string, spec ClipSpec) error {
	args := []string{"-y"}
	if spec.LoopCount > 0 {
		args = append(args, "-stream_loop", strconv.Itoa(spec.LoopCount))
	}
	if spec.StartOffsetSec > 0 {
		args = append(args, "-ss", fmt.Sprintf("%.3f", spec.StartOffsetSec))
	}
	args = append(args,
		"-i", clipPath,
		"-t", fmt.Sprintf("%.3f", spec.DurationSec),
		"-vf", f.scaleCropFilter(),
		"-r", strconv.Itoa(f.FPS),
		"-c:v", "libx264",
		"-preset", f.Preset,
		"-crf", strconv.Itoa(f.CRF),
		"-pix_fmt", "yuv420p",
		"-an",
		outPath,
	)
	return f.run(ctx, args...)
}

// RenderCard draws a dark vertical gradient with the text centered on it
func (f *FFmpeg) RenderCard(ctx context.Context, text, outPath string) error {
	gradient := fmt.Sprintf(
		"gradients=s=%dx%d:c0=0x0b1220:c1=0x33415c:x0=0:y0=0:x1=0:y1=%d:d=1",
		f.Width, f.Height, f.Height,
	)
	drawtext := fmt.Sprintf(
		"drawtext=text='%s':fontcolor=white:fontsize=%d:box=1:boxcolor=black@0.4:boxborderw=24:x=(w-text_w)/2:y=(h-text_h)/2",
		escapeText(text), f.Height/18,
	)
	return f.run(ctx, "-y",
		"-f", "lavfi",
		"-i", gradient,
		"-vf", drawtext,
		"-frames:v", "1",
		outPath,
	)
}

// MuxNarration copies the visual track and encodes the narration onto it
func (f *FFmpeg) MuxNarration(ctx context.Context, videoPath, audioPath, outPath string) error {
	return f.run(ctx, "-y",
		"-i", videoPath,
		"-i", audioPath,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "copy",
		"-c:a", "aac",
		"-b:a", "192k",
		"-shortest",
		outPath,
	)
}

// FadeEdges re-encodes a segment with video and audio fades at its edges
func (f *FFmpeg) FadeEdges(ctx context.Context, inPath, outPath string, durationSec, fadeInSec, fadeOutSec float64) error {
	var vf, af []string
	if fadeInSec > 0 {
		vf = append(vf, fmt.Sprintf("fade=t=in:st=0:d=%.3f", fadeInSec))
		af = append(af, fmt.Sprintf("afade=t=in:st=0:d=%.3f", fadeInSec))
	}
	if fadeOutSec > 0 {
		start := durationSec - fadeOutSec
		if start < 0 {
			start = 0
		}
		vf = append(vf, fmt.Sprintf("fade=t=out:st=%.3f:d=%.3f", start, fadeOutSec))
		af = append(af, fmt.Sprintf("afade=t=out:st=%.3f:d=%.3f", start, fadeOutSec))
	}
	if len(vf) == 0 {
		return f.run(ctx, "-y", "-i", inPath, "-c", "copy", outPath)
	}
	return f.run(ctx, "-y",
		"-i", inPath,
		"-vf", strings.Join(vf, ","),
		"-af", strings.Join(af, ","),
		"-c:v", "libx264",
		"-preset", f.Preset,
		"-crf", strconv.Itoa(f.CRF),
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "192k",
		outPath,
	)
}

// Concat joins uniformly-encoded segments with the concat demuxer
func (f *FFmpeg) Concat(ctx context.Context, segmentPaths []string, outPath string) error {
	if len(segmentPaths) == 0 {
		return fmt.Errorf("no segments to concatenate")
	}

	listFile := outPath + ".concat.txt"
	var lines []string
	for _, p := range segmentPaths {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		lines = append(lines, fmt.Sprintf("file '%s'", abs))
	}
	if err := os.WriteFile(listFile, []byte(strings.Join(lines, "\n")), 0644); err != nil {
		return err
	}
	defer os.Remove(listFile)

	return f.run(ctx, "-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-c", "copy",
		"-movflags", "+faststart",
		outPath,
	)
}

// MixMusic lays an attenuated, looped/trimmed music bed under the narration
func (f *FFmpeg) MixMusic(ctx context.Context, videoPath, musicPath, outPath string, spec MusicSpec) error {
	args := []string{"-y", "-i", videoPath}
	if spec.LoopCount > 0 {
		args = append(args, "-stream_loop", strconv.Itoa(spec.LoopCount))
	}
	args = append(args,
		"-i", musicPath,
		"-filter_complex", musicBedFilter(spec),
		"-map", "0:v:0",
		"-map", "[aout]",
		"-t", fmt.Sprintf("%.3f", spec.TotalDurationSec),
		"-c:v", "copy",
		"-c:a", "aac",
		"-b:a", "192k",
		"-movflags", "+faststart",
		outPath,
	)
	return f.run(ctx, args...)
}

// musicBedFilter attenuates the bed and fades it out into the ending. The
// fade start and length are clamped to the timeline so very short videos
// never produce a negative fade start.
func musicBedFilter(spec MusicSpec) string {
	fadeOut := 2.0
	if spec.TotalDurationSec < fadeOut {
		fadeOut = spec.TotalDurationSec
	}
	start := spec.TotalDurationSec - fadeOut
	if start < 0 {
		start = 0
	}
	return fmt.Sprintf(
		"[1:a]volume=%.2f,afade=t=out:st=%.3f:d=%.3f[bed];[0:a][bed]amix=inputs=2:duration=first:normalize=0[aout]",
		spec.Volume, start, fadeOut,
	)
}

func (f *FFmpeg) scalePadFilter() string {
	return fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,setsar=1",
		f.Width, f.Height, f.Width, f.Height,
	)
}

func (f *FFmpeg) scaleCropFilter() string {
	return fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,setsar=1",
		f.Width, f.Height, f.Width, f.Height,
	)
}

func (f *FFmpeg) run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg %s: %w", firstFlag(args), err)
	}
	return nil
}

// firstFlag picks the output file name for error context
func firstFlag(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return filepath.Base(args[len(args)-1])
}

func escapeText(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "'", "\\'")
	s = strings.ReplaceAll(s, ":", "\\:")
	s = strings.ReplaceAll(s, "%", "\\%")
	return s
}
