// Package compositor wraps the external frame-compositing/encoding backend
// behind a small interface, so the rendering and assembly logic never builds
// backend filter syntax itself and tests can run against a fake.
package compositor

import "context"

// MediaInfo is what Probe measures directly from a media file
type MediaInfo struct {
	Width       int
	Height      int
	DurationSec float64
	HasVideo    bool
	HasAudio    bool
}

// MotionSpec parameterizes the zoom/pan treatment for a still.
// AnchorX/AnchorY are in [0,1] and select the point the zoom drifts toward.
type MotionSpec struct {
	ZoomFactor float64
	AnchorX    float64
	AnchorY    float64
}

// ClipSpec parameterizes fitting a source clip to an exact duration
type ClipSpec struct {
	StartOffsetSec float64
	DurationSec    float64
	LoopCount      int // 0 means no looping
}

// MusicSpec parameterizes the background audio bed
type MusicSpec struct {
	TotalDurationSec float64
	Volume           float64
	LoopCount        int // 0 means no looping
}

// Compositor is the opaque encoding capability the pipeline depends on
type Compositor interface {
	// Probe measures a media file; errors mean the file is not decodable
	Probe(ctx context.Context, path string) (*MediaInfo, error)
	// RenderStill produces a fixed-duration segment from a static image,
	// letterboxed to the target frame without distortion
	RenderStill(ctx context.Context, imagePath, outPath string, durationSec float64) error
	// RenderMotion produces a fixed-duration segment from an image with a
	// continuous monotonic zoom/pan treatment
	RenderMotion(ctx context.Context, imagePath, outPath string, durationSec float64, spec MotionSpec) error
	// FitClip trims and/or loops a source clip to an exact duration,
	// normalized to the target frame via crop-then-scale (never stretch)
	FitClip(ctx context.Context, clipPath, outPath string, spec ClipSpec) error
	// RenderCard procedurally draws a gradient card with the given text
	RenderCard(ctx context.Context, text, outPath string) error
	// MuxNarration muxes a narration track onto a silent visual segment
	MuxNarration(ctx context.Context, videoPath, audioPath, outPath string) error
	// FadeEdges applies symmetric fade-in/out (video and audio) to a segment
	FadeEdges(ctx context.Context, inPath, outPath string, durationSec, fadeInSec, fadeOutSec float64) error
	// Concat joins segments in order into one continuous file
	Concat(ctx context.Context, segmentPaths []string, outPath string) error
	// MixMusic mixes a looped/trimmed, attenuated music bed under the
	// existing narration track; narration stays dominant
	MixMusic(ctx context.Context, videoPath, musicPath, outPath string, spec MusicSpec) error
}
