package types

// Scene is one narration unit: the atomic input of acquisition and rendering.
// TargetDurationSec is measured from the narration audio file, never estimated.
type Scene struct {
	Number            int     `json:"number"`
	NarrationText     string  `json:"narration_text"`
	AudioPath         string  `json:"audio_path"`
	VisualQuery       string  `json:"visual_query"`
	TargetDurationSec float64 `json:"target_duration_sec"`
}

// Script is the full ordered input for one pipeline run
type Script struct {
	Title    string  `json:"title"`
	TotalSec float64 `json:"total_sec"`
	Scenes   []Scene `json:"scenes"`
}

// AssetKind tags what an acquired visual actually is
type AssetKind string

const (
	KindImage       AssetKind = "image"
	KindVideo       AssetKind = "video"
	KindPlaceholder AssetKind = "synthetic_placeholder"
)

// Tier is one ranked strategy in the acquisition cascade
type Tier string

const (
	TierCache       Tier = "cache"
	TierPrimary     Tier = "primary_search"
	TierSimplified  Tier = "simplified_search"
	TierLocalStock  Tier = "local_stock"
	TierPlaceholder Tier = "synthetic_placeholder"
)

// MediaCandidate is an unverified, not-yet-downloaded reference to a visual.
// Reported measurements are nil when the provider did not report them;
// nil must never be conflated with a measured zero.
type MediaCandidate struct {
	SourceName          string   `json:"source_name"`
	URL                 string   `json:"url"`
	ReportedWidth       *int     `json:"reported_width,omitempty"`
	ReportedHeight      *int     `json:"reported_height,omitempty"`
	ReportedDurationSec *float64 `json:"reported_duration_sec,omitempty"`
	Rank                int      `json:"rank"`
	IsVideo             bool     `json:"is_video"`
}

// ScoredCandidate pairs a candidate with its relevance score in [0,1]
type ScoredCandidate struct {
	MediaCandidate
	Score float64 `json:"score"`
}

// AcquiredAsset is a downloaded or generated visual, validated and ready
// to render. Exactly one per Scene, owned by that Scene for the run.
type AcquiredAsset struct {
	Kind              AssetKind `json:"kind"`
	LocalPath         string    `json:"local_path"`
	ActualWidth       int       `json:"actual_width"`
	ActualHeight      int       `json:"actual_height"`
	ActualDurationSec *float64  `json:"actual_duration_sec,omitempty"`
	OriginTier        Tier      `json:"origin_tier"`
	OriginQuery       string    `json:"origin_query"`
}

// CacheEntry describes one committed cache file. Its file is always a fully
// valid media file: partial downloads are never promoted into the cache.
type CacheEntry struct {
	QueryHash string `json:"query_hash"`
	LocalPath string `json:"local_path"`
	Kind      string `json:"kind"`
	CreatedAt string `json:"created_at"`
	SizeBytes int64  `json:"size_bytes"`
}

// SceneSegment is one rendered, audio-muxed, fixed-length piece of timeline.
// DurationSec matches the scene's target within one frame interval.
type SceneSegment struct {
	SceneNumber int     `json:"scene_number"`
	VideoPath   string  `json:"video_path"`
	DurationSec float64 `json:"duration_sec"`
}

// SceneProvenance records which tier supplied each scene's visual
type SceneProvenance struct {
	SceneNumber int       `json:"scene_number"`
	Tier        Tier      `json:"tier"`
	Query       string    `json:"query"`
	Kind        AssetKind `json:"kind"`
	AssetPath   string    `json:"asset_path"`
	DurationSec float64   `json:"duration_sec"`
}

// FinalVideo is the assembled output artifact
type FinalVideo struct {
	Path             string            `json:"path"`
	TotalDurationSec float64           `json:"total_duration_sec"`
	SceneCount       int               `json:"scene_count"`
	Width            int               `json:"width"`
	Height           int               `json:"height"`
	Scenes           []SceneProvenance `json:"scenes"`
}

// RunState tracks one full pipeline run for the state sidecar
type RunState struct {
	RunID       string      `json:"run_id"`
	StartedAt   string      `json:"started_at"`
	CompletedAt string      `json:"completed_at"`
	ScriptPath  string      `json:"script_path"`
	Video       *FinalVideo `json:"video,omitempty"`
	YouTubeID   string      `json:"youtube_id,omitempty"`
	YouTubeURL  string      `json:"youtube_url,omitempty"`
	Error       string      `json:"error,omitempty"`
}

// FloatPtr is a convenience for optional duration/measurement fields
func FloatPtr(v float64) *float64 { return &v }

// IntPtr is a convenience for optional dimension fields
func IntPtr(v int) *int { return &v }
