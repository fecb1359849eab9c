package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Frame       FrameConfig       `yaml:"frame"`
	Sources     SourcesConfig     `yaml:"sources"`
	Scoring     ScoringConfig     `yaml:"scoring"`
	Cascade     CascadeConfig     `yaml:"cascade"`
	Cache       CacheConfig       `yaml:"cache"`
	Render      RenderConfig      `yaml:"render"`
	Timeline    TimelineConfig    `yaml:"timeline"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	Upload      UploadConfig      `yaml:"upload"`
	Paths       PathsConfig       `yaml:"paths"`
}

type FrameConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	FPS    int `yaml:"fps"`
}

type SourcesConfig struct {
	RequestTimeoutSec    int     `yaml:"request_timeout_sec"`
	MinRequestGapSec     float64 `yaml:"min_request_gap_sec"`
	OpenverseEnabled     bool    `yaml:"openverse_enabled"`
	PexelsEnabled        bool    `yaml:"pexels_enabled"`
	PollinationsEnabled  bool    `yaml:"pollinations_enabled"`
	OpenAIImagesEnabled  bool    `yaml:"openai_images_enabled"`
	OpenAIImageModel     string  `yaml:"openai_image_model"`
	PexelsMaxFileHeight  int     `yaml:"pexels_max_file_height"`
	PollinationsSeedBase int     `yaml:"pollinations_seed_base"`
}

// ScoringConfig holds the candidate scoring policy. The numeric constants
// are tuned policy, so they stay configurable.
type ScoringConfig struct {
	BaseScore          float64  `yaml:"base_score"`
	ResolutionBonus    float64  `yaml:"resolution_bonus"`
	AspectBonus        float64  `yaml:"aspect_bonus"`
	DurationBonus      float64  `yaml:"duration_bonus"`
	TrustedBonus       float64  `yaml:"trusted_bonus"`
	LargeAreaRatio     float64  `yaml:"large_area_ratio"`
	IdealMarginSec     float64  `yaml:"ideal_margin_sec"`
	MinDurationRatio   float64  `yaml:"min_duration_ratio"`
	TrustedDomains     []string `yaml:"trusted_domains"`
	DeniedDomains      []string `yaml:"denied_domains"`
	MaxAspectDeviation float64  `yaml:"max_aspect_deviation"`
}

type CascadeConfig struct {
	CandidatesPerTier int     `yaml:"candidates_per_tier"`
	MinImageWidth     int     `yaml:"min_image_width"`
	MinImageHeight    int     `yaml:"min_image_height"`
	MinVideoSec       float64 `yaml:"min_video_sec"`
	MinFileBytes      int64   `yaml:"min_file_bytes"`
	SimplifiedWords   int     `yaml:"simplified_words"`
}

type CacheConfig struct {
	Dir string `yaml:"dir"`
}

type RenderConfig struct {
	KenBurnsZoomFactor float64 `yaml:"ken_burns_zoom_factor"`
	Preset             string  `yaml:"preset"`
	CRF                int     `yaml:"crf"`
	Seed               int64   `yaml:"seed"`
	KeepSegments       bool    `yaml:"keep_segments"`
}

type TimelineConfig struct {
	TransitionsEnabled bool    `yaml:"transitions_enabled"`
	FadeSec            float64 `yaml:"fade_sec"`
	MusicFile          string  `yaml:"music_file"`
	MusicVolume        float64 `yaml:"music_volume"`
}

type ConcurrencyConfig struct {
	AcquireWorkers int `yaml:"acquire_workers"`
	RenderWorkers  int `yaml:"render_workers"`
}

type UploadConfig struct {
	Enabled           bool   `yaml:"enabled"`
	Visibility        string `yaml:"visibility"`
	CategoryID        string `yaml:"category_id"`
	DefaultLanguage   string `yaml:"default_language"`
	NotifySubscribers bool   `yaml:"notify_subscribers"`
	MadeForKids       bool   `yaml:"made_for_kids"`
}

type PathsConfig struct {
	StockAssets string `yaml:"stock_assets"`
	Output      string `yaml:"output"`
}

// Load reads config.yaml and applies defaults for anything left unset
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Default returns the baseline configuration used when config.yaml omits keys
func Default() *Config {
	return &Config{
		Frame: FrameConfig{Width: 1920, Height: 1080, FPS: 30},
		Sources: SourcesConfig{
			RequestTimeoutSec:    20,
			MinRequestGapSec:     1.0,
			OpenverseEnabled:     true,
			PexelsEnabled:        true,
			PollinationsEnabled:  true,
			OpenAIImagesEnabled:  false,
			OpenAIImageModel:     "dall-e-3",
			PexelsMaxFileHeight:  1080,
			PollinationsSeedBase: 7,
		},
		Scoring: ScoringConfig{
			BaseScore:          0.5,
			ResolutionBonus:    0.3,
			AspectBonus:        0.2,
			DurationBonus:      0.25,
			TrustedBonus:       0.05,
			LargeAreaRatio:     0.8,
			IdealMarginSec:     10.0,
			MinDurationRatio:   0.75,
			MaxAspectDeviation: 1.0,
			TrustedDomains:     []string{"pexels.com", "openverse.org", "wikimedia.org"},
			DeniedDomains:      []string{"gettyimages.com", "shutterstock.com", "istockphoto.com"},
		},
		Cascade: CascadeConfig{
			CandidatesPerTier: 5,
			MinImageWidth:     640,
			MinImageHeight:    360,
			MinVideoSec:       1.0,
			MinFileBytes:      1000,
			SimplifiedWords:   3,
		},
		Cache: CacheConfig{Dir: "cache"},
		Render: RenderConfig{
			KenBurnsZoomFactor: 1.08,
			Preset:             "fast",
			CRF:                22,
			Seed:               0,
		},
		Timeline: TimelineConfig{
			TransitionsEnabled: true,
			FadeSec:            0.5,
			MusicVolume:        0.12,
		},
		Concurrency: ConcurrencyConfig{AcquireWorkers: 4, RenderWorkers: 2},
		Upload: UploadConfig{
			Enabled:         false,
			Visibility:      "private",
			CategoryID:      "27",
			DefaultLanguage: "en",
		},
		Paths: PathsConfig{
			StockAssets: "assets/stock",
			Output:      "output",
		},
	}
}
