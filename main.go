package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"storyreel-pipeline/acquire"
	"storyreel-pipeline/cache"
	"storyreel-pipeline/compositor"
	"storyreel-pipeline/config"
	"storyreel-pipeline/pipeline"
	"storyreel-pipeline/render"
	"storyreel-pipeline/score"
	"storyreel-pipeline/script"
	"storyreel-pipeline/sources"
	"storyreel-pipeline/timeline"
	"storyreel-pipeline/types"
	"storyreel-pipeline/upload"
)

func main() {
	// Load .env (local dev only, CI injects real secrets)
	_ = godotenv.Load()

	cfg, err := config.Load("config.yaml")
	if err != nil {
		if os.IsNotExist(err) {
			log.Println("⚠️ config.yaml not found, using built-in defaults")
			cfg = config.Default()
		} else {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	scriptPath := "script.json"
	if len(os.Args) > 1 {
		scriptPath = os.Args[1]
	}

	runID := uuid.NewString()[:8]
	runDir := filepath.Join(cfg.Paths.Output, runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		log.Fatalf("Failed to create run dir: %v", err)
	}

	log.Printf("🎬 Storyreel pipeline starting | Run ID: %s", runID)
	log.Printf("📁 Output dir: %s", runDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	state := &types.RunState{
		RunID:      runID,
		StartedAt:  time.Now().UTC().Format(time.RFC3339),
		ScriptPath: scriptPath,
	}
	defer func() {
		state.CompletedAt = time.Now().UTC().Format(time.RFC3339)
		saveJSON(filepath.Join(runDir, "run_state.json"), state)
		if state.Error != "" {
			log.Printf("❌ Pipeline failed: %s", state.Error)
			os.Exit(1)
		}
		log.Println("✅ Pipeline complete!")
	}()

	comp := compositor.NewFFmpeg(cfg.Frame.Width, cfg.Frame.Height, cfg.Frame.FPS, cfg.Render.Preset, cfg.Render.CRF)

	log.Println("\n━━━ STAGE 1: Script ━━━")
	s, err := script.Load(scriptPath)
	if err != nil {
		state.Error = fmt.Sprintf("Stage 1 Script: %v", err)
		return
	}
	if err := script.MeasureDurations(ctx, s, comp); err != nil {
		state.Error = fmt.Sprintf("Stage 1 Audio measurement: %v", err)
		return
	}
	saveJSON(filepath.Join(runDir, "script.json"), s)

	contentCache, err := cache.New(cfg.Cache.Dir)
	if err != nil {
		state.Error = fmt.Sprintf("Cache init: %v", err)
		return
	}

	cascade := acquire.New(
		cfg,
		contentCache,
		score.New(cfg.Scoring),
		buildSourceClients(cfg),
		acquire.NewHTTPFetcher(cfg.Sources.RequestTimeoutSec),
		comp,
		acquire.NewStockStore(cfg.Paths.StockAssets),
		runDir,
	)

	log.Println("\n━━━ STAGE 2-4: Acquire / Render / Assemble ━━━")
	p := pipeline.New(cfg, cascade, render.New(cfg, comp), timeline.New(cfg, comp))
	final, err := p.Run(ctx, s, runDir)
	if err != nil {
		state.Error = fmt.Sprintf("Pipeline: %v", err)
		return
	}
	state.Video = final

	if cfg.Upload.Enabled {
		log.Println("\n━━━ STAGE 5: YouTube Upload ━━━")
		uploader := upload.New(cfg)
		videoID, videoURL, err := uploader.Run(ctx, s.Title, final)
		if err != nil {
			state.Error = fmt.Sprintf("Stage 5 Upload: %v", err)
			return
		}
		state.YouTubeID = videoID
		state.YouTubeURL = videoURL
	}
}

// buildSourceClients assembles the enabled providers in query order
func buildSourceClients(cfg *config.Config) []sources.Client {
	var clients []sources.Client
	if cfg.Sources.OpenverseEnabled {
		clients = append(clients, sources.NewOpenverseClient(cfg.Sources.RequestTimeoutSec, cfg.Sources.MinRequestGapSec))
	}
	if cfg.Sources.PexelsEnabled {
		clients = append(clients, sources.NewPexelsVideoClient(
			os.Getenv("PEXELS_API_KEY"),
			cfg.Sources.RequestTimeoutSec,
			cfg.Sources.MinRequestGapSec,
			cfg.Sources.PexelsMaxFileHeight,
		))
	}
	if cfg.Sources.PollinationsEnabled {
		clients = append(clients, sources.NewPollinationsClient(cfg.Sources.PollinationsSeedBase))
	}
	if cfg.Sources.OpenAIImagesEnabled {
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			clients = append(clients, sources.NewOpenAIImageClient(key, cfg.Sources.OpenAIImageModel, cfg.Sources.MinRequestGapSec))
		} else {
			log.Println("[sources] ⚠️ OPENAI_API_KEY not set, OpenAI image synthesis disabled")
		}
	}
	return clients
}

func saveJSON(path string, v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Printf("Warning: could not marshal JSON for %s: %v", path, err)
		return
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		log.Printf("Warning: could not save %s: %v", path, err)
	}
}
