package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/BrainSnack9/shorts-factory/internal/assets"
	"github.com/BrainSnack9/shorts-factory/internal/clients/llm"
	"github.com/BrainSnack9/shorts-factory/internal/clients/stock"
	"github.com/BrainSnack9/shorts-factory/internal/clients/tts"
	"github.com/BrainSnack9/shorts-factory/internal/compose"
	"github.com/BrainSnack9/shorts-factory/internal/config"
	"github.com/BrainSnack9/shorts-factory/internal/engine"
	"github.com/BrainSnack9/shorts-factory/internal/logger"
	"github.com/BrainSnack9/shorts-factory/internal/preview"
	"github.com/BrainSnack9/shorts-factory/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	configPath := flag.String("config", "", "path to yaml config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Mode)
	if err != nil {
		return err
	}
	defer log.Sync()

	profile := config.DetectProfile(cfg.ProfileName)
	log.Info("render profile selected",
		"profile", profile.Name,
		"size", fmt.Sprintf("%dx%d", profile.Width, profile.Height),
		"fps", profile.FPS,
	)

	mat := assets.NewMaterializer(log, cfg.AllowedHosts)
	boot := engine.NewBootstrap(log, cfg.FFmpegPath, cfg.FFmpegFallbacks, cfg.WorkDir)

	composer := compose.New(log, mat, compose.Options{
		Profile:       profile,
		FontPath:      cfg.FontPath,
		EmojiFontPath: cfg.EmojiFontPath,
	})

	opts := server.Options{}
	if cfg.OpenAIAPIKey != "" {
		opts.Generator = llm.New(log, cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
	} else {
		log.Warn("openai api key missing, storyboard generation disabled")
	}
	if cfg.PexelsAPIKey != "" {
		opts.Searcher = stock.New(log, cfg.PexelsAPIKey, cfg.RedisAddr)
	} else {
		log.Warn("pexels api key missing, stock search disabled")
	}
	if cfg.ElevenLabsAPIKey != "" {
		opts.Narrator = tts.New(log, cfg.ElevenLabsAPIKey, cfg.ElevenLabsVoiceID)
	} else {
		log.Warn("elevenlabs api key missing, speech synthesis disabled")
	}

	if pr, err := preview.NewRenderer(cfg.FontPath); err != nil {
		log.Warn("preview disabled", "font", cfg.FontPath, "error", err)
	} else {
		opts.Previewer = pr
	}

	return server.New(log, cfg, mat, boot, composer, opts).Run()
}
