// Package server exposes the HTTP API: storyboard generation, asset
// collaborators, and the composition job endpoints.
package server

import (
	"context"
	"net/http"
	"sync"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/BrainSnack9/shorts-factory/internal/assets"
	"github.com/BrainSnack9/shorts-factory/internal/clients/stock"
	"github.com/BrainSnack9/shorts-factory/internal/clients/tts"
	"github.com/BrainSnack9/shorts-factory/internal/compose"
	"github.com/BrainSnack9/shorts-factory/internal/config"
	"github.com/BrainSnack9/shorts-factory/internal/engine"
	"github.com/BrainSnack9/shorts-factory/internal/logger"
	"github.com/BrainSnack9/shorts-factory/internal/storyboard"
)

// Generator produces a storyboard from user prompts.
type Generator interface {
	GenerateStoryboard(ctx context.Context, fixedPrompt, variablePrompt string) (*storyboard.Storyboard, error)
}

// Searcher resolves background footage queries.
type Searcher interface {
	SearchBatch(ctx context.Context, items []stock.BatchItem) []stock.BatchResult
}

// Narrator voices scene texts.
type Narrator interface {
	SynthesizeBatch(ctx context.Context, voice string, items []tts.Item) []storyboard.AudioClip
}

// Previewer renders a still approximation of one scene.
type Previewer interface {
	Render(sc *storyboard.Scene, width, height int) ([]byte, error)
}

type Server struct {
	log      *logger.Logger
	cfg      *config.Config
	mat      *assets.Materializer
	boot     *engine.Bootstrap
	composer *compose.Composer

	generator Generator
	searcher  Searcher
	narrator  Narrator
	previewer Previewer

	// One render at a time. The engine workspace is shared and a second
	// concurrent job would interleave entries with the first.
	composeMu sync.Mutex
	jobs      *jobStore
}

type Options struct {
	Generator Generator
	Searcher  Searcher
	Narrator  Narrator
	Previewer Previewer
}

func New(log *logger.Logger, cfg *config.Config, mat *assets.Materializer, boot *engine.Bootstrap, composer *compose.Composer, opts Options) *Server {
	return &Server{
		log:       log.With("component", "server"),
		cfg:       cfg,
		mat:       mat,
		boot:      boot,
		composer:  composer,
		generator: opts.Generator,
		searcher:  opts.Searcher,
		narrator:  opts.Narrator,
		previewer: opts.Previewer,
		jobs:      newJobStore(),
	}
}

// Router builds the gin engine with all routes mounted.
func (s *Server) Router() *gin.Engine {
	if s.cfg.Mode != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.requestLog())
	r.Use(cors.Default())

	api := r.Group("/api")
	{
		api.POST("/generate", s.handleGenerate)
		api.POST("/broll", s.handleBroll)
		api.POST("/tts", s.handleTTS)
		api.GET("/proxy-video", s.handleProxyVideo)
		api.POST("/preview", s.handlePreview)

		api.POST("/compose", s.handleCompose)
		api.GET("/jobs/:id", s.handleJobStatus)
		api.GET("/jobs/:id/video", s.handleJobVideo)
		api.GET("/jobs/:id/qr", s.handleJobQR)
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}

func (s *Server) Run() error {
	s.log.Info("listening", "addr", s.cfg.ListenAddr)
	return s.Router().Run(s.cfg.ListenAddr)
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		s.log.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
		)
	}
}
