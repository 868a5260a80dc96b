package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"

	"github.com/BrainSnack9/shorts-factory/internal/clients/llm"
	"github.com/BrainSnack9/shorts-factory/internal/clients/stock"
	"github.com/BrainSnack9/shorts-factory/internal/clients/tts"
	"github.com/BrainSnack9/shorts-factory/internal/engine"
	"github.com/BrainSnack9/shorts-factory/internal/storyboard"
)

const composeTimeout = 10 * time.Minute

type generateRequest struct {
	FixedPrompt    string `json:"fixedPrompt"`
	VariablePrompt string `json:"variablePrompt"`
}

func (s *Server) handleGenerate(c *gin.Context) {
	if s.generator == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storyboard generation not configured"})
		return
	}
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	board, err := s.generator.GenerateStoryboard(c.Request.Context(), req.FixedPrompt, req.VariablePrompt)
	if err != nil {
		if errors.Is(err, llm.ErrEmptyPrompt) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "prompt is required"})
			return
		}
		s.log.Error("storyboard generation failed", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "storyboard generation failed"})
		return
	}
	c.JSON(http.StatusOK, board)
}

type brollRequest struct {
	Items []stock.BatchItem `json:"items"`
}

func (s *Server) handleBroll(c *gin.Context) {
	if s.searcher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "stock search not configured"})
		return
	}
	var req brollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": s.searcher.SearchBatch(c.Request.Context(), req.Items)})
}

type ttsRequest struct {
	Voice string     `json:"voice"`
	Items []tts.Item `json:"items"`
}

func (s *Server) handleTTS(c *gin.Context) {
	if s.narrator == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "speech synthesis not configured"})
		return
	}
	var req ttsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"clips": s.narrator.SynthesizeBatch(c.Request.Context(), req.Voice, req.Items)})
}

func (s *Server) handleProxyVideo(c *gin.Context) {
	rawURL := c.Query("url")
	if rawURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url query parameter is required"})
		return
	}
	if err := s.mat.CheckHost(rawURL); err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "host not allowed"})
		return
	}

	data, contentType, err := s.mat.Fetch(c.Request.Context(), rawURL)
	if err != nil {
		s.log.Warn("proxy fetch failed", "url", rawURL, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream fetch failed"})
		return
	}
	if contentType == "" {
		contentType = "video/mp4"
	}

	c.Header("Cache-Control", "public, max-age=3600")
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Content-Length", fmt.Sprintf("%d", len(data)))
	c.Data(http.StatusOK, contentType, data)
}

type previewRequest struct {
	Scene  storyboard.Scene `json:"scene"`
	Width  int              `json:"width"`
	Height int              `json:"height"`
}

func (s *Server) handlePreview(c *gin.Context) {
	if s.previewer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "preview not configured"})
		return
	}
	var req previewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Width <= 0 || req.Height <= 0 {
		req.Width, req.Height = 360, 640
	}

	png, err := s.previewer.Render(&req.Scene, req.Width, req.Height)
	if err != nil {
		s.log.Error("preview render failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "preview render failed"})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

type composeRequest struct {
	Storyboard storyboard.Storyboard  `json:"storyboard"`
	Audio      []storyboard.AudioClip `json:"audio"`
}

func (s *Server) handleCompose(c *gin.Context) {
	var req composeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := req.Storyboard.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !s.composeMu.TryLock() {
		c.JSON(http.StatusConflict, gin.H{"error": "a composition is already running"})
		return
	}

	id := uuid.NewString()
	s.jobs.create(id)

	go func() {
		defer s.composeMu.Unlock()
		s.runCompose(id, &req.Storyboard, req.Audio)
	}()

	c.JSON(http.StatusAccepted, gin.H{"jobId": id})
}

func (s *Server) runCompose(id string, board *storyboard.Storyboard, audio []storyboard.AudioClip) {
	ctx, cancel := context.WithTimeout(context.Background(), composeTimeout)
	defer cancel()

	eng, err := s.boot.Ensure(ctx)
	if err != nil {
		s.log.Error("engine unavailable", "job", id, "error", err)
		s.jobs.fail(id, engine.ErrUnavailable)
		return
	}

	video, err := s.composer.Compose(ctx, eng, board, audio)
	if err != nil {
		s.log.Error("composition failed", "job", id, "error", err)
		s.jobs.fail(id, err)
		return
	}

	s.log.Info("composition finished", "job", id, "bytes", len(video))
	s.jobs.complete(id, video)
}

func (s *Server) handleJobStatus(c *gin.Context) {
	rec, ok := s.jobs.get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown job"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleJobVideo(c *gin.Context) {
	video, state, ok := s.jobs.video(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown job"})
		return
	}
	switch state {
	case jobRendering:
		c.JSON(http.StatusConflict, gin.H{"error": "job still rendering"})
	case jobFailed:
		c.JSON(http.StatusGone, gin.H{"error": "job failed"})
	default:
		c.Header("Content-Disposition", `attachment; filename="shorts.mp4"`)
		c.Data(http.StatusOK, "video/mp4", video)
	}
}

func (s *Server) handleJobQR(c *gin.Context) {
	id := c.Param("id")
	if _, ok := s.jobs.get(id); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown job"})
		return
	}

	target := fmt.Sprintf("%s/api/jobs/%s/video", s.cfg.PublicBaseURL, id)
	png, err := qrcode.Encode(target, qrcode.Medium, 256)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "qr encoding failed"})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}
