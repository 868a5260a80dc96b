// Package tts synthesizes narration audio through the ElevenLabs API.
package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/BrainSnack9/shorts-factory/internal/logger"
	"github.com/BrainSnack9/shorts-factory/internal/storyboard"
)

const (
	defaultBaseURL = "https://api.elevenlabs.io"
	modelID        = "eleven_multilingual_v2"
)

type Client struct {
	log     *logger.Logger
	apiKey  string
	voiceID string
	baseURL string
	http    *http.Client
}

// New builds a synthesis client. voiceID is the operator-configured
// voice; per-request voices are only used when it is empty.
func New(log *logger.Logger, apiKey, voiceID string) *Client {
	return &Client{
		log:     log.With("component", "tts"),
		apiKey:  apiKey,
		voiceID: voiceID,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

var ErrNoAPIKey = errors.New("missing tts api key")

type Item struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type synthesisRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// Synthesize converts one text to MP3 bytes.
func (c *Client) Synthesize(ctx context.Context, voice, text string) ([]byte, error) {
	if c.apiKey == "" {
		return nil, ErrNoAPIKey
	}

	body, err := json.Marshal(synthesisRequest{
		Text:    text,
		ModelID: modelID,
		VoiceSettings: voiceSettings{
			Stability:       0.45,
			SimilarityBoost: 0.8,
		},
	})
	if err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/v1/text-to-speech/%s", c.baseURL, c.resolveVoice(voice))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("accept", "audio/mpeg")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("tts: status %d: %s", resp.StatusCode, detail)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("tts read: %w", err)
	}
	if len(audio) == 0 {
		return nil, errors.New("tts: empty audio response")
	}
	return audio, nil
}

// SynthesizeBatch voices every item sequentially. Per-item failures
// produce a clip with an Error field instead of failing the batch,
// so the caller can still render those scenes silent.
func (c *Client) SynthesizeBatch(ctx context.Context, voice string, items []Item) []storyboard.AudioClip {
	clips := make([]storyboard.AudioClip, 0, len(items))
	for _, item := range items {
		clip := storyboard.AudioClip{ID: item.ID}
		text := strings.TrimSpace(item.Text)
		if text == "" {
			clip.Error = "empty_text"
			clips = append(clips, clip)
			continue
		}
		audio, err := c.Synthesize(ctx, voice, text)
		if err != nil {
			c.log.Warn("synthesis failed", "scene", item.ID, "error", err)
			clip.Error = err.Error()
			clips = append(clips, clip)
			continue
		}
		clip.Mime = "audio/mpeg"
		clip.Base64 = base64.StdEncoding.EncodeToString(audio)
		clips = append(clips, clip)
	}
	return clips
}

// resolveVoice prefers the configured voice over the request's.
func (c *Client) resolveVoice(requested string) string {
	if c.voiceID != "" {
		return c.voiceID
	}
	return requested
}
