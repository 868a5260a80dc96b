// Package llm generates storyboards: two free-text prompts in, a
// validated storyboard JSON object out.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/BrainSnack9/shorts-factory/internal/logger"
	"github.com/BrainSnack9/shorts-factory/internal/storyboard"
)

type Client struct {
	log   *logger.Logger
	api   *openai.Client
	model string
}

// New builds a client against any OpenAI-compatible endpoint; baseURL
// empty means the default API.
func New(log *logger.Logger, apiKey, baseURL, model string) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Client{
		log:   log.With("component", "llm"),
		api:   openai.NewClientWithConfig(cfg),
		model: model,
	}
}

var ErrEmptyPrompt = errors.New("variablePrompt required")

// GenerateStoryboard asks the model for a storyboard matching the fixed
// style prompt and the user's topic prompt.
func (c *Client) GenerateStoryboard(ctx context.Context, fixedPrompt, variablePrompt string) (*storyboard.Storyboard, error) {
	if strings.TrimSpace(variablePrompt) == "" {
		return nil, ErrEmptyPrompt
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(fixedPrompt, variablePrompt)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("storyboard generation: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("storyboard generation: no choices")
	}

	board, err := ParseStoryboard(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	c.log.Info("storyboard generated", "title", board.Title, "scenes", len(board.Scenes))
	return board, nil
}

// ParseStoryboard decodes model output into a storyboard, tolerating
// markdown code fences, and rejects anything that fails validation.
func ParseStoryboard(text string) (*storyboard.Storyboard, error) {
	clean := strings.TrimSpace(text)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	clean = strings.TrimSpace(clean)

	var board storyboard.Storyboard
	if err := json.Unmarshal([]byte(clean), &board); err != nil {
		return nil, fmt.Errorf("invalid storyboard json: %w", err)
	}
	if err := board.Validate(); err != nil {
		return nil, fmt.Errorf("invalid storyboard: %w", err)
	}
	return &board, nil
}

func buildPrompt(fixed, variable string) string {
	return strings.TrimSpace(fmt.Sprintf(`
Role: you are the writer/director of a short-form vertical video channel.
Produce a storyboard as JSON that satisfies the schema below exactly.

Requirements:
- Total length 20-30 seconds, 3-6 scenes, 2-6 seconds per scene.
- The fixed prompt (style/framing/color/tone) must be reflected.
- Every scene must include exactly these fields (never a 'text' key):
  id, voiceover (narration, 6-80 characters, never blank),
  onScreenText (caption), durationSec,
  brollPrompt (concise English keywords for background footage),
  bgColor (background hex), textColor (caption hex)
- Top-level metadata:
  title (up to 18 characters), description (1-2 sentences),
  hashtags (5-8), musicMood ("uplift" | "calm" | "dramatic" | "tech"),
  ttsVoice (e.g. "female_warm", "male_neutral")

Output only JSON of this exact shape, no code fences:
{
  "title": "",
  "description": "",
  "hashtags": [""],
  "musicMood": "uplift",
  "ttsVoice": "female_warm",
  "scenes": [
    {
      "id": "s1",
      "voiceover": "",
      "onScreenText": "",
      "durationSec": 4,
      "brollPrompt": "yawning office worker closeup",
      "bgColor": "#0d0d0d",
      "textColor": "#ffffff"
    }
  ]
}

[fixed prompt]
%s

[variable prompt]
%s
`, fixed, variable))
}
