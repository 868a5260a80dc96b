// Package storyboard holds the structured plan for one output video:
// metadata plus an ordered list of scenes. The composition core reads it,
// never mutates it.
package storyboard

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

const (
	DefaultBgColor      = "#0d0d0d"
	DefaultTextColor    = "#ffffff"
	DefaultBgAlpha      = 0.47
	DefaultFontSize     = 36
	DefaultTextPosition = 50
)

type Storyboard struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Hashtags    []string `json:"hashtags"`
	MusicMood   string   `json:"musicMood"`
	TTSVoice    string   `json:"ttsVoice"`
	Scenes      []Scene  `json:"scenes"`
}

// Scene is one shot of the output video. Scene order in the slice is
// render and playback order.
type Scene struct {
	ID           string   `json:"id"`
	Voiceover    string   `json:"voiceover"`
	OnScreenText string   `json:"onScreenText"`
	DurationSec  float64  `json:"durationSec"`
	BrollPrompt  string   `json:"brollPrompt"`
	Broll        *Broll   `json:"broll,omitempty"`
	BgColor      string   `json:"bgColor"`
	TextColor    string   `json:"textColor"`
	BgAlpha      *float64 `json:"bgAlpha,omitempty"`
	FontSize     int      `json:"fontSize,omitempty"`
	TextPosition int      `json:"textPosition,omitempty"`
}

// Broll is the selected background asset for a scene: either a remote
// stock clip or a user upload.
type Broll struct {
	URL      string  `json:"url"`
	Width    int     `json:"width,omitempty"`
	Height   int     `json:"height,omitempty"`
	Duration float64 `json:"duration,omitempty"`
	IsImage  bool    `json:"isImage,omitempty"`
	FileType string  `json:"fileType,omitempty"`
	Title    string  `json:"title,omitempty"`
}

// AudioClip is one scene's synthesized narration, correlated by scene id.
// An empty Base64 means synthesis failed for that scene.
type AudioClip struct {
	ID     string `json:"id"`
	Mime   string `json:"mime"`
	Base64 string `json:"base64"`
	Error  string `json:"error,omitempty"`
}

var ErrNoScenes = errors.New("storyboard has no scenes")

// DecodeAudio decodes a clip's base64 narration payload.
func DecodeAudio(clip AudioClip) ([]byte, error) {
	if clip.Base64 == "" {
		return nil, errors.New("empty audio payload")
	}
	data, err := base64.StdEncoding.DecodeString(clip.Base64)
	if err != nil {
		return nil, fmt.Errorf("decode audio for scene %s: %w", clip.ID, err)
	}
	return data, nil
}

// Validate enforces the generation contract: a title, at least one
// scene, and distinct scene ids. Ids key workspace entry names and
// audio correlation, so a collision would silently overwrite renders.
func (s *Storyboard) Validate() error {
	if strings.TrimSpace(s.Title) == "" {
		return errors.New("storyboard has no title")
	}
	if len(s.Scenes) == 0 {
		return ErrNoScenes
	}
	seen := make(map[string]struct{}, len(s.Scenes))
	for i := range s.Scenes {
		id := s.SceneID(i)
		if _, dup := seen[id]; dup {
			return fmt.Errorf("duplicate scene id %q", id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// SceneID returns the scene's stable identifier, derived from its
// position when absent.
func (s *Storyboard) SceneID(i int) string {
	if id := strings.TrimSpace(s.Scenes[i].ID); id != "" {
		return id
	}
	return fmt.Sprintf("s%d", i+1)
}

// CaptionSource is the text the caption overlay renders: onScreenText,
// falling back to the narration.
func (sc *Scene) CaptionSource() string {
	if strings.TrimSpace(sc.OnScreenText) != "" {
		return sc.OnScreenText
	}
	return sc.Voiceover
}

func (sc *Scene) BgColorOrDefault() string {
	if sc.BgColor != "" {
		return sc.BgColor
	}
	return DefaultBgColor
}

func (sc *Scene) TextColorOrDefault() string {
	if sc.TextColor != "" {
		return sc.TextColor
	}
	return DefaultTextColor
}

// BgAlphaOrDefault honors an explicit zero: a nil field means "not set",
// a 0 means a fully transparent caption box.
func (sc *Scene) BgAlphaOrDefault() float64 {
	if sc.BgAlpha == nil {
		return DefaultBgAlpha
	}
	return *sc.BgAlpha
}

func (sc *Scene) FontSizeOrDefault() int {
	if sc.FontSize > 0 {
		return sc.FontSize
	}
	return DefaultFontSize
}

func (sc *Scene) TextPositionOrDefault() int {
	if sc.TextPosition > 0 {
		return sc.TextPosition
	}
	return DefaultTextPosition
}
