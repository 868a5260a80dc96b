package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration. Values come from an optional
// yaml file, overridden by environment variables.
type Config struct {
	ListenAddr    string `yaml:"listen_addr"`
	Mode          string `yaml:"mode"` // "dev" or "prod"
	PublicBaseURL string `yaml:"public_base_url"`

	// Engine
	FFmpegPath      string   `yaml:"ffmpeg_path"`      // empty: PATH lookup
	FFmpegFallbacks []string `yaml:"ffmpeg_fallbacks"` // alternate binary locations tried in order
	WorkDir         string   `yaml:"work_dir"`         // workspace root, empty: os.TempDir

	// Render
	ProfileName   string `yaml:"profile"` // "", "low" or "high"; empty: capability probe
	FontPath      string `yaml:"font_path"`
	EmojiFontPath string `yaml:"emoji_font_path"`

	// Collaborators
	AllowedHosts []string `yaml:"allowed_hosts"`
	PexelsAPIKey string   `yaml:"pexels_api_key"`

	ElevenLabsAPIKey  string `yaml:"elevenlabs_api_key"`
	ElevenLabsVoiceID string `yaml:"elevenlabs_voice_id"`

	OpenAIAPIKey  string `yaml:"openai_api_key"`
	OpenAIBaseURL string `yaml:"openai_base_url"`
	OpenAIModel   string `yaml:"openai_model"`

	RedisAddr string `yaml:"redis_addr"` // empty: search cache disabled
}

// Default hosts the proxy will fetch from. Anything else is rejected
// before the request goes out.
var defaultAllowedHosts = []string{
	"videos.pexels.com",
	"cdn.pixabay.com",
	"sample-videos.com",
}

func Default() *Config {
	return &Config{
		ListenAddr:    ":8080",
		Mode:          "dev",
		PublicBaseURL: "http://localhost:8080",
		FontPath:      "assets/NotoSansKR-Bold.ttf",
		EmojiFontPath: "assets/NotoColorEmoji.ttf",
		AllowedHosts:  append([]string(nil), defaultAllowedHosts...),
		OpenAIModel:   "gpt-4o-mini",
	}
}

// Load reads the yaml file at path (skipped when path is empty or the
// file does not exist) and then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setIfPresent := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setIfPresent(&c.ListenAddr, "LISTEN_ADDR")
	setIfPresent(&c.Mode, "APP_MODE")
	setIfPresent(&c.PublicBaseURL, "PUBLIC_BASE_URL")
	setIfPresent(&c.FFmpegPath, "FFMPEG_PATH")
	setIfPresent(&c.WorkDir, "WORK_DIR")
	setIfPresent(&c.ProfileName, "RENDER_PROFILE")
	setIfPresent(&c.FontPath, "FONT_PATH")
	setIfPresent(&c.EmojiFontPath, "EMOJI_FONT_PATH")
	setIfPresent(&c.PexelsAPIKey, "PEXELS_API_KEY")
	setIfPresent(&c.ElevenLabsAPIKey, "ELEVENLABS_API_KEY")
	setIfPresent(&c.ElevenLabsVoiceID, "ELEVENLABS_VOICE_ID")
	setIfPresent(&c.OpenAIAPIKey, "OPENAI_API_KEY")
	setIfPresent(&c.OpenAIBaseURL, "OPENAI_BASE_URL")
	setIfPresent(&c.OpenAIModel, "OPENAI_MODEL")
	setIfPresent(&c.RedisAddr, "REDIS_ADDR")

	if v := os.Getenv("ALLOWED_HOSTS"); v != "" {
		c.AllowedHosts = nil
		for _, h := range strings.Split(v, ",") {
			if h = strings.TrimSpace(h); h != "" {
				c.AllowedHosts = append(c.AllowedHosts, h)
			}
		}
	}
}

func (c *Config) validate() error {
	switch c.ProfileName {
	case "", ProfileLow, ProfileHigh:
	default:
		return fmt.Errorf("unknown render profile %q", c.ProfileName)
	}
	if len(c.AllowedHosts) == 0 {
		return fmt.Errorf("allowed_hosts must not be empty")
	}
	return nil
}
