package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/BrainSnack9/shorts-factory/internal/logger"
)

func TestSynthesizeRequiresAPIKey(t *testing.T) {
	c := New(logger.NewNop(), "", "voice-a")
	if _, err := c.Synthesize(context.Background(), "", "hello"); err != ErrNoAPIKey {
		t.Fatalf("err = %v, want ErrNoAPIKey", err)
	}
}

func TestSynthesizeSendsExpectedRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/text-to-speech/voice-a") {
			t.Errorf("path = %q, want voice-a endpoint", r.URL.Path)
		}
		if got := r.Header.Get("xi-api-key"); got != "key-1" {
			t.Errorf("xi-api-key = %q, want key-1", got)
		}
		if got := r.Header.Get("accept"); got != "audio/mpeg" {
			t.Errorf("accept = %q, want audio/mpeg", got)
		}
		var body synthesisRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.Text != "hello world" {
			t.Errorf("text = %q, want hello world", body.Text)
		}
		if body.ModelID != "eleven_multilingual_v2" {
			t.Errorf("model_id = %q", body.ModelID)
		}
		if body.VoiceSettings.Stability != 0.45 || body.VoiceSettings.SimilarityBoost != 0.8 {
			t.Errorf("voice_settings = %+v", body.VoiceSettings)
		}
		w.Write([]byte("mp3-bytes"))
	}))
	defer srv.Close()

	c := New(logger.NewNop(), "key-1", "voice-a")
	c.baseURL = srv.URL

	audio, err := c.Synthesize(context.Background(), "ignored-voice", "hello world")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(audio) != "mp3-bytes" {
		t.Fatalf("audio = %q", audio)
	}
}

func TestSynthesizeUsesRequestVoiceWhenUnconfigured(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := New(logger.NewNop(), "key-1", "")
	c.baseURL = srv.URL

	if _, err := c.Synthesize(context.Background(), "voice-b", "hi"); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if !strings.HasSuffix(gotPath, "/voice-b") {
		t.Fatalf("path = %q, want request voice", gotPath)
	}
}

func TestSynthesizeBatchMixedOutcomes(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 2 {
			http.Error(w, "quota exceeded", http.StatusPaymentRequired)
			return
		}
		w.Write([]byte("mp3"))
	}))
	defer srv.Close()

	c := New(logger.NewNop(), "key-1", "voice-a")
	c.baseURL = srv.URL

	items := []Item{
		{ID: "s1", Text: "first line"},
		{ID: "s2", Text: "second line"},
		{ID: "s3", Text: "   "},
	}
	clips := c.SynthesizeBatch(context.Background(), "", items)
	if len(clips) != 3 {
		t.Fatalf("len(clips) = %d, want 3", len(clips))
	}

	want := base64.StdEncoding.EncodeToString([]byte("mp3"))
	if clips[0].ID != "s1" || clips[0].Base64 != want || clips[0].Mime != "audio/mpeg" {
		t.Fatalf("clips[0] = %+v", clips[0])
	}
	if clips[1].ID != "s2" || clips[1].Base64 != "" || clips[1].Error == "" {
		t.Fatalf("clips[1] = %+v, want failed clip with error", clips[1])
	}
	if clips[2].ID != "s3" || clips[2].Error != "empty_text" {
		t.Fatalf("clips[2] = %+v, want empty_text marker", clips[2])
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2 (blank text never hits the API)", calls)
	}
}
