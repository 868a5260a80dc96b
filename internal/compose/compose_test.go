package compose

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BrainSnack9/shorts-factory/internal/assets"
	"github.com/BrainSnack9/shorts-factory/internal/config"
	"github.com/BrainSnack9/shorts-factory/internal/logger"
	"github.com/BrainSnack9/shorts-factory/internal/storyboard"
)

// fakeEngine records commands and simulates outputs by writing the last
// argument as an entry. Failures are injected per argument substring.
type fakeEngine struct {
	entries  map[string][]byte
	execs    [][]string
	failures map[string]int
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{entries: map[string][]byte{}, failures: map[string]int{}}
}

func (f *fakeEngine) Exec(_ context.Context, args ...string) error {
	f.execs = append(f.execs, args)
	joined := strings.Join(args, " ")
	for pat, n := range f.failures {
		if n > 0 && strings.Contains(joined, pat) {
			f.failures[pat] = n - 1
			return fmt.Errorf("injected failure: %s", pat)
		}
	}
	out := args[len(args)-1]
	f.entries[out] = []byte("rendered: " + joined)
	return nil
}

func (f *fakeEngine) WriteEntry(name string, data []byte) error {
	f.entries[name] = data
	return nil
}

func (f *fakeEngine) ReadEntry(name string) ([]byte, error) {
	data, ok := f.entries[name]
	if !ok {
		return nil, errors.New("no such entry: " + name)
	}
	return data, nil
}

func (f *fakeEngine) RemoveEntry(name string) error {
	if _, ok := f.entries[name]; !ok {
		return errors.New("no such entry: " + name)
	}
	delete(f.entries, name)
	return nil
}

func (f *fakeEngine) EntryPath(name string) string { return name }

func (f *fakeEngine) execsJoined() []string {
	out := make([]string, len(f.execs))
	for i, args := range f.execs {
		out[i] = strings.Join(args, " ")
	}
	return out
}

func writeTempFont(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "font.ttf")
	if err := os.WriteFile(path, []byte("fake-font"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestComposer(t *testing.T, fontPath string) *Composer {
	t.Helper()
	mat := assets.NewMaterializer(logger.NewNop(), []string{"videos.pexels.com"})
	return New(logger.NewNop(), mat, Options{
		Profile:  config.DetectProfile(config.ProfileLow),
		FontPath: fontPath,
	})
}

func solidBoard(n int) *storyboard.Storyboard {
	b := &storyboard.Storyboard{Title: "t"}
	for i := 0; i < n; i++ {
		b.Scenes = append(b.Scenes, storyboard.Scene{
			ID:           fmt.Sprintf("s%d", i+1),
			OnScreenText: fmt.Sprintf("caption %d", i+1),
			DurationSec:  4,
		})
	}
	return b
}

func TestComposeThreeSolidScenes(t *testing.T) {
	eng := newFakeEngine()
	c := newTestComposer(t, writeTempFont(t))

	out, err := c.Compose(context.Background(), eng, solidBoard(3), nil)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if len(out) == 0 {
		t.Fatal("empty output")
	}

	execs := eng.execsJoined()
	if len(execs) != 4 { // three scene renders plus one concat
		t.Fatalf("got %d execs, want 4: %v", len(execs), execs)
	}
	for i := 0; i < 3; i++ {
		if !strings.Contains(execs[i], "-f lavfi") {
			t.Errorf("scene %d not rendered from solid color: %s", i+1, execs[i])
		}
		if !strings.Contains(execs[i], "color=c=#0d0d0d:s=480x854:r=24") {
			t.Errorf("scene %d missing canonical color source: %s", i+1, execs[i])
		}
		if !strings.Contains(execs[i], "-t 4 ") {
			t.Errorf("scene %d missing duration trim: %s", i+1, execs[i])
		}
		if !strings.Contains(execs[i], "drawtext=") {
			t.Errorf("scene %d missing caption overlay: %s", i+1, execs[i])
		}
	}
	if !strings.Contains(execs[3], "-f concat") || !strings.Contains(execs[3], "-c copy") {
		t.Errorf("final exec is not a stream-copy concat: %s", execs[3])
	}

	// Workspace entries are all cleaned up.
	if len(eng.entries) != 0 {
		t.Errorf("entries left after cleanup: %v", eng.entries)
	}
}

func TestConcatOrderMatchesStoryboard(t *testing.T) {
	snapshot := &snapshotEngine{fakeEngine: newFakeEngine()}
	c := newTestComposer(t, writeTempFont(t))

	if _, err := c.Compose(context.Background(), snapshot, solidBoard(3), nil); err != nil {
		t.Fatalf("Compose: %v", err)
	}

	want := "file 'scene_s1.mp4'\nfile 'scene_s2.mp4'\nfile 'scene_s3.mp4'\n"
	if snapshot.listAtConcat != want {
		t.Errorf("manifest = %q, want %q", snapshot.listAtConcat, want)
	}
}

// snapshotEngine copies list.txt the moment the concat command runs.
type snapshotEngine struct {
	*fakeEngine
	listAtConcat string
}

func (s *snapshotEngine) Exec(ctx context.Context, args ...string) error {
	if strings.Contains(strings.Join(args, " "), "-f concat") {
		s.listAtConcat = string(s.entries["list.txt"])
	}
	return s.fakeEngine.Exec(ctx, args...)
}

func TestSingleSceneShortCircuit(t *testing.T) {
	eng := newFakeEngine()
	c := newTestComposer(t, writeTempFont(t))

	out, err := c.Compose(context.Background(), eng, solidBoard(1), nil)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if len(out) == 0 {
		t.Fatal("empty output")
	}
	for _, joined := range eng.execsJoined() {
		if strings.Contains(joined, "concat") {
			t.Errorf("single scene invoked concat: %s", joined)
		}
	}
}

func TestEmptyStoryboardFatal(t *testing.T) {
	eng := newFakeEngine()
	c := newTestComposer(t, writeTempFont(t))

	_, err := c.Compose(context.Background(), eng, &storyboard.Storyboard{Title: "t"}, nil)
	if !errors.Is(err, storyboard.ErrNoScenes) {
		t.Fatalf("err = %v, want ErrNoScenes", err)
	}
}

func TestBrollFetchFailureFallsBackToColor(t *testing.T) {
	eng := newFakeEngine()
	c := newTestComposer(t, writeTempFont(t))

	board := solidBoard(3)
	board.Scenes[1].Broll = &storyboard.Broll{URL: "https://blocked.example.com/clip.mp4"}
	board.Scenes[1].BgColor = "#112233"

	out, err := c.Compose(context.Background(), eng, board, nil)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if len(out) == 0 {
		t.Fatal("empty output")
	}

	execs := eng.execsJoined()
	if !strings.Contains(execs[1], "color=c=#112233") {
		t.Errorf("scene 2 did not degrade to its background color: %s", execs[1])
	}
}

func TestEmptyCaptionSkipsOverlay(t *testing.T) {
	eng := newFakeEngine()
	c := newTestComposer(t, writeTempFont(t))

	board := &storyboard.Storyboard{
		Title:  "t",
		Scenes: []storyboard.Scene{{ID: "s1", OnScreenText: "", Voiceover: "", DurationSec: 4}},
	}
	if _, err := c.Compose(context.Background(), eng, board, nil); err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if strings.Contains(eng.execsJoined()[0], "drawtext") {
		t.Errorf("empty caption still drew an overlay: %s", eng.execsJoined()[0])
	}
}

func TestMissingFontDisablesCaptions(t *testing.T) {
	eng := newFakeEngine()
	c := newTestComposer(t, filepath.Join(t.TempDir(), "missing.ttf"))

	if _, err := c.Compose(context.Background(), eng, solidBoard(1), nil); err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if strings.Contains(eng.execsJoined()[0], "drawtext") {
		t.Error("caption drawn without a font")
	}
}

func TestRenderRetryAbsorbsOneFailure(t *testing.T) {
	eng := newFakeEngine()
	eng.failures["scene_s1.mp4"] = 1
	c := newTestComposer(t, writeTempFont(t))

	if _, err := c.Compose(context.Background(), eng, solidBoard(1), nil); err != nil {
		t.Fatalf("Compose after one transient failure: %v", err)
	}
}

func TestRenderFailureSurvivingRetryIsFatal(t *testing.T) {
	eng := newFakeEngine()
	eng.failures["scene_s1.mp4"] = 2
	c := newTestComposer(t, writeTempFont(t))

	_, err := c.Compose(context.Background(), eng, solidBoard(2), nil)
	if err == nil {
		t.Fatal("Compose succeeded despite persistent render failure")
	}
	if len(eng.entries) != 0 {
		t.Errorf("entries left after failed job: %v", eng.entries)
	}
}

func TestMuxFailureKeepsSilentScene(t *testing.T) {
	eng := newFakeEngine()
	eng.failures["scene_s1_mux"] = 1
	c := newTestComposer(t, writeTempFont(t))

	payload := base64.StdEncoding.EncodeToString([]byte("mp3-bytes"))
	audio := []storyboard.AudioClip{
		{ID: "s1", Mime: "audio/mpeg", Base64: payload},
		{ID: "s2", Mime: "audio/mpeg", Base64: payload},
	}

	snapshot := &snapshotEngine{fakeEngine: eng}
	if _, err := c.Compose(context.Background(), snapshot, solidBoard(2), audio); err != nil {
		t.Fatalf("Compose: %v", err)
	}

	want := "file 'scene_s1.mp4'\nfile 'scene_s2_mux.mp4'\n"
	if snapshot.listAtConcat != want {
		t.Errorf("manifest = %q, want %q", snapshot.listAtConcat, want)
	}
}

func TestSceneWithoutAudioRecordStaysSilent(t *testing.T) {
	eng := newFakeEngine()
	c := newTestComposer(t, writeTempFont(t))

	// Synthesis failed for s1 (empty base64), succeeded for s2.
	payload := base64.StdEncoding.EncodeToString([]byte("mp3-bytes"))
	audio := []storyboard.AudioClip{
		{ID: "s1", Base64: "", Error: "synthesis failed"},
		{ID: "s2", Mime: "audio/mpeg", Base64: payload},
	}

	snapshot := &snapshotEngine{fakeEngine: eng}
	if _, err := c.Compose(context.Background(), snapshot, solidBoard(2), audio); err != nil {
		t.Fatalf("Compose: %v", err)
	}

	want := "file 'scene_s1.mp4'\nfile 'scene_s2_mux.mp4'\n"
	if snapshot.listAtConcat != want {
		t.Errorf("manifest = %q, want %q", snapshot.listAtConcat, want)
	}
}

func TestConcatFallsBackToReencode(t *testing.T) {
	eng := newFakeEngine()
	eng.failures["-c copy"] = 1
	c := newTestComposer(t, writeTempFont(t))

	out, err := c.Compose(context.Background(), eng, solidBoard(2), nil)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if len(out) == 0 {
		t.Fatal("empty output")
	}

	var sawReencode bool
	for _, joined := range eng.execsJoined() {
		if strings.Contains(joined, "-f concat") && strings.Contains(joined, "-c:v libx264") {
			sawReencode = true
		}
	}
	if !sawReencode {
		t.Error("re-encode concat fallback never ran")
	}
}

func TestConcatFailingBothWaysIsFatal(t *testing.T) {
	eng := newFakeEngine()
	eng.failures["-f concat"] = 2
	c := newTestComposer(t, writeTempFont(t))

	if _, err := c.Compose(context.Background(), eng, solidBoard(2), nil); err == nil {
		t.Fatal("Compose succeeded despite concat failing both ways")
	}
	if len(eng.entries) != 0 {
		t.Errorf("entries left after failed job: %v", eng.entries)
	}
}

func TestTransparentCaptionBox(t *testing.T) {
	eng := newFakeEngine()
	c := newTestComposer(t, writeTempFont(t))

	zero := 0.0
	board := &storyboard.Storyboard{
		Title: "t",
		Scenes: []storyboard.Scene{{
			ID:           "s1",
			OnScreenText: "visible text",
			DurationSec:  4,
			BgColor:      "#0d0d0d",
			BgAlpha:      &zero,
		}},
	}
	if _, err := c.Compose(context.Background(), eng, board, nil); err != nil {
		t.Fatalf("Compose: %v", err)
	}

	joined := eng.execsJoined()[0]
	if !strings.Contains(joined, "boxcolor=0x0d0d0d00") {
		t.Errorf("box not fully transparent: %s", joined)
	}
	if !strings.Contains(joined, "text='visible text'") {
		t.Errorf("caption text missing: %s", joined)
	}
}

func TestDuplicateSceneIDsFatal(t *testing.T) {
	eng := newFakeEngine()
	c := newTestComposer(t, writeTempFont(t))

	board := &storyboard.Storyboard{
		Title: "t",
		Scenes: []storyboard.Scene{
			{ID: "a", OnScreenText: "first", DurationSec: 4},
			{ID: "a", OnScreenText: "second", DurationSec: 4},
		},
	}

	_, err := c.Compose(context.Background(), eng, board, nil)
	if err == nil {
		t.Fatal("Compose succeeded with colliding scene ids")
	}
	if !strings.Contains(err.Error(), "duplicate scene id") {
		t.Errorf("err = %v, want duplicate scene id", err)
	}
	if len(eng.entries) != 0 {
		t.Errorf("entries left after failed job: %v", eng.entries)
	}
}

func TestBrollRenderUsesFetchedClip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		w.Write([]byte("clip-bytes"))
	}))
	defer srv.Close()

	host, _ := url.Parse(srv.URL)
	eng := newFakeEngine()
	mat := assets.NewMaterializer(logger.NewNop(), []string{host.Hostname()})
	c := New(logger.NewNop(), mat, Options{
		Profile:  config.DetectProfile(config.ProfileLow),
		FontPath: writeTempFont(t),
	})

	board := solidBoard(2)
	board.Scenes[1].Broll = &storyboard.Broll{URL: srv.URL + "/clip.mp4"}

	snapshot := &snapshotEngine{fakeEngine: eng}
	if _, err := c.Compose(context.Background(), snapshot, board, nil); err != nil {
		t.Fatalf("Compose: %v", err)
	}

	joined := eng.execsJoined()[1]
	if !strings.Contains(joined, "-i in_s2.mp4") {
		t.Errorf("scene 2 not rendered from the fetched clip: %s", joined)
	}
	if strings.Contains(joined, "lavfi") {
		t.Errorf("scene 2 used the color source despite a staged clip: %s", joined)
	}
	if !strings.Contains(joined, "-an ") {
		t.Errorf("scene 2 kept the clip's audio track: %s", joined)
	}
	if !strings.Contains(joined, "scale=480:854") {
		t.Errorf("scene 2 not scaled to the canonical frame: %s", joined)
	}
	if !strings.Contains(joined, "-t 4 ") {
		t.Errorf("scene 2 missing duration trim: %s", joined)
	}
	if !strings.Contains(joined, "drawtext=") {
		t.Errorf("scene 2 missing caption overlay: %s", joined)
	}
	if snapshot.listAtConcat != "file 'scene_s1.mp4'\nfile 'scene_s2.mp4'\n" {
		t.Errorf("manifest = %q", snapshot.listAtConcat)
	}
}

func TestDrawtextUsesSingleFontfile(t *testing.T) {
	eng := newFakeEngine()
	mat := assets.NewMaterializer(logger.NewNop(), []string{"videos.pexels.com"})
	c := New(logger.NewNop(), mat, Options{
		Profile:       config.DetectProfile(config.ProfileLow),
		FontPath:      writeTempFont(t),
		EmojiFontPath: writeTempFont(t),
	})

	if _, err := c.Compose(context.Background(), eng, solidBoard(1), nil); err != nil {
		t.Fatalf("Compose: %v", err)
	}

	joined := eng.execsJoined()[0]
	if !strings.Contains(joined, "fontfile="+captionFontEntry+":") {
		t.Errorf("caption font not the drawtext fontfile: %s", joined)
	}
	if strings.Contains(joined, "|") {
		t.Errorf("drawtext fontfile carries a font list: %s", joined)
	}
}

func TestEffectiveDuration(t *testing.T) {
	tests := []struct {
		name  string
		scene storyboard.Scene
		want  float64
	}{
		{"explicit", storyboard.Scene{DurationSec: 4}, 4},
		{"clamped low", storyboard.Scene{DurationSec: 0.2}, 1},
		{"clamped high", storyboard.Scene{DurationSec: 90}, 30},
		{"derived from empty narration", storyboard.Scene{}, 3},
		{"derived from narration", storyboard.Scene{Voiceover: strings.Repeat("a", 22)}, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := effectiveDuration(&tt.scene); got != tt.want {
				t.Errorf("effectiveDuration = %v, want %v", got, tt.want)
			}
		})
	}
}
