package compose

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/BrainSnack9/shorts-factory/internal/storyboard"
	"github.com/BrainSnack9/shorts-factory/internal/textlayout"
)

const (
	minSceneSec = 1.0
	maxSceneSec = 30.0
)

// effectiveDuration clamps the scene's target length to [1, 30] seconds,
// deriving it from the narration at the fixed reading rate when unset.
func effectiveDuration(sc *storyboard.Scene) float64 {
	d := sc.DurationSec
	if d <= 0 {
		d = textlayout.DurationFromText(sc.Voiceover)
	}
	if d < minSceneSec {
		return minSceneSec
	}
	if d > maxSceneSec {
		return maxSceneSec
	}
	return d
}

// renderScene runs the per-scene state machine: resolve duration,
// background and caption, render the silent video (with one identical
// retry), then best-effort mux the narration. Only a render failure that
// survives the retry is fatal.
func (c *Composer) renderScene(ctx context.Context, j *job, id string, sc *storyboard.Scene, clip storyboard.AudioClip, fonts fontStack) (string, error) {
	dur := effectiveDuration(sc)

	// Background: fetched clip, degrading to a solid color.
	videoIn := ""
	if sc.Broll != nil && sc.Broll.URL != "" {
		name := j.track("in_" + id + ".mp4")
		if err := c.mat.FromURL(ctx, j.eng, name, sc.Broll.URL); err != nil {
			c.log.Warn("b-roll unavailable, using background color", "scene", id, "error", err)
		} else {
			videoIn = name
		}
	}

	// Caption: empty after stripping means no overlay at all.
	drawtext := ""
	caption := strings.TrimSpace(textlayout.StripTags(sc.CaptionSource()))
	if caption != "" && fonts.available() {
		wrapped := textlayout.WrapForDisplay(caption, textlayout.DefaultWrapLimit)
		drawtext = c.captionFilter(sc, wrapped, fonts)
	}

	outName := j.track("scene_" + id + ".mp4")

	var args []string
	if videoIn != "" {
		args = c.sceneVideoArgs(videoIn, outName, dur, drawtext)
	} else {
		args = c.sceneColorArgs(sc.BgColorOrDefault(), outName, dur, drawtext)
	}

	render := func(ctx context.Context) error {
		return j.eng.Exec(ctx, args...)
	}
	err := runLadder(ctx, c.log, "render scene "+id, []strategy{
		{name: "render", run: render},
		{name: "render-retry", run: render},
	})
	if err != nil {
		return "", err
	}

	if clip.Base64 == "" {
		return outName, nil
	}
	return c.muxNarration(ctx, j, id, outName, dur, clip), nil
}

// muxNarration combines the silent scene with its narration track:
// stream-copied video, re-encoded AAC audio, truncated to the scene
// duration. Audio is best-effort; any failure keeps the silent output.
func (c *Composer) muxNarration(ctx context.Context, j *job, id, videoName string, dur float64, clip storyboard.AudioClip) string {
	audName := j.track("aud_" + id + ".mp3")
	data, err := storyboard.DecodeAudio(clip)
	if err != nil {
		c.log.Warn("narration decode failed, keeping silent scene", "scene", id, "error", err)
		return videoName
	}
	if err := c.mat.FromBytes(j.eng, audName, data); err != nil {
		c.log.Warn("narration staging failed, keeping silent scene", "scene", id, "error", err)
		return videoName
	}

	muxName := j.track("scene_" + id + "_mux.mp4")
	err = j.eng.Exec(ctx,
		"-i", j.eng.EntryPath(videoName),
		"-i", j.eng.EntryPath(audName),
		"-t", formatSeconds(dur),
		"-c:v", "copy",
		"-c:a", "aac",
		"-shortest",
		"-y", j.eng.EntryPath(muxName),
	)
	if err != nil {
		c.log.Warn("narration mux failed, keeping silent scene", "scene", id, "error", err)
		return videoName
	}
	return muxName
}

// captionFilter builds the drawtext overlay: wrapped text in a padded
// box, horizontally centered, vertical position a percentage of frame
// height. drawtext accepts exactly one fontfile, so only the caption
// font is passed; glyphs it lacks render as its notdef box.
func (c *Composer) captionFilter(sc *storyboard.Scene, wrapped string, fonts fontStack) string {
	boxColor := textlayout.BoxColor(boxBgColor(sc), sc.BgAlphaOrDefault())
	yExpr := fmt.Sprintf("(h*%d/100-text_h/2)", sc.TextPositionOrDefault())

	return "drawtext=fontfile=" + fonts.entries[0] +
		":text='" + textlayout.EscapeDrawtext(wrapped) + "'" +
		":fontcolor=" + sc.TextColorOrDefault() +
		":fontsize=" + strconv.Itoa(sc.FontSizeOrDefault()) +
		":x=(w-text_w)/2:y=" + yExpr +
		":box=1:boxcolor=" + boxColor +
		":boxborderw=24:line_spacing=10"
}

// The caption box color defaults to black, independently of the solid
// background default.
func boxBgColor(sc *storyboard.Scene) string {
	if sc.BgColor != "" {
		return sc.BgColor
	}
	return "#000000"
}

// sceneVideoArgs renders a fetched clip: trimmed to the scene duration,
// audio stripped, scaled to the canonical frame and overlaid.
func (c *Composer) sceneVideoArgs(inName, outName string, dur float64, drawtext string) []string {
	filters := []string{fmt.Sprintf("scale=%d:%d", c.profile.Width, c.profile.Height)}
	if drawtext != "" {
		filters = append(filters, drawtext)
	}

	return []string{
		"-i", inName,
		"-t", formatSeconds(dur),
		"-an",
		"-vf", strings.Join(filters, ","),
		"-r", strconv.Itoa(c.profile.FPS),
		"-c:v", "libx264",
		"-preset", c.profile.Preset,
		"-crf", strconv.Itoa(c.profile.CRF),
		"-threads", strconv.Itoa(c.profile.Threads),
		"-pix_fmt", "yuv420p",
		"-y", outName,
	}
}

// sceneColorArgs renders a synthetic solid-color background of the scene
// duration. The lavfi source is cheap, so encoding always uses the fast
// settings.
func (c *Composer) sceneColorArgs(bgColor, outName string, dur float64, drawtext string) []string {
	args := []string{
		"-f", "lavfi",
		"-t", formatSeconds(dur),
		"-i", fmt.Sprintf("color=c=%s:s=%dx%d:r=%d", bgColor, c.profile.Width, c.profile.Height, c.profile.FPS),
	}
	if drawtext != "" {
		args = append(args, "-vf", drawtext)
	}
	return append(args,
		"-r", strconv.Itoa(c.profile.FPS),
		"-c:v", "libx264",
		"-preset", "ultrafast",
		"-crf", "28",
		"-pix_fmt", "yuv420p",
		"-y", outName,
	)
}

func formatSeconds(sec float64) string {
	return strconv.FormatFloat(sec, 'f', -1, 64)
}
