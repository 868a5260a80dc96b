// Package compose is the video composition pipeline: it renders a
// storyboard scene by scene and concatenates the results into one
// vertical MP4, degrading per scene when an input asset is missing.
package compose

import (
	"context"
	"errors"
	"fmt"

	"github.com/BrainSnack9/shorts-factory/internal/assets"
	"github.com/BrainSnack9/shorts-factory/internal/config"
	"github.com/BrainSnack9/shorts-factory/internal/engine"
	"github.com/BrainSnack9/shorts-factory/internal/logger"
	"github.com/BrainSnack9/shorts-factory/internal/storyboard"
)

const (
	captionFontEntry = "NotoSansKR-Bold.ttf"
	emojiFontEntry   = "NotoColorEmoji.ttf"
)

// Composer runs composition jobs against an engine handle. One job at a
// time: scenes render strictly in storyboard order and the engine
// workspace is a single shared resource.
type Composer struct {
	log     *logger.Logger
	mat     *assets.Materializer
	profile config.Profile

	fontPath      string
	emojiFontPath string
}

type Options struct {
	Profile       config.Profile
	FontPath      string
	EmojiFontPath string
}

func New(log *logger.Logger, mat *assets.Materializer, opts Options) *Composer {
	return &Composer{
		log:           log.With("component", "compose"),
		mat:           mat,
		profile:       opts.Profile,
		fontPath:      opts.FontPath,
		emojiFontPath: opts.EmojiFontPath,
	}
}

// Compose renders the storyboard into a single MP4 byte buffer. Audio
// clips are correlated to scenes by id; scenes without one come out
// silent. The workspace entries the job creates are removed on every
// exit path.
func (c *Composer) Compose(ctx context.Context, eng engine.Engine, board *storyboard.Storyboard, audio []storyboard.AudioClip) (out []byte, err error) {
	if board == nil || len(board.Scenes) == 0 {
		return nil, storyboard.ErrNoScenes
	}

	j := newJob(eng)
	defer j.cleanup(c.log)

	fonts := c.loadFonts(j)

	audioByID := make(map[string]storyboard.AudioClip, len(audio))
	for _, a := range audio {
		audioByID[a.ID] = a
	}

	sceneOuts := make([]string, 0, len(board.Scenes))
	seenIDs := make(map[string]struct{}, len(board.Scenes))
	for i := range board.Scenes {
		id := board.SceneID(i)
		// Entry names derive from the id; a repeat would overwrite an
		// earlier scene's render and corrupt the concat manifest.
		if _, dup := seenIDs[id]; dup {
			return nil, fmt.Errorf("duplicate scene id %q", id)
		}
		seenIDs[id] = struct{}{}
		clip, hasClip := audioByID[id]
		if !hasClip || clip.Base64 == "" {
			clip = storyboard.AudioClip{}
		}

		name, err := c.renderScene(ctx, j, id, &board.Scenes[i], clip, fonts)
		if err != nil {
			return nil, fmt.Errorf("scene %s: %w", id, err)
		}
		sceneOuts = append(sceneOuts, name)
	}

	final, err := c.assemble(ctx, j, sceneOuts)
	if err != nil {
		return nil, err
	}

	data, err := eng.ReadEntry(final)
	if err != nil {
		return nil, fmt.Errorf("read final output: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("final output is empty")
	}
	return data, nil
}

// fontStack names the font entries that actually materialized, caption
// font first. Empty means no caption overlays this job.
type fontStack struct {
	entries []string
}

func (f fontStack) available() bool { return len(f.entries) > 0 }

// loadFonts stages the caption and emoji fonts once for the whole job.
// Either failing is non-fatal: captions degrade, scenes still render.
func (c *Composer) loadFonts(j *job) fontStack {
	var fonts fontStack

	if err := c.mat.FromFile(j.eng, j.track(captionFontEntry), c.fontPath); err != nil {
		c.log.Warn("caption font unavailable, captions disabled", "path", c.fontPath, "error", err)
	} else {
		fonts.entries = append(fonts.entries, captionFontEntry)
	}

	if c.emojiFontPath == "" {
		return fonts
	}
	if err := c.mat.FromFile(j.eng, j.track(emojiFontEntry), c.emojiFontPath); err != nil {
		c.log.Warn("emoji font unavailable", "path", c.emojiFontPath, "error", err)
	} else if fonts.available() {
		fonts.entries = append(fonts.entries, emojiFontEntry)
	}

	return fonts
}
