package compose

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	concatListEntry = "list.txt"
	concatOutEntry  = "concat_tmp.mp4"
)

// assemble concatenates the per-scene outputs in storyboard order. A
// single scene is returned as-is; multiple scenes go through stream-copy
// concatenation with a full re-encode as the only fallback.
func (c *Composer) assemble(ctx context.Context, j *job, sceneOuts []string) (string, error) {
	switch len(sceneOuts) {
	case 0:
		return "", errors.New("no scene outputs to assemble")
	case 1:
		return sceneOuts[0], nil
	}

	var list strings.Builder
	for _, name := range sceneOuts {
		fmt.Fprintf(&list, "file '%s'\n", j.eng.EntryPath(name))
	}
	if err := j.eng.WriteEntry(j.track(concatListEntry), []byte(list.String())); err != nil {
		return "", fmt.Errorf("write concat manifest: %w", err)
	}

	out := j.track(concatOutEntry)
	err := runLadder(ctx, c.log, "concat", []strategy{
		{name: "stream-copy", run: func(ctx context.Context) error {
			return j.eng.Exec(ctx,
				"-f", "concat", "-safe", "0",
				"-i", j.eng.EntryPath(concatListEntry),
				"-c", "copy",
				"-y", j.eng.EntryPath(out),
			)
		}},
		{name: "re-encode", run: func(ctx context.Context) error {
			return j.eng.Exec(ctx,
				"-f", "concat", "-safe", "0",
				"-i", j.eng.EntryPath(concatListEntry),
				"-c:v", "libx264",
				"-c:a", "aac",
				"-y", j.eng.EntryPath(out),
			)
		}},
	})
	if err != nil {
		return "", err
	}
	return out, nil
}
