// Package engine wraps the ffmpeg binary behind a handle with a flat,
// named-entry workspace. The composition pipeline stages every input and
// output as a named entry and issues one command at a time.
package engine

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/BrainSnack9/shorts-factory/internal/logger"
)

// Engine is what the composition pipeline needs from the media runtime.
// *FFmpeg is the real implementation; tests substitute fakes.
type Engine interface {
	// Exec runs one ffmpeg command to completion.
	Exec(ctx context.Context, args ...string) error
	// WriteEntry stages bytes as a named workspace entry.
	WriteEntry(name string, data []byte) error
	// ReadEntry returns the bytes of a named workspace entry.
	ReadEntry(name string) ([]byte, error)
	// RemoveEntry deletes a named workspace entry.
	RemoveEntry(name string) error
	// EntryPath resolves an entry name to the path ffmpeg sees.
	EntryPath(name string) string
}

// FFmpeg drives a verified ffmpeg binary against a private workspace
// directory. It is safe to share across jobs but commands must be issued
// one at a time per job; the workspace is a single shared resource.
type FFmpeg struct {
	log     *logger.Logger
	bin     string
	workDir string
}

const selfTestEntry = "_selftest.mp4"

// errTail caps how much ffmpeg stderr gets folded into an error.
const errTail = 512

func (f *FFmpeg) Exec(ctx context.Context, args ...string) error {
	full := append([]string{"-nostats", "-hide_banner", "-loglevel", "error"}, args...)

	cmd := exec.CommandContext(ctx, f.bin, full...)
	cmd.Dir = f.workDir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	f.log.Debug("ffmpeg exec", "args", strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		tail := out.String()
		if len(tail) > errTail {
			tail = tail[len(tail)-errTail:]
		}
		return fmt.Errorf("ffmpeg: %w: %s", err, tail)
	}
	return nil
}

func (f *FFmpeg) WriteEntry(name string, data []byte) error {
	if err := validateEntryName(name); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(f.workDir, name), data, 0o644)
}

func (f *FFmpeg) ReadEntry(name string) ([]byte, error) {
	if err := validateEntryName(name); err != nil {
		return nil, err
	}
	return os.ReadFile(filepath.Join(f.workDir, name))
}

func (f *FFmpeg) RemoveEntry(name string) error {
	if err := validateEntryName(name); err != nil {
		return err
	}
	return os.Remove(filepath.Join(f.workDir, name))
}

// EntryPath returns the name itself: commands run with the workspace as
// their working directory, which keeps the namespace flat the way the
// pipeline expects.
func (f *FFmpeg) EntryPath(name string) string {
	return name
}

// SelfTest renders a one-second solid-color clip at a fixed small size
// and returns its byte length. Any failure means the engine is unusable,
// not that a particular scene is bad.
func (f *FFmpeg) SelfTest(ctx context.Context) (int, error) {
	err := f.Exec(ctx,
		"-f", "lavfi",
		"-t", "1",
		"-i", "color=c=#222222:s=320x480:r=24",
		"-pix_fmt", "yuv420p",
		"-y", selfTestEntry,
	)
	if err != nil {
		return 0, fmt.Errorf("self test: %w", err)
	}
	data, err := f.ReadEntry(selfTestEntry)
	if err != nil {
		return 0, fmt.Errorf("self test output: %w", err)
	}
	_ = f.RemoveEntry(selfTestEntry)
	return len(data), nil
}

// The workspace is flat: entry names must be plain file names.
func validateEntryName(name string) error {
	if name == "" || name == "." || name == ".." ||
		name != filepath.Base(name) || strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("invalid workspace entry name %q", name)
	}
	return nil
}
