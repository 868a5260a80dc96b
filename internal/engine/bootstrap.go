package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/BrainSnack9/shorts-factory/internal/logger"
)

// ErrUnavailable means no candidate ffmpeg binary could be initialized.
// It aborts a composition before any scene work starts.
var ErrUnavailable = errors.New("media engine unavailable")

// Bootstrap acquires the process-wide engine handle. The first successful
// initialization is memoized; concurrent callers serialize through a
// singleflight group so the binary ladder only ever runs once at a time.
type Bootstrap struct {
	log        *logger.Logger
	candidates []string
	workRoot   string

	group  singleflight.Group
	mu     sync.Mutex
	handle *FFmpeg
}

// NewBootstrap builds the init ladder: the configured binary (or a plain
// PATH lookup when empty) first, then each configured fallback location
// in order.
func NewBootstrap(log *logger.Logger, ffmpegPath string, fallbacks []string, workRoot string) *Bootstrap {
	primary := ffmpegPath
	if primary == "" {
		primary = "ffmpeg"
	}
	candidates := append([]string{primary}, fallbacks...)

	return &Bootstrap{
		log:        log.With("component", "engine"),
		candidates: candidates,
		workRoot:   workRoot,
	}
}

// Ensure returns the memoized handle, initializing it on first use. Every
// candidate is located and then proven with a self-test render; the first
// one that passes wins. When all candidates fail the error wraps
// ErrUnavailable and nothing is memoized, so a later call retries.
func (b *Bootstrap) Ensure(ctx context.Context) (*FFmpeg, error) {
	b.mu.Lock()
	if b.handle != nil {
		h := b.handle
		b.mu.Unlock()
		return h, nil
	}
	b.mu.Unlock()

	v, err, _ := b.group.Do("init", func() (interface{}, error) {
		return b.initialize(ctx)
	})
	if err != nil {
		return nil, err
	}

	h := v.(*FFmpeg)
	b.mu.Lock()
	b.handle = h
	b.mu.Unlock()
	return h, nil
}

func (b *Bootstrap) initialize(ctx context.Context) (*FFmpeg, error) {
	workDir, err := b.ensureWorkDir()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var lastErr error
	for _, candidate := range b.candidates {
		bin, err := exec.LookPath(candidate)
		if err != nil {
			lastErr = err
			continue
		}

		h := &FFmpeg{log: b.log, bin: bin, workDir: workDir}
		size, err := h.SelfTest(ctx)
		if err != nil {
			b.log.Warn("engine candidate failed self test", "binary", bin, "error", err)
			lastErr = err
			continue
		}

		b.log.Info("media engine ready", "binary", bin, "selftest_bytes", size)
		return h, nil
	}

	if lastErr == nil {
		lastErr = errors.New("no candidates configured")
	}
	return nil, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

// The workspace survives across jobs; cleanup resets it between them.
func (b *Bootstrap) ensureWorkDir() (string, error) {
	root := b.workRoot
	if root == "" {
		root = os.TempDir()
	}
	dir := filepath.Join(root, "shorts-factory")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}
