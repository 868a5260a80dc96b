package compose

import (
	"context"
	"fmt"

	"github.com/BrainSnack9/shorts-factory/internal/logger"
)

// strategy is one rung of a fallback ladder.
type strategy struct {
	name string
	run  func(ctx context.Context) error
}

// runLadder executes strategies in order; the first success wins and
// exhausting the list returns the last error.
func runLadder(ctx context.Context, log *logger.Logger, label string, ladder []strategy) error {
	var lastErr error
	for _, s := range ladder {
		if err := s.run(ctx); err != nil {
			log.Warn("stage failed", "label", label, "strategy", s.name, "error", err)
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("%s: all strategies failed: %w", label, lastErr)
}
