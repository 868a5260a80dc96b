package compose

import (
	"github.com/BrainSnack9/shorts-factory/internal/engine"
	"github.com/BrainSnack9/shorts-factory/internal/logger"
)

// job owns the workspace entries one composition creates. Every entry is
// recorded at creation time so cleanup deletes exactly what exists,
// regardless of which fallback branch produced it.
type job struct {
	eng     engine.Engine
	entries []string
}

func newJob(eng engine.Engine) *job {
	return &job{eng: eng}
}

// track registers an entry name for unconditional deletion at job end.
func (j *job) track(name string) string {
	j.entries = append(j.entries, name)
	return name
}

// cleanup is best-effort and never fails: deletion errors (including
// entries a degraded branch never created) are swallowed.
func (j *job) cleanup(log *logger.Logger) {
	for _, name := range j.entries {
		if err := j.eng.RemoveEntry(name); err != nil {
			log.Debug("cleanup skip", "entry", name, "error", err)
		}
	}
	j.entries = nil
}
