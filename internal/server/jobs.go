package server

import (
	"sync"
	"time"
)

type jobState string

const (
	jobRendering jobState = "rendering"
	jobDone      jobState = "done"
	jobFailed    jobState = "failed"
)

type jobRecord struct {
	ID        string    `json:"id"`
	State     jobState  `json:"state"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`

	video []byte
}

// maxFinishedJobs bounds how many finished renders stay resident.
// Videos are held whole in memory, so without a cap every composed MP4
// would accumulate for the life of the process.
const maxFinishedJobs = 8

// jobStore keeps finished renders in memory until the client collects
// them. The newest finished jobs stay retrievable (download plus a QR
// scan later); older ones are evicted. The store is not a durable
// archive and restarts drop everything.
type jobStore struct {
	mu   sync.RWMutex
	jobs map[string]*jobRecord
}

func newJobStore() *jobStore {
	return &jobStore{jobs: make(map[string]*jobRecord)}
}

func (s *jobStore) create(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[id] = &jobRecord{ID: id, State: jobRendering, CreatedAt: time.Now()}
}

func (s *jobStore) complete(id string, video []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok {
		j.State = jobDone
		j.video = video
	}
	s.evictLocked()
}

func (s *jobStore) fail(id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok {
		j.State = jobFailed
		j.Error = err.Error()
	}
	s.evictLocked()
}

// evictLocked drops the oldest finished jobs beyond the cap. Rendering
// jobs are never evicted.
func (s *jobStore) evictLocked() {
	var finished []*jobRecord
	for _, j := range s.jobs {
		if j.State != jobRendering {
			finished = append(finished, j)
		}
	}
	for len(finished) > maxFinishedJobs {
		oldest := 0
		for i, j := range finished {
			if j.CreatedAt.Before(finished[oldest].CreatedAt) {
				oldest = i
			}
		}
		delete(s.jobs, finished[oldest].ID)
		finished = append(finished[:oldest], finished[oldest+1:]...)
	}
}

// get returns a copy of the record without the video payload.
func (s *jobStore) get(id string) (jobRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return jobRecord{}, false
	}
	rec := *j
	rec.video = nil
	return rec, true
}

func (s *jobStore) video(id string) ([]byte, jobState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, "", false
	}
	return j.video, j.State, true
}
