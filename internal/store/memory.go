package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"jumpnav/internal/model"
)

// Memory is the in-process job registry.
type Memory struct {
	mu    sync.Mutex
	jobs  map[string]*model.Job
	order []string // insertion order, for stable listing
	now   func() time.Time
}

func NewMemory() *Memory {
	return &Memory{jobs: map[string]*model.Job{}, now: time.Now}
}

func (m *Memory) CreateJob(ctx context.Context, job model.Job) (model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = model.JobQueued
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = m.now().UTC()
	}
	j := job
	m.jobs[j.ID] = &j
	m.order = append(m.order, j.ID)
	return j, nil
}

func (m *Memory) GetJob(ctx context.Context, id string) (model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return model.Job{}, ErrNotFound
	}
	return *j, nil
}

func (m *Memory) UpdateJob(ctx context.Context, id string, fn func(*model.Job) error) (model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return model.Job{}, ErrNotFound
	}
	cp := *j
	if err := fn(&cp); err != nil {
		return *j, err
	}
	cp.ID = id
	*j = cp
	return cp, nil
}

// ListJobs pages through jobs newest first. cursor is the id of the last job
// of the previous page.
func (m *Memory) ListJobs(ctx context.Context, status model.JobStatus, cursor string, limit int) ([]model.Job, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}
	ids := make([]string, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		ids = append(ids, m.order[i])
	}

	start := 0
	if cursor != "" {
		for i, id := range ids {
			if id == cursor {
				start = i + 1
				break
			}
		}
	}
	out := []model.Job{}
	next := ""
	for i := start; i < len(ids); i++ {
		j := m.jobs[ids[i]]
		if status != "" && j.Status != status {
			continue
		}
		if len(out) == limit {
			next = out[len(out)-1].ID
			break
		}
		out = append(out, *j)
	}
	return out, next, nil
}

// PruneFinished drops terminal jobs that finished before olderThan.
func (m *Memory) PruneFinished(ctx context.Context, olderThan time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.order[:0]
	removed := 0
	for _, id := range m.order {
		j := m.jobs[id]
		if j.Status.Finished() && j.FinishedAt != nil && j.FinishedAt.Before(olderThan) {
			delete(m.jobs, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept
	return removed, nil
}
