package store

import (
	"context"
	"errors"
	"time"

	"jumpnav/internal/model"
)

// Store keeps planning jobs for as long as the process runs. Nothing is
// persisted between runs.
type Store interface {
	CreateJob(ctx context.Context, job model.Job) (model.Job, error)
	GetJob(ctx context.Context, id string) (model.Job, error)
	// UpdateJob applies fn to the stored job under the store's lock.
	UpdateJob(ctx context.Context, id string, fn func(*model.Job) error) (model.Job, error)
	ListJobs(ctx context.Context, status model.JobStatus, cursor string, limit int) ([]model.Job, string, error)
	PruneFinished(ctx context.Context, olderThan time.Time) (int, error)
}

var ErrNotFound = errors.New("not found")
