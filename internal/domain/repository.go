package domain

import (
	"context"
	"time"
)

// StatusUpdate carries the optional fields of a status transition. Nil fields
// are left untouched by the store.
type StatusUpdate struct {
	Error           *string
	Progress        *string
	PanelsCompleted *int
	Result          *ComicResult
}

// JobRepository defines persistence for comic jobs. Implementations must make
// ClaimNext safe against concurrent claimers: the pending -> writing_script
// transition is conditional on the row still being pending, so at most one
// caller wins a given job.
type JobRepository interface {
	// Enqueue creates a new pending job owned by apiKey.
	Enqueue(ctx context.Context, apiKey string, req ComicRequest) (*Job, error)
	// GetByID fetches a job, returning ErrNotFound when absent.
	GetByID(ctx context.Context, jobID string) (*Job, error)
	// ClaimNext atomically claims the oldest pending job, transitioning it to
	// writing_script. Returns ErrNoJob when nothing is pending.
	ClaimNext(ctx context.Context) (*Job, error)
	// UpdateStatus sets the status plus any non-nil fields of update. It does
	// not validate transition legality; the worker owns the state machine.
	UpdateStatus(ctx context.Context, jobID string, status JobStatus, update StatusUpdate) error
	// CountSince counts jobs created by apiKey at or after since.
	CountSince(ctx context.Context, apiKey string, since time.Time) (int, error)

	Close() error
}
