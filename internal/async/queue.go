package async

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/boardingpass-tracker/internal/core"
)

// ErrQueueClosed is returned by Enqueue after Shutdown.
var ErrQueueClosed = errors.New("async: queue is shutting down")

// Job is one document waiting for extraction.
type Job struct {
	ID          uuid.UUID
	Request     core.Request
	SubmittedAt time.Time
}

// NewJob stamps req with an ID and submission time.
func NewJob(req core.Request) Job {
	return Job{ID: uuid.New(), Request: req, SubmittedAt: time.Now()}
}

// Outcome is what a worker produced for a Job. Exactly one of Result and Err
// is set.
type Outcome struct {
	Job     Job
	Result  *core.Result
	Err     error
	Elapsed time.Duration
}

// Runner is the extraction entry point; *core.Processor implements it.
type Runner interface {
	Run(ctx context.Context, req core.Request) (*core.Result, error)
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
