package async

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ProcessorQueue feeds jobs to a fixed pool of workers. Every job gets its own
// timeout-bound context; outcomes go to the sink in completion order.
type ProcessorQueue struct {
	runner  Runner
	logger  *slog.Logger
	workers int
	timeout time.Duration
	sink    func(Outcome)

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

// WithSink receives every outcome. It is called from worker goroutines and
// must be safe for concurrent use.
func WithSink(fn func(Outcome)) Option {
	return func(q *ProcessorQueue) { q.sink = fn }
}

func NewProcessorQueue(runner Runner, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		runner:  runner,
		logger:  logger,
		workers: 4,
		timeout: 3 * time.Minute,
		ch:      make(chan Job, 256),
		sink:    func(Outcome) {},
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("queue.worker.started", "worker_id", workerID)

				for job := range q.ch {
					q.sink(q.process(workerID, job))
				}

				q.logger.Debug("queue.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *ProcessorQueue) process(workerID int, job Job) Outcome {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	res, err := q.runner.Run(ctx, job.Request)
	out := Outcome{Job: job, Result: res, Err: err, Elapsed: time.Since(start)}
	if err != nil {
		q.logger.Error("queue.job.failed", "worker_id", workerID, "job_id", job.ID, "file", job.Request.FilePath, "error", err)
	} else {
		q.logger.Info("queue.job.done",
			"worker_id", workerID,
			"job_id", job.ID,
			"file", job.Request.FilePath,
			"status", res.Status,
			"wait_ms", start.Sub(job.SubmittedAt).Milliseconds(),
			"elapsed_ms", out.Elapsed.Milliseconds(),
		)
	}
	return out
}

// Enqueue blocks while the buffer is full, until ctx is done.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("queue.enqueue.rejected", "job_id", job.ID, "file", job.Request.FilePath)
		return ErrQueueClosed
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	select {
	case q.ch <- job:
		q.logger.Debug("queue.enqueued", "job_id", job.ID, "file", job.Request.FilePath)
		return nil
	default:
	}
	q.logger.Warn("queue.full", "job_id", job.ID)
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting jobs and waits for queued ones to finish, or for
// ctx to end.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("queue.shutdown.interrupted")
	case <-done:
		q.logger.Info("queue.shutdown.drained")
	}
}
