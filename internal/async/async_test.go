package async

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/joseph-ayodele/boardingpass-tracker/constants"
	"github.com/joseph-ayodele/boardingpass-tracker/internal/core"
)

type fakeRunner struct {
	inFlight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
	fail     map[string]bool
}

func (f *fakeRunner) Run(ctx context.Context, req core.Request) (*core.Result, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	select {
	case <-time.After(f.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if f.fail[req.FilePath] {
		return nil, &core.ExtractionError{Kind: core.KindExhausted, Err: core.ErrNoExtraction}
	}
	return &core.Result{Status: constants.StatusNeedsReview}, nil
}

func requests(n int) []core.Request {
	out := make([]core.Request, n)
	for i := range out {
		out[i] = core.Request{FilePath: fmt.Sprintf("doc-%02d.png", i)}
	}
	return out
}

func TestRunBatch_BoundedAndOrdered(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := &fakeRunner{delay: 10 * time.Millisecond, fail: map[string]bool{"doc-03.png": true}}
	reqs := requests(12)
	out, stats, err := RunBatch(context.Background(), r, reqs, 3, nil)
	require.NoError(t, err)

	require.Len(t, out, 12)
	for i, o := range out {
		assert.Equal(t, reqs[i].FilePath, o.Job.Request.FilePath)
	}
	assert.LessOrEqual(t, r.peak.Load(), int32(3))
	assert.Equal(t, 12, stats.Total)
	assert.Equal(t, 11, stats.Resolved)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 11, stats.ByStatus[string(constants.StatusNeedsReview)])
	assert.True(t, core.IsExhausted(out[3].Err))
}

func TestRunBatch_Canceled(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out, _, err := RunBatch(ctx, &fakeRunner{}, requests(5), 2, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, out)
}

func TestProcessorQueue_DrainsOnShutdown(t *testing.T) {
	defer goleak.VerifyNone(t)

	var mu sync.Mutex
	var got []Outcome
	q := NewProcessorQueue(&fakeRunner{delay: 5 * time.Millisecond}, nil,
		WithWorkers(2),
		WithQueueSize(1),
		WithSink(func(o Outcome) {
			mu.Lock()
			got = append(got, o)
			mu.Unlock()
		}),
	)
	for _, req := range requests(6) {
		require.NoError(t, q.Enqueue(context.Background(), NewJob(req)))
	}
	q.Shutdown(context.Background())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 6)
	for _, o := range got {
		assert.NoError(t, o.Err)
		assert.NotNil(t, o.Result)
	}

	err := q.Enqueue(context.Background(), NewJob(core.Request{FilePath: "late.png"}))
	assert.True(t, errors.Is(err, ErrQueueClosed))
	q.Shutdown(context.Background())
}

func TestProcessorQueue_JobTimeout(t *testing.T) {
	defer goleak.VerifyNone(t)

	done := make(chan Outcome, 1)
	q := NewProcessorQueue(&fakeRunner{delay: time.Second}, nil,
		WithWorkers(1),
		WithProcessTimeout(20*time.Millisecond),
		WithSink(func(o Outcome) { done <- o }),
	)
	require.NoError(t, q.Enqueue(context.Background(), NewJob(core.Request{FilePath: "slow.png"})))
	o := <-done
	assert.ErrorIs(t, o.Err, context.DeadlineExceeded)
	q.Shutdown(context.Background())
}
