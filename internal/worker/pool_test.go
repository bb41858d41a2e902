package worker

import (
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestPool(t *testing.T, size int, opts ...Option) *Pool {
	t.Helper()
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	p, err := New(size, opts...)
	require.NoError(t, err)
	require.NotNil(t, p)
	return p
}

// concurrency tracks how many jobs are inside a section at once.
type concurrency struct {
	active atomic.Int32
	peak   atomic.Int32
}

func (c *concurrency) enter() {
	n := c.active.Add(1)
	for {
		p := c.peak.Load()
		if n <= p || c.peak.CompareAndSwap(p, n) {
			return
		}
	}
}

func (c *concurrency) leave() { c.active.Add(-1) }

func TestNew_StartsIdleWorkers(t *testing.T) {
	for _, size := range []int{1, 2, 4, 16} {
		p := newTestPool(t, size)

		assert.Equal(t, size, p.Size())
		stats := p.Stats()
		assert.Equal(t, size, stats.Running)
		assert.Equal(t, 0, stats.Busy)
		assert.Equal(t, 0, stats.Pending)
		assert.False(t, stats.Closed)
		for i, w := range p.workers {
			assert.Equal(t, i, w.ID())
		}

		// Every worker is live and waiting: size blocking jobs occupy all
		// of them at once.
		release := make(chan struct{})
		for range size {
			p.Execute(func() { <-release })
		}
		assert.Eventually(t, func() bool {
			return p.Stats().Busy == size
		}, time.Second, time.Millisecond, "size=%d", size)
		assert.Equal(t, 0, p.Stats().Pending)

		close(release)
		assert.NoError(t, p.Close())
	}
}

func TestNew_InvalidSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		p, err := New(size, WithLogger(quietLogger()))

		assert.ErrorIs(t, err, ErrInvalidSize)
		assert.Nil(t, p)
	}
}

func TestPool_EveryJobRunsExactlyOnce(t *testing.T) {
	p := newTestPool(t, 4)

	const n = 200
	var (
		mu  sync.Mutex
		log []int
	)
	for i := range n {
		p.Execute(func() {
			mu.Lock()
			log = append(log, i)
			mu.Unlock()
		})
	}
	require.NoError(t, p.Close())

	require.Len(t, log, n)
	sort.Ints(log)
	for i := range n {
		assert.Equal(t, i, log[i])
	}
	assert.Equal(t, uint64(n), p.Stats().Submitted)
	assert.Equal(t, uint64(n), p.Stats().Completed)
}

func TestPool_CloseWaitsForInFlightJobs(t *testing.T) {
	p := newTestPool(t, 2)

	var finished atomic.Int32
	for range 4 {
		p.Execute(func() {
			time.Sleep(30 * time.Millisecond)
			finished.Add(1)
		})
	}

	require.NoError(t, p.Close())
	assert.Equal(t, int32(4), finished.Load())

	stats := p.Stats()
	assert.Equal(t, 0, stats.Busy)
	assert.Equal(t, 0, stats.Running)
	assert.True(t, stats.Closed)
	for _, w := range p.workers {
		assert.Equal(t, StateShuttingDown, w.State())
	}
}

func TestPool_SingleWorkerSerializes(t *testing.T) {
	p := newTestPool(t, 1)

	var c concurrency
	for range 2 {
		p.Execute(func() {
			c.enter()
			defer c.leave()
			time.Sleep(20 * time.Millisecond)
		})
	}
	require.NoError(t, p.Close())

	assert.Equal(t, int32(1), c.peak.Load())
}

func TestPool_ParallelDispatch(t *testing.T) {
	const k = 4
	p := newTestPool(t, k)

	var c concurrency
	release := make(chan struct{})
	for range k {
		p.Execute(func() {
			c.enter()
			defer c.leave()
			<-release
		})
	}

	assert.Eventually(t, func() bool {
		return c.active.Load() == k
	}, time.Second, time.Millisecond, "jobs did not overlap")
	assert.Equal(t, k, p.Stats().Busy)

	close(release)
	require.NoError(t, p.Close())
	assert.GreaterOrEqual(t, c.peak.Load(), int32(2))
}

func TestPool_FourWorkersSixJobs(t *testing.T) {
	p := newTestPool(t, 4)

	var (
		c          concurrency
		mu         sync.Mutex
		timestamps []time.Time
	)
	record := func() {
		c.enter()
		defer c.leave()
		time.Sleep(25 * time.Millisecond)
		mu.Lock()
		timestamps = append(timestamps, time.Now())
		mu.Unlock()
	}

	for range 4 {
		p.Execute(record)
	}
	p.Execute(record)
	p.Execute(record)

	require.NoError(t, p.Close())

	assert.LessOrEqual(t, c.peak.Load(), int32(4))
	assert.Len(t, timestamps, 6)
	assert.Equal(t, int32(0), c.active.Load())
}

func TestPool_PanicStopsOnlyThatWorker(t *testing.T) {
	p := newTestPool(t, 3)

	p.Execute(func() { panic("boom") })

	assert.Eventually(t, func() bool {
		return p.Stats().Failed == 1
	}, time.Second, time.Millisecond)

	var ran atomic.Int32
	for range 10 {
		p.Execute(func() { ran.Add(1) })
	}

	err := p.Close()
	require.Error(t, err)

	var perr *PanicError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "boom", perr.Value)
	assert.NotEmpty(t, perr.Stack)
	assert.Contains(t, err.Error(), "job panicked: boom")

	assert.Equal(t, int32(10), ran.Load())
	assert.Equal(t, 1, p.Stats().Failed)
}

func TestPool_ExecuteAfterClosePanics(t *testing.T) {
	p := newTestPool(t, 2)
	require.NoError(t, p.Close())

	assert.PanicsWithValue(t, ErrPoolClosed, func() { p.Execute(func() {}) })
}

func TestPool_ExecuteRacingCloseCountsNothing(t *testing.T) {
	obs := &recordingObserver{exited: map[int]error{}}
	p := newTestPool(t, 2, WithObserver(obs))
	p.Execute(func() {})

	// Close the queue under a producer that still holds the handle.
	p.queue.Close()
	assert.PanicsWithValue(t, ErrPoolClosed, func() { p.Execute(func() {}) })

	require.NoError(t, p.Close())
	assert.Equal(t, uint64(1), p.Stats().Submitted)
	assert.Equal(t, uint64(1), p.Stats().Completed)
	assert.Equal(t, int32(1), obs.queued.Load())
}

func TestPool_ExecuteNilJobPanics(t *testing.T) {
	p := newTestPool(t, 1)
	defer p.Close()

	assert.Panics(t, func() { p.Execute(nil) })
}

func TestPool_CloseIsIdempotent(t *testing.T) {
	p := newTestPool(t, 2)
	p.Execute(func() { panic("once") })

	assert.Error(t, p.Close())
	assert.NoError(t, p.Close())
	assert.NoError(t, p.Close())
}

func TestPool_JobCanSubmitFollowUp(t *testing.T) {
	p := newTestPool(t, 2)

	done := make(chan struct{})
	p.Execute(func() {
		p.Execute(func() { close(done) })
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("follow-up job did not run")
	}
	require.NoError(t, p.Close())
}

type recordingObserver struct {
	queued, started, finished atomic.Int32
	mu                        sync.Mutex
	exited                    map[int]error
}

func (r *recordingObserver) JobQueued()                     { r.queued.Add(1) }
func (r *recordingObserver) JobStarted(int)                 { r.started.Add(1) }
func (r *recordingObserver) JobFinished(int, time.Duration) { r.finished.Add(1) }
func (r *recordingObserver) WorkerExited(id int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exited[id] = err
}

func TestPool_Observer(t *testing.T) {
	obs := &recordingObserver{exited: map[int]error{}}
	p := newTestPool(t, 2, WithObserver(obs))

	for range 5 {
		p.Execute(func() {})
	}
	p.Execute(func() { panic("observer") })
	_ = p.Close()

	assert.Equal(t, int32(6), obs.queued.Load())
	assert.Equal(t, int32(6), obs.started.Load())
	assert.Equal(t, int32(5), obs.finished.Load())

	obs.mu.Lock()
	defer obs.mu.Unlock()
	require.Len(t, obs.exited, 2)
	failures := 0
	for _, err := range obs.exited {
		if err != nil {
			failures++
		}
	}
	assert.Equal(t, 1, failures)
}
