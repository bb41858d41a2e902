package worker

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"
)

type State int32

const (
	StateRunning State = iota
	StateShuttingDown
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting_down"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// PanicError records a job that panicked and took its worker down with it.
type PanicError struct {
	WorkerID int
	Value    any
	Stack    []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("worker %d: job panicked: %v", e.WorkerID, e.Value)
}

// Worker runs jobs from a shared Receiver on its own goroutine until the
// queue is closed.
type Worker struct {
	id    int
	state atomic.Int32
	busy  atomic.Bool

	// done is closed when the dispatch loop exits. Set to nil once joined.
	done    chan struct{}
	failure *PanicError

	rx  *Receiver
	obs Observer
	log *slog.Logger
}

func newWorker(id int, rx *Receiver, obs Observer, log *slog.Logger) *Worker {
	w := &Worker{
		id:   id,
		done: make(chan struct{}),
		rx:   rx,
		obs:  obs,
		log:  log.With("worker_id", id),
	}
	go w.run()
	return w
}

func (w *Worker) ID() int { return w.id }

func (w *Worker) State() State { return State(w.state.Load()) }

func (w *Worker) Busy() bool { return w.busy.Load() }

func (w *Worker) run() {
	defer close(w.done)

	for {
		job, ok := w.rx.Receive()
		if !ok {
			w.state.Store(int32(StateShuttingDown))
			w.log.Debug("worker disconnected; shutting down")
			w.obs.WorkerExited(w.id, nil)
			return
		}

		w.log.Debug("worker got a job; executing")
		if err := w.execute(job); err != nil {
			w.failure = err
			w.state.Store(int32(StateFailed))
			w.log.Error("worker stopped after job panic", "err", err, "stack", string(err.Stack))
			w.obs.WorkerExited(w.id, err)
			return
		}
	}
}

func (w *Worker) execute(job Job) (perr *PanicError) {
	w.busy.Store(true)
	w.obs.JobStarted(w.id)
	start := time.Now()

	defer func() {
		w.busy.Store(false)
		if r := recover(); r != nil {
			perr = &PanicError{WorkerID: w.id, Value: r, Stack: debug.Stack()}
			return
		}
		w.obs.JobFinished(w.id, time.Since(start))
	}()

	job()
	return nil
}

// join waits for the dispatch loop to exit. Calling it again after it has
// returned is a no-op.
func (w *Worker) join() error {
	if w.done == nil {
		return nil
	}
	<-w.done
	w.done = nil
	if w.failure != nil {
		return w.failure
	}
	return nil
}
