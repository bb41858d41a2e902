package worker

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrInvalidSize = errors.New("worker: pool size must be greater than zero")
	ErrPoolClosed  = errors.New("worker: pool is closed")
)

// Observer is notified of pool activity. Implementations must be safe for
// concurrent use; calls come from every worker goroutine.
type Observer interface {
	JobQueued()
	JobStarted(workerID int)
	JobFinished(workerID int, elapsed time.Duration)
	WorkerExited(workerID int, err error)
}

type nopObserver struct{}

func (nopObserver) JobQueued()                     {}
func (nopObserver) JobStarted(int)                 {}
func (nopObserver) JobFinished(int, time.Duration) {}
func (nopObserver) WorkerExited(int, error)        {}

type Option func(*Pool)

func WithLogger(l *slog.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.log = l
		}
	}
}

func WithObserver(o Observer) Option {
	return func(p *Pool) {
		if o != nil {
			p.obs = o
		}
	}
}

// Pool is a fixed set of workers fed from one unbounded queue.
type Pool struct {
	workers []*Worker
	queue   *Queue

	// sender is the producer handle. It is swapped to nil exactly once, by
	// Close.
	sender atomic.Pointer[Queue]

	closeMu sync.Mutex

	completed atomic.Uint64

	obs Observer
	log *slog.Logger
}

// Stats is a point-in-time view of a pool.
type Stats struct {
	Size      int    `json:"size"`
	Running   int    `json:"running"`
	Busy      int    `json:"busy"`
	Failed    int    `json:"failed"`
	Pending   int    `json:"pending"`
	Submitted uint64 `json:"submitted"`
	Completed uint64 `json:"completed"`
	Closed    bool   `json:"closed"`
}

// New starts size workers, all blocked on an empty queue.
func New(size int, opts ...Option) (*Pool, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}

	p := &Pool{
		queue: NewQueue(),
		obs:   nopObserver{},
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.sender.Store(p.queue)

	rx := p.queue.Receiver()
	obs := &countingObserver{next: p.obs, completed: &p.completed}
	p.workers = make([]*Worker, 0, size)
	for id := range size {
		p.workers = append(p.workers, newWorker(id, rx, obs, p.log))
	}

	p.log.Info("worker pool started", "size", size)
	return p, nil
}

// Execute queues job for the next free worker. It never blocks on a busy
// pool. Calling Execute after Close is a programming error and panics.
func (p *Pool) Execute(job Job) {
	if job == nil {
		panic("worker: nil job")
	}
	q := p.sender.Load()
	if q == nil {
		panic(ErrPoolClosed)
	}
	if err := q.Send(job); err != nil {
		panic(ErrPoolClosed)
	}
	p.obs.JobQueued()
}

// Close closes the queue and waits for every worker in id order. Queued jobs
// still run before the workers exit. The returned error joins the failures of
// workers whose jobs panicked. Subsequent calls return nil.
func (p *Pool) Close() error {
	p.closeMu.Lock()
	defer p.closeMu.Unlock()

	q := p.sender.Swap(nil)
	if q == nil {
		return nil
	}
	q.Close()

	var errs []error
	for _, w := range p.workers {
		p.log.Debug("shutting down worker", "worker_id", w.ID())
		if err := w.join(); err != nil {
			errs = append(errs, err)
		}
	}

	p.log.Info("worker pool stopped", "failed_workers", len(errs))
	return errors.Join(errs...)
}

func (p *Pool) Size() int { return len(p.workers) }

func (p *Pool) Stats() Stats {
	// The queue counts a job before any worker can dequeue it, so reading
	// Completed first keeps it at or below Submitted.
	completed := p.completed.Load()
	s := Stats{
		Size:      len(p.workers),
		Pending:   p.queue.Len(),
		Submitted: p.queue.Sent(),
		Completed: completed,
		Closed:    p.sender.Load() == nil,
	}
	for _, w := range p.workers {
		switch w.State() {
		case StateRunning:
			s.Running++
		case StateFailed:
			s.Failed++
		}
		if w.Busy() {
			s.Busy++
		}
	}
	return s
}

type countingObserver struct {
	next      Observer
	completed *atomic.Uint64
}

func (c *countingObserver) JobQueued() { c.next.JobQueued() }

func (c *countingObserver) JobStarted(id int) { c.next.JobStarted(id) }

func (c *countingObserver) JobFinished(id int, elapsed time.Duration) {
	c.completed.Add(1)
	c.next.JobFinished(id, elapsed)
}

func (c *countingObserver) WorkerExited(id int, err error) { c.next.WorkerExited(id, err) }
