package worker

import (
	"errors"
	"sync"

	"github.com/jacobsa/syncutil"
)

// Job is a one-shot unit of work. It captures whatever state it needs.
type Job func()

var ErrQueueClosed = errors.New("worker: job queue closed")

type node struct {
	job  Job
	next *node
}

// Queue is an unbounded FIFO of jobs. Producers call Send; consumers share a
// single Receiver. Closing the queue lets receivers drain what is left and
// then report disconnection.
type Queue struct {
	mu   syncutil.InvariantMutex
	cond *sync.Cond

	// GUARDED_BY(mu)
	head, tail *node
	size       int
	sent       uint64
	closed     bool
}

func NewQueue() *Queue {
	q := &Queue{}
	q.mu = syncutil.NewInvariantMutex(q.checkInvariants)
	q.cond = sync.NewCond(&q.mu)
	return q
}

// LOCKS_REQUIRED(q.mu)
func (q *Queue) checkInvariants() {
	if q.size < 0 {
		panic("worker: negative queue size")
	}
	if (q.size == 0) != (q.head == nil) {
		panic("worker: queue head does not match size")
	}
	if (q.head == nil) != (q.tail == nil) {
		panic("worker: queue head and tail disagree")
	}
	if q.tail != nil && q.tail.next != nil {
		panic("worker: queue tail has a successor")
	}
}

// Send appends job to the tail and wakes one waiting receiver.
func (q *Queue) Send(job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	n := &node{job: job}
	if q.tail == nil {
		q.head = n
	} else {
		q.tail.next = n
	}
	q.tail = n
	q.size++
	q.sent++

	q.cond.Signal()
	return nil
}

// Close marks the queue closed and wakes every blocked receiver. Jobs that
// are already queued are still delivered.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.cond.Broadcast()
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Sent is the number of jobs ever accepted by Send.
func (q *Queue) Sent() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.sent
}

// receive blocks until a job is available. It returns false once the queue
// is closed and empty.
func (q *Queue) receive() (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.size == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.size == 0 {
		return nil, false
	}

	n := q.head
	q.head = n.next
	if q.head == nil {
		q.tail = nil
	}
	q.size--
	return n.job, true
}

// Receiver is the consuming end of a Queue, shared by every worker of a pool.
// Only one caller at a time may wait in Receive.
type Receiver struct {
	mu sync.Mutex
	q  *Queue
}

func (q *Queue) Receiver() *Receiver {
	return &Receiver{q: q}
}

// Receive holds the receiver lock only until a job is dequeued. The caller
// runs the job after the lock is released.
func (r *Receiver) Receive() (Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.q.receive()
}
