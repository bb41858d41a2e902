// Package worker provides a fixed-size goroutine pool.
//
// A Pool owns N workers and the producer side of an unbounded job queue.
// Every worker shares one Receiver; the receiver lock is held only while a
// job is dequeued, never while it runs, so up to N jobs execute at once.
//
//	pool, err := worker.New(4)
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	pool.Execute(func() {
//	    // do work
//	})
//
// Close closes the queue and joins the workers in id order. Jobs already
// queued still run. A job that panics stops only its own worker; the panic
// is reported by Close as a *PanicError.
package worker
