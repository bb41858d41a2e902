package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/baharkarakas/webpool/internal/metrics"
	"github.com/baharkarakas/webpool/internal/models"
	"github.com/baharkarakas/webpool/internal/worker"
)

// Executor runs jobs asynchronously. *worker.Pool satisfies it.
type Executor interface {
	Execute(job worker.Job)
}

type Recorder interface {
	Record(l models.AccessLog)
}

type Options struct {
	Addr string
	// MaxConnections stops the accept loop after that many connections.
	// Zero means no limit.
	MaxConnections int
	SleepDelay     time.Duration
}

// Server accepts TCP connections and hands each one to the pool as a job.
type Server struct {
	opts     Options
	pool     Executor
	pages    *Pages
	recorder Recorder
	metrics  *metrics.Metrics
	log      *slog.Logger

	mu sync.Mutex
	ln net.Listener
}

func New(opts Options, pool Executor, pages *Pages, rec Recorder, m *metrics.Metrics, log *slog.Logger) *Server {
	return &Server{
		opts:     opts,
		pool:     pool,
		pages:    pages,
		recorder: rec,
		metrics:  m,
		log:      log,
	}
}

func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ln != nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.opts.Addr, err)
	}
	s.ln = ln
	return nil
}

// Addr is the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Serve accepts until ctx is done or the connection limit is reached. It
// does not wait for submitted connections to finish; closing the pool does.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = ln.Close()
		case <-stop:
		}
	}()

	s.log.Info("page server listening", "addr", ln.Addr().String(), "max_connections", s.opts.MaxConnections)

	accepted := 0
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		s.pool.Execute(func() { s.handleConnection(conn) })

		accepted++
		if s.opts.MaxConnections > 0 && accepted >= s.opts.MaxConnections {
			s.log.Info("connection limit reached; shutting down", "accepted", accepted)
			return ln.Close()
		}
	}
}
