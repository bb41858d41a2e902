package server

import (
	"context"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baharkarakas/webpool/internal/metrics"
	"github.com/baharkarakas/webpool/internal/models"
	"github.com/baharkarakas/webpool/internal/worker"
)

type memRecorder struct {
	mu      sync.Mutex
	entries []models.AccessLog
}

func (r *memRecorder) Record(l models.AccessLog) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, l)
}

func (r *memRecorder) all() []models.AccessLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.AccessLog(nil), r.entries...)
}

// inline runs jobs on the calling goroutine.
type inline struct{}

func (inline) Execute(job worker.Job) { job() }

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newTestServer(t *testing.T, opts Options, pool Executor) (*Server, *memRecorder, *metrics.Metrics) {
	t.Helper()
	pages, err := NewPages("")
	require.NoError(t, err)
	rec := &memRecorder{}
	m := metrics.New()
	if opts.Addr == "" {
		opts.Addr = "127.0.0.1:0"
	}
	return New(opts, pool, pages, rec, m, quietLogger()), rec, m
}

func roundTrip(t *testing.T, s *Server, request string) string {
	t.Helper()
	client, srv := net.Pipe()
	defer client.Close()

	go s.handleConnection(srv)
	go func() { _, _ = client.Write([]byte(request)) }()

	resp, err := io.ReadAll(client)
	require.NoError(t, err)
	return string(resp)
}

func TestMatchRequest(t *testing.T) {
	tests := []struct {
		req    string
		status int
		page   string
		sleep  bool
	}{
		{"GET / HTTP/1.1\r\nHost: localhost\r\n\r\n", 200, pageHello, false},
		{"GET /sleep HTTP/1.1\r\n\r\n", 200, pageHello, true},
		{"GET /other HTTP/1.1\r\n\r\n", 404, pageNotFound, false},
		{"POST / HTTP/1.1\r\n\r\n", 404, pageNotFound, false},
		{"GET / HTTP/1.0\r\n\r\n", 404, pageNotFound, false},
		{"", 404, pageNotFound, false},
	}
	for _, tc := range tests {
		rt := matchRequest([]byte(tc.req))
		assert.Equal(t, tc.status, rt.status, tc.req)
		assert.Equal(t, tc.page, rt.page, tc.req)
		assert.Equal(t, tc.sleep, rt.sleep, tc.req)
	}
}

func TestFrameResponse(t *testing.T) {
	got := frameResponse(statusOK, []byte("hi"))
	assert.Equal(t, "HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nhi", string(got))

	got = frameResponse(statusServerError, nil)
	assert.Equal(t, "HTTP/1.1 500 INTERNAL SERVER ERROR\r\nContent-Length: 0\r\n\r\n", string(got))
}

func TestRequestLine(t *testing.T) {
	assert.Equal(t, "GET / HTTP/1.1", requestLine([]byte("GET / HTTP/1.1\r\nHost: x\r\n")))
	assert.Equal(t, "partial", requestLine([]byte("partial")))
}

func TestHandleConnection_Root(t *testing.T) {
	s, rec, m := newTestServer(t, Options{}, inline{})
	hello, err := s.pages.Read(pageHello)
	require.NoError(t, err)

	resp := roundTrip(t, s, "GET / HTTP/1.1\r\nHost: localhost\r\n\r\n")

	assert.Equal(t, string(frameResponse(statusOK, hello)), resp)
	require.Len(t, rec.all(), 1)
	entry := rec.all()[0]
	assert.Equal(t, 200, entry.Status)
	assert.Equal(t, "GET / HTTP/1.1", entry.RequestLine)
	assert.Equal(t, len(resp), entry.Bytes)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Connections.WithLabelValues("200")))
}

func TestHandleConnection_NotFound(t *testing.T) {
	s, rec, _ := newTestServer(t, Options{}, inline{})

	resp := roundTrip(t, s, "GET /missing HTTP/1.1\r\n\r\n")

	assert.True(t, strings.HasPrefix(resp, "HTTP/1.1 404 NOT FOUND\r\nContent-Length: "))
	assert.Contains(t, resp, "Oops!")
	assert.Equal(t, pageNotFound, rec.all()[0].Page)
}

func TestHandleConnection_EmptyRequest(t *testing.T) {
	s, rec, m := newTestServer(t, Options{}, inline{})
	notFound, err := s.pages.Read(pageNotFound)
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			s.handleConnection(conn)
		}
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.(*net.TCPConn).CloseWrite())

	resp, err := io.ReadAll(conn)
	require.NoError(t, err)

	assert.Equal(t, string(frameResponse(statusNotFound, notFound)), string(resp))
	require.Len(t, rec.all(), 1)
	assert.Equal(t, 404, rec.all()[0].Status)
	assert.Empty(t, rec.all()[0].RequestLine)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Connections.WithLabelValues("404")))
}

func TestHandleConnection_Sleep(t *testing.T) {
	s, _, _ := newTestServer(t, Options{SleepDelay: 50 * time.Millisecond}, inline{})

	start := time.Now()
	resp := roundTrip(t, s, "GET /sleep HTTP/1.1\r\n\r\n")

	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.True(t, strings.HasPrefix(resp, statusOK))
}

func TestHandleConnection_MissingPage(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, pageHello), []byte("custom"), 0o644))
	pages, err := NewPages(dir)
	require.NoError(t, err)

	s, rec, _ := newTestServer(t, Options{}, inline{})
	s.pages = pages

	assert.Equal(t, "HTTP/1.1 200 OK\r\nContent-Length: 6\r\n\r\ncustom", roundTrip(t, s, "GET / HTTP/1.1\r\n\r\n"))
	assert.Equal(t, string(frameResponse(statusServerError, nil)), roundTrip(t, s, "GET /nope HTTP/1.1\r\n\r\n"))
	assert.Equal(t, 500, rec.all()[1].Status)
}

func TestNewPagesRejectsBadDir(t *testing.T) {
	_, err := NewPages(filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = NewPages(file)
	assert.Error(t, err)
}

func dial(t *testing.T, addr net.Addr, request string) string {
	t.Helper()
	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte(request))
	require.NoError(t, err)
	resp, err := io.ReadAll(conn)
	require.NoError(t, err)
	return string(resp)
}

func TestServe_ConnectionLimit(t *testing.T) {
	pool, err := worker.New(4, worker.WithLogger(quietLogger()))
	require.NoError(t, err)
	s, rec, _ := newTestServer(t, Options{MaxConnections: 2}, pool)
	require.NoError(t, s.Listen())

	served := make(chan error, 1)
	go func() { served <- s.Serve(context.Background()) }()

	assert.True(t, strings.HasPrefix(dial(t, s.Addr(), "GET / HTTP/1.1\r\n\r\n"), statusOK))
	assert.True(t, strings.HasPrefix(dial(t, s.Addr(), "GET /x HTTP/1.1\r\n\r\n"), statusNotFound))

	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not stop at the connection limit")
	}

	require.NoError(t, pool.Close())
	assert.Len(t, rec.all(), 2)
}

func TestServe_ConcurrentSleepers(t *testing.T) {
	pool, err := worker.New(4, worker.WithLogger(quietLogger()))
	require.NoError(t, err)
	s, _, _ := newTestServer(t, Options{SleepDelay: 200 * time.Millisecond}, pool)
	require.NoError(t, s.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- s.Serve(ctx) }()

	start := time.Now()
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.True(t, strings.HasPrefix(dial(t, s.Addr(), "GET /sleep HTTP/1.1\r\n\r\n"), statusOK))
		}()
	}
	wg.Wait()

	// Four sleepers on four workers overlap instead of queueing.
	assert.Less(t, time.Since(start), 700*time.Millisecond)

	cancel()
	assert.NoError(t, <-served)
	require.NoError(t, pool.Close())
}

func TestServe_ListenError(t *testing.T) {
	s, _, _ := newTestServer(t, Options{Addr: "256.0.0.1:bad"}, inline{})

	assert.Error(t, s.Serve(context.Background()))
	assert.Nil(t, s.Addr())
}
