package server

import (
	"bytes"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/baharkarakas/webpool/internal/models"
)

const (
	readBufferSize = 1024
	readTimeout    = 10 * time.Second

	statusOK          = "HTTP/1.1 200 OK"
	statusNotFound    = "HTTP/1.1 404 NOT FOUND"
	statusServerError = "HTTP/1.1 500 INTERNAL SERVER ERROR"
)

var (
	requestRoot  = []byte("GET / HTTP/1.1\r\n")
	requestSleep = []byte("GET /sleep HTTP/1.1\r\n")
)

type route struct {
	status     int
	statusLine string
	page       string
	sleep      bool
}

func matchRequest(buf []byte) route {
	switch {
	case bytes.HasPrefix(buf, requestRoot):
		return route{status: 200, statusLine: statusOK, page: pageHello}
	case bytes.HasPrefix(buf, requestSleep):
		return route{status: 200, statusLine: statusOK, page: pageHello, sleep: true}
	default:
		return route{status: 404, statusLine: statusNotFound, page: pageNotFound}
	}
}

func frameResponse(statusLine string, body []byte) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s\r\nContent-Length: %d\r\n\r\n", statusLine, len(body))
	b.Write(body)
	return b.Bytes()
}

// requestLine returns the first line of buf without its terminator.
func requestLine(buf []byte) string {
	if i := bytes.IndexByte(buf, '\n'); i >= 0 {
		buf = buf[:i]
	}
	return string(bytes.TrimRight(buf, "\r"))
}

// handleConnection runs on a pool worker. It reads one request, writes one
// response and closes the connection.
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()
	start := time.Now()
	log := s.log.With("remote_addr", conn.RemoteAddr().String())

	_ = conn.SetReadDeadline(start.Add(readTimeout))
	buf := make([]byte, readBufferSize)
	n, err := conn.Read(buf)
	if err != nil && n == 0 {
		// Nothing arrived. An empty request matches no route and gets a 404.
		log.Debug("connection read failed", "err", err)
	}
	buf = buf[:n]

	rt := matchRequest(buf)
	if rt.sleep {
		time.Sleep(s.opts.SleepDelay)
	}

	body, err := s.pages.Read(rt.page)
	if err != nil {
		log.Error("page read failed", "page", rt.page, "err", err)
		rt.status, rt.statusLine, body = 500, statusServerError, nil
	}

	written, err := conn.Write(frameResponse(rt.statusLine, body))
	if err != nil {
		log.Warn("response write failed", "err", err)
	}

	s.metrics.Connections.WithLabelValues(strconv.Itoa(rt.status)).Inc()
	entry := models.AccessLog{
		RemoteAddr:  conn.RemoteAddr().String(),
		RequestLine: requestLine(buf),
		Status:      rt.status,
		Page:        rt.page,
		Bytes:       written,
		Duration:    time.Since(start),
	}
	log.Debug("connection served", "request_line", entry.RequestLine, "status", entry.Status, "duration", entry.Duration)
	if s.recorder != nil {
		s.recorder.Record(entry)
	}
}
