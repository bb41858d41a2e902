// Package memory keeps access logs in process when no database is configured.
package memory

import (
	"context"
	"sync"

	"github.com/baharkarakas/webpool/internal/models"
	repo "github.com/baharkarakas/webpool/internal/repository"
)

const DefaultCapacity = 1000

// AccessLogs is a fixed-capacity ring; the oldest entry is overwritten once
// it is full.
type AccessLogs struct {
	mu    sync.Mutex
	buf   []models.AccessLog
	next  int
	count int
}

var _ repo.AccessLogs = (*AccessLogs)(nil)

func NewAccessLogs(capacity int) *AccessLogs {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &AccessLogs{buf: make([]models.AccessLog, capacity)}
}

func (r *AccessLogs) Create(_ context.Context, l models.AccessLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buf[r.next] = l
	r.next = (r.next + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
	return nil
}

func (r *AccessLogs) ListRecent(_ context.Context, limit int) ([]models.AccessLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limit <= 0 || limit > r.count {
		limit = r.count
	}
	out := make([]models.AccessLog, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (r.next - i + len(r.buf)) % len(r.buf)
		out = append(out, r.buf[idx])
	}
	return out, nil
}
