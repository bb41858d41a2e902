package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/baharkarakas/webpool/internal/models"
	repo "github.com/baharkarakas/webpool/internal/repository"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 500

	recordTimeout = 2 * time.Second
)

type AccessLogService struct {
	r   repo.AccessLogs
	log *slog.Logger
}

func NewAccessLogService(r repo.AccessLogs, log *slog.Logger) *AccessLogService {
	return &AccessLogService{r: r, log: log}
}

// Record stores l. It runs on a worker, so a storage failure is logged and
// swallowed rather than failing the connection that produced it.
func (s *AccessLogService) Record(l models.AccessLog) {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}

	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := s.r.Create(ctx, l); err != nil {
		s.log.Error("access log write failed", "err", err, "request_line", l.RequestLine)
	}
}

func (s *AccessLogService) Recent(ctx context.Context, limit int) ([]models.AccessLog, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return s.r.ListRecent(ctx, limit)
}
