package repository

import (
	"context"

	"github.com/baharkarakas/webpool/internal/models"
)

type AccessLogs interface {
	Create(ctx context.Context, l models.AccessLog) error
	// ListRecent returns at most limit entries, newest first.
	ListRecent(ctx context.Context, limit int) ([]models.AccessLog, error)
}
