package postgres

import (
	"context"
	"time"

	"github.com/baharkarakas/webpool/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type accessLogsRepo struct{ pool *pgxpool.Pool }

func (r *accessLogsRepo) Create(ctx context.Context, l models.AccessLog) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO access_logs(id, remote_addr, request_line, status, page, bytes, duration_ms, created_at)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8)`,
		l.ID, l.RemoteAddr, l.RequestLine, l.Status, l.Page, l.Bytes, l.Duration.Milliseconds(), l.CreatedAt,
	)
	return err
}

func (r *accessLogsRepo) ListRecent(ctx context.Context, limit int) ([]models.AccessLog, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id::text, remote_addr, request_line, status, page, bytes, duration_ms, created_at
		   FROM access_logs
		  ORDER BY created_at DESC
		  LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanAccessLog)
}

func scanAccessLog(row pgx.CollectableRow) (models.AccessLog, error) {
	var (
		l  models.AccessLog
		ms int64
	)
	err := row.Scan(&l.ID, &l.RemoteAddr, &l.RequestLine, &l.Status, &l.Page, &l.Bytes, &ms, &l.CreatedAt)
	l.Duration = time.Duration(ms) * time.Millisecond
	return l, err
}
