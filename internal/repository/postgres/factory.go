package postgres

import (
	repo "github.com/baharkarakas/webpool/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repositories struct {
	AccessLogs repo.AccessLogs
}

func NewRepositories(pool *pgxpool.Pool) Repositories {
	return Repositories{
		AccessLogs: &accessLogsRepo{pool},
	}
}
