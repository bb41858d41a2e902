package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/baharkarakas/webpool/internal/api"
	"github.com/baharkarakas/webpool/internal/auth"
	"github.com/baharkarakas/webpool/internal/config"
	"github.com/baharkarakas/webpool/internal/db"
	"github.com/baharkarakas/webpool/internal/logger"
	"github.com/baharkarakas/webpool/internal/metrics"
	"github.com/baharkarakas/webpool/internal/repository"
	"github.com/baharkarakas/webpool/internal/repository/memory"
	"github.com/baharkarakas/webpool/internal/repository/postgres"
	"github.com/baharkarakas/webpool/internal/server"
	"github.com/baharkarakas/webpool/internal/services"
	"github.com/baharkarakas/webpool/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func run(ctx context.Context, cfg config.Config) (err error) {
	log, closer := logger.FromConfig(cfg)
	defer closer.Close()
	slog.SetDefault(log)

	accessLogs, cleanup, err := openAccessLogs(ctx, cfg, log)
	if err != nil {
		log.Error("access log storage", "err", err)
		return err
	}
	defer cleanup()

	m := metrics.New()
	pool, err := worker.New(cfg.PoolSize,
		worker.WithLogger(log),
		worker.WithObserver(m.PoolObserver()),
	)
	if err != nil {
		log.Error("worker pool", "err", err)
		return err
	}
	// Closing the pool joins every outstanding connection, so it runs only
	// after the accept loop has stopped submitting.
	defer func() {
		if cerr := pool.Close(); cerr != nil {
			log.Error("worker failed during shutdown", "err", cerr)
			err = errors.Join(err, cerr)
		}
	}()
	m.WatchPool(pool.Stats)

	pages, err := server.NewPages(cfg.StaticDir)
	if err != nil {
		log.Error("static pages", "err", err)
		return err
	}
	logSvc := services.NewAccessLogService(accessLogs, log)
	srv := server.New(server.Options{
		Addr:           cfg.ListenAddr,
		MaxConnections: cfg.MaxConnections,
		SleepDelay:     cfg.SleepDelay,
	}, pool, pages, logSvc, m, log)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		return srv.Serve(gctx)
	})

	if cfg.AdminAddr != "" {
		tm := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL)
		admin := &http.Server{
			Addr: cfg.AdminAddr,
			Handler: api.NewRouter(api.RouterDeps{
				Pool:       pool,
				AccessLogs: logSvc,
				Admin:      services.NewAdminService(tm, cfg.AdminPasswordHash),
				Tokens:     tm,
				Metrics:    m,
				RateRPS:    cfg.RateRPS,
				Log:        log,
			}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			log.Info("admin server starting", "addr", cfg.AdminAddr)
			if err := admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("admin server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return admin.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		log.Error("server", "err", err)
		return err
	}
	log.Info("shutting down")
	return nil
}

func openAccessLogs(ctx context.Context, cfg config.Config, log *slog.Logger) (repository.AccessLogs, func(), error) {
	if cfg.DatabaseURL == "" {
		log.Info("access logs kept in memory", "capacity", memory.DefaultCapacity)
		return memory.NewAccessLogs(memory.DefaultCapacity), func() {}, nil
	}

	pgPool, err := db.NewPool(ctx, cfg.DatabaseURL, int32(cfg.PoolSize)+2)
	if err != nil {
		return nil, nil, fmt.Errorf("db connect: %w", err)
	}
	if cfg.Migrate {
		if err := db.RunMigrations(ctx, pgPool); err != nil {
			pgPool.Close()
			return nil, nil, fmt.Errorf("migrations: %w", err)
		}
	}
	return postgres.NewRepositories(pgPool).AccessLogs, pgPool.Close, nil
}
