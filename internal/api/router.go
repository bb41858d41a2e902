package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/baharkarakas/webpool/internal/api/handlers"
	"github.com/baharkarakas/webpool/internal/auth"
	"github.com/baharkarakas/webpool/internal/metrics"
	"github.com/baharkarakas/webpool/internal/middleware"
	"github.com/baharkarakas/webpool/internal/services"
)

type RouterDeps struct {
	Pool       handlers.StatsSource
	AccessLogs *services.AccessLogService
	Admin      *services.AdminService
	Tokens     *auth.TokenManager
	Metrics    *metrics.Metrics
	RateRPS    int
	Log        *slog.Logger
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recover(d.Log), middleware.RateLimit(d.RateRPS))
	r.Use(middleware.HTTPMetrics(d.Metrics.HTTPLatency))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Handle("/metrics", d.Metrics.Handler())

	authH := handlers.NewAuthHandler(d.Admin)
	poolH := handlers.NewPoolHandler(d.Pool, d.AccessLogs)
	authMW := middleware.NewAuthMiddleware(d.Tokens)

	r.Route("/admin/v1", func(r chi.Router) {
		r.Post("/auth/login", authH.Login)

		r.Group(func(r chi.Router) {
			r.Use(authMW.Auth, middleware.RequireRole(services.RoleAdmin))
			r.Get("/pool", poolH.Stats)
			r.Get("/requests", poolH.RecentRequests)
		})
	})

	return r
}
