package handlers

import (
	"net/http"

	"github.com/baharkarakas/webpool/internal/api/httpx"
	"github.com/baharkarakas/webpool/internal/api/validate"
	"github.com/baharkarakas/webpool/internal/services"
	"github.com/baharkarakas/webpool/internal/worker"
)

type StatsSource interface {
	Stats() worker.Stats
}

type PoolHandler struct {
	Pool       StatsSource
	AccessLogs *services.AccessLogService
}

func NewPoolHandler(pool StatsSource, logs *services.AccessLogService) *PoolHandler {
	return &PoolHandler{Pool: pool, AccessLogs: logs}
}

func (h *PoolHandler) Stats(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, h.Pool.Stats())
}

func (h *PoolHandler) RecentRequests(w http.ResponseWriter, r *http.Request) {
	limit := services.DefaultListLimit
	var errs validate.Errs
	errs.Add(validate.OptionalInt("limit", r.URL.Query().Get("limit"), 1, services.MaxListLimit, &limit))
	if err := errs.Err(); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "validation_failed", "invalid query", errs)
		return
	}

	logs, err := h.AccessLogs.Recent(r.Context(), limit)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "could not load access logs", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, logs)
}
