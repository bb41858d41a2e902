package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/baharkarakas/webpool/internal/api/httpx"
	"github.com/baharkarakas/webpool/internal/api/validate"
	"github.com/baharkarakas/webpool/internal/services"
)

type AuthHandler struct {
	Admin *services.AdminService
}

func NewAuthHandler(admin *services.AdminService) *AuthHandler {
	return &AuthHandler{Admin: admin}
}

type loginReq struct {
	Password string `json:"password"`
}

type tokenResp struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid request body", nil)
		return
	}
	var errs validate.Errs
	errs.Add(validate.Required("password", req.Password))
	if err := errs.Err(); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "validation_failed", "invalid request", errs)
		return
	}

	token, exp, err := h.Admin.Login(req.Password)
	switch {
	case errors.Is(err, services.ErrLoginDisabled):
		httpx.WriteError(w, http.StatusNotImplemented, "login_disabled", err.Error(), nil)
		return
	case err != nil:
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid credentials", nil)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, tokenResp{
		AccessToken: token,
		ExpiresIn:   int64(time.Until(exp).Truncate(time.Second).Seconds()),
	})
}
