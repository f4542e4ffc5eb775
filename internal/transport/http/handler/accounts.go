package handler

import (
	"net/http"

	"github.com/leafbook/internal/application/account"
	"github.com/leafbook/internal/domain"
	"github.com/leafbook/internal/pkg/validate"
	"github.com/leafbook/internal/transport/http/middleware"
)

// AccountHandler serves the caller's own account.
type AccountHandler struct {
	svc account.Service
}

func NewAccountHandler(svc account.Service) *AccountHandler { return &AccountHandler{svc: svc} }

func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.Get(r.Context(), middleware.AccountID(r.Context()))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *AccountHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateAccountRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validate.Struct(req); err != nil {
		httpError(w, err)
		return
	}
	a, err := h.svc.Update(r.Context(), middleware.AccountID(r.Context()), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *AccountHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req domain.ChangePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validate.Struct(req); err != nil {
		httpError(w, err)
		return
	}
	if err := h.svc.ChangePassword(r.Context(), middleware.AccountID(r.Context()), req); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "password changed"})
}
