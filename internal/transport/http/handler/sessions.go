package handler

import (
	"net/http"
	"strings"

	"github.com/leafbook/internal/application/session"
	"github.com/leafbook/internal/pkg/validate"
	"github.com/leafbook/internal/transport/http/middleware"
)

// SessionHandler handles session endpoints.
type SessionHandler struct {
	svc     session.Service
	cookies CookieConfig
}

func NewSessionHandler(svc session.Service, cookies CookieConfig) *SessionHandler {
	return &SessionHandler{svc: svc, cookies: cookies}
}

func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req session.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validate.Struct(req); err != nil {
		httpError(w, err)
		return
	}
	res, err := h.svc.Login(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	h.cookies.setAccess(w, res.Bearer)
	writeJSON(w, http.StatusOK, authEnvelope(res))
}

func (h *SessionHandler) Google(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDToken string `json:"id_token"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.IDToken) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "id_token required")
		return
	}
	res, err := h.svc.LoginWithGoogle(r.Context(), req.IDToken)
	if err != nil {
		httpError(w, err)
		return
	}
	h.cookies.setAccess(w, res.Bearer)
	writeJSON(w, http.StatusOK, authEnvelope(res))
}

func (h *SessionHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "refresh_token required")
		return
	}
	res, err := h.svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		httpError(w, err)
		return
	}
	h.cookies.setAccess(w, res.Bearer)
	writeJSON(w, http.StatusOK, authEnvelope(res))
}

func (h *SessionHandler) GetCurrent(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return
	}
	sess, err := h.svc.GetCurrent(r.Context(), claims.SessionID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionEnvelope{Session: sess, Account: sess.Account})
}

func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return
	}
	if err := h.svc.Logout(r.Context(), claims.SessionID); err != nil {
		httpError(w, err)
		return
	}
	h.cookies.clear(w, middleware.AccessTokenCookie)
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "logged out"})
}
