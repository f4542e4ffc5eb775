package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/leafbook/internal/application/session"
	"github.com/leafbook/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

// AuthEnvelope wraps login, refresh and verification responses.
type AuthEnvelope struct {
	AccessToken  string          `json:"access_token,omitempty"`
	RefreshToken string          `json:"refresh_token,omitempty"`
	Session      *domain.Session `json:"session,omitempty"`
	Account      *domain.Account `json:"account,omitempty"`
}

// SessionEnvelope wraps current-session responses.
type SessionEnvelope struct {
	Session *domain.Session `json:"session"`
	Account *domain.Account `json:"account,omitempty"`
}

func authEnvelope(res *session.Result) AuthEnvelope {
	env := AuthEnvelope{AccessToken: res.Bearer, RefreshToken: res.RefreshToken, Session: res.Session}
	if res.Session != nil {
		env.Account = res.Session.Account
	}
	return env
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg, Code: code})
}

// httpError maps a service error to its status and code. Signup errors are
// checked before the generic sentinels they wrap.
func httpError(w http.ResponseWriter, err error) {
	var botErr *domain.BotCheckError
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusUnprocessableEntity, "validation_error", domain.ErrValidation.Error())
	case errors.As(err, &botErr):
		writeError(w, http.StatusForbidden, "bot_check_failed", botErr.Error())
	case errors.Is(err, domain.ErrBotCheckFailed):
		writeError(w, http.StatusForbidden, "bot_check_failed", domain.ErrBotCheckFailed.Error())
	case errors.Is(err, domain.ErrAccountExists):
		writeError(w, http.StatusConflict, "account_exists", domain.ErrAccountExists.Error())
	case errors.Is(err, domain.ErrInvalidOrExpiredCode):
		writeError(w, http.StatusUnauthorized, "invalid_or_expired_code", domain.ErrInvalidOrExpiredCode.Error())
	case errors.Is(err, domain.ErrNoPendingSignup):
		writeError(w, http.StatusBadRequest, "no_pending_signup", domain.ErrNoPendingSignup.Error())
	case errors.Is(err, domain.ErrDispatchFailed):
		writeError(w, http.StatusServiceUnavailable, "email_dispatch_failed", domain.ErrDispatchFailed.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, domain.ErrBadRequest):
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, domain.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err.Error())
	default:
		slog.Error("request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

// decodeJSON reads a JSON body into v, answering 400 on malformed input.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return false
	}
	return true
}
