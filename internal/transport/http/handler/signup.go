package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/leafbook/internal/application/session"
	"github.com/leafbook/internal/application/signup"
	"github.com/leafbook/internal/domain"
	"github.com/leafbook/internal/transport/http/middleware"
)

// SignupConfig carries what the signup endpoints hand to clients.
type SignupConfig struct {
	RecaptchaSiteKey string
	RecaptchaAction  string
	AppRootURL       string
	Cookies          CookieConfig
}

// SignupHandler handles account signup and email verification.
type SignupHandler struct {
	svc signup.Service
	cfg SignupConfig
}

func NewSignupHandler(svc signup.Service, cfg SignupConfig) *SignupHandler {
	if cfg.AppRootURL == "" {
		cfg.AppRootURL = "/"
	}
	return &SignupHandler{svc: svc, cfg: cfg}
}

// PendingEnvelope answers signup and resend. On a dispatch failure it carries
// the error next to the pending reference.
type PendingEnvelope struct {
	*signup.Pending
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
}

type signupForm struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Username       string `json:"username"`
	Password       string `json:"password"`
	RecaptchaToken string `json:"recaptcha_token"`
}

type verifyForm struct {
	OTP          string `json:"otp"`
	PendingToken string `json:"pending_token"`
}

// Form returns what a client needs to render the signup form.
func (h *SignupHandler) Form(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"recaptcha_site_key": h.cfg.RecaptchaSiteKey,
		"recaptcha_action":   h.cfg.RecaptchaAction,
	})
}

func (h *SignupHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var form signupForm
	if isJSON(r) {
		if !decodeJSON(w, r, &form) {
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "invalid form body")
			return
		}
		form = signupForm{
			Name:           r.PostForm.Get("name"),
			Email:          r.PostForm.Get("email"),
			Username:       r.PostForm.Get("username"),
			Password:       r.PostForm.Get("password"),
			RecaptchaToken: r.PostForm.Get("recaptcha_token"),
		}
	}
	pending, err := h.svc.Signup(r.Context(), signup.Request{
		Name:     form.Name,
		Email:    form.Email,
		Username: form.Username,
		Password: form.Password,
		BotToken: form.RecaptchaToken,
		ClientIP: middleware.ClientIP(r),
	})
	h.writePending(w, pending, err)
}

func (h *SignupHandler) Resend(w http.ResponseWriter, r *http.Request) {
	form, ok := h.readVerifyForm(w, r)
	if !ok {
		return
	}
	pending, err := h.svc.Resend(r.Context(), h.pendingToken(r, form))
	h.writePending(w, pending, err)
}

// VerifyPage serves GET /signup/verify. With uid and code it verifies the link
// and redirects into the app; without them it describes the pending signup.
func (h *SignupHandler) VerifyPage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	uid, code := q.Get("uid"), q.Get("code")
	if uid != "" && code != "" {
		res, err := h.svc.VerifyLink(r.Context(), uid, code)
		if err != nil {
			httpError(w, err)
			return
		}
		h.cfg.Cookies.setAccess(w, res.Bearer)
		h.cfg.Cookies.clear(w, PendingSignupCookie)
		http.Redirect(w, r, h.cfg.AppRootURL, http.StatusSeeOther)
		return
	}
	acct, err := h.svc.Pending(r.Context(), cookieValue(r, PendingSignupCookie))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"email": acct.Email})
}

// Verify serves POST /signup/verify. Link parameters in the query take
// precedence over a typed code.
func (h *SignupHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var (
		res *session.Result
		err error
	)
	q := r.URL.Query()
	if uid, code := q.Get("uid"), q.Get("code"); uid != "" && code != "" {
		res, err = h.svc.VerifyLink(r.Context(), uid, code)
	} else {
		form, ok := h.readVerifyForm(w, r)
		if !ok {
			return
		}
		res, err = h.svc.VerifyPending(r.Context(), h.pendingToken(r, form), form.OTP)
	}
	if err != nil {
		httpError(w, err)
		return
	}
	h.cfg.Cookies.setAccess(w, res.Bearer)
	h.cfg.Cookies.clear(w, PendingSignupCookie)
	writeJSON(w, http.StatusOK, authEnvelope(res))
}

func (h *SignupHandler) writePending(w http.ResponseWriter, pending *signup.Pending, err error) {
	if pending != nil {
		h.cfg.Cookies.setPending(w, pending.Token)
	}
	switch {
	case err == nil:
		w.Header().Set("Location", "/v1/signup/verify")
		writeJSON(w, http.StatusAccepted, PendingEnvelope{Pending: pending})
	case pending != nil && errors.Is(err, domain.ErrDispatchFailed):
		writeJSON(w, http.StatusServiceUnavailable, PendingEnvelope{
			Pending: pending,
			Error:   domain.ErrDispatchFailed.Error(),
			Code:    "email_dispatch_failed",
		})
	default:
		httpError(w, err)
	}
}

func (h *SignupHandler) readVerifyForm(w http.ResponseWriter, r *http.Request) (verifyForm, bool) {
	var form verifyForm
	switch {
	case r.ContentLength == 0:
	case isJSON(r):
		if !decodeJSON(w, r, &form) {
			return form, false
		}
	default:
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "invalid form body")
			return form, false
		}
		form.OTP = r.PostForm.Get("otp")
		form.PendingToken = r.PostForm.Get("pending_token")
	}
	return form, true
}

// pendingToken prefers an explicit token over the cookie.
func (h *SignupHandler) pendingToken(r *http.Request, form verifyForm) string {
	if t := strings.TrimSpace(form.PendingToken); t != "" {
		return t
	}
	return cookieValue(r, PendingSignupCookie)
}

func isJSON(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}
