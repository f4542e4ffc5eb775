package handler

import (
	"net/http"
	"time"

	"github.com/leafbook/internal/transport/http/middleware"
)

// PendingSignupCookie holds the signed reference to an account awaiting verification.
const PendingSignupCookie = "pending_signup"

// CookieConfig controls the cookies set for browser clients.
type CookieConfig struct {
	Secure     bool
	AccessTTL  time.Duration
	PendingTTL time.Duration
}

func (c CookieConfig) set(w http.ResponseWriter, name, value string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c CookieConfig) clear(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c CookieConfig) setAccess(w http.ResponseWriter, token string) {
	c.set(w, middleware.AccessTokenCookie, token, c.AccessTTL)
}

func (c CookieConfig) setPending(w http.ResponseWriter, token string) {
	c.set(w, PendingSignupCookie, token, c.PendingTTL)
}

func cookieValue(r *http.Request, name string) string {
	if c, err := r.Cookie(name); err == nil {
		return c.Value
	}
	return ""
}
