package http

import (
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/leafbook/internal/config"
	"github.com/leafbook/internal/domain"
	jwtinfra "github.com/leafbook/internal/infrastructure/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (http.Handler, *jwtinfra.Provider) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	p := jwtinfra.NewProviderFromKeys(key, &key.PublicKey, time.Hour, time.Hour)
	cfg := &config.Config{
		AllowedOrigins:   []string{"*"},
		RecaptchaSiteKey: "site-key",
		RecaptchaAction:  "signup",
	}
	return NewRouter(cfg, &Deps{JWTProvider: p}), p
}

func TestRouter_HealthCheck(t *testing.T) {
	router, _ := newTestRouter(t)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/health-check/ping", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message":"pong"}`, rr.Body.String())
}

func TestRouter_SignupFormIsPublic(t *testing.T) {
	router, _ := newTestRouter(t)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/signup", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"recaptcha_site_key":"site-key","recaptcha_action":"signup"}`, rr.Body.String())
}

func TestRouter_AccountRequiresAuth(t *testing.T) {
	router, _ := newTestRouter(t)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/accounts/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRouter_PendingTokenIsNotAccess(t *testing.T) {
	router, p := newTestRouter(t)
	pending, err := p.SignPending("acc1")
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/v1/accounts/me", nil)
	r.Header.Set("Authorization", "Bearer "+pending)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, r)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRouter_CategoryMutationIsAdminOnly(t *testing.T) {
	router, p := newTestRouter(t)
	token, err := p.Sign("u1", domain.RoleUser, "s1")
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodPost, "/v1/categories", strings.NewReader(`{"name":"Travel"}`))
	r.Header.Set("Authorization", "Bearer "+token)
	r.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, r)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestRouter_VerifyLinkIsRateLimited(t *testing.T) {
	router, _ := newTestRouter(t)

	limited := 0
	for i := 0; i < 20; i++ {
		r := httptest.NewRequest(http.MethodGet, "/v1/signup/verify", nil)
		r.RemoteAddr = "203.0.113.5:4000"
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, r)
		if rr.Code == http.StatusTooManyRequests {
			limited++
		}
	}
	assert.Positive(t, limited)
}

func TestRouter_ForwardedForDoesNotEvadeLimit(t *testing.T) {
	router, _ := newTestRouter(t)

	limited := 0
	for i := 0; i < 20; i++ {
		r := httptest.NewRequest(http.MethodGet, "/v1/signup/verify", nil)
		r.RemoteAddr = "203.0.113.9:4000"
		r.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, r)
		if rr.Code == http.StatusTooManyRequests {
			limited++
		}
	}
	assert.Positive(t, limited)
}
