package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func seenIP(mw func(http.Handler) http.Handler, remote, xff string) string {
	var got string
	h := mw(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) { got = ClientIP(r) }))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remote
	if xff != "" {
		req.Header.Set("X-Forwarded-For", xff)
	}
	h.ServeHTTP(httptest.NewRecorder(), req)
	return got
}

func TestTrustedRealIP_NoProxiesKeepsPeer(t *testing.T) {
	assert.Equal(t, "203.0.113.5", seenIP(TrustedRealIP(nil), "203.0.113.5:4000", "198.51.100.1"))
}

func TestTrustedRealIP_TrustedPeerForwards(t *testing.T) {
	mw := TrustedRealIP([]string{"10.0.0.0/8"})
	assert.Equal(t, "198.51.100.1", seenIP(mw, "10.1.2.3:4000", "198.51.100.1"))
}

func TestTrustedRealIP_UntrustedPeerIgnoresHeader(t *testing.T) {
	mw := TrustedRealIP([]string{"10.0.0.0/8", "192.0.2.7"})
	assert.Equal(t, "203.0.113.5", seenIP(mw, "203.0.113.5:4000", "198.51.100.1"))
	assert.Equal(t, "198.51.100.9", seenIP(mw, "192.0.2.7:80", "198.51.100.9"))
}

func TestParsePrefixes_SkipsInvalid(t *testing.T) {
	got := parsePrefixes([]string{"10.0.0.0/8", "not-an-ip", " ", "::1"})
	assert.Len(t, got, 2)
}
