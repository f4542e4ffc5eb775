package middleware

import (
	"log/slog"
	"net/http"
	"net/netip"
	"strings"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// TrustedRealIP applies chi's RealIP only to requests whose peer address falls
// inside one of the trusted proxy ranges. Every other request keeps its socket
// address, so clients cannot pick their own rate-limit bucket. Entries are
// CIDRs or bare addresses; unparsable ones are skipped with a warning.
func TrustedRealIP(proxies []string) func(http.Handler) http.Handler {
	trusted := parsePrefixes(proxies)
	return func(next http.Handler) http.Handler {
		if len(trusted) == 0 {
			return next
		}
		realIP := chimiddleware.RealIP(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if peerTrusted(ClientIP(r), trusted) {
				realIP.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func parsePrefixes(entries []string) []netip.Prefix {
	var out []netip.Prefix
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if p, err := netip.ParsePrefix(e); err == nil {
			out = append(out, p.Masked())
			continue
		}
		if a, err := netip.ParseAddr(e); err == nil {
			out = append(out, netip.PrefixFrom(a, a.BitLen()))
			continue
		}
		slog.Warn("ignoring invalid trusted proxy", "entry", e)
	}
	return out
}

func peerTrusted(host string, trusted []netip.Prefix) bool {
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
