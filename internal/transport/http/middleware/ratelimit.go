package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	sweepInterval = 5 * time.Minute
	staleAfter    = 10 * time.Minute
)

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a per-client token bucket. Buckets idle for staleAfter are dropped.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*clientBucket
	r       rate.Limit
	burst   int
}

// NewRateLimiter creates a per-IP limiter: r requests/second, burst up to burst requests.
func NewRateLimiter(r rate.Limit, burst int) *RateLimiter {
	rl := &RateLimiter{
		buckets: make(map[string]*clientBucket),
		r:       r,
		burst:   burst,
	}
	go rl.sweep()
	return rl
}

func (rl *RateLimiter) bucket(client string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	b, ok := rl.buckets[client]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(rl.r, rl.burst)}
		rl.buckets[client] = b
	}
	b.lastSeen = now
	return b.limiter
}

func (rl *RateLimiter) sweep() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for now := range ticker.C {
		rl.mu.Lock()
		for client, b := range rl.buckets {
			if now.Sub(b.lastSeen) > staleAfter {
				delete(rl.buckets, client)
			}
		}
		rl.mu.Unlock()
	}
}

// Limit rejects a client that has spent its burst with 429 and a Retry-After
// hint in whole seconds.
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		now := time.Now()
		res := rl.bucket(ClientIP(r), now).ReserveN(now, 1)
		if delay := res.DelayFrom(now); !res.OK() || delay > 0 {
			res.CancelAt(now)
			w.Header().Set("Retry-After", retryAfter(delay))
			writeJSONError(w, http.StatusTooManyRequests, "too_many_requests", "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func retryAfter(d time.Duration) string {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 || d == rate.InfDuration {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// ClientIP returns the host part of RemoteAddr. Forwarded headers are only
// honoured through TrustedRealIP, which rewrites RemoteAddr for trusted proxies.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
