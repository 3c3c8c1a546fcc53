package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"vidtube-server/internal/logging"
	"vidtube-server/pkg/response"

	"golang.org/x/time/rate"
)

type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
	// TrustProxy keys clients by X-Forwarded-For / X-Real-IP. Enable it only behind a proxy
	// that overwrites those headers.
	TrustProxy bool
}

type rateLimiter struct {
	mu          sync.Mutex
	limiters    map[string]*rate.Limiter
	rate        rate.Limit
	burst       int
	lastCleanup time.Time
}

func (rl *rateLimiter) get(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if time.Since(rl.lastCleanup) > 5*time.Minute {
		rl.lastCleanup = time.Now()
		// A full bucket means the key has been idle.
		for k, l := range rl.limiters {
			if l.Tokens() >= float64(rl.burst) {
				delete(rl.limiters, k)
			}
		}
	}

	limiter, ok := rl.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[key] = limiter
	}
	return limiter
}

// RateLimitMiddleware throttles requests per client IP with a token bucket.
func RateLimitMiddleware(cfg RateLimitConfig) func(http.Handler) http.Handler {
	rl := &rateLimiter{
		limiters:    make(map[string]*rate.Limiter),
		rate:        rate.Limit(float64(cfg.RequestsPerMinute) / 60),
		burst:       cfg.Burst,
		lastCleanup: time.Now(),
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ClientIP(r, cfg.TrustProxy)
			limiter := rl.get(key)

			if !limiter.Allow() {
				reservation := limiter.Reserve()
				delay := reservation.Delay()
				reservation.Cancel()

				retryAfter := max(int(delay.Seconds()), 1)
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

				logging.FromContext(r.Context()).Warn("rate limit exceeded", "client_ip", key)
				response.TooManyRequests(w, "too many requests, try again later")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the connection address, or the proxy-reported client when trustProxy is set.
func ClientIP(r *http.Request, trustProxy bool) string {
	if !trustProxy {
		return remoteIP(r)
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	return remoteIP(r)
}

func remoteIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
