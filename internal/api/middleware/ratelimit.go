package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/phrazzld/docstream/internal/api/shared"
)

// RateLimitConfig configures per-client request limiting.
type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
	// MaxClients bounds the number of tracked clients; the least recently
	// seen client's limiter is dropped first.
	MaxClients int
}

type rateLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters *lru.Cache[string, *rate.Limiter]
}

func newRateLimiter(cfg RateLimitConfig) *rateLimiter {
	size := cfg.MaxClients
	if size <= 0 {
		size = 4096
	}
	cache, _ := lru.New[string, *rate.Limiter](size)
	return &rateLimiter{
		limit:    rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute)),
		burst:    cfg.Burst,
		limiters: cache,
	}
}

func (l *rateLimiter) allow(key string) bool {
	if l == nil || key == "" {
		return true
	}

	l.mu.Lock()
	limiter, ok := l.limiters.Get(key)
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters.Add(key, limiter)
	}
	l.mu.Unlock()

	return limiter.Allow()
}

// RateLimitMiddleware limits requests per authenticated subject, or per
// client IP for anonymous requests. A zero rate or burst disables it.
func RateLimitMiddleware(cfg RateLimitConfig) func(http.Handler) http.Handler {
	if cfg.RequestsPerMinute <= 0 || cfg.Burst <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	limiter := newRateLimiter(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.allow(rateLimitKey(r)) {
				w.Header().Set("Retry-After", "60")
				shared.RespondWithError(w, r, http.StatusTooManyRequests, "Rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func rateLimitKey(r *http.Request) string {
	if subject, ok := shared.GetSubject(r.Context()); ok {
		return "subject:" + subject
	}
	if ip := clientIP(r); ip != "" {
		return "ip:" + ip
	}
	return "anonymous"
}

// clientIP reads RemoteAddr, which chi's RealIP middleware has already
// replaced with the forwarded address when present.
func clientIP(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
