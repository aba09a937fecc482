/*
Package limiter throttles requests per client IP with token buckets from golang.org/x/time/rate.

Idle buckets are swept periodically so the map does not grow without bound.
*/
package limiter

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"sockchat/internal/pkg/errs"
	"sockchat/internal/pkg/logx"
	"sockchat/internal/pkg/resp"
)

const sweepInterval = 3 * time.Minute

// IPRateLimiter keeps one token bucket per client IP.
type IPRateLimiter struct {
	mu     sync.Mutex
	limits map[string]*rate.Limiter

	r rate.Limit
	b int

	stop chan struct{}
	once sync.Once
}

// NewIPRateLimiter returns a limiter allowing r events per second with burst b per IP,
// and starts its sweeper goroutine.
func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	l := &IPRateLimiter{
		limits: make(map[string]*rate.Limiter),
		r:      r,
		b:      b,
		stop:   make(chan struct{}),
	}

	go l.sweep()

	return l
}

// GetLimiter returns the bucket for ip, creating it on first use.
func (l *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.limits[ip]
	if !ok {
		limiter = rate.NewLimiter(l.r, l.b)
		l.limits[ip] = limiter
	}

	return limiter
}

// Allow consumes one token for the request's client IP.
func (l *IPRateLimiter) Allow(r *http.Request) bool {
	return l.GetLimiter(ClientIP(r)).Allow()
}

// Stop terminates the sweeper goroutine.
func (l *IPRateLimiter) Stop() {
	l.once.Do(func() { close(l.stop) })
}

// sweep drops buckets that have refilled completely, i.e. IPs that went quiet.
func (l *IPRateLimiter) sweep() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case now := <-ticker.C:
			l.mu.Lock()
			removed := 0
			for ip, limiter := range l.limits {
				if limiter.TokensAt(now) >= float64(limiter.Burst()) {
					delete(l.limits, ip)
					removed++
				}
			}
			remaining := len(l.limits)
			l.mu.Unlock()

			logx.Logger().Debug().
				Int("removed", removed).
				Int("remaining", remaining).
				Msg("rate limiter sweep")
		}
	}
}

// Middleware rejects requests over the limit with 429.
func (l *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(r) {
			logx.Warn("rate limit exceeded", "path", r.URL.Path)
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ClientIP returns the host part of r.RemoteAddr (already rewritten by chi's RealIP middleware).
func ClientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}

	if ip == "" {
		return "unknown_ip"
	}

	return ip
}
