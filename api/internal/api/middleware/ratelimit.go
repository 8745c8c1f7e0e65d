package middleware

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type visitor struct {
	mu       sync.Mutex
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a per-client token bucket keyed on the remote address.
type RateLimiter struct {
	visitors sync.Map // 🛡️ Thread-safe Map for high-concurrency scaling
	rps      rate.Limit
	burst    int
}

// NewRateLimiter starts a cleanup worker that stops with ctx.
func NewRateLimiter(ctx context.Context, rps float64, burst int) *RateLimiter {
	l := &RateLimiter{rps: rate.Limit(rps), burst: burst}
	go l.cleanupVisitors(ctx)
	return l
}

func (l *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v, _ := l.visitors.LoadOrStore(clientIP(r), &visitor{
			limiter:  rate.NewLimiter(l.rps, l.burst),
			lastSeen: time.Now(),
		})

		vis := v.(*visitor)
		vis.mu.Lock()
		vis.lastSeen = time.Now()
		vis.mu.Unlock()

		if !vis.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (l *RateLimiter) cleanupVisitors(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.visitors.Range(func(key, value any) bool {
				vis := value.(*visitor)
				vis.mu.Lock()
				stale := time.Since(vis.lastSeen) > 3*time.Minute
				vis.mu.Unlock()
				if stale {
					l.visitors.Delete(key)
				}
				return true
			})
		}
	}
}

// clientIP relies on chi's RealIP having already rewritten RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
