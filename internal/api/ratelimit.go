package api

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/honeynil/mdd-api/internal/handler"
	"github.com/honeynil/mdd-api/internal/infrastructure/observability"
	"golang.org/x/time/rate"
)

type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// IPRateLimiter throttles requests per client IP. Idle entries are swept
// lazily on access. perMinute must be positive.
type IPRateLimiter struct {
	rate       rate.Limit
	burst      int
	retryAfter int
	idle       time.Duration
	now        func() time.Time

	mu        sync.Mutex
	clients   map[string]*clientLimiter
	lastSweep time.Time
}

func NewIPRateLimiter(perMinute int) *IPRateLimiter {
	return &IPRateLimiter{
		rate:       rate.Limit(float64(perMinute) / 60.0),
		burst:      perMinute,
		retryAfter: (60 + perMinute - 1) / perMinute,
		idle:       10 * time.Minute,
		now:        time.Now,
		clients:    make(map[string]*clientLimiter),
	}
}

func (l *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !l.allow(ip) {
			observability.WithContext(r.Context()).Warn("rate limit exceeded", "client_ip", ip, "path", r.URL.Path)
			w.Header().Set("Retry-After", strconv.Itoa(l.retryAfter))
			handler.WriteError(w, http.StatusTooManyRequests, "Too many requests, please retry later", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *IPRateLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > l.idle {
		for key, c := range l.clients {
			if now.Sub(c.lastAccess) > l.idle {
				delete(l.clients, key)
			}
		}
		l.lastSweep = now
	}

	c, ok := l.clients[ip]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.clients[ip] = c
	}
	c.lastAccess = now
	return c.limiter.AllowN(now, 1)
}

func (l *IPRateLimiter) clientCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
