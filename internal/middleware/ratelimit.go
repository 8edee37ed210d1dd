package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Msr7799/veo-backend/internal/http/respond"
	"github.com/Msr7799/veo-backend/internal/infra"
)

type bucket struct {
	count int
	until time.Time
}

// Limiter counts requests per key inside a fixed window. A bucket resets
// lazily on the first request after its window closed.
type Limiter struct {
	name    string
	limit   int
	per     time.Duration
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

// NewLimiter allows limit requests per key every per.
func NewLimiter(name string, limit int, per time.Duration) *Limiter {
	return &Limiter{
		name:    name,
		limit:   limit,
		per:     per,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// WithClock overrides the clock used for window accounting.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// Name identifies the limiter in logs and metrics.
func (l *Limiter) Name() string { return l.name }

// Admit reports whether key may proceed, counting the attempt if so.
func (l *Limiter) Admit(key string) bool {
	ok, _ := l.Allow(key)
	return ok
}

// Allow is Admit plus the time until the key's window reopens.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[key]
	if !ok || !now.Before(b.until) {
		b = &bucket{count: 0, until: now.Add(l.per)}
		l.buckets[key] = b
	}
	if b.count >= l.limit {
		return false, b.until.Sub(now)
	}
	b.count++
	return true, 0
}

// Prune forgets buckets whose window has closed.
func (l *Limiter) Prune() int {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for key, b := range l.buckets {
		if !now.Before(b.until) {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

// RateLimit rejects requests once the caller's window is exhausted. The key
// is the verified identity when AuthJWT ran first, else the client address.
func RateLimit(l *Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := UserIDFromContext(r.Context())
			if key == "" {
				key = "ip:" + clientIPForRateLimit(r)
			}
			if ok, retryAfter := l.Allow(key); !ok {
				infra.AdmissionRejections.WithLabelValues("rate_limit_" + l.name).Inc()
				respond.RateLimited(w, retryAfter)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIPForRateLimit(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		for _, part := range strings.Split(xf, ",") {
			ip := strings.TrimSpace(part)
			if ip == "" {
				continue
			}
			if net.ParseIP(ip) != nil {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		if net.ParseIP(host) != nil {
			return host
		}
	} else if net.ParseIP(r.RemoteAddr) != nil {
		return r.RemoteAddr
	}

	return r.RemoteAddr
}
