package middleware

import (
	"net"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"sfucore/internal/platform/config"
)

// limiterStore holds one token bucket per client IP, created lazily.
type limiterStore struct {
	mu        sync.Mutex
	limiters  map[string]*rate.Limiter
	rate      rate.Limit
	burstSize int
}

func newLimiterStore(r rate.Limit, burst int) *limiterStore {
	return &limiterStore{limiters: make(map[string]*rate.Limiter), rate: r, burstSize: burst}
}

func (s *limiterStore) get(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[key]
	if !ok {
		l = rate.NewLimiter(s.rate, s.burstSize)
		s.limiters[key] = l
	}
	return l
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := net.ParseIP(xff); ip != nil {
			return ip.String()
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimit applies per-IP token-bucket throttling to the admin API,
// plus an optional global concurrency cap. A disabled config returns a
// pass-through handler.
func RateLimit(cfg config.HTTPRateLimit, enabled bool) gin.HandlerFunc {
	if !enabled {
		return func(c *gin.Context) { c.Next() }
	}

	store := newLimiterStore(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)

	var globalSem chan struct{}
	if cfg.MaxConcurrent > 0 {
		globalSem = make(chan struct{}, cfg.MaxConcurrent)
	}

	return func(c *gin.Context) {
		if globalSem != nil {
			select {
			case globalSem <- struct{}{}:
				defer func() { <-globalSem }()
			default:
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "too many concurrent requests"})
				return
			}
		}

		if !store.get(clientIP(c.Request)).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
