package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type RateLimitMiddlewareConfig struct {
	// Requests per second per client IP. Zero disables limiting.
	Limit int
	Burst int
}

// RateLimitMiddleware applies a per-IP token bucket, meant for the token
// endpoint where clients may retry aggressively.
type RateLimitMiddleware struct {
	config   RateLimitMiddlewareConfig
	limiters map[string]*clientLimiter
	mutex    sync.Mutex
}

func NewRateLimitMiddleware(config RateLimitMiddlewareConfig) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		config:   config,
		limiters: make(map[string]*clientLimiter),
	}
}

func (m *RateLimitMiddleware) Init() error {
	if m.config.Limit <= 0 {
		return nil
	}

	go func() {
		for range time.Tick(time.Duration(5) * time.Minute) {
			m.cleanup()
		}
	}()

	return nil
}

func (m *RateLimitMiddleware) cleanup() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	cutoff := time.Now().Add(-time.Duration(10) * time.Minute)

	for ip, entry := range m.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(m.limiters, ip)
		}
	}
}

func (m *RateLimitMiddleware) allow(ip string) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	entry, exists := m.limiters[ip]

	if !exists {
		entry = &clientLimiter{
			limiter: rate.NewLimiter(rate.Limit(m.config.Limit), m.config.Burst),
		}
		m.limiters[ip] = entry
	}

	entry.lastSeen = time.Now()
	return entry.limiter.Allow()
}

func (m *RateLimitMiddleware) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.config.Limit <= 0 {
			c.Next()
			return
		}

		if !m.allow(c.ClientIP()) {
			log.Warn().Str("clientIp", c.ClientIP()).Str("path", c.Request.URL.Path).Msg("Rate limit exceeded")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":             "slow_down",
				"error_description": "too many requests, slow down",
			})
			return
		}

		c.Next()
	}
}
