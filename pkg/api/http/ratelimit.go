package http

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// limiterTTL is how long an idle client keeps its bucket
const limiterTTL = 5 * time.Minute

// RunLimit throttles run requests per client. A zero Rate disables it.
type RunLimit struct {
	Rate  float64
	Burst int
}

type cachedLimiter struct {
	limiter   *rate.Limiter
	expiresAt time.Time
}

// runLimiter hands out one token bucket per client IP
type runLimiter struct {
	limit RunLimit
	mu    sync.Mutex
	byIP  map[string]*cachedLimiter
	now   func() time.Time
}

func newRunLimiter(limit RunLimit) *runLimiter {
	if limit.Burst < 1 {
		limit.Burst = 1
	}
	return &runLimiter{
		limit: limit,
		byIP:  make(map[string]*cachedLimiter),
		now:   time.Now,
	}
}

func (l *runLimiter) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if cached, ok := l.byIP[ip]; ok && now.Before(cached.expiresAt) {
		cached.expiresAt = now.Add(limiterTTL)
		return cached.limiter
	}

	for key, cached := range l.byIP {
		if !now.Before(cached.expiresAt) {
			delete(l.byIP, key)
		}
	}

	limiter := rate.NewLimiter(rate.Limit(l.limit.Rate), l.limit.Burst)
	l.byIP[ip] = &cachedLimiter{limiter: limiter, expiresAt: now.Add(limiterTTL)}
	return limiter
}

// rateLimit rejects run requests beyond the configured rate with 429
func rateLimit(l *runLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.get(c.ClientIP()).Allow() {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
				Error: ErrorDetail{
					Code:    "RATE_LIMITED",
					Message: "Too many run requests",
				},
			})
			return
		}
		c.Next()
	}
}
