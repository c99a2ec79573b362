package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/Kaung2240/VoteX/metrics"
)

const (
	limiterIdleTTL   = 10 * time.Minute
	limiterSweepSize = 10000
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Throttle applies per-minute token buckets: one per authenticated user and
// one per client IP for anonymous callers.
type Throttle struct {
	userRate int
	anonRate int

	mu       sync.Mutex
	limiters map[string]*limiterEntry
	now      func() time.Time
}

func NewThrottle(userPerMinute, anonPerMinute int) *Throttle {
	return &Throttle{
		userRate: userPerMinute,
		anonRate: anonPerMinute,
		limiters: make(map[string]*limiterEntry),
		now:      time.Now,
	}
}

// Middleware must run after the auth middleware so the user ID is known.
func (t *Throttle) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key, perMinute, scope := "ip:"+c.ClientIP(), t.anonRate, "anon"
		if id, ok := UserID(c); ok {
			key, perMinute, scope = fmt.Sprintf("user:%d", id), t.userRate, "user"
		}
		if perMinute <= 0 {
			c.Next()
			return
		}

		wait := t.reserve(key, perMinute)
		if wait > 0 {
			seconds := int(math.Ceil(wait.Seconds()))
			metrics.ThrottledRequests.WithLabelValues(scope).Inc()
			c.Header("Retry-After", strconv.Itoa(seconds))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "Too many action.",
				"message": fmt.Sprintf("Please wait %d seconds before to try again.", seconds),
			})
			return
		}
		c.Next()
	}
}

// reserve takes a token for key and returns how long the caller must wait
// when none is available.
func (t *Throttle) reserve(key string, perMinute int) time.Duration {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.limiters) >= limiterSweepSize {
		for k, e := range t.limiters {
			if now.Sub(e.lastSeen) > limiterIdleTTL {
				delete(t.limiters, k)
			}
		}
	}

	e, ok := t.limiters[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)}
		t.limiters[key] = e
	}
	e.lastSeen = now

	r := e.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return delay
	}
	return 0
}
