package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/mediaresolve/config"
	"github.com/use-agent/mediaresolve/models"
	"golang.org/x/time/rate"
)

const (
	limiterIdleTTL    = time.Hour
	limiterSweepEvery = 5 * time.Minute
)

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterStore hands out one token bucket per caller. Buckets idle for
// limiterIdleTTL are dropped during lookups, at most once per sweep interval.
type limiterStore struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	limit     rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

func newLimiterStore(cfg config.RateLimitConfig) *limiterStore {
	return &limiterStore{
		buckets: make(map[string]*bucket),
		limit:   rate.Limit(cfg.RequestsPerSecond),
		burst:   cfg.Burst,
		now:     time.Now,
	}
}

func (s *limiterStore) allow(identity string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) >= limiterSweepEvery {
		for id, b := range s.buckets {
			if now.Sub(b.lastSeen) > limiterIdleTTL {
				delete(s.buckets, id)
			}
		}
		s.lastSweep = now
	}

	b, ok := s.buckets[identity]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.buckets[identity] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

func (s *limiterStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}

// retryAfter is the whole-second wait for one token at rps.
func retryAfter(rps float64) int {
	return int(math.Ceil(1 / math.Max(rps, 0.001)))
}

// RateLimit returns token-bucket rate limiting keyed by API key (set by Auth)
// or, without auth, by client IP.
//
// A resolution holds a browser page for seconds, so the limit protects the
// page pool as much as the target site. Rejected requests get 429 with a
// Retry-After hint.
func RateLimit(cfg config.RateLimitConfig) gin.HandlerFunc {
	store := newLimiterStore(cfg)
	wait := strconv.Itoa(retryAfter(cfg.RequestsPerSecond))

	return func(c *gin.Context) {
		identity := "ip:" + c.ClientIP()
		if key := c.GetString("api_key"); key != "" {
			identity = "key:" + key
		}

		if !store.allow(identity) {
			c.Header("Retry-After", wait)
			abort(c, http.StatusTooManyRequests, models.ErrCodeRateLimited,
				"rate limit exceeded, please slow down")
			return
		}
		c.Next()
	}
}
