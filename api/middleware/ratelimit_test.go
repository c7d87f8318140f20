package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/use-agent/mediaresolve/config"
)

func TestLimiterStore_PerIdentityBuckets(t *testing.T) {
	s := newLimiterStore(config.RateLimitConfig{RequestsPerSecond: 0.01, Burst: 1})

	assert.True(t, s.allow("key:a"))
	assert.False(t, s.allow("key:a"))
	assert.True(t, s.allow("key:b"), "another caller has its own bucket")
}

func TestLimiterStore_DropsIdleBuckets(t *testing.T) {
	s := newLimiterStore(config.RateLimitConfig{RequestsPerSecond: 1, Burst: 1})
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	s.allow("key:a")
	s.allow("key:b")
	assert.Equal(t, 2, s.size())

	now = now.Add(limiterIdleTTL + limiterSweepEvery)
	s.allow("key:c")
	assert.Equal(t, 1, s.size())
}

func TestRetryAfter(t *testing.T) {
	assert.Equal(t, 1, retryAfter(5))
	assert.Equal(t, 100, retryAfter(0.01))
	assert.Equal(t, 1000, retryAfter(0))
}

func TestRateLimit_KeysByAPIKeyOverIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if k := c.GetHeader("X-Key"); k != "" {
			c.Set("api_key", k)
		}
	})
	r.Use(RateLimit(config.RateLimitConfig{RequestsPerSecond: 0.01, Burst: 1}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	send := func(key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if key != "" {
			req.Header.Set("X-Key", key)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, send("alpha").Code)
	assert.Equal(t, http.StatusOK, send("beta").Code, "same IP, different key")
	assert.Equal(t, http.StatusOK, send("").Code, "no key falls back to IP")

	rec := send("alpha")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "100", rec.Header().Get("Retry-After"))
}
