package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestLimiterAllow(t *testing.T) {
	limiter := New(Config{RequestsPerMinute: 60, BurstSize: 5, CleanupInterval: time.Minute})
	defer limiter.Stop()

	now := time.Unix(1_700_000_000, 0)
	limiter.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		assert.True(t, limiter.Allow("test-ip"), "request %d within burst", i)
	}
	assert.False(t, limiter.Allow("test-ip"), "request after burst should be denied")

	// 60/min refills one token per second.
	now = now.Add(time.Second)
	assert.True(t, limiter.Allow("test-ip"))
	assert.False(t, limiter.Allow("test-ip"))
}

func TestLimiterMultipleClients(t *testing.T) {
	limiter := New(Config{RequestsPerMinute: 60, BurstSize: 3, CleanupInterval: time.Minute})
	defer limiter.Stop()

	for i := 0; i < 3; i++ {
		limiter.Allow("client-a")
	}
	assert.False(t, limiter.Allow("client-a"))
	assert.True(t, limiter.Allow("client-b"))
}

func TestLimiterEvictIdle(t *testing.T) {
	limiter := New(DefaultConfig())
	defer limiter.Stop()
	limiter.Stop()

	now := time.Unix(1_700_000_000, 0)
	limiter.now = func() time.Time { return now }
	limiter.Allow("old")
	now = now.Add(5 * time.Minute)
	limiter.Allow("fresh")

	limiter.evictIdle(2 * time.Minute)
	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.NotContains(t, limiter.clients, "old")
	assert.Contains(t, limiter.clients, "fresh")
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := New(Config{RequestsPerMinute: 30, BurstSize: 1, CleanupInterval: time.Minute})
	defer limiter.Stop()

	r := gin.New()
	r.Use(limiter.Middleware())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func(clientID string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		if clientID != "" {
			req.Header.Set(ClientIDHeader, clientID)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, do("").Code)
	w := do("")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "rate_limit_exceeded")

	// A client ID gets its own bucket.
	assert.Equal(t, http.StatusOK, do("c1").Code)
	assert.Equal(t, http.StatusTooManyRequests, do("c1").Code)
}
