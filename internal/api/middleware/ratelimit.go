package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimiter is an in-process sliding-window limiter. State lives in memory,
// so limits apply per instance; that is acceptable for this deployment shape.
type RateLimiter struct {
	mu     sync.Mutex
	hits   map[string][]time.Time
	limit  int
	window time.Duration
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		hits:   make(map[string][]time.Time),
		limit:  limit,
		window: window,
	}
}

// Allow records a hit for the key and reports whether it stays within the
// window. Stale entries are pruned on the way, keeping the map from growing
// without bound.
func (l *RateLimiter) Allow(key string) bool {
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	recent := l.hits[key][:0]
	for _, t := range l.hits[key] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	if len(recent) >= l.limit {
		l.hits[key] = recent
		return false
	}
	l.hits[key] = append(recent, now)
	return true
}

func tooManyRequests(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
}

// RateLimitByIP keys the limiter on the client address.
func RateLimitByIP(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			tooManyRequests(c)
			return
		}
		c.Next()
	}
}

// RateLimitByJSONField keys the limiter on a string field of the JSON request
// body, falling back to the client address when the field is absent or the
// body is unreadable. The body is restored for downstream handlers.
func RateLimitByJSONField(limiter *RateLimiter, field string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()

		if c.Request.Body != nil {
			body, err := io.ReadAll(c.Request.Body)
			if err == nil {
				c.Request.Body = io.NopCloser(bytes.NewReader(body))
				var payload map[string]any
				if json.Unmarshal(body, &payload) == nil {
					if v, ok := payload[field].(string); ok && v != "" {
						key = v
					}
				}
			}
		}

		if !limiter.Allow(key) {
			tooManyRequests(c)
			return
		}
		c.Next()
	}
}
