package middleware

import (
	"crypto/subtle"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
)

// InternalTokenAuth protects operational endpoints such as the metrics
// scrape. Loopback callers pass without a token; everyone else must present
// X-Internal-Token matching the configured value. With no token configured
// the endpoint is loopback-only.
func InternalTokenAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ip := net.ParseIP(c.ClientIP()); ip != nil && ip.IsLoopback() {
			c.Next()
			return
		}

		provided := c.GetHeader("X-Internal-Token")
		if token == "" || provided == "" ||
			subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}
