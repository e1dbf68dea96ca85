package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	likesjwt "likes-hub/pkg/jwt"
)

const claimsContextKey = "adminClaims"

// RequireAdmin guards the panel routes with a bearer JWT. A missing token is
// a 401, a token that fails validation is a 400; the two cases are kept
// distinct because the panel frontend handles them differently.
func RequireAdmin(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if header == "" || len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Access denied"})
			return
		}

		claims, err := likesjwt.Parse(jwtSecret, parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid token"})
			return
		}

		c.Set(claimsContextKey, claims)
		c.Next()
	}
}

// ClaimsFromContext returns the authenticated admin's claims, if any.
func ClaimsFromContext(c *gin.Context) (*likesjwt.Claims, bool) {
	v, ok := c.Get(claimsContextKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*likesjwt.Claims)
	return claims, ok
}
