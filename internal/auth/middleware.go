package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const claimsKey = "claims"

// Bearer enforces HS256 bearer tokens and stores the caller's claims on the
// request context.
func Bearer(signingKey, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		tokenStr := strings.TrimSpace(authz[len("bearer "):])
		claims, err := Parse(tokenStr, signingKey, issuer)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// RequireRole rejects callers whose token carries a different role.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if Identity(c).Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "wrong role"})
			return
		}
		c.Next()
	}
}

// Identity returns the authenticated caller's claims, zero when unset.
func Identity(c *gin.Context) Claims {
	v, ok := c.Get(claimsKey)
	if !ok {
		return Claims{}
	}
	claims, _ := v.(Claims)
	return claims
}
