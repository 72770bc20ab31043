package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// RequireRole must run after RequireAuth.
func (m *AuthMiddleware) RequireRole(required string) gin.HandlerFunc {
	return func(c *gin.Context) {
		who, ok := IdentityFromContext(c)

		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "No token"})
			return
		}
		if who.Role != required {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": roleRequired(required)})
			return
		}
		c.Next()
	}
}

func roleRequired(role string) string {
	if role == "" {
		return "Forbidden"
	}
	return strings.ToUpper(role[:1]) + role[1:] + " role required"
}
