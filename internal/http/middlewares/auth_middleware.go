package middlewares

import (
	"net/http"
	"strings"

	"github.com/geocoder89/bugzapp/internal/auth"
	"github.com/geocoder89/bugzapp/internal/identity"
	"github.com/gin-gonic/gin"
)

// Keep this small interface so tests can fake it easily.
type TokenVerifier interface {
	VerifyToken(token string) (*auth.Claims, error)
}

type AuthMiddleware struct {
	jwt TokenVerifier
}

func NewAuthMiddleware(jwt TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt}
}

// RequireAuth admits requests carrying a valid "Authorization: Bearer <token>"
// and exposes the decoded identity to the rest of the chain.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")

		raw, ok := strings.CutPrefix(authHeader, "Bearer ")
		raw = strings.TrimSpace(raw)

		if !ok || raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "No token"})
			return
		}

		claims, err := m.jwt.VerifyToken(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		who := claims.Identity()

		c.Set(CtxIdentity, who)
		c.Request = c.Request.WithContext(identity.WithIdentity(c.Request.Context(), who))

		c.Next()
	}
}

// IdentityFromContext spares handlers from knowing the context key.
func IdentityFromContext(c *gin.Context) (identity.Identity, bool) {
	v, ok := c.Get(CtxIdentity)
	if !ok {
		return identity.Identity{}, false
	}
	who, ok := v.(identity.Identity)
	return who, ok && who.ID != ""
}
