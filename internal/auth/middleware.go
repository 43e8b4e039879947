package auth

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Middleware authenticates the bearer token and attaches the Session to
// both the gin context and the request context.
func Middleware(v *Verifier, revocations Revocations) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		token = strings.TrimSpace(token)

		session, err := v.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		if revocations != nil {
			revoked, err := revocations.IsRevoked(c.Request.Context(), token)
			if err != nil {
				log.Printf("[auth] revocation lookup failed user_id=%s err=%v", session.UserID, err)
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "session store unavailable"})
				return
			}
			if revoked {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrSessionRevoked.Error()})
				return
			}
		}

		c.Set(ginSessionKey, session)
		c.Request = c.Request.WithContext(NewContext(c.Request.Context(), session))
		c.Next()
	}
}
