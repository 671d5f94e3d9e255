package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const ctxSessionClaims = "fraudlens_session_claims"

// RequireSession returns a Gin middleware that enforces a valid session
// Bearer token.
//
// On success it injects the *SessionClaims into the context.
func RequireSession(tokens *TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Bearer session token required",
			})
			return
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := tokens.Verify(tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid session token: " + err.Error(),
			})
			return
		}

		c.Set(ctxSessionClaims, claims)
		c.Next()
	}
}

// OptionalSession injects session claims when a valid Bearer token is
// present but lets anonymous requests through. Use on routes that serve
// both signed-in and anonymous callers.
func OptionalSession(tokens *TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			if claims, err := tokens.Verify(strings.TrimPrefix(authHeader, "Bearer ")); err == nil {
				c.Set(ctxSessionClaims, claims)
			}
		}
		c.Next()
	}
}

// SessionFromCtx retrieves the claims injected by RequireSession or
// OptionalSession. Returns nil for anonymous requests.
func SessionFromCtx(c *gin.Context) *SessionClaims {
	v, _ := c.Get(ctxSessionClaims)
	claims, _ := v.(*SessionClaims)
	return claims
}
