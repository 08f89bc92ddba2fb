package auth

import (
	"net/http"

	"chatroom/backend/internal/logger"

	"github.com/gin-gonic/gin"
)

// ContextUserKey is the gin context key holding the authenticated username.
const ContextUserKey = logger.FieldUsername

// Middleware rejects requests without a valid credential and stores the
// username under ContextUserKey.
func Middleware(gate Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := gate.Authenticate(CredentialFromRequest(c.Request))
		if err != nil {
			logger.Ctx(c.Request.Context()).Debug().Err(err).Msg("request rejected")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or missing token"})
			return
		}
		c.Set(ContextUserKey, user)
		c.Next()
	}
}
