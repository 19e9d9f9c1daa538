package middleware

import (
	"errors"
	"net/http"

	"filehub/files-api/internal/session"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewTokenMiddleware resolves the X-Token header against the session
// store and sets userID for downstream handlers. Missing, expired and
// destroyed tokens all read the same from the outside
func NewTokenMiddleware(s *session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.MustGet("requestID").(string)

		token := c.GetHeader("X-Token")
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":     "Unauthorized",
				"requestID": requestID,
			})
			return
		}

		userID, err := s.Resolve(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, session.ErrInvalidToken) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error":     "Unauthorized",
					"requestID": requestID,
				})
				return
			}

			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":     "Internal server error",
				"requestID": requestID,
			})

			zap.L().Error("Failed to resolve token", zap.Error(err), zap.String("requestID", requestID))
			return
		}

		c.Set("userID", userID)
		c.Next()
	}
}
