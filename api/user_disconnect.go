package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UserDisconnect destroys the presented session token. The middleware
// already rejected invalid tokens, so destroying here is idempotent
func (a *API) UserDisconnect(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)
	token := c.GetHeader("X-Token")

	if err := a.Sessions.Destroy(c.Request.Context(), token); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to destroy session", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	c.Status(http.StatusNoContent)
}
