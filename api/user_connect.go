package api

import (
	"net/http"

	"filehub/files-api/model"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// UserConnect trades Basic auth credentials for an opaque session
// token. Every failure mode answers the same 401 so credentials can't
// be probed
func (a *API) UserConnect(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)

	email, password, ok := c.Request.BasicAuth()
	if !ok || email == "" || password == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error":     "Unauthorized",
			"requestID": requestID,
		})
		return
	}

	var user model.User

	if err := a.DB.Where("email = ?", email).First(&user).Error; err != nil {
		if err != gorm.ErrRecordNotFound {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":     "Internal server error",
				"requestID": requestID,
			})

			zap.L().Error("Failed to look up user", zap.Error(err), zap.String("requestID", requestID))
			return
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error":     "Unauthorized",
			"requestID": requestID,
		})
		return
	}

	ok, err := a.Argon.VerifyPasswd(password, user.PasswordHash)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to verify password", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error":     "Unauthorized",
			"requestID": requestID,
		})
		return
	}

	token, err := a.Sessions.Create(c.Request.Context(), user.ID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to create session", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
	})
}
