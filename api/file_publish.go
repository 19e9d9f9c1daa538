package api

import (
	"errors"
	"net/http"

	"filehub/files-api/internal/catalog"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// FilePublish makes a file readable by anyone. Owner only, repeated
// calls are harmless
func (a *API) FilePublish(c *gin.Context) {
	a.setPublic(c, true)
}

// FileUnpublish makes a file private again
func (a *API) FileUnpublish(c *gin.Context) {
	a.setPublic(c, false)
}

func (a *API) setPublic(c *gin.Context, value bool) {
	requestID := c.MustGet("requestID").(string)
	userID := c.MustGet("userID").(string)

	fileID := c.Param("id")
	if fileID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "No file ID provided",
			"requestID": requestID,
		})
		return
	}

	file, err := a.Catalog.SetPublic(c.Request.Context(), fileID, userID, value)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
				"error":     "File not found",
				"requestID": requestID,
			})
			return
		}

		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to update file visibility", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	c.JSON(http.StatusOK, file)
}
