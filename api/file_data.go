package api

import (
	"errors"
	"io"
	"net/http"
	"slices"
	"strconv"

	"filehub/files-api/internal/catalog"
	"filehub/files-api/internal/storage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var validThumbSizes = []int{500, 250, 100}

// FileData streams the raw bytes of a file. Public files work without
// a token, anything else resolves to 404 so existence never leaks.
// A size query picks one of the derived thumbnails instead
func (a *API) FileData(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)

	fileID := c.Param("id")
	if fileID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "No file ID provided",
			"requestID": requestID,
		})
		return
	}

	// An invalid token is treated like no token at all. Public files
	// still come through, private ones turn into a 404 below
	requesterID := ""
	if token := c.GetHeader("X-Token"); token != "" {
		if userID, err := a.Sessions.Resolve(c.Request.Context(), token); err == nil {
			requesterID = userID
		}
	}

	width := 0
	if sizeStr := c.Query("size"); sizeStr != "" {
		size, err := strconv.Atoi(sizeStr)
		if err != nil || !slices.Contains(validThumbSizes, size) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":     "Invalid thumbnail size",
				"requestID": requestID,
			})
			return
		}

		width = size
	}

	r, file, err := a.Catalog.ReadContent(c.Request.Context(), fileID, requesterID, width)
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrNotFound), errors.Is(err, storage.ErrNotFound):
			// Content missing behind a live record reads the same as a
			// missing record. Thumbnails simply may not exist yet
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
				"error":     "File not found",
				"requestID": requestID,
			})
		case errors.Is(err, catalog.ErrNotAFile):
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":     "A folder doesn't have content",
				"requestID": requestID,
			})
		default:
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":     "Internal server error",
				"requestID": requestID,
			})

			zap.L().Error("Failed to read file content", zap.Error(err), zap.String("requestID", requestID))
		}
		return
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to read file content", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	c.Data(http.StatusOK, file.MimeType, data)
}
