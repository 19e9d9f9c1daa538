package api

import (
	"encoding/base64"
	"errors"
	"net/http"

	"filehub/files-api/internal/catalog"
	"filehub/files-api/model"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type createFileBody struct {
	Name     string `json:"name"`
	Kind     string `json:"type"`
	ParentID string `json:"parentId"`
	Data     string `json:"data"`
}

// FileCreate creates a folder or uploads a file/image. Content arrives
// base64-encoded in the JSON body
func (a *API) FileCreate(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)
	userID := c.MustGet("userID").(string)

	var data createFileBody
	if err := c.ShouldBind(&data); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid request body",
			"requestID": requestID,
		})

		zap.L().Error("Can't bind request body", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	if data.Name == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "Missing name",
			"requestID": requestID,
		})
		return
	}

	if !model.ValidKind(data.Kind) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "Missing type",
			"requestID": requestID,
		})
		return
	}

	if data.Kind != model.KindFolder && data.Data == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "Missing data",
			"requestID": requestID,
		})
		return
	}

	var (
		file *model.File
		err  error
	)

	if data.Kind == model.KindFolder {
		file, err = a.Catalog.CreateFolder(c.Request.Context(), userID, data.Name, data.ParentID)
	} else {
		var raw []byte

		raw, err = base64.StdEncoding.DecodeString(data.Data)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":     "Data is not valid base64",
				"requestID": requestID,
			})
			return
		}

		file, err = a.Catalog.CreateFile(c.Request.Context(), userID, data.Name, data.Kind, data.ParentID, raw)
	}

	if err != nil {
		if errors.Is(err, catalog.ErrInvalidParent) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":     "Parent is not a folder you own",
				"requestID": requestID,
			})
			return
		}

		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to create file", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	c.JSON(http.StatusCreated, file)
}
