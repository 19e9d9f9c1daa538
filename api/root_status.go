package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Status reports whether redis and the database currently answer
func (a *API) Status(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	dbAlive := false
	if sqlDB, err := a.DB.DB(); err == nil {
		dbAlive = sqlDB.PingContext(ctx) == nil
	}

	c.JSON(http.StatusOK, gin.H{
		"redis": a.Sessions.Ping(ctx),
		"db":    dbAlive,
	})
}
