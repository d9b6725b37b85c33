// Package handler provides the HTTP request handlers.
package handler

import (
	"github.com/gin-gonic/gin"

	"read-aloud-api/internal/interfaces/http/dto"
	"read-aloud-api/internal/interfaces/http/middleware"
)

// ownerID extracts the authenticated owner, aborting with 401 when absent.
func ownerID(c *gin.Context) (string, bool) {
	id := c.GetString(middleware.UserIDKey)
	if id == "" {
		dto.Unauthorized(c, "missing identity")
		return "", false
	}
	return id, true
}
