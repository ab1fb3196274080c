package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/hawkerboys/tms-api/internal/middleware"
	"github.com/hawkerboys/tms-api/internal/models"
)

func actorIDFromContext(c *gin.Context) string {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return ""
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return ""
	}
	return claims.UserID
}
