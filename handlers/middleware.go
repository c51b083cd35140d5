package handlers

import (
	"net/http"
	"strings"

	"realtime-pollchat-backend/auth"

	"github.com/gin-gonic/gin"
)

// AuthRequired 校验Bearer令牌的gin中间件，通过后把用户ID放进上下文
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("Authorization")
		if token == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "No token provided"})
			return
		}

		token = strings.TrimPrefix(token, "Bearer ")

		userID, err := auth.ParseToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Failed to authenticate token"})
			return
		}

		c.Set("userID", userID)
		c.Next()
	}
}
