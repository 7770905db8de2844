package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const UserIDKey = "userID"

// AuthMiddleware читает идентификатор пользователя из заголовка X-User-ID.
// Проверка подписи сессии живёт во внешнем шлюзе, ядро доверяет заголовку.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("X-User-ID")
		if raw == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "user id is required in 'X-User-ID' header"})
			c.Abort()
			return
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "'X-User-ID' header must be a positive integer"})
			c.Abort()
			return
		}
		c.Set(UserIDKey, id)
		c.Next()
	}
}

// UserID достаёт идентификатор, положенный AuthMiddleware.
func UserID(c *gin.Context) int64 {
	return c.GetInt64(UserIDKey)
}
