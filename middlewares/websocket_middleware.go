package middlewares

import (
	"github.com/gin-gonic/gin"
	"github.com/yaokouame/pos-payments/utils"
)

// WebSocketAuthMiddleware authentifie l'upgrade websocket. Les navigateurs ne
// posent pas de header Authorization sur un upgrade, le token passe en query.
func WebSocketAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.AbortWithStatus(401)
			return
		}

		claims, err := utils.ParseToken(token)
		if err != nil {
			c.AbortWithStatus(401)
			return
		}

		c.Set("userID", claims.UserID)
		c.Set("businessID", claims.BusinessID)
		c.Set("role", claims.Role)

		c.Next()
	}
}
