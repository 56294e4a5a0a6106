package middlewares

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yaokouame/pos-payments/utils"
)

// AuthMiddleware lit le JWT emis par le service d'authentification amont et
// pose user, tenant et role dans le contexte. Le tenant (businessID) du token
// fait foi pour toutes les requetes: jamais celui du corps ou de l'URL.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.RespondError(c, http.StatusUnauthorized, errors.New("Authorization header missing"))
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := utils.ParseToken(tokenString)
		if err != nil || claims == nil {
			utils.RespondError(c, http.StatusUnauthorized, errors.New("Invalid or expired token"))
			c.Abort()
			return
		}

		if claims.UserID == 0 || claims.BusinessID == 0 {
			utils.RespondError(c, http.StatusUnauthorized, errors.New("Token is missing user or business identity"))
			c.Abort()
			return
		}

		c.Set("userID", claims.UserID)
		c.Set("businessID", claims.BusinessID)
		c.Set("role", claims.Role)

		c.Next()
	}
}
