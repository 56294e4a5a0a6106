package middlewares

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yaokouame/pos-payments/utils"
)

// Roles connus du payment core. Un owner peut tout faire, un manager tout
// sauf l'administration des moyens de paiement, un cashier encaisse.
const (
	RoleCashier = "cashier"
	RoleManager = "manager"
	RoleOwner   = "owner"
)

// RequireRole bloque la requete si le role du token est insuffisant.
// Utilise pour les remboursements et les rapports (manager et plus).
func RequireRole(minimum string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole, exists := c.Get("role")
		if !exists {
			utils.RespondError(c, http.StatusUnauthorized, fmt.Errorf("unauthorized"))
			c.Abort()
			return
		}

		role, _ := userRole.(string)
		if !roleAllows(role, minimum) {
			utils.RespondError(c, http.StatusForbidden, fmt.Errorf("%s access required", minimum))
			c.Abort()
			return
		}

		c.Next()
	}
}

func roleAllows(role, minimum string) bool {
	rank := map[string]int{RoleCashier: 1, RoleManager: 2, RoleOwner: 3}
	return rank[role] >= rank[minimum] && rank[role] > 0
}
