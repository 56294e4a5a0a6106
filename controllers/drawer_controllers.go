package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yaokouame/pos-payments/utils"
)

type OpenDrawerRequest struct {
	OpeningBalance int64 `json:"opening_balance"`
}

// OpenDrawerSession demarre la session de caisse du caissier authentifie.
func OpenDrawerSession(c *gin.Context) {
	var req OpenDrawerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	session, err := drawerService.Open(businessID(c), userID(c), req.OpeningBalance)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusCreated, "Drawer session opened", session)
}

// GetCurrentDrawerSession rend la session ouverte du caissier avec le solde
// attendu a l'instant.
func GetCurrentDrawerSession(c *gin.Context) {
	session, err := drawerService.Current(businessID(c), userID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Current drawer session", session)
}

type CloseDrawerRequest struct {
	ClosingBalance int64  `json:"closing_balance"`
	Notes          string `json:"notes"`
}

// CloseDrawerSession cloture la session: comptage declare, ecart calcule.
func CloseDrawerSession(c *gin.Context) {
	sessionID, err := strconv.ParseUint(c.Param("session_id"), 10, 64)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var req CloseDrawerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	session, serr := drawerService.Close(businessID(c), userID(c), uint(sessionID), req.ClosingBalance, req.Notes)
	if serr != nil {
		respondServiceError(c, serr)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Drawer session closed", session)
}
