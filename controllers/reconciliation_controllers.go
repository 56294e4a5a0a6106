package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yaokouame/pos-payments/utils"
)

// GetReconciliation rend le rapport journalier (?date=) ou par plage
// (?start=&end=). Sans parametre, le rapport du jour.
func GetReconciliation(c *gin.Context) {
	start := c.Query("start")
	end := c.Query("end")

	if start != "" || end != "" {
		from, err := time.Parse("2006-01-02", start)
		if err != nil {
			utils.RespondError(c, http.StatusBadRequest, errors.New("start must be YYYY-MM-DD"))
			return
		}
		to, err := time.Parse("2006-01-02", end)
		if err != nil {
			utils.RespondError(c, http.StatusBadRequest, errors.New("end must be YYYY-MM-DD"))
			return
		}

		reports, serr := reconciliationService.Range(businessID(c), from, to)
		if serr != nil {
			respondServiceError(c, serr)
			return
		}
		utils.RespondJSON(c, http.StatusOK, "Reconciliation reports", gin.H{"reports": reports})
		return
	}

	day := time.Now()
	if date := c.Query("date"); date != "" {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			utils.RespondError(c, http.StatusBadRequest, errors.New("date must be YYYY-MM-DD"))
			return
		}
		day = parsed
	}

	report, err := reconciliationService.Daily(businessID(c), day)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Reconciliation report", report)
}
