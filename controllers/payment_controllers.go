package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yaokouame/pos-payments/services"
	"github.com/yaokouame/pos-payments/utils"
)

// InitiatePaymentRequest est le corps de POST /payments/initiate. La cle
// d'idempotence peut aussi venir du header Idempotency-Key.
type InitiatePaymentRequest struct {
	OrderID        uint   `json:"order_id" binding:"required"`
	ProviderCode   string `json:"provider_code" binding:"required"`
	IdempotencyKey string `json:"idempotency_key"`
	CustomerPhone  string `json:"customer_phone"`
}

// InitiatePayment demarre un paiement. Une re-soumission avec la meme cle
// d'idempotence rend le paiement existant avec is_duplicate=true, jamais une
// erreur ni un double debit.
func InitiatePayment(c *gin.Context) {
	var req InitiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	key := req.IdempotencyKey
	if key == "" {
		key = c.GetHeader("Idempotency-Key")
	}

	out, err := paymentService.Initiate(c.Request.Context(), services.InitiateInput{
		OrderID:        req.OrderID,
		BusinessID:     businessID(c),
		ProviderCode:   req.ProviderCode,
		IdempotencyKey: key,
		CustomerPhone:  req.CustomerPhone,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	code := http.StatusCreated
	message := "Payment initiated"
	if out.IsDuplicate {
		code = http.StatusOK
		message = "Payment already exists for this idempotency key"
	}

	utils.RespondJSON(c, code, message, gin.H{
		"payment":      out.Payment,
		"redirect_url": out.RedirectURL,
		"is_duplicate": out.IsDuplicate,
	})
}

// GetPaymentStatus retourne l'etat courant, en re-interrogeant le provider si
// le paiement attend encore sa confirmation.
func GetPaymentStatus(c *gin.Context) {
	paymentID, err := strconv.ParseUint(c.Param("payment_id"), 10, 64)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	payment, serr := paymentService.CheckStatus(c.Request.Context(), businessID(c), uint(paymentID))
	if serr != nil {
		respondServiceError(c, serr)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Payment status", gin.H{
		"id":               payment.ID,
		"status":           payment.Status,
		"amount":           payment.Amount,
		"amount_formatted": utils.FormatAmountXOF(payment.Amount),
		"provider_code":    payment.ProviderCode,
		"error_code":       payment.ErrorCode,
		"error_message":    payment.ErrorMessage,
		"refunded_amount":  payment.RefundedAmount,
		"completed_at":     payment.CompletedAt,
	})
}

// ListPayments rend les paiements du tenant, filtres et pagines.
func ListPayments(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))
	status := c.Query("status")

	payments, total, err := paymentService.List(businessID(c), status, page, perPage)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Payments", gin.H{
		"payments": payments,
		"total":    total,
		"page":     page,
		"per_page": perPage,
	})
}

// RefundPaymentRequest est le corps de POST /payments/:payment_id/refund.
// Un montant absent ou nul rembourse le solde complet.
type RefundPaymentRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

// RefundPayment rembourse un paiement, partiellement ou en totalite.
// Reserve aux managers et owners par le router.
func RefundPayment(c *gin.Context) {
	paymentID, err := strconv.ParseUint(c.Param("payment_id"), 10, 64)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var req RefundPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	outcome, serr := refundService.Refund(c.Request.Context(), businessID(c), uint(paymentID), req.Amount, req.Reason)
	if serr != nil {
		respondServiceError(c, serr)
		return
	}

	if !outcome.Success {
		// refus gateway: pas une erreur serveur, le paiement est intact
		utils.RespondJSON(c, http.StatusUnprocessableEntity, "Refund rejected by provider", outcome)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Refund processed", outcome)
}
