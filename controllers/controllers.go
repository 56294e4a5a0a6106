package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yaokouame/pos-payments/providers"
	"github.com/yaokouame/pos-payments/services"
	"github.com/yaokouame/pos-payments/utils"
)

// Dependances partagees des controllers, injectees au boot par Init.
var (
	paymentService        *services.PaymentService
	refundService         *services.RefundService
	drawerService         *services.DrawerService
	reconciliationService *services.ReconciliationService
	webhookProcessor      *services.WebhookProcessor
	providerRegistry      *providers.Registry
)

func Init(
	payments *services.PaymentService,
	refunds *services.RefundService,
	drawers *services.DrawerService,
	reconciliation *services.ReconciliationService,
	webhooks *services.WebhookProcessor,
	registry *providers.Registry,
) {
	paymentService = payments
	refundService = refunds
	drawerService = drawers
	reconciliationService = reconciliation
	webhookProcessor = webhooks
	providerRegistry = registry
}

// businessID lit le tenant pose par le middleware d'authentification.
func businessID(c *gin.Context) uint {
	id, _ := c.Get("businessID")
	v, _ := id.(uint)
	return v
}

func userID(c *gin.Context) uint {
	id, _ := c.Get("userID")
	v, _ := id.(uint)
	return v
}

// respondServiceError mappe la taxonomie d'erreurs des services sur les codes
// HTTP: validation 400, introuvable 404, transition illegale 409, le reste 500.
func respondServiceError(c *gin.Context, err error) {
	var validation *services.ValidationError
	var notFound *services.NotFoundError
	var illegal *services.IllegalTransitionError

	switch {
	case errors.As(err, &validation):
		utils.RespondError(c, http.StatusBadRequest, err)
	case errors.As(err, &notFound):
		utils.RespondError(c, http.StatusNotFound, err)
	case errors.As(err, &illegal):
		utils.RespondError(c, http.StatusConflict, err)
	default:
		utils.ErrorLogger.Printf("Unhandled service error: %v", err)
		utils.RespondError(c, http.StatusInternalServerError, errors.New("internal server error"))
	}
}
