package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yaokouame/pos-payments/providers"
	"github.com/yaokouame/pos-payments/services"
	"github.com/yaokouame/pos-payments/utils"
)

// ReceiveWebhook est la phase de reception: capturer le brut, mettre en file,
// repondre 200 tout de suite. Aucune verification de signature ici, elle
// appartient a la phase de traitement. Un provider qui attend son 200 re-livre
// et le traitement est idempotent, donc repondre vite prime.
func ReceiveWebhook(c *gin.Context) {
	code := c.Param("provider")
	if code == providers.CodeCash || !providerRegistry.Known(code) {
		utils.RespondError(c, http.StatusNotFound, errors.New("unknown webhook provider"))
		return
	}

	body, err := c.GetRawData()
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	webhookProcessor.Enqueue(services.WebhookJob{
		ProviderCode: code,
		Headers:      c.Request.Header.Clone(),
		Body:         body,
		ReceivedAt:   time.Now(),
	})

	utils.RespondJSON(c, http.StatusOK, "Webhook received", gin.H{"received": true})
}
