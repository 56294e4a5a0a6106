package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yaokouame/pos-payments/controllers"
	"github.com/yaokouame/pos-payments/middlewares"
)

// SetupRouter cable toute la surface HTTP. Les controllers recoivent leurs
// services via controllers.Init avant cet appel.
func SetupRouter() *gin.Engine {
	r := gin.Default()

	r.Use(middlewares.CORSMiddlewares())
	r.Use(middlewares.LoggerMiddleware())

	// Limite globale par IP. Gin fige la chaine de handlers a l'enregistrement
	// des routes, donc ce Use doit preceder toute declaration de route.
	globalLimiter := middlewares.NewRateLimiter(50, 1)
	r.Use(globalLimiter.RateLimit())

	// ----------------------------------------------------------------
	//                      PUBLIC ROUTES
	// ----------------------------------------------------------------
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Webhooks providers: pas d'authentification JWT, la signature fait foi.
	// Limites par IP car les gateways re-livrent mais jamais en rafale.
	webhookLimiter := middlewares.NewRateLimiter(50, 1)
	webhooks := r.Group("/webhooks")
	webhooks.Use(webhookLimiter.RateLimit())
	{
		webhooks.POST("/:provider", controllers.ReceiveWebhook)
	}

	// Pages de retour apres un checkout heberge. Le verdict reel arrive par
	// webhook, ces pages ne font qu'informer le client.
	r.GET("/payments/return/success", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "Payment received, awaiting confirmation"})
	})
	r.GET("/payments/return/error", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "Payment was not completed"})
	})

	// ----------------------------------------------------------------
	//                      AUTHENTICATED ROUTES
	// ----------------------------------------------------------------
	auth := r.Group("/")
	auth.Use(middlewares.AuthMiddleware())

	payments := auth.Group("/payments")
	payments.Use(middlewares.PaymentSecurityHeaders())
	payments.Use(middlewares.LogPaymentRequest())
	{
		payments.POST("/initiate", middlewares.PaymentRateLimiter(), controllers.InitiatePayment)
		payments.GET("", controllers.ListPayments)
		payments.GET("/:payment_id/status", controllers.GetPaymentStatus)
		payments.POST("/:payment_id/refund",
			middlewares.RequireRole(middlewares.RoleManager),
			middlewares.NewStrictRateLimiter(),
			controllers.RefundPayment)
		payments.GET("/reconciliation",
			middlewares.RequireRole(middlewares.RoleManager),
			controllers.GetReconciliation)
	}

	drawers := auth.Group("/drawer-sessions")
	{
		drawers.POST("/open", controllers.OpenDrawerSession)
		drawers.GET("/current", controllers.GetCurrentDrawerSession)
		drawers.POST("/:session_id/close", controllers.CloseDrawerSession)
	}

	// WebSocket dashboard: token en query, pas de header sur un upgrade
	ws := r.Group("/ws")
	ws.Use(middlewares.WebSocketAuthMiddleware())
	{
		ws.GET("/events", controllers.HandleEventStream)
	}

	return r
}
