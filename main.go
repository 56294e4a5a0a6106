package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/yaokouame/pos-payments/config"
	"github.com/yaokouame/pos-payments/controllers"
	"github.com/yaokouame/pos-payments/idempotency"
	"github.com/yaokouame/pos-payments/models"
	"github.com/yaokouame/pos-payments/providers"
	"github.com/yaokouame/pos-payments/router"
	"github.com/yaokouame/pos-payments/services"
	"github.com/yaokouame/pos-payments/utils"
)

func init() {
	// Charger .env avant toute lecture d'environnement
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or error loading: %v", err)
	}

	utils.InfoLogger = logrus.New()
	utils.ErrorLogger = logrus.New()

	utils.InfoLogger.SetOutput(os.Stdout)
	utils.ErrorLogger.SetOutput(os.Stderr)

	utils.InfoLogger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
		ForceColors:   true,
	})
	utils.ErrorLogger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
		ForceColors:   true,
	})
}

func main() {
	db, err := config.InitDB()
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to connect to database: %v", err)
	}
	utils.InitDB(db)

	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	autoMigrate(db)

	// Cache d'idempotence durable (bolt). La table payments reste la source
	// de verite, ce fichier n'est que le chemin rapide.
	idemStore, err := idempotency.NewBoltStore(config.IdempotencyDBPath())
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to open idempotency store: %v", err)
	}
	defer idemStore.Close()

	registry := providers.NewRegistry()

	paymentService := services.NewPaymentService(db, registry, idemStore, config.CallbackBaseURL())
	refundService := services.NewRefundService(paymentService, db, registry)
	drawerService := services.NewDrawerService(db)
	reconciliationService := services.NewReconciliationService(db)

	webhookProcessor := services.NewWebhookProcessor(paymentService, db, registry)
	webhookProcessor.Start(4)
	defer webhookProcessor.Stop()

	sweeper := services.NewExpirySweeper(paymentService, db, 0)
	sweeper.Start()
	defer sweeper.Stop()

	controllers.Init(paymentService, refundService, drawerService,
		reconciliationService, webhookProcessor, registry)

	r := router.SetupRouter()
	r.SetTrustedProxies([]string{"127.0.0.1", "localhost"})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	utils.InfoLogger.Printf("Listening on port %s", port)
	if err := r.Run(":" + port); err != nil {
		utils.ErrorLogger.Fatal(err)
	}
}

func autoMigrate(db *gorm.DB) {
	err := db.AutoMigrate(
		&models.Order{},
		&models.Payment{},
		&models.PaymentMethod{},
		&models.Refund{},
		&models.CashDrawerSession{},
	)
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to AutoMigrate: %v", err)
	}
	utils.InfoLogger.Println("AutoMigrate completed.")
}
