package services

import (
	"fmt"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yaokouame/pos-payments/idempotency"
	"github.com/yaokouame/pos-payments/models"
	"github.com/yaokouame/pos-payments/providers"
	"github.com/yaokouame/pos-payments/utils"
)

func init() {
	utils.InfoLogger = logrus.New()
	utils.ErrorLogger = logrus.New()
	utils.InfoLogger.SetOutput(io.Discard)
	utils.ErrorLogger.SetOutput(io.Discard)
}

// newTestDB ouvre une base sqlite en memoire isolee par test.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Order{},
		&models.Payment{},
		&models.PaymentMethod{},
		&models.Refund{},
		&models.CashDrawerSession{},
	); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}
	return db
}

func newTestPaymentService(t *testing.T, db *gorm.DB) *PaymentService {
	t.Helper()
	return NewPaymentService(db, providers.NewRegistry(), idempotency.NewMemoryStore(), "http://localhost:8080")
}

func createTestOrder(t *testing.T, db *gorm.DB, businessID uint, amount int64) *models.Order {
	t.Helper()
	order := &models.Order{
		BusinessID:  businessID,
		Reference:   "ORD-" + uuid.New().String()[:8],
		TotalAmount: amount,
		Currency:    "XOF",
		Status:      models.OrderStatusPendingPayment,
	}
	if err := db.Create(order).Error; err != nil {
		t.Fatalf("creating test order: %v", err)
	}
	return order
}
