package config

import (
	"fmt"
	"os"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDB ouvre la base. MySQL en production via DB_*; sans DB_HOST on retombe
// sur sqlite (fichier local ou memoire), ce qui suffit pour le dev et la CI.
func InitDB() (*gorm.DB, error) {
	host := os.Getenv("DB_HOST")
	if host == "" {
		path := os.Getenv("SQLITE_PATH")
		if path == "" {
			path = "pos_payments.db"
		}
		return gorm.Open(sqlite.Open(path), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
	}

	port := os.Getenv("DB_PORT")
	if port == "" {
		port = "3306"
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		host,
		port,
		os.Getenv("DB_NAME"),
	)
	return gorm.Open(mysql.Open(dsn), &gorm.Config{})
}

// IdempotencyDBPath retourne le chemin du fichier bolt du coordinateur.
func IdempotencyDBPath() string {
	path := os.Getenv("IDEMPOTENCY_DB_PATH")
	if path == "" {
		path = "idempotency.db"
	}
	return path
}

// CallbackBaseURL est la base publique annoncee aux providers pour les
// webhooks et les URLs de retour.
func CallbackBaseURL() string {
	base := os.Getenv("CALLBACK_BASE_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	return base
}
