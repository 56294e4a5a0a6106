package utils

import (
	"sync"

	"gorm.io/gorm"
)

var (
	db   *gorm.DB
	once sync.Once
	mu   sync.RWMutex
)

// InitDB enregistre la connexion partagee. Appele une seule fois au boot;
// les tests passent par SetDB pour injecter une base sqlite en memoire.
func InitDB(database *gorm.DB) {
	once.Do(func() {
		db = database
	})
}

// SetDB replaces the shared connection unconditionally (tests only).
func SetDB(database *gorm.DB) {
	mu.Lock()
	defer mu.Unlock()
	db = database
}

// GetDB returns the shared database connection.
func GetDB() *gorm.DB {
	mu.RLock()
	defer mu.RUnlock()
	return db
}
