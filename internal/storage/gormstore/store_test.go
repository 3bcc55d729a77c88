package gormstore

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mkastler/poolcart-backend/internal/storage"
	"github.com/mkastler/poolcart-backend/internal/storage/storagetest"
	"github.com/mkastler/poolcart-backend/pkg/db/models"
)

func openTestStore(t *testing.T) storage.Store {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	err = conn.AutoMigrate(
		&models.Product{},
		&models.Run{},
		&models.Participation{},
		&models.Bid{},
		&models.ShoppingListItem{},
		&models.ReassignmentRequest{},
		&models.ProductAvailability{},
		&models.Notification{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, dbErr := conn.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
	})

	return New(conn)
}

func TestGormStoreContract(t *testing.T) {
	storagetest.RunSuite(t, openTestStore)
}
