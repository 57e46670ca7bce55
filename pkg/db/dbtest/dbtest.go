// Package dbtest opens isolated in-memory SQLite databases carrying the core schema.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/revofy/revofy-backend/pkg/db/models"
)

// Open returns a fresh database per call. A single pooled connection serialises
// concurrent statements the way row locks would on Postgres.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, conn.AutoMigrate(&models.Account{}, &models.Subscription{}, &models.UsageLedger{}))
	return conn
}

// SeedAccount inserts a bare account row and returns its id.
func SeedAccount(t testing.TB, conn *gorm.DB, email string) uuid.UUID {
	t.Helper()
	account := models.Account{ID: uuid.New(), Email: email}
	require.NoError(t, conn.Create(&account).Error)
	return account.ID
}
