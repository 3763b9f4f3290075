// Package testutil opens throwaway SQLite databases for package tests.
package testutil

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/jobboard/internal/database"
)

// TestDBOption prepares a freshly opened test database.
type TestDBOption func(t *testing.T, db *gorm.DB)

// WithAutoMigrate creates every table.
func WithAutoMigrate() TestDBOption {
	return func(t *testing.T, db *gorm.DB) {
		require.NoError(t, database.AutoMigrate(db))
	}
}

// WithSeedAdmin creates every table and seeds a verified super admin.
func WithSeedAdmin(email, password string) TestDBOption {
	return func(t *testing.T, db *gorm.DB) {
		seed := database.SeedOptions{AdminEmail: email, AdminPassword: password}
		require.NoError(t, database.AutoMigrateAndSeed(db, seed))
	}
}

// MustOpenTestDB opens a named shared-cache memory database private to t and
// closes it on cleanup.
func MustOpenTestDB(t *testing.T, opts ...TestDBOption) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_foreign_keys=1"
	db, err := database.Open(database.Config{Driver: "sqlite", DSN: dsn})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, opt := range opts {
		opt(t, db)
	}
	return db
}
