package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Store represents a shared cache interface used across the application.
type Store interface {
	IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, keys ...string) error
}

// New selects a Store implementation by driver name ("memory" or "database").
func New(driver string, db *gorm.DB) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "memory":
		return NewMemoryStore(), nil
	case "database", "db", "sql":
		if db == nil {
			return nil, fmt.Errorf("cache: database driver requires a db handle")
		}
		return NewDatabaseStore(db), nil
	default:
		return nil, fmt.Errorf("cache: unsupported driver %q", driver)
	}
}
