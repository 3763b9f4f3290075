package models

import (
	"time"
)

// CacheEntry is a row of the SQL-backed cache used for rate limit counters
// and refresh-session lookups. A zero ExpiresAt never expires.
type CacheEntry struct {
	Key       string    `gorm:"column:cache_key;primaryKey;size:191"`
	Value     []byte    `gorm:"type:blob"`
	ExpiresAt time.Time `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName pins the cache table name.
func (CacheEntry) TableName() string {
	return "cache_entries"
}
