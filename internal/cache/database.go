package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/jobboard/internal/models"
)

var errNoDatabase = errors.New("cache: database store not initialised")

// DatabaseStore keeps cache entries in the cache_entries table so that rate
// limits hold across replicas without extra infrastructure.
type DatabaseStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewDatabaseStore returns nil when db is nil.
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	if db == nil {
		return nil
	}
	return &DatabaseStore{db: db, now: time.Now}
}

func (s *DatabaseStore) session(ctx context.Context) (*gorm.DB, error) {
	if s == nil || s.db == nil {
		return nil, errNoDatabase
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return s.db.WithContext(ctx), nil
}

func (s *DatabaseStore) live(entry models.CacheEntry, at time.Time) bool {
	return entry.ExpiresAt.IsZero() || !at.After(entry.ExpiresAt)
}

// IncrementWithTTL bumps a fixed-window counter under a row lock. The window
// opens on the first hit and later hits do not extend it.
func (s *DatabaseStore) IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	db, err := s.session(ctx)
	if err != nil {
		return 0, 0, err
	}
	if window <= 0 {
		window = time.Minute
	}

	now := s.now()
	counter := models.CacheEntry{Key: key, ExpiresAt: now.Add(window)}
	var hits int64 = 1

	err = db.Transaction(func(tx *gorm.DB) error {
		var existing models.CacheEntry
		lookup := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("cache_key = ?", key).Limit(1).Find(&existing)
		if lookup.Error != nil {
			return lookup.Error
		}
		if lookup.RowsAffected > 0 && existing.ExpiresAt.After(now) {
			previous, _ := strconv.ParseInt(string(existing.Value), 10, 64)
			hits = previous + 1
			counter.ExpiresAt = existing.ExpiresAt
		}
		counter.Value = strconv.AppendInt(nil, hits, 10)
		return upsert(tx, &counter)
	})
	if err != nil {
		return 0, 0, err
	}
	return hits, counter.ExpiresAt.Sub(now), nil
}

// Set stores value under key. A non-positive ttl never expires.
func (s *DatabaseStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	db, err := s.session(ctx)
	if err != nil {
		return err
	}
	entry := models.CacheEntry{Key: key, Value: value}
	if ttl > 0 {
		entry.ExpiresAt = s.now().Add(ttl)
	}
	return upsert(db, &entry)
}

// Get reports a miss for absent or expired keys and drops expired rows lazily.
func (s *DatabaseStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	db, err := s.session(ctx)
	if err != nil {
		return nil, false, err
	}

	var entry models.CacheEntry
	found := db.Where("cache_key = ?", key).Limit(1).Find(&entry)
	if found.Error != nil {
		return nil, false, found.Error
	}
	if found.RowsAffected == 0 {
		return nil, false, nil
	}
	if !s.live(entry, s.now()) {
		_ = s.Delete(ctx, key)
		return nil, false, nil
	}
	return entry.Value, true, nil
}

// Delete removes keys. Missing keys are ignored.
func (s *DatabaseStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	db, err := s.session(ctx)
	if err != nil {
		return err
	}
	return db.Where("cache_key IN ?", keys).Delete(&models.CacheEntry{}).Error
}

// PurgeExpired removes rows whose expiry has passed; entries without an
// expiry are kept.
func (s *DatabaseStore) PurgeExpired(ctx context.Context) (int64, error) {
	db, err := s.session(ctx)
	if err != nil {
		return 0, err
	}
	result := db.Where("expires_at > ? AND expires_at < ?", time.Time{}, s.now()).Delete(&models.CacheEntry{})
	return result.RowsAffected, result.Error
}

func upsert(db *gorm.DB, entry *models.CacheEntry) error {
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cache_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
	}).Create(entry).Error
}
