package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charlesng35/jobboard/internal/cache"
	"github.com/charlesng35/jobboard/internal/models"
)

const sessionCacheKeyPrefix = "auth:sessions:refresh:"

// NewStoreSessionCache wraps a shared cache.Store inside a SessionCache implementation.
func NewStoreSessionCache(store cache.Store) SessionCache {
	if store == nil {
		return nil
	}
	return &sessionStoreCache{store: store}
}

type sessionStoreCache struct {
	store cache.Store
}

func (c *sessionStoreCache) Get(ctx context.Context, tokenHash string) (*models.Session, error) {
	key := cacheKey(tokenHash)
	if key == "" {
		return nil, errSessionCacheMiss
	}

	data, found, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errSessionCacheMiss
	}

	var entry cachedSession
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("session cache: decode: %w", err)
	}
	return entry.session(), nil
}

func (c *sessionStoreCache) Set(ctx context.Context, session *models.Session, ttl time.Duration) error {
	if session == nil {
		return errors.New("session cache: session is nil")
	}
	key := cacheKey(session.RefreshToken)
	if key == "" {
		return errors.New("session cache: refresh token missing")
	}

	payload, err := json.Marshal(newCachedSession(session))
	if err != nil {
		return fmt.Errorf("session cache: marshal: %w", err)
	}
	if ttl <= 0 {
		ttl = time.Second
	}

	return c.store.Set(ctx, key, payload, ttl)
}

func (c *sessionStoreCache) Delete(ctx context.Context, tokenHash string) error {
	key := cacheKey(tokenHash)
	if key == "" {
		return nil
	}
	return c.store.Delete(ctx, key)
}

// cachedSession mirrors models.Session including fields hidden from API JSON.
type cachedSession struct {
	ID            string               `json:"id"`
	PrincipalKind models.PrincipalKind `json:"kind"`
	PrincipalID   string               `json:"pid"`
	TokenHash     string               `json:"token"`
	ExpiresAt     time.Time            `json:"exp"`
	LastUsedAt    time.Time            `json:"last_used_at"`
	RevokedAt     *time.Time           `json:"revoked_at,omitempty"`
}

func newCachedSession(s *models.Session) cachedSession {
	return cachedSession{
		ID:            s.ID,
		PrincipalKind: s.PrincipalKind,
		PrincipalID:   s.PrincipalID,
		TokenHash:     s.RefreshToken,
		ExpiresAt:     s.ExpiresAt,
		LastUsedAt:    s.LastUsedAt,
		RevokedAt:     s.RevokedAt,
	}
}

func (c cachedSession) session() *models.Session {
	session := &models.Session{
		PrincipalKind: c.PrincipalKind,
		PrincipalID:   c.PrincipalID,
		RefreshToken:  c.TokenHash,
		ExpiresAt:     c.ExpiresAt,
		LastUsedAt:    c.LastUsedAt,
		RevokedAt:     c.RevokedAt,
	}
	session.ID = c.ID
	return session
}

func cacheKey(tokenHash string) string {
	token := strings.TrimSpace(tokenHash)
	if token == "" {
		return ""
	}
	return sessionCacheKeyPrefix + token
}
