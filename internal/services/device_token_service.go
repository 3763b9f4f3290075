package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/jobboard/internal/models"
	appErrors "github.com/charlesng35/jobboard/pkg/errors"
)

var devicePlatforms = map[string]struct{}{
	"android": {},
	"ios":     {},
	"web":     {},
}

// DeviceTokenService tracks FCM registration tokens per user.
type DeviceTokenService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewDeviceTokenService constructs a DeviceTokenService.
func NewDeviceTokenService(db *gorm.DB) (*DeviceTokenService, error) {
	if db == nil {
		return nil, errors.New("device token service: db is required")
	}
	return &DeviceTokenService{db: db, now: time.Now}, nil
}

// Register stores token for the user. A token seen before moves to the new
// user, since devices change hands on logout and login.
func (s *DeviceTokenService) Register(ctx context.Context, userID, token, platform string) (*models.DeviceToken, error) {
	ctx = ensureContext(ctx)
	token = strings.TrimSpace(token)
	platform = strings.ToLower(strings.TrimSpace(defaultIfEmpty(platform, "android")))
	if token == "" {
		return nil, appErrors.NewValidation("Invalid device token", map[string]string{"token": "required"})
	}
	if _, ok := devicePlatforms[platform]; !ok {
		return nil, appErrors.NewValidation("Invalid device token", map[string]string{"platform": "must be android, ios or web"})
	}

	now := s.now().UTC()
	record := models.DeviceToken{
		UserID:     userID,
		Token:      token,
		Platform:   platform,
		LastSeenAt: now,
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "token"}},
			DoUpdates: clause.AssignmentColumns([]string{"user_id", "platform", "last_seen_at", "updated_at"}),
		}).
		Create(&record).Error
	if err != nil {
		return nil, fmt.Errorf("device token service: register: %w", err)
	}

	var stored models.DeviceToken
	if err := s.db.WithContext(ctx).Where("token = ?", token).Take(&stored).Error; err != nil {
		return nil, fmt.Errorf("device token service: load token: %w", err)
	}
	return &stored, nil
}

// Unregister removes a token owned by the user.
func (s *DeviceTokenService) Unregister(ctx context.Context, userID, token string) error {
	ctx = ensureContext(ctx)
	result := s.db.WithContext(ctx).
		Where("user_id = ? AND token = ?", userID, strings.TrimSpace(token)).
		Delete(&models.DeviceToken{})
	if result.Error != nil {
		return fmt.Errorf("device token service: unregister: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return appErrors.ErrNotFound
	}
	return nil
}

// List returns the user's registered devices.
func (s *DeviceTokenService) List(ctx context.Context, userID string) ([]models.DeviceToken, error) {
	ctx = ensureContext(ctx)
	var tokens []models.DeviceToken
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("last_seen_at DESC").Find(&tokens).Error; err != nil {
		return nil, fmt.Errorf("device token service: list: %w", err)
	}
	return tokens, nil
}
