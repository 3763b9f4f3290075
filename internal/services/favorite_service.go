package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/jobboard/internal/models"
)

// FavoriteService bookmarks jobs for users.
type FavoriteService struct {
	db *gorm.DB
}

// NewFavoriteService constructs a FavoriteService.
func NewFavoriteService(db *gorm.DB) (*FavoriteService, error) {
	if db == nil {
		return nil, errors.New("favorite service: db is required")
	}
	return &FavoriteService{db: db}, nil
}

// Add bookmarks a job. Adding twice is a no-op.
func (s *FavoriteService) Add(ctx context.Context, userID, jobID string) (*models.Favorite, error) {
	ctx = ensureContext(ctx)
	jobID = strings.TrimSpace(jobID)

	var job models.Job
	if err := s.db.WithContext(ctx).Where("id = ? AND status <> ?", jobID, models.JobCancelled).Take(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("favorite service: load job: %w", err)
	}

	favorite := models.Favorite{UserID: userID, JobID: job.ID}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&favorite).Error; err != nil {
		return nil, fmt.Errorf("favorite service: add: %w", err)
	}

	var stored models.Favorite
	if err := s.db.WithContext(ctx).Preload("Job.Company").Where("user_id = ? AND job_id = ?", userID, job.ID).Take(&stored).Error; err != nil {
		return nil, fmt.Errorf("favorite service: load favorite: %w", err)
	}
	return &stored, nil
}

// Remove drops a bookmark. Removing a missing bookmark is a no-op.
func (s *FavoriteService) Remove(ctx context.Context, userID, jobID string) error {
	ctx = ensureContext(ctx)
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND job_id = ?", userID, strings.TrimSpace(jobID)).
		Delete(&models.Favorite{}).Error; err != nil {
		return fmt.Errorf("favorite service: remove: %w", err)
	}
	return nil
}

// List returns the user's bookmarks, newest first.
func (s *FavoriteService) List(ctx context.Context, userID string, opts ListOptions) ([]models.Favorite, int64, error) {
	ctx = ensureContext(ctx)
	_, perPage, offset := opts.normalise()

	query := s.db.WithContext(ctx).Model(&models.Favorite{}).Where("user_id = ?", userID)

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("favorite service: count: %w", err)
	}

	var favorites []models.Favorite
	if err := query.Preload("Job.Company").Order("created_at DESC").Offset(offset).Limit(perPage).Find(&favorites).Error; err != nil {
		return nil, 0, fmt.Errorf("favorite service: list: %w", err)
	}
	return favorites, total, nil
}
