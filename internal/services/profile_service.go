package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/jobboard/internal/models"
	appErrors "github.com/charlesng35/jobboard/pkg/errors"
	"github.com/charlesng35/jobboard/pkg/storage"
)

const documentURLExpiry = 15 * time.Minute

// Document kinds accepted on upload.
var documentKinds = map[string]struct{}{
	"resume":      {},
	"certificate": {},
	"portfolio":   {},
	"other":       {},
}

// Upload is a file received from a client.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// ProfileInput updates profile fields; nil leaves a field unchanged.
type ProfileInput struct {
	Headline *string
	Summary  *string
	Phone    *string
	Location *string
}

// EducationInput describes an education entry.
type EducationInput struct {
	Institution  string
	Degree       string
	FieldOfStudy string
	StartDate    *time.Time
	EndDate      *time.Time
	Description  string
}

// ExperienceInput describes an experience entry.
type ExperienceInput struct {
	Company     string
	Title       string
	Location    string
	StartDate   *time.Time
	EndDate     *time.Time
	Current     bool
	Description string
}

// DocumentView pairs a stored document with a download link.
type DocumentView struct {
	models.Document
	URL string `json:"url"`
}

// ProfileService manages a user's applicant profile and its sub-resources.
type ProfileService struct {
	db      *gorm.DB
	storage storage.Storage
}

// NewProfileService constructs a ProfileService. store may be nil, which
// disables document uploads.
func NewProfileService(db *gorm.DB, store storage.Storage) (*ProfileService, error) {
	if db == nil {
		return nil, errors.New("profile service: db is required")
	}
	return &ProfileService{db: db, storage: store}, nil
}

// Get returns the user's profile, creating an empty one on first access.
func (s *ProfileService) Get(ctx context.Context, userID string) (*models.Profile, error) {
	ctx = ensureContext(ctx)
	profile, err := ensureProfile(s.db.WithContext(ctx), userID)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).
		Preload("Educations", func(db *gorm.DB) *gorm.DB { return db.Order("start_date DESC") }).
		Preload("Experiences", func(db *gorm.DB) *gorm.DB { return db.Order("start_date DESC") }).
		Preload("Documents", func(db *gorm.DB) *gorm.DB { return db.Order("created_at DESC") }).
		First(profile, "id = ?", profile.ID).Error
	if err != nil {
		return nil, fmt.Errorf("profile service: load profile: %w", err)
	}
	return profile, nil
}

// Update applies the supplied profile fields.
func (s *ProfileService) Update(ctx context.Context, userID string, input ProfileInput) (*models.Profile, error) {
	ctx = ensureContext(ctx)
	profile, err := ensureProfile(s.db.WithContext(ctx), userID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Headline != nil {
		updates["headline"] = strings.TrimSpace(*input.Headline)
	}
	if input.Summary != nil {
		updates["summary"] = strings.TrimSpace(*input.Summary)
	}
	if input.Phone != nil {
		updates["phone"] = strings.TrimSpace(*input.Phone)
	}
	if input.Location != nil {
		updates["location"] = strings.TrimSpace(*input.Location)
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(profile).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("profile service: update profile: %w", err)
		}
	}
	return s.Get(ctx, userID)
}

// AddEducation appends an education entry.
func (s *ProfileService) AddEducation(ctx context.Context, userID string, input EducationInput) (*models.Education, error) {
	ctx = ensureContext(ctx)
	if err := validateEducation(input); err != nil {
		return nil, err
	}
	profile, err := ensureProfile(s.db.WithContext(ctx), userID)
	if err != nil {
		return nil, err
	}

	entry := models.Education{ProfileID: profile.ID}
	applyEducation(&entry, input)
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return nil, fmt.Errorf("profile service: create education: %w", err)
	}
	return &entry, nil
}

// UpdateEducation replaces an education entry the user owns.
func (s *ProfileService) UpdateEducation(ctx context.Context, userID, id string, input EducationInput) (*models.Education, error) {
	ctx = ensureContext(ctx)
	if err := validateEducation(input); err != nil {
		return nil, err
	}
	var entry models.Education
	if err := s.findOwned(ctx, userID, id, &entry); err != nil {
		return nil, err
	}
	applyEducation(&entry, input)
	if err := s.db.WithContext(ctx).Save(&entry).Error; err != nil {
		return nil, fmt.Errorf("profile service: update education: %w", err)
	}
	return &entry, nil
}

// DeleteEducation removes an education entry the user owns.
func (s *ProfileService) DeleteEducation(ctx context.Context, userID, id string) error {
	ctx = ensureContext(ctx)
	var entry models.Education
	if err := s.findOwned(ctx, userID, id, &entry); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Delete(&entry).Error
}

// AddExperience appends an experience entry.
func (s *ProfileService) AddExperience(ctx context.Context, userID string, input ExperienceInput) (*models.Experience, error) {
	ctx = ensureContext(ctx)
	if err := validateExperience(input); err != nil {
		return nil, err
	}
	profile, err := ensureProfile(s.db.WithContext(ctx), userID)
	if err != nil {
		return nil, err
	}

	entry := models.Experience{ProfileID: profile.ID}
	applyExperience(&entry, input)
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return nil, fmt.Errorf("profile service: create experience: %w", err)
	}
	return &entry, nil
}

// UpdateExperience replaces an experience entry the user owns.
func (s *ProfileService) UpdateExperience(ctx context.Context, userID, id string, input ExperienceInput) (*models.Experience, error) {
	ctx = ensureContext(ctx)
	if err := validateExperience(input); err != nil {
		return nil, err
	}
	var entry models.Experience
	if err := s.findOwned(ctx, userID, id, &entry); err != nil {
		return nil, err
	}
	applyExperience(&entry, input)
	if err := s.db.WithContext(ctx).Save(&entry).Error; err != nil {
		return nil, fmt.Errorf("profile service: update experience: %w", err)
	}
	return &entry, nil
}

// DeleteExperience removes an experience entry the user owns.
func (s *ProfileService) DeleteExperience(ctx context.Context, userID, id string) error {
	ctx = ensureContext(ctx)
	var entry models.Experience
	if err := s.findOwned(ctx, userID, id, &entry); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Delete(&entry).Error
}

// UploadDocument stores a file and attaches it to the profile.
func (s *ProfileService) UploadDocument(ctx context.Context, userID, kind string, upload Upload) (*DocumentView, error) {
	ctx = ensureContext(ctx)
	if s.storage == nil {
		return nil, appErrors.NewBadRequest("Document uploads are not enabled")
	}
	kind = strings.ToLower(strings.TrimSpace(defaultIfEmpty(kind, "other")))
	if _, ok := documentKinds[kind]; !ok {
		return nil, appErrors.NewValidation("Unknown document kind", map[string]string{"kind": "must be one of resume, certificate, portfolio, other"})
	}
	name := strings.TrimSpace(upload.Filename)
	if name == "" || upload.Body == nil {
		return nil, appErrors.NewValidation("A file is required", map[string]string{"file": "required"})
	}

	profile, err := ensureProfile(s.db.WithContext(ctx), userID)
	if err != nil {
		return nil, err
	}

	key := storage.NewKey("documents/"+profile.ID, name)
	if err := s.storage.Save(ctx, key, upload.Body, upload.ContentType); err != nil {
		return nil, fmt.Errorf("profile service: store document: %w", err)
	}

	doc := models.Document{
		ProfileID:   profile.ID,
		Name:        name,
		Kind:        kind,
		StorageKey:  key,
		ContentType: upload.ContentType,
		Size:        upload.Size,
	}
	if err := s.db.WithContext(ctx).Create(&doc).Error; err != nil {
		_ = s.storage.Delete(ctx, key)
		return nil, fmt.Errorf("profile service: create document: %w", err)
	}
	return s.documentView(ctx, doc)
}

// ListDocuments returns the user's documents with download links.
func (s *ProfileService) ListDocuments(ctx context.Context, userID string) ([]DocumentView, error) {
	ctx = ensureContext(ctx)
	profile, err := ensureProfile(s.db.WithContext(ctx), userID)
	if err != nil {
		return nil, err
	}

	var docs []models.Document
	if err := s.db.WithContext(ctx).Where("profile_id = ?", profile.ID).Order("created_at DESC").Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("profile service: list documents: %w", err)
	}

	views := make([]DocumentView, 0, len(docs))
	for _, doc := range docs {
		view, err := s.documentView(ctx, doc)
		if err != nil {
			return nil, err
		}
		views = append(views, *view)
	}
	return views, nil
}

// DeleteDocument removes a document row and its stored object.
func (s *ProfileService) DeleteDocument(ctx context.Context, userID, id string) error {
	ctx = ensureContext(ctx)
	var doc models.Document
	if err := s.findOwned(ctx, userID, id, &doc); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(&doc).Error; err != nil {
		return fmt.Errorf("profile service: delete document: %w", err)
	}
	if s.storage != nil {
		if err := s.storage.Delete(ctx, doc.StorageKey); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
			return fmt.Errorf("profile service: delete object: %w", err)
		}
	}
	return nil
}

func (s *ProfileService) documentView(ctx context.Context, doc models.Document) (*DocumentView, error) {
	view := &DocumentView{Document: doc}
	if s.storage == nil {
		return view, nil
	}
	url, err := s.storage.URL(ctx, doc.StorageKey, documentURLExpiry)
	if err != nil {
		return nil, fmt.Errorf("profile service: document url: %w", err)
	}
	view.URL = url
	return view, nil
}

// findOwned loads a profile sub-resource by id when it belongs to the user.
func (s *ProfileService) findOwned(ctx context.Context, userID, id string, dest any) error {
	err := s.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(id)).
		Where("profile_id IN (?)", s.db.Model(&models.Profile{}).Select("id").Where("user_id = ?", userID)).
		Take(dest).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if _, ok := dest.(*models.Document); ok {
				return ErrDocumentNotFound
			}
			return appErrors.ErrNotFound
		}
		return fmt.Errorf("profile service: load entry: %w", err)
	}
	return nil
}

// ensureProfile returns the user's profile, creating it when missing.
func ensureProfile(db *gorm.DB, userID string) (*models.Profile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrProfileNotFound
	}

	var stored models.Profile
	err := db.Where("user_id = ?", userID).Take(&stored).Error
	if err == nil {
		return &stored, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("profile service: load profile: %w", err)
	}

	profile := models.Profile{UserID: userID}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&profile).Error; err != nil {
		return nil, fmt.Errorf("profile service: create profile: %w", err)
	}
	if err := db.Where("user_id = ?", userID).Take(&stored).Error; err != nil {
		return nil, fmt.Errorf("profile service: load profile: %w", err)
	}
	return &stored, nil
}

func validateEducation(input EducationInput) error {
	fields := map[string]string{}
	if strings.TrimSpace(input.Institution) == "" {
		fields["institution"] = "required"
	}
	if input.StartDate != nil && input.EndDate != nil && input.EndDate.Before(*input.StartDate) {
		fields["end_date"] = "must not be before start_date"
	}
	if len(fields) > 0 {
		return appErrors.NewValidation("Invalid education entry", fields)
	}
	return nil
}

func validateExperience(input ExperienceInput) error {
	fields := map[string]string{}
	if strings.TrimSpace(input.Company) == "" {
		fields["company"] = "required"
	}
	if strings.TrimSpace(input.Title) == "" {
		fields["title"] = "required"
	}
	if input.StartDate != nil && input.EndDate != nil && input.EndDate.Before(*input.StartDate) {
		fields["end_date"] = "must not be before start_date"
	}
	if input.Current && input.EndDate != nil {
		fields["end_date"] = "must be empty for a current position"
	}
	if len(fields) > 0 {
		return appErrors.NewValidation("Invalid experience entry", fields)
	}
	return nil
}

func applyEducation(entry *models.Education, input EducationInput) {
	entry.Institution = strings.TrimSpace(input.Institution)
	entry.Degree = strings.TrimSpace(input.Degree)
	entry.FieldOfStudy = strings.TrimSpace(input.FieldOfStudy)
	entry.StartDate = input.StartDate
	entry.EndDate = input.EndDate
	entry.Description = strings.TrimSpace(input.Description)
}

func applyExperience(entry *models.Experience, input ExperienceInput) {
	entry.Company = strings.TrimSpace(input.Company)
	entry.Title = strings.TrimSpace(input.Title)
	entry.Location = strings.TrimSpace(input.Location)
	entry.StartDate = input.StartDate
	entry.EndDate = input.EndDate
	entry.Current = input.Current
	entry.Description = strings.TrimSpace(input.Description)
}
