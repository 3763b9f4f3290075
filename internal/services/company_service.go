package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/charlesng35/jobboard/internal/models"
	appErrors "github.com/charlesng35/jobboard/pkg/errors"
)

// CompanyInput describes the editable company fields.
type CompanyInput struct {
	Name        string
	Description string
	Website     string
	Location    string
	LogoURL     string
}

// CompanyService manages companies owned by admins.
type CompanyService struct {
	db *gorm.DB
}

// NewCompanyService constructs a CompanyService.
func NewCompanyService(db *gorm.DB) (*CompanyService, error) {
	if db == nil {
		return nil, errors.New("company service: db is required")
	}
	return &CompanyService{db: db}, nil
}

// Create registers a company owned by the scope's admin.
func (s *CompanyService) Create(ctx context.Context, scope AdminScope, input CompanyInput) (*models.Company, error) {
	ctx = ensureContext(ctx)
	if err := validateCompany(input); err != nil {
		return nil, err
	}
	if strings.TrimSpace(scope.AdminID) == "" {
		return nil, appErrors.ErrForbidden
	}

	company := models.Company{AdminID: scope.AdminID}
	applyCompany(&company, input)
	if err := s.db.WithContext(ctx).Create(&company).Error; err != nil {
		return nil, fmt.Errorf("company service: create company: %w", err)
	}
	return &company, nil
}

// Get returns a company inside the scope.
func (s *CompanyService) Get(ctx context.Context, scope AdminScope, id string) (*models.Company, error) {
	ctx = ensureContext(ctx)
	var company models.Company
	err := scope.companies(s.db.WithContext(ctx).Model(&models.Company{})).
		Where("companies.id = ?", strings.TrimSpace(id)).
		Take(&company).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCompanyNotFound
		}
		return nil, fmt.Errorf("company service: load company: %w", err)
	}
	return &company, nil
}

// List returns the companies in scope ordered by name.
func (s *CompanyService) List(ctx context.Context, scope AdminScope, opts ListOptions) ([]models.Company, int64, error) {
	ctx = ensureContext(ctx)
	_, perPage, offset := opts.normalise()

	query := scope.companies(s.db.WithContext(ctx).Model(&models.Company{}))

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("company service: count companies: %w", err)
	}

	var companies []models.Company
	if err := query.Order("name ASC").Offset(offset).Limit(perPage).Find(&companies).Error; err != nil {
		return nil, 0, fmt.Errorf("company service: list companies: %w", err)
	}
	return companies, total, nil
}

// Update replaces the editable fields of a company in scope.
func (s *CompanyService) Update(ctx context.Context, scope AdminScope, id string, input CompanyInput) (*models.Company, error) {
	ctx = ensureContext(ctx)
	if err := validateCompany(input); err != nil {
		return nil, err
	}
	company, err := s.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	applyCompany(company, input)
	if err := s.db.WithContext(ctx).Save(company).Error; err != nil {
		return nil, fmt.Errorf("company service: update company: %w", err)
	}
	return company, nil
}

// Delete removes a company in scope together with its jobs and applications.
func (s *CompanyService) Delete(ctx context.Context, scope AdminScope, id string) error {
	ctx = ensureContext(ctx)
	company, err := s.Get(ctx, scope, id)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		jobIDs := tx.Model(&models.Job{}).Select("id").Where("company_id = ?", company.ID)
		appIDs := tx.Model(&models.Application{}).Select("id").Where("job_id IN (?)", jobIDs)
		if err := tx.Where("application_id IN (?)", appIDs).Delete(&models.ApplicationStatusHistory{}).Error; err != nil {
			return fmt.Errorf("company service: delete history: %w", err)
		}
		if err := tx.Where("job_id IN (?)", jobIDs).Delete(&models.Application{}).Error; err != nil {
			return fmt.Errorf("company service: delete applications: %w", err)
		}
		if err := tx.Where("job_id IN (?)", jobIDs).Delete(&models.Favorite{}).Error; err != nil {
			return fmt.Errorf("company service: delete favorites: %w", err)
		}
		if err := tx.Where("company_id = ?", company.ID).Delete(&models.Job{}).Error; err != nil {
			return fmt.Errorf("company service: delete jobs: %w", err)
		}
		if err := tx.Delete(company).Error; err != nil {
			return fmt.Errorf("company service: delete company: %w", err)
		}
		return nil
	})
}

func validateCompany(input CompanyInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return appErrors.NewValidation("Invalid company", map[string]string{"name": "required"})
	}
	return nil
}

func applyCompany(company *models.Company, input CompanyInput) {
	company.Name = strings.TrimSpace(input.Name)
	company.Description = strings.TrimSpace(input.Description)
	company.Website = strings.TrimSpace(input.Website)
	company.Location = strings.TrimSpace(input.Location)
	company.LogoURL = strings.TrimSpace(input.LogoURL)
}
