package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/jobboard/internal/models"
	appErrors "github.com/charlesng35/jobboard/pkg/errors"
	"github.com/charlesng35/jobboard/pkg/logger"
)

// JobInput describes the editable job fields.
type JobInput struct {
	CompanyID      string
	Title          string
	Description    string
	Location       string
	EmploymentType string
	SalaryMin      *int
	SalaryMax      *int
	Status         models.JobStatus
}

// JobFilters narrows job listings.
type JobFilters struct {
	ListOptions
	Search         string
	Location       string
	CompanyID      string
	EmploymentType string
	Status         models.JobStatus
}

// CancelResult reports a job cancellation and its cascade.
type CancelResult struct {
	Job      *models.Job `json:"job"`
	Rejected int         `json:"rejected_applications"`
}

// JobOption customises the JobService.
type JobOption func(*JobService)

// WithJobClock injects a custom time source.
func WithJobClock(clock func() time.Time) JobOption {
	return func(s *JobService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithJobAudit records cancellations.
func WithJobAudit(audit *AuditService) JobOption {
	return func(s *JobService) {
		s.audit = audit
	}
}

// JobService manages job listings.
type JobService struct {
	db           *gorm.DB
	applications *ApplicationService
	audit        *AuditService
	now          func() time.Time
	log          *zap.Logger
}

// NewJobService constructs a JobService. applications runs the cancel cascade.
func NewJobService(db *gorm.DB, applications *ApplicationService, opts ...JobOption) (*JobService, error) {
	if db == nil {
		return nil, errors.New("job service: db is required")
	}
	if applications == nil {
		return nil, errors.New("job service: application service is required")
	}
	svc := &JobService{
		db:           db,
		applications: applications,
		now:          time.Now,
		log:          logger.WithModule("jobs"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Create adds a job under a company the admin manages.
func (s *JobService) Create(ctx context.Context, scope AdminScope, input JobInput) (*models.Job, error) {
	ctx = ensureContext(ctx)
	if input.Status == "" {
		input.Status = models.JobOpen
	}
	if err := validateJob(input); err != nil {
		return nil, err
	}

	var company models.Company
	err := scope.companies(s.db.WithContext(ctx).Model(&models.Company{})).
		Where("companies.id = ?", strings.TrimSpace(input.CompanyID)).
		Take(&company).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCompanyNotFound
		}
		return nil, fmt.Errorf("job service: load company: %w", err)
	}

	job := models.Job{CompanyID: company.ID}
	applyJob(&job, input)
	if err := s.db.WithContext(ctx).Create(&job).Error; err != nil {
		return nil, fmt.Errorf("job service: create job: %w", err)
	}
	job.Company = &company
	return &job, nil
}

// Get returns a job the admin manages.
func (s *JobService) Get(ctx context.Context, scope AdminScope, id string) (*models.Job, error) {
	ctx = ensureContext(ctx)
	var job models.Job
	err := scope.jobs(s.db.WithContext(ctx).Model(&models.Job{})).
		Preload("Company").
		Where("jobs.id = ?", strings.TrimSpace(id)).
		Take(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("job service: load job: %w", err)
	}
	return &job, nil
}

// List returns the jobs the admin manages.
func (s *JobService) List(ctx context.Context, scope AdminScope, filters JobFilters) ([]models.Job, int64, error) {
	ctx = ensureContext(ctx)
	query := scope.jobs(s.db.WithContext(ctx).Model(&models.Job{}))
	return s.list(query, filters)
}

// ListPublic returns open jobs for anonymous browsing.
func (s *JobService) ListPublic(ctx context.Context, filters JobFilters) ([]models.Job, int64, error) {
	ctx = ensureContext(ctx)
	filters.Status = models.JobOpen
	return s.list(s.db.WithContext(ctx).Model(&models.Job{}), filters)
}

// GetPublic returns a job unless it was cancelled.
func (s *JobService) GetPublic(ctx context.Context, id string) (*models.Job, error) {
	ctx = ensureContext(ctx)
	var job models.Job
	err := s.db.WithContext(ctx).
		Preload("Company").
		Where("id = ? AND status <> ?", strings.TrimSpace(id), models.JobCancelled).
		Take(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("job service: load job: %w", err)
	}
	return &job, nil
}

// Update replaces the editable fields of a job. Cancellation goes through
// Cancel so the cascade runs.
func (s *JobService) Update(ctx context.Context, scope AdminScope, id string, input JobInput) (*models.Job, error) {
	ctx = ensureContext(ctx)
	job, err := s.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if input.Status == "" {
		input.Status = job.Status
	}
	if err := validateJob(input); err != nil {
		return nil, err
	}
	if job.Status == models.JobCancelled {
		return nil, ErrJobNotOpen.WithMessage("Cancelled jobs cannot be edited")
	}
	if input.Status == models.JobCancelled {
		return nil, appErrors.NewValidation("Use the cancel action to cancel a job", map[string]string{"status": "use the cancel action"})
	}

	applyJob(job, input)
	err = s.db.WithContext(ctx).Model(job).Select(
		"title", "description", "location", "employment_type", "salary_min", "salary_max", "status",
	).Updates(job).Error
	if err != nil {
		return nil, fmt.Errorf("job service: update job: %w", err)
	}
	return job, nil
}

// Delete removes a job with its applications and favorites.
func (s *JobService) Delete(ctx context.Context, scope AdminScope, id string) error {
	ctx = ensureContext(ctx)
	job, err := s.Get(ctx, scope, id)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		appIDs := tx.Model(&models.Application{}).Select("id").Where("job_id = ?", job.ID)
		if err := tx.Where("application_id IN (?)", appIDs).Delete(&models.ApplicationStatusHistory{}).Error; err != nil {
			return fmt.Errorf("job service: delete history: %w", err)
		}
		if err := tx.Where("job_id = ?", job.ID).Delete(&models.Application{}).Error; err != nil {
			return fmt.Errorf("job service: delete applications: %w", err)
		}
		if err := tx.Where("job_id = ?", job.ID).Delete(&models.Favorite{}).Error; err != nil {
			return fmt.Errorf("job service: delete favorites: %w", err)
		}
		if err := tx.Delete(&models.Job{}, "id = ?", job.ID).Error; err != nil {
			return fmt.Errorf("job service: delete job: %w", err)
		}
		return nil
	})
}

// Cancel marks a job cancelled and rejects its in-flight applications in the
// same transaction. Applicants are notified after commit.
func (s *JobService) Cancel(ctx context.Context, scope AdminScope, actor Actor, id string) (*CancelResult, error) {
	ctx = ensureContext(ctx)
	job, err := s.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}

	var rejected []string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var locked models.Job
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", job.ID).Take(&locked).Error; err != nil {
			return fmt.Errorf("job service: lock job: %w", err)
		}
		if locked.Status == models.JobCancelled {
			return ErrJobNotOpen.WithMessage("Job is already cancelled")
		}

		now := s.now().UTC()
		if err := tx.Model(&locked).Updates(map[string]any{
			"status":       models.JobCancelled,
			"cancelled_at": now,
		}).Error; err != nil {
			return fmt.Errorf("job service: cancel job: %w", err)
		}

		var err error
		rejected, err = s.applications.cascadeReject(tx, job.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	recordAudit(s.audit, ctx, AuditEntry{
		Actor:      actor,
		Action:     AuditActionJobCancel,
		Resource:   AuditResourceJob,
		ResourceID: job.ID,
		Result:     AuditResultSuccess,
		Metadata:   map[string]any{"rejected_applications": len(rejected)},
	})
	s.log.Info("job cancelled", zap.String("job_id", job.ID), zap.Int("rejected", len(rejected)))
	s.applications.notifyAll(ctx, rejected)

	cancelled, err := s.Get(ctx, scope, job.ID)
	if err != nil {
		return nil, err
	}
	return &CancelResult{Job: cancelled, Rejected: len(rejected)}, nil
}

func (s *JobService) list(query *gorm.DB, filters JobFilters) ([]models.Job, int64, error) {
	_, perPage, offset := filters.normalise()

	if term := strings.TrimSpace(filters.Search); term != "" {
		pattern := likePattern(term)
		query = query.Where("(LOWER(jobs.title) LIKE ? OR LOWER(jobs.description) LIKE ?)", pattern, pattern)
	}
	if location := strings.TrimSpace(filters.Location); location != "" {
		query = query.Where("LOWER(jobs.location) LIKE ?", likePattern(location))
	}
	if companyID := strings.TrimSpace(filters.CompanyID); companyID != "" {
		query = query.Where("jobs.company_id = ?", companyID)
	}
	if kind := strings.TrimSpace(filters.EmploymentType); kind != "" {
		query = query.Where("jobs.employment_type = ?", kind)
	}
	if filters.Status != "" {
		query = query.Where("jobs.status = ?", filters.Status)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("job service: count jobs: %w", err)
	}

	var jobs []models.Job
	err := query.Preload("Company").
		Order("jobs.created_at DESC").
		Offset(offset).
		Limit(perPage).
		Find(&jobs).Error
	if err != nil {
		return nil, 0, fmt.Errorf("job service: list jobs: %w", err)
	}
	return jobs, total, nil
}

func validateJob(input JobInput) error {
	fields := map[string]string{}
	if strings.TrimSpace(input.Title) == "" {
		fields["title"] = "required"
	}
	if !input.Status.Valid() {
		fields["status"] = "must be open, closed or cancelled"
	}
	if input.SalaryMin != nil && *input.SalaryMin < 0 {
		fields["salary_min"] = "must not be negative"
	}
	if input.SalaryMin != nil && input.SalaryMax != nil && *input.SalaryMax < *input.SalaryMin {
		fields["salary_max"] = "must not be below salary_min"
	}
	if len(fields) > 0 {
		return appErrors.NewValidation("Invalid job", fields)
	}
	return nil
}

func applyJob(job *models.Job, input JobInput) {
	job.Title = strings.TrimSpace(input.Title)
	job.Description = strings.TrimSpace(input.Description)
	job.Location = strings.TrimSpace(input.Location)
	job.EmploymentType = strings.ToLower(strings.TrimSpace(input.EmploymentType))
	job.SalaryMin = input.SalaryMin
	job.SalaryMax = input.SalaryMax
	job.Status = input.Status
}
