package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/jobboard/internal/models"
)

// Audit actions recorded by the services.
const (
	AuditActionRegister      = "auth.register"
	AuditActionLogin         = "auth.login"
	AuditActionSocialLogin   = "auth.social_login"
	AuditActionEmailVerified = "auth.email_verified"
	AuditActionPasswordReset = "auth.password_reset"
	AuditActionTransition    = "application.transition"
	AuditActionRestore       = "application.restore"
	AuditActionReject        = "application.reject"
	AuditActionJobCancel     = "job.cancel"
	AuditResultSuccess       = "success"
	AuditResultFailure       = "failure"
	AuditResourceApplication = "applications"
	AuditResourceJob         = "jobs"
	AuditResourceAccount     = "accounts"
)

// Actor identifies who performed an audited action.
type Actor struct {
	Kind      models.PrincipalKind
	ID        string
	Email     string
	IPAddress string
	UserAgent string
}

// AuditEntry captures a single audit event to persist.
type AuditEntry struct {
	Actor      Actor
	Action     string
	Resource   string
	ResourceID string
	Result     string
	Metadata   map[string]any
}

// AuditFilters encapsulates optional filters when querying audit logs.
type AuditFilters struct {
	ActorID    string
	Action     string
	Result     string
	Resource   string
	ResourceID string
	Since      *time.Time
	Until      *time.Time
}

// AuditListOptions controls pagination and filtering for audit queries.
type AuditListOptions struct {
	ListOptions
	Filters AuditFilters
}

// AuditOption customises the AuditService.
type AuditOption func(*AuditService)

// WithAuditClock injects a custom time source.
func WithAuditClock(clock func() time.Time) AuditOption {
	return func(s *AuditService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// AuditService persists and retrieves audit log entries.
type AuditService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewAuditService constructs an AuditService using the provided database handle.
func NewAuditService(db *gorm.DB, opts ...AuditOption) (*AuditService, error) {
	if db == nil {
		return nil, errors.New("audit service: db is required")
	}
	svc := &AuditService{db: db, now: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Log stores an audit entry.
func (s *AuditService) Log(ctx context.Context, entry AuditEntry) error {
	ctx = ensureContext(ctx)

	if strings.TrimSpace(entry.Action) == "" {
		return errors.New("audit service: action is required")
	}
	if strings.TrimSpace(entry.Result) == "" {
		return errors.New("audit service: result is required")
	}

	now := s.now().UTC()
	record := models.AuditLog{
		BaseModel:  models.BaseModel{CreatedAt: now, UpdatedAt: now},
		ActorKind:  entry.Actor.Kind,
		ActorEmail: normaliseEmail(entry.Actor.Email),
		Action:     strings.TrimSpace(entry.Action),
		Resource:   strings.TrimSpace(entry.Resource),
		ResourceID: strings.TrimSpace(entry.ResourceID),
		Result:     strings.TrimSpace(entry.Result),
		IPAddress:  strings.TrimSpace(entry.Actor.IPAddress),
		UserAgent:  strings.TrimSpace(entry.Actor.UserAgent),
		Metadata:   encodeJSON(entry.Metadata),
	}
	if id := strings.TrimSpace(entry.Actor.ID); id != "" {
		record.ActorID = &id
	}

	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("audit service: create log: %w", err)
	}
	return nil
}

// List returns paginated audit logs ordered by creation time descending.
func (s *AuditService) List(ctx context.Context, opts AuditListOptions) ([]models.AuditLog, int64, error) {
	ctx = ensureContext(ctx)
	_, perPage, offset := opts.normalise()

	var (
		results []models.AuditLog
		total   int64
	)

	query := applyAuditFilters(s.db.WithContext(ctx).Model(&models.AuditLog{}), opts.Filters)
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("audit service: count logs: %w", err)
	}

	if err := query.
		Order("created_at DESC").
		Offset(offset).
		Limit(perPage).
		Find(&results).Error; err != nil {
		return nil, 0, fmt.Errorf("audit service: list logs: %w", err)
	}

	return results, total, nil
}

// CleanupOlderThan removes audit logs older than the supplied retention window (in days).
func (s *AuditService) CleanupOlderThan(ctx context.Context, retentionDays int) (int64, error) {
	ctx = ensureContext(ctx)

	if retentionDays <= 0 {
		return 0, errors.New("audit service: retentionDays must be positive")
	}

	cutoff := s.now().UTC().AddDate(0, 0, -retentionDays)

	result := s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.AuditLog{})
	if result.Error != nil {
		return 0, fmt.Errorf("audit service: cleanup logs: %w", result.Error)
	}

	return result.RowsAffected, nil
}

func applyAuditFilters(query *gorm.DB, filters AuditFilters) *gorm.DB {
	if filters.ActorID != "" {
		query = query.Where("actor_id = ?", filters.ActorID)
	}
	if filters.Action != "" {
		query = query.Where("action = ?", filters.Action)
	}
	if filters.Result != "" {
		query = query.Where("result = ?", filters.Result)
	}
	if filters.Resource != "" {
		query = query.Where("resource = ?", filters.Resource)
	}
	if filters.ResourceID != "" {
		query = query.Where("resource_id = ?", filters.ResourceID)
	}
	if filters.Since != nil {
		query = query.Where("created_at >= ?", *filters.Since)
	}
	if filters.Until != nil {
		query = query.Where("created_at <= ?", *filters.Until)
	}
	return query
}
