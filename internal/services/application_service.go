package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/jobboard/internal/models"
	"github.com/charlesng35/jobboard/internal/workflow"
	appErrors "github.com/charlesng35/jobboard/pkg/errors"
	"github.com/charlesng35/jobboard/pkg/logger"
	"github.com/charlesng35/jobboard/pkg/metrics"
	"github.com/charlesng35/jobboard/pkg/storage"
)

// Feedback notes written by the system on administrative overrides.
const (
	DefaultFeedback   = "No feedback provided."
	NoteRestored      = "restored by admin"
	NoteRejected      = "rejected by admin"
	NoteJobCancelled  = "job was cancelled"
	MaxFeedbackLength = 500
)

// HistoryEntry is one row of an application's status log.
type HistoryEntry struct {
	Sequence  int             `json:"sequence"`
	Status    workflow.Status `json:"status"`
	Feedback  string          `json:"feedback"`
	CreatedAt time.Time       `json:"created_at"`
}

// ApplicationView is the read model returned to both admins and applicants.
type ApplicationView struct {
	ID          string          `json:"id"`
	JobID       string          `json:"job_id"`
	JobTitle    string          `json:"job_title"`
	CompanyID   string          `json:"company_id"`
	CompanyName string          `json:"company_name"`
	ProfileID   string          `json:"profile_id"`
	UserID      string          `json:"user_id"`
	UserName    string          `json:"user_name"`
	UserEmail   string          `json:"user_email"`
	CoverLetter string          `json:"cover_letter"`
	ResumePath  string          `json:"resume_path,omitempty"`
	Status      workflow.Status `json:"status"`
	History     []HistoryEntry  `json:"history"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ApplicationEvent describes a committed status change.
type ApplicationEvent struct {
	ApplicationID string
	UserID        string
	UserName      string
	UserEmail     string
	JobID         string
	JobTitle      string
	Status        workflow.Status
	Feedback      string
}

// ApplicationNotifier is told about committed status changes. Delivery is
// best effort and never affects the transition outcome.
type ApplicationNotifier interface {
	ApplicationStatusChanged(ctx context.Context, event ApplicationEvent)
}

// ApplyInput carries a new application from a user.
type ApplyInput struct {
	CoverLetter string
	Resume      *Upload
}

// ApplicationOption customises the ApplicationService.
type ApplicationOption func(*ApplicationService)

// WithApplicationClock injects a custom time source.
func WithApplicationClock(clock func() time.Time) ApplicationOption {
	return func(s *ApplicationService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithApplicationNotifier registers the status change notifier.
func WithApplicationNotifier(notifier ApplicationNotifier) ApplicationOption {
	return func(s *ApplicationService) {
		s.notifier = notifier
	}
}

// WithApplicationAudit records administrative overrides.
func WithApplicationAudit(audit *AuditService) ApplicationOption {
	return func(s *ApplicationService) {
		s.audit = audit
	}
}

// WithApplicationStorage enables résumé uploads.
func WithApplicationStorage(store storage.Storage) ApplicationOption {
	return func(s *ApplicationService) {
		s.storage = store
	}
}

// ApplicationService owns job applications and their status workflow.
type ApplicationService struct {
	db       *gorm.DB
	notifier ApplicationNotifier
	audit    *AuditService
	storage  storage.Storage
	now      func() time.Time
	log      *zap.Logger
}

// NewApplicationService constructs an ApplicationService.
func NewApplicationService(db *gorm.DB, opts ...ApplicationOption) (*ApplicationService, error) {
	if db == nil {
		return nil, errors.New("application service: db is required")
	}
	svc := &ApplicationService{
		db:  db,
		now: time.Now,
		log: logger.WithModule("applications"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// decision picks the target status and history note for the current status.
type decision func(current workflow.Status) (workflow.Status, string, error)

// RequestTransition moves an application along the workflow table.
func (s *ApplicationService) RequestTransition(ctx context.Context, scope AdminScope, actor Actor, applicationID string, target workflow.Status, feedback string) (*ApplicationView, error) {
	if !target.Valid() {
		return nil, appErrors.NewValidation("Unknown application status", map[string]string{"status": "must be a known application status"})
	}
	feedback = strings.TrimSpace(feedback)
	if utf8.RuneCountInString(feedback) > MaxFeedbackLength {
		return nil, ErrFeedbackTooLong
	}

	return s.apply(ctx, scope, actor, applicationID, AuditActionTransition, func(current workflow.Status) (workflow.Status, string, error) {
		var terr *workflow.TransitionError
		if err := workflow.Check(current, target); errors.As(err, &terr) {
			return "", "", invalidTransition(terr)
		}
		return target, defaultIfEmpty(feedback, DefaultFeedback), nil
	})
}

// Restore returns a rejected application to submitted.
func (s *ApplicationService) Restore(ctx context.Context, scope AdminScope, actor Actor, applicationID string) (*ApplicationView, error) {
	return s.apply(ctx, scope, actor, applicationID, AuditActionRestore, func(current workflow.Status) (workflow.Status, string, error) {
		if !current.CanRestore() {
			return "", "", ErrApplicationNotFound
		}
		return workflow.StatusSubmitted, NoteRestored, nil
	})
}

// Reject force-rejects an application from any status but rejected.
func (s *ApplicationService) Reject(ctx context.Context, scope AdminScope, actor Actor, applicationID string) (*ApplicationView, error) {
	return s.apply(ctx, scope, actor, applicationID, AuditActionReject, func(current workflow.Status) (workflow.Status, string, error) {
		if !current.CanReject() {
			return "", "", invalidTransition(&workflow.TransitionError{
				Current: current,
				Target:  workflow.StatusRejected,
				Allowed: current.AllowedNext(),
			})
		}
		return workflow.StatusRejected, NoteRejected, nil
	})
}

// CascadeRejectForCancelledJob rejects every non-terminal application of a
// job. With a nil tx it runs in its own transaction and notifies applicants
// afterwards; otherwise the caller owns the transaction and notification.
func (s *ApplicationService) CascadeRejectForCancelledJob(ctx context.Context, tx *gorm.DB, jobID string) (int, error) {
	ctx = ensureContext(ctx)
	if tx != nil {
		ids, err := s.cascadeReject(tx, jobID)
		return len(ids), err
	}

	var ids []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		ids, err = s.cascadeReject(tx, jobID)
		return err
	})
	if err != nil {
		return 0, err
	}
	s.notifyAll(ctx, ids)
	return len(ids), nil
}

// Get returns an application visible to the admin.
func (s *ApplicationService) Get(ctx context.Context, scope AdminScope, applicationID string) (*ApplicationView, error) {
	ctx = ensureContext(ctx)
	if _, err := s.findScoped(s.db.WithContext(ctx), scope, applicationID, false); err != nil {
		return nil, err
	}
	return s.loadView(ctx, applicationID)
}

// ListForJob lists the applications of a job the admin manages.
func (s *ApplicationService) ListForJob(ctx context.Context, scope AdminScope, jobID string, status workflow.Status, opts ListOptions) ([]ApplicationView, int64, error) {
	ctx = ensureContext(ctx)

	var job models.Job
	if err := scope.jobs(s.db.WithContext(ctx).Model(&models.Job{})).Where("jobs.id = ?", jobID).Take(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, ErrJobNotFound
		}
		return nil, 0, fmt.Errorf("application service: load job: %w", err)
	}

	query := s.db.WithContext(ctx).Model(&models.Application{}).Where("job_id = ?", job.ID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	return s.list(query, opts)
}

// Apply creates a pending application of the user's profile to an open job.
func (s *ApplicationService) Apply(ctx context.Context, userID, jobID string, input ApplyInput) (*ApplicationView, error) {
	ctx = ensureContext(ctx)

	var job models.Job
	if err := s.db.WithContext(ctx).Where("id = ?", strings.TrimSpace(jobID)).Take(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("application service: load job: %w", err)
	}
	if job.Status != models.JobOpen {
		return nil, ErrJobNotOpen
	}

	profile, err := ensureProfile(s.db.WithContext(ctx), userID)
	if err != nil {
		return nil, err
	}

	resumePath := ""
	if input.Resume != nil {
		if s.storage == nil {
			return nil, appErrors.NewBadRequest("Résumé uploads are not enabled")
		}
		resumePath = storage.NewKey("resumes/"+profile.ID, input.Resume.Filename)
		if err := s.storage.Save(ctx, resumePath, input.Resume.Body, input.Resume.ContentType); err != nil {
			return nil, fmt.Errorf("application service: store resume: %w", err)
		}
	}

	app := models.Application{
		JobID:       job.ID,
		ProfileID:   profile.ID,
		CoverLetter: strings.TrimSpace(input.CoverLetter),
		ResumePath:  resumePath,
		Status:      workflow.Initial,
	}
	if err := s.db.WithContext(ctx).Create(&app).Error; err != nil {
		if resumePath != "" {
			_ = s.storage.Delete(ctx, resumePath)
		}
		if isUniqueConstraintError(err) {
			return nil, ErrAlreadyApplied
		}
		return nil, fmt.Errorf("application service: create application: %w", err)
	}

	return s.loadView(ctx, app.ID)
}

// ListMine lists the user's own applications, newest first.
func (s *ApplicationService) ListMine(ctx context.Context, userID string, opts ListOptions) ([]ApplicationView, int64, error) {
	ctx = ensureContext(ctx)
	query := s.db.WithContext(ctx).Model(&models.Application{}).
		Where("profile_id IN (?)", s.db.Model(&models.Profile{}).Select("id").Where("user_id = ?", userID))
	return s.list(query, opts)
}

// GetMine returns one of the user's own applications.
func (s *ApplicationService) GetMine(ctx context.Context, userID, applicationID string) (*ApplicationView, error) {
	ctx = ensureContext(ctx)
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Application{}).
		Where("id = ?", applicationID).
		Where("profile_id IN (?)", s.db.Model(&models.Profile{}).Select("id").Where("user_id = ?", userID)).
		Count(&count).Error
	if err != nil {
		return nil, fmt.Errorf("application service: load application: %w", err)
	}
	if count == 0 {
		return nil, ErrApplicationNotFound
	}
	return s.loadView(ctx, applicationID)
}

func (s *ApplicationService) apply(ctx context.Context, scope AdminScope, actor Actor, applicationID, action string, decide decision) (*ApplicationView, error) {
	ctx = ensureContext(ctx)

	var from, to workflow.Status
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		app, err := s.findScoped(tx, scope, applicationID, true)
		if err != nil {
			return err
		}
		current, lastSeq, err := currentStatus(tx, app.ID)
		if err != nil {
			return err
		}
		target, note, err := decide(current)
		if err != nil {
			return err
		}
		from, to = current, target
		return s.appendStatus(tx, app, lastSeq, target, note)
	})
	if err != nil {
		return nil, err
	}

	metrics.ApplicationTransitions.WithLabelValues(string(from), string(to)).Inc()
	recordAudit(s.audit, ctx, AuditEntry{
		Actor:      actor,
		Action:     action,
		Resource:   AuditResourceApplication,
		ResourceID: applicationID,
		Result:     AuditResultSuccess,
		Metadata:   map[string]any{"from": from, "to": to},
	})

	view, err := s.loadView(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, view)
	return view, nil
}

func (s *ApplicationService) cascadeReject(tx *gorm.DB, jobID string) ([]string, error) {
	terminal := []workflow.Status{}
	for _, status := range workflow.All() {
		if status.Terminal() {
			terminal = append(terminal, status)
		}
	}

	var apps []models.Application
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("job_id = ? AND status NOT IN ?", jobID, terminal).
		Order("created_at ASC").
		Find(&apps).Error
	if err != nil {
		return nil, fmt.Errorf("application service: load job applications: %w", err)
	}

	var rejected []string
	for i := range apps {
		app := &apps[i]
		current, lastSeq, err := currentStatus(tx, app.ID)
		if err != nil {
			return nil, err
		}
		if current.Terminal() {
			continue
		}
		if err := s.appendStatus(tx, app, lastSeq, workflow.StatusRejected, NoteJobCancelled); err != nil {
			return nil, err
		}
		metrics.ApplicationTransitions.WithLabelValues(string(current), string(workflow.StatusRejected)).Inc()
		rejected = append(rejected, app.ID)
	}
	return rejected, nil
}

// appendStatus writes the new status and its history row. Both statements
// run on tx, so they commit or roll back together.
func (s *ApplicationService) appendStatus(tx *gorm.DB, app *models.Application, lastSeq int, target workflow.Status, note string) error {
	now := s.now().UTC()

	res := tx.Model(&models.Application{}).
		Where("id = ? AND version = ?", app.ID, app.Version).
		Updates(map[string]any{
			"status":     target,
			"version":    gorm.Expr("version + 1"),
			"updated_at": now,
		})
	if res.Error != nil {
		return fmt.Errorf("application service: update status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return appErrors.ErrConflict
	}

	feedback := note
	entry := models.ApplicationStatusHistory{
		BaseModel:     models.BaseModel{CreatedAt: now, UpdatedAt: now},
		ApplicationID: app.ID,
		Sequence:      lastSeq + 1,
		Status:        target,
		Feedback:      &feedback,
	}
	if err := tx.Create(&entry).Error; err != nil {
		if isUniqueConstraintError(err) {
			return appErrors.ErrConflict
		}
		return fmt.Errorf("application service: append history: %w", err)
	}

	app.Status = target
	app.Version++
	return nil
}

func (s *ApplicationService) findScoped(db *gorm.DB, scope AdminScope, applicationID string, lock bool) (*models.Application, error) {
	query := scope.applications(db.Model(&models.Application{})).
		Where("applications.id = ?", strings.TrimSpace(applicationID))
	if lock {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var app models.Application
	if err := query.Take(&app).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrApplicationNotFound
		}
		return nil, fmt.Errorf("application service: load application: %w", err)
	}
	return &app, nil
}

// currentStatus resolves the status from the newest history row, or the
// initial status when the application has none.
func currentStatus(tx *gorm.DB, applicationID string) (workflow.Status, int, error) {
	var last models.ApplicationStatusHistory
	err := tx.Where("application_id = ?", applicationID).
		Order("sequence DESC").
		Limit(1).
		Take(&last).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return workflow.Initial, 0, nil
		}
		return "", 0, fmt.Errorf("application service: load history: %w", err)
	}
	return last.Status, last.Sequence, nil
}

func (s *ApplicationService) list(query *gorm.DB, opts ListOptions) ([]ApplicationView, int64, error) {
	_, perPage, offset := opts.normalise()

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("application service: count applications: %w", err)
	}

	var apps []models.Application
	err := s.preloadView(query).
		Order("applications.created_at DESC").
		Offset(offset).
		Limit(perPage).
		Find(&apps).Error
	if err != nil {
		return nil, 0, fmt.Errorf("application service: list applications: %w", err)
	}

	views := make([]ApplicationView, 0, len(apps))
	for i := range apps {
		views = append(views, toApplicationView(&apps[i]))
	}
	return views, total, nil
}

func (s *ApplicationService) loadView(ctx context.Context, applicationID string) (*ApplicationView, error) {
	var app models.Application
	err := s.preloadView(s.db.WithContext(ctx)).
		Where("id = ?", applicationID).
		Take(&app).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrApplicationNotFound
		}
		return nil, fmt.Errorf("application service: load application: %w", err)
	}
	view := toApplicationView(&app)
	return &view, nil
}

func (s *ApplicationService) preloadView(query *gorm.DB) *gorm.DB {
	return query.
		Preload("Job.Company").
		Preload("Profile.User").
		Preload("History", func(db *gorm.DB) *gorm.DB {
			return db.Order("sequence ASC")
		})
}

func (s *ApplicationService) notify(ctx context.Context, view *ApplicationView) {
	if s.notifier == nil || view == nil {
		return
	}
	feedback := ""
	if n := len(view.History); n > 0 {
		feedback = view.History[n-1].Feedback
	}
	s.notifier.ApplicationStatusChanged(ctx, ApplicationEvent{
		ApplicationID: view.ID,
		UserID:        view.UserID,
		UserName:      view.UserName,
		UserEmail:     view.UserEmail,
		JobID:         view.JobID,
		JobTitle:      view.JobTitle,
		Status:        view.Status,
		Feedback:      feedback,
	})
}

func (s *ApplicationService) notifyAll(ctx context.Context, applicationIDs []string) {
	for _, id := range applicationIDs {
		view, err := s.loadView(ctx, id)
		if err != nil {
			s.log.Warn("skip notification for application", zap.String("application_id", id), zap.Error(err))
			continue
		}
		s.notify(ctx, view)
	}
}

func toApplicationView(app *models.Application) ApplicationView {
	view := ApplicationView{
		ID:          app.ID,
		JobID:       app.JobID,
		ProfileID:   app.ProfileID,
		CoverLetter: app.CoverLetter,
		ResumePath:  app.ResumePath,
		Status:      app.Status,
		CreatedAt:   app.CreatedAt,
		UpdatedAt:   app.UpdatedAt,
		History:     make([]HistoryEntry, 0, len(app.History)),
	}
	if app.Job != nil {
		view.JobTitle = app.Job.Title
		view.CompanyID = app.Job.CompanyID
		if app.Job.Company != nil {
			view.CompanyName = app.Job.Company.Name
		}
	}
	if app.Profile != nil && app.Profile.User != nil {
		view.UserID = app.Profile.User.ID
		view.UserName = app.Profile.User.Name
		view.UserEmail = app.Profile.User.Email
	}
	for _, h := range app.History {
		entry := HistoryEntry{Sequence: h.Sequence, Status: h.Status, CreatedAt: h.CreatedAt}
		if h.Feedback != nil {
			entry.Feedback = *h.Feedback
		}
		view.History = append(view.History, entry)
	}
	return view
}
