package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/jobboard/internal/models"
	"github.com/charlesng35/jobboard/internal/workflow"
	appErrors "github.com/charlesng35/jobboard/pkg/errors"
)

func newJobService(t *testing.T, db *gorm.DB, notifier ApplicationNotifier) (*JobService, *AuditService) {
	t.Helper()
	clock := newTestClock()
	audit, err := NewAuditService(db, WithAuditClock(clock.Now))
	require.NoError(t, err)
	opts := []ApplicationOption{WithApplicationClock(clock.Now), WithApplicationAudit(audit)}
	if notifier != nil {
		opts = append(opts, WithApplicationNotifier(notifier))
	}
	apps, err := NewApplicationService(db, opts...)
	require.NoError(t, err)
	svc, err := NewJobService(db, apps, WithJobClock(clock.Now), WithJobAudit(audit))
	require.NoError(t, err)
	return svc, audit
}

func TestJobServiceCreateAndScope(t *testing.T) {
	db := openServiceDB(t)
	svc, _ := newJobService(t, db, nil)
	ctx := context.Background()

	owner := createAdmin(t, db, "owner@example.com", false)
	other := createAdmin(t, db, "other@example.com", false)
	company := &models.Company{AdminID: owner.ID, Name: "Initech"}
	require.NoError(t, db.Create(company).Error)

	low, high := 50000, 40000
	_, err := svc.Create(ctx, ScopeFor(owner), JobInput{CompanyID: company.ID, Title: "SRE", SalaryMin: &low, SalaryMax: &high})
	require.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Create(ctx, ScopeFor(other), JobInput{CompanyID: company.ID, Title: "SRE"})
	require.ErrorIs(t, err, ErrCompanyNotFound)

	job, err := svc.Create(ctx, ScopeFor(owner), JobInput{CompanyID: company.ID, Title: " SRE ", Location: "Berlin", EmploymentType: "Full-Time"})
	require.NoError(t, err)
	require.Equal(t, "SRE", job.Title)
	require.Equal(t, models.JobOpen, job.Status)
	require.Equal(t, "full-time", job.EmploymentType)

	_, err = svc.Get(ctx, ScopeFor(other), job.ID)
	require.ErrorIs(t, err, ErrJobNotFound)

	super := createAdmin(t, db, "root@example.com", true)
	fetched, err := svc.Get(ctx, ScopeFor(super), job.ID)
	require.NoError(t, err)
	require.Equal(t, "Initech", fetched.Company.Name)

	jobs, total, err := svc.List(ctx, ScopeFor(other), JobFilters{})
	require.NoError(t, err)
	require.Zero(t, total)
	require.Empty(t, jobs)
}

func TestJobServicePublicListingFilters(t *testing.T) {
	db := openServiceDB(t)
	svc, _ := newJobService(t, db, nil)
	ctx := context.Background()

	admin := createAdmin(t, db, "hr@example.com", false)
	company := &models.Company{AdminID: admin.ID, Name: "Globex"}
	require.NoError(t, db.Create(company).Error)
	for _, job := range []models.Job{
		{CompanyID: company.ID, Title: "Go Developer", Location: "Remote", Status: models.JobOpen},
		{CompanyID: company.ID, Title: "Rust Developer", Location: "Paris", Status: models.JobOpen},
		{CompanyID: company.ID, Title: "Go Lead", Location: "Remote", Status: models.JobClosed},
	} {
		job := job
		require.NoError(t, db.Create(&job).Error)
	}

	jobs, total, err := svc.ListPublic(ctx, JobFilters{Search: "go"})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, "Go Developer", jobs[0].Title)

	jobs, _, err = svc.ListPublic(ctx, JobFilters{Location: "par"})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, "Rust Developer", jobs[0].Title)

	all, total, err := svc.List(ctx, ScopeFor(admin), JobFilters{Status: models.JobClosed})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, "Go Lead", all[0].Title)
}

func TestJobServiceUpdateGuardsCancellation(t *testing.T) {
	db := openServiceDB(t)
	fx := seedApplication(t, db)
	svc, _ := newJobService(t, db, nil)
	ctx := context.Background()
	scope := ScopeFor(fx.Admin)

	_, err := svc.Update(ctx, scope, fx.Job.ID, JobInput{Title: "Backend Engineer", Status: models.JobCancelled})
	require.ErrorIs(t, err, appErrors.ErrValidation)

	updated, err := svc.Update(ctx, scope, fx.Job.ID, JobInput{Title: "Senior Backend Engineer", Status: models.JobClosed})
	require.NoError(t, err)
	require.Equal(t, models.JobClosed, updated.Status)

	_, err = svc.Cancel(ctx, scope, Actor{Kind: models.PrincipalAdmin, ID: fx.Admin.ID}, fx.Job.ID)
	require.NoError(t, err)

	_, err = svc.Update(ctx, scope, fx.Job.ID, JobInput{Title: "Anything"})
	require.ErrorIs(t, err, ErrJobNotOpen)
}

func TestJobServiceCancelRejectsInFlightApplications(t *testing.T) {
	db := openServiceDB(t)
	fx := seedApplication(t, db)
	notifier := &recordingNotifier{}
	svc, audit := newJobService(t, db, notifier)
	ctx := context.Background()
	actor := Actor{Kind: models.PrincipalAdmin, ID: fx.Admin.ID, Email: fx.Admin.Email}

	hired := &models.Application{JobID: fx.Job.ID, ProfileID: createProfile(t, db, "hired@example.com").ID, Status: workflow.StatusOfferLetter}
	require.NoError(t, db.Create(hired).Error)
	require.NoError(t, db.Create(&models.ApplicationStatusHistory{ApplicationID: hired.ID, Sequence: 1, Status: workflow.StatusOfferLetter}).Error)

	result, err := svc.Cancel(ctx, ScopeFor(fx.Admin), actor, fx.Job.ID)
	require.NoError(t, err)
	require.Equal(t, 1, result.Rejected)
	require.Equal(t, models.JobCancelled, result.Job.Status)
	require.NotNil(t, result.Job.CancelledAt)

	var pending models.ApplicationStatusHistory
	require.NoError(t, db.Where("application_id = ?", fx.Application.ID).Order("sequence DESC").Take(&pending).Error)
	require.Equal(t, workflow.StatusRejected, pending.Status)
	require.Equal(t, NoteJobCancelled, *pending.Feedback)

	require.Equal(t, []workflow.Status{workflow.StatusOfferLetter}, historyStatuses(t, db, hired.ID))
	require.Len(t, notifier.all(), 1)

	logs, _, err := audit.List(ctx, AuditListOptions{Filters: AuditFilters{Action: AuditActionJobCancel}})
	require.NoError(t, err)
	require.Len(t, logs, 1)

	_, err = svc.Cancel(ctx, ScopeFor(fx.Admin), actor, fx.Job.ID)
	require.ErrorIs(t, err, ErrJobNotOpen)

	_, err = svc.GetPublic(ctx, fx.Job.ID)
	require.ErrorIs(t, err, ErrJobNotFound)
}

func TestJobServiceDeleteRemovesDependents(t *testing.T) {
	db := openServiceDB(t)
	fx := seedApplication(t, db)
	svc, _ := newJobService(t, db, nil)
	require.NoError(t, db.Create(&models.Favorite{UserID: fx.User.ID, JobID: fx.Job.ID}).Error)

	require.NoError(t, svc.Delete(context.Background(), ScopeFor(fx.Admin), fx.Job.ID))

	var apps, favorites int64
	require.NoError(t, db.Model(&models.Application{}).Count(&apps).Error)
	require.NoError(t, db.Model(&models.Favorite{}).Count(&favorites).Error)
	require.Zero(t, apps)
	require.Zero(t, favorites)
}

func createProfile(t *testing.T, db *gorm.DB, email string) *models.Profile {
	t.Helper()
	user := createUser(t, db, email)
	profile := &models.Profile{UserID: user.ID}
	require.NoError(t, db.Create(profile).Error)
	return profile
}
