package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/jobboard/internal/models"
	"github.com/charlesng35/jobboard/internal/workflow"
	appErrors "github.com/charlesng35/jobboard/pkg/errors"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []ApplicationEvent
}

func (n *recordingNotifier) ApplicationStatusChanged(_ context.Context, event ApplicationEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) all() []ApplicationEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]ApplicationEvent(nil), n.events...)
}

func newApplicationService(t *testing.T, db *gorm.DB, notifier ApplicationNotifier) *ApplicationService {
	t.Helper()
	audit, err := NewAuditService(db)
	require.NoError(t, err)
	svc, err := NewApplicationService(db,
		WithApplicationClock(newTestClock().Now),
		WithApplicationNotifier(notifier),
		WithApplicationAudit(audit),
	)
	require.NoError(t, err)
	return svc
}

func historyStatuses(t *testing.T, db *gorm.DB, applicationID string) []workflow.Status {
	t.Helper()
	var rows []models.ApplicationStatusHistory
	require.NoError(t, db.Where("application_id = ?", applicationID).Order("sequence ASC").Find(&rows).Error)
	out := make([]workflow.Status, len(rows))
	for i, row := range rows {
		out[i] = row.Status
	}
	return out
}

func TestRequestTransitionAppendsHistory(t *testing.T) {
	db := openServiceDB(t)
	fx := seedApplication(t, db)
	notifier := &recordingNotifier{}
	svc := newApplicationService(t, db, notifier)
	scope := ScopeFor(fx.Admin)

	view, err := svc.RequestTransition(context.Background(), scope, Actor{}, fx.Application.ID, workflow.StatusSubmitted, "")
	require.NoError(t, err)
	require.Equal(t, workflow.StatusSubmitted, view.Status)
	require.Equal(t, "Backend Engineer", view.JobTitle)
	require.Equal(t, fx.User.Email, view.UserEmail)
	require.Len(t, view.History, 1)
	require.Equal(t, DefaultFeedback, view.History[0].Feedback)

	view, err = svc.RequestTransition(context.Background(), scope, Actor{}, fx.Application.ID, workflow.StatusReviewed, "Strong CV")
	require.NoError(t, err)
	require.Equal(t, workflow.StatusReviewed, view.Status)
	require.Len(t, view.History, 2)
	require.Equal(t, 2, view.History[1].Sequence)
	require.Equal(t, "Strong CV", view.History[1].Feedback)

	events := notifier.all()
	require.Len(t, events, 2)
	require.Equal(t, fx.User.ID, events[1].UserID)
	require.Equal(t, workflow.StatusReviewed, events[1].Status)

	var stored models.Application
	require.NoError(t, db.First(&stored, "id = ?", fx.Application.ID).Error)
	require.Equal(t, workflow.StatusReviewed, stored.Status)
	require.Equal(t, 2, stored.Version)
}

func TestRequestTransitionRejectsIllegalTarget(t *testing.T) {
	db := openServiceDB(t)
	fx := seedApplication(t, db)
	notifier := &recordingNotifier{}
	svc := newApplicationService(t, db, notifier)
	scope := ScopeFor(fx.Admin)

	_, err := svc.RequestTransition(context.Background(), scope, Actor{}, fx.Application.ID, workflow.StatusSubmitted, "")
	require.NoError(t, err)

	_, err = svc.RequestTransition(context.Background(), scope, Actor{}, fx.Application.ID, workflow.StatusAccepted, "")
	require.ErrorIs(t, err, ErrInvalidTransition)

	appErr := appErrors.FromError(err)
	details := appErr.Details.(map[string]any)
	require.Equal(t, "submitted", details["current_status"])
	require.Equal(t, []string{"reviewed"}, details["allowed_next"])

	require.Equal(t, []workflow.Status{workflow.StatusSubmitted}, historyStatuses(t, db, fx.Application.ID))
	require.Len(t, notifier.all(), 1)
}

func TestRequestTransitionValidatesInput(t *testing.T) {
	db := openServiceDB(t)
	fx := seedApplication(t, db)
	svc := newApplicationService(t, db, nil)
	scope := ScopeFor(fx.Admin)

	_, err := svc.RequestTransition(context.Background(), scope, Actor{}, fx.Application.ID, workflow.Status("hired"), "")
	require.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.RequestTransition(context.Background(), scope, Actor{}, fx.Application.ID, workflow.StatusSubmitted, strings.Repeat("x", 501))
	require.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.RequestTransition(context.Background(), scope, Actor{}, fx.Application.ID, workflow.StatusSubmitted, strings.Repeat("x", 500))
	require.NoError(t, err)
}

func TestRequestTransitionOutsideScope(t *testing.T) {
	db := openServiceDB(t)
	fx := seedApplication(t, db)
	svc := newApplicationService(t, db, nil)
	stranger := createAdmin(t, db, "stranger@example.com", false)

	_, err := svc.RequestTransition(context.Background(), ScopeFor(stranger), Actor{}, fx.Application.ID, workflow.StatusSubmitted, "")
	require.ErrorIs(t, err, ErrApplicationNotFound)

	super := createAdmin(t, db, "root@example.com", true)
	_, err = svc.RequestTransition(context.Background(), ScopeFor(super), Actor{}, fx.Application.ID, workflow.StatusSubmitted, "")
	require.NoError(t, err)

	_, err = svc.RequestTransition(context.Background(), ScopeFor(fx.Admin), Actor{}, "missing", workflow.StatusSubmitted, "")
	require.ErrorIs(t, err, ErrApplicationNotFound)
}

func TestWalkToOfferLetter(t *testing.T) {
	db := openServiceDB(t)
	fx := seedApplication(t, db)
	svc := newApplicationService(t, db, nil)
	scope := ScopeFor(fx.Admin)

	path := []workflow.Status{
		workflow.StatusSubmitted,
		workflow.StatusReviewed,
		workflow.StatusScreeningInterview,
		workflow.StatusTechnicalInterview,
		workflow.StatusFinalHRInterview,
		workflow.StatusTeamMatching,
		workflow.StatusAccepted,
		workflow.StatusOfferLetter,
	}
	for _, target := range path {
		_, err := svc.RequestTransition(context.Background(), scope, Actor{}, fx.Application.ID, target, "")
		require.NoError(t, err, target)
	}
	require.Equal(t, path, historyStatuses(t, db, fx.Application.ID))

	_, err := svc.RequestTransition(context.Background(), scope, Actor{}, fx.Application.ID, workflow.StatusRejected, "")
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRejectAndRestore(t *testing.T) {
	db := openServiceDB(t)
	fx := seedApplication(t, db)
	svc := newApplicationService(t, db, nil)
	scope := ScopeFor(fx.Admin)
	ctx := context.Background()

	_, err := svc.Restore(ctx, scope, Actor{}, fx.Application.ID)
	require.ErrorIs(t, err, ErrApplicationNotFound, "restore needs a rejected application")

	view, err := svc.Reject(ctx, scope, Actor{Kind: models.PrincipalAdmin, ID: fx.Admin.ID}, fx.Application.ID)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusRejected, view.Status)
	require.Equal(t, NoteRejected, view.History[len(view.History)-1].Feedback)

	_, err = svc.Reject(ctx, scope, Actor{}, fx.Application.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)

	view, err = svc.Restore(ctx, scope, Actor{}, fx.Application.ID)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusSubmitted, view.Status)
	require.Equal(t, NoteRestored, view.History[len(view.History)-1].Feedback)

	require.Equal(t, []workflow.Status{workflow.StatusRejected, workflow.StatusSubmitted}, historyStatuses(t, db, fx.Application.ID))

	var audits int64
	require.NoError(t, db.Model(&models.AuditLog{}).Where("resource_id = ?", fx.Application.ID).Count(&audits).Error)
	require.EqualValues(t, 2, audits)
}

func TestRejectFromOfferLetter(t *testing.T) {
	db := openServiceDB(t)
	fx := seedApplication(t, db)
	svc := newApplicationService(t, db, nil)
	require.NoError(t, db.Model(&models.Application{}).Where("id = ?", fx.Application.ID).Update("status", workflow.StatusOfferLetter).Error)
	require.NoError(t, db.Create(&models.ApplicationStatusHistory{ApplicationID: fx.Application.ID, Sequence: 1, Status: workflow.StatusOfferLetter}).Error)

	view, err := svc.Reject(context.Background(), ScopeFor(fx.Admin), Actor{}, fx.Application.ID)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusRejected, view.Status)
}

func TestCascadeRejectForCancelledJob(t *testing.T) {
	db := openServiceDB(t)
	fx := seedApplication(t, db)
	notifier := &recordingNotifier{}
	svc := newApplicationService(t, db, notifier)
	ctx := context.Background()

	other := createUser(t, db, "second@example.com")
	otherProfile := &models.Profile{UserID: other.ID}
	require.NoError(t, db.Create(otherProfile).Error)
	done := &models.Application{JobID: fx.Job.ID, ProfileID: otherProfile.ID, Status: workflow.StatusOfferLetter}
	require.NoError(t, db.Create(done).Error)
	require.NoError(t, db.Create(&models.ApplicationStatusHistory{ApplicationID: done.ID, Sequence: 1, Status: workflow.StatusOfferLetter}).Error)

	_, err := svc.RequestTransition(ctx, ScopeFor(fx.Admin), Actor{}, fx.Application.ID, workflow.StatusSubmitted, "")
	require.NoError(t, err)

	count, err := svc.CascadeRejectForCancelledJob(ctx, nil, fx.Job.ID)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	require.Equal(t, []workflow.Status{workflow.StatusSubmitted, workflow.StatusRejected}, historyStatuses(t, db, fx.Application.ID))
	require.Equal(t, []workflow.Status{workflow.StatusOfferLetter}, historyStatuses(t, db, done.ID))

	var feedback models.ApplicationStatusHistory
	require.NoError(t, db.Where("application_id = ? AND sequence = 2", fx.Application.ID).Take(&feedback).Error)
	require.Equal(t, NoteJobCancelled, *feedback.Feedback)

	events := notifier.all()
	require.Len(t, events, 2)
	require.Equal(t, workflow.StatusRejected, events[1].Status)

	count, err = svc.CascadeRejectForCancelledJob(ctx, nil, fx.Job.ID)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestApplyAndListMine(t *testing.T) {
	db := openServiceDB(t)
	fx := seedApplication(t, db)
	svc := newApplicationService(t, db, nil)
	ctx := context.Background()

	_, err := svc.Apply(ctx, fx.User.ID, fx.Job.ID, ApplyInput{CoverLetter: "again"})
	require.ErrorIs(t, err, ErrAlreadyApplied)

	second := &models.Job{CompanyID: fx.Company.ID, Title: "SRE", Status: models.JobOpen}
	require.NoError(t, db.Create(second).Error)
	view, err := svc.Apply(ctx, fx.User.ID, second.ID, ApplyInput{CoverLetter: "Hello"})
	require.NoError(t, err)
	require.Equal(t, workflow.StatusPending, view.Status)
	require.Empty(t, view.History)

	closed := &models.Job{CompanyID: fx.Company.ID, Title: "Closed", Status: models.JobClosed}
	require.NoError(t, db.Create(closed).Error)
	_, err = svc.Apply(ctx, fx.User.ID, closed.ID, ApplyInput{})
	require.ErrorIs(t, err, ErrJobNotOpen)

	mine, total, err := svc.ListMine(ctx, fx.User.ID, ListOptions{})
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	require.Len(t, mine, 2)

	_, err = svc.GetMine(ctx, "someone-else", view.ID)
	require.ErrorIs(t, err, ErrApplicationNotFound)

	got, err := svc.GetMine(ctx, fx.User.ID, view.ID)
	require.NoError(t, err)
	require.Equal(t, "SRE", got.JobTitle)
}

func TestListForJobHonoursScope(t *testing.T) {
	db := openServiceDB(t)
	fx := seedApplication(t, db)
	svc := newApplicationService(t, db, nil)
	ctx := context.Background()

	views, total, err := svc.ListForJob(ctx, ScopeFor(fx.Admin), fx.Job.ID, "", ListOptions{})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, fx.Application.ID, views[0].ID)

	_, total, err = svc.ListForJob(ctx, ScopeFor(fx.Admin), fx.Job.ID, workflow.StatusRejected, ListOptions{})
	require.NoError(t, err)
	require.Zero(t, total)

	stranger := createAdmin(t, db, "other@example.com", false)
	_, _, err = svc.ListForJob(ctx, ScopeFor(stranger), fx.Job.ID, "", ListOptions{})
	require.ErrorIs(t, err, ErrJobNotFound)
}

func TestConcurrentTransitionsApplyOnce(t *testing.T) {
	db := openServiceDB(t)
	fx := seedApplication(t, db)
	svc := newApplicationService(t, db, nil)
	scope := ScopeFor(fx.Admin)

	const racers = 5
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		lost      []error
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RequestTransition(context.Background(), scope, Actor{}, fx.Application.ID, workflow.StatusSubmitted, "")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
				return
			}
			lost = append(lost, err)
		}()
	}
	wg.Wait()

	require.Equal(t, 1, succeeded)
	for _, err := range lost {
		require.True(t, errors.Is(err, ErrInvalidTransition) || errors.Is(err, appErrors.ErrConflict), "unexpected error: %v", err)
	}
	require.Equal(t, []workflow.Status{workflow.StatusSubmitted}, historyStatuses(t, db, fx.Application.ID))
}
