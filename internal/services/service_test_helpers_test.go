package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/jobboard/internal/database/testutil"
	"github.com/charlesng35/jobboard/internal/dispatch"
	"github.com/charlesng35/jobboard/internal/models"
	"github.com/charlesng35/jobboard/internal/workflow"
	"github.com/charlesng35/jobboard/pkg/crypto"
	"github.com/charlesng35/jobboard/pkg/mail"
)

var errMailDown = errors.New("smtp: connection refused")

type fakeMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (m *fakeMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) messages() []mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mail.Message(nil), m.sent...)
}

type testClock struct {
	mu      sync.Mutex
	current time.Time
}

func newTestClock() *testClock {
	return &testClock{current: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}

func openServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	return testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
}

func fixedPin(code string) func() (string, error) {
	return func() (string, error) { return code, nil }
}

func createUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	hash, err := crypto.HashPassword("correct-horse")
	require.NoError(t, err)
	user := &models.User{Account: models.Account{Name: "Test User", Email: email, Password: hash}}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createAdmin(t *testing.T, db *gorm.DB, email string, super bool) *models.Admin {
	t.Helper()
	hash, err := crypto.HashPassword("correct-horse")
	require.NoError(t, err)
	admin := &models.Admin{Account: models.Account{Name: "Test Admin", Email: email, Password: hash, IsVerified: true}, IsSuper: super}
	require.NoError(t, db.Create(admin).Error)
	return admin
}

// seedApplication creates an admin-owned company, an open job, a user with a
// profile and a pending application for them.
type applicationFixture struct {
	Admin       *models.Admin
	Company     *models.Company
	Job         *models.Job
	User        *models.User
	Profile     *models.Profile
	Application *models.Application
}

func seedApplication(t *testing.T, db *gorm.DB) applicationFixture {
	t.Helper()
	admin := createAdmin(t, db, "recruiter@example.com", false)
	company := &models.Company{AdminID: admin.ID, Name: "Acme"}
	require.NoError(t, db.Create(company).Error)
	job := &models.Job{CompanyID: company.ID, Title: "Backend Engineer", Status: models.JobOpen}
	require.NoError(t, db.Create(job).Error)
	user := createUser(t, db, "candidate@example.com")
	profile := &models.Profile{UserID: user.ID, Headline: "Gopher"}
	require.NoError(t, db.Create(profile).Error)
	app := &models.Application{JobID: job.ID, ProfileID: profile.ID, Status: workflow.Initial}
	require.NoError(t, db.Create(app).Error)
	return applicationFixture{Admin: admin, Company: company, Job: job, User: user, Profile: profile, Application: app}
}

// recordingDispatcher runs nothing and remembers enqueued tasks.
type recordingDispatcher struct {
	mu    sync.Mutex
	tasks []dispatch.Task
}

func (d *recordingDispatcher) Handle(string, dispatch.Handler) {}

func (d *recordingDispatcher) Enqueue(_ context.Context, kind string, payload any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	task, err := dispatch.NewTask(kind, payload)
	if err != nil {
		return err
	}
	d.tasks = append(d.tasks, task)
	return nil
}

func (d *recordingDispatcher) Run(context.Context) error { return nil }

func (d *recordingDispatcher) Close() error { return nil }

func (d *recordingDispatcher) kinds() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.tasks))
	for i, task := range d.tasks {
		out[i] = task.Kind
	}
	return out
}
