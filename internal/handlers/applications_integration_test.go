package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/jobboard/internal/handlers/testutil"
	"github.com/charlesng35/jobboard/internal/models"
)

type boardFixture struct {
	env       *testutil.Env
	admin     string
	user      string
	companyID string
	jobID     string
}

type applicationPayload struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	History []struct {
		Status   string `json:"status"`
		Feedback string `json:"feedback"`
	} `json:"history"`
}

func newBoard(t *testing.T) boardFixture {
	t.Helper()
	env := testutil.NewEnv(t)
	env.CreateAdmin("Hiring Manager", "hm@example.com", "admin-password", false)
	env.CreateUser("Candidate", "candidate@example.com", "user-password")
	fx := boardFixture{
		env:   env,
		admin: env.Login(models.PrincipalAdmin, "hm@example.com", "admin-password").AccessToken,
		user:  env.Login(models.PrincipalUser, "candidate@example.com", "user-password").AccessToken,
	}

	rec := env.Request(http.MethodPost, "/api/admin/companies", map[string]string{"name": "Acme", "website": "https://acme.example"}, fx.admin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var company struct {
		ID string `json:"id"`
	}
	testutil.Decode(t, rec, &company)
	fx.companyID = company.ID

	rec = env.Request(http.MethodPost, "/api/admin/jobs", map[string]any{
		"company_id": fx.companyID,
		"title":      "Backend Engineer",
		"location":   "Remote",
		"salary_min": 90000,
		"salary_max": 120000,
	}, fx.admin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var job struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	testutil.Decode(t, rec, &job)
	require.Equal(t, "open", job.Status)
	fx.jobID = job.ID
	return fx
}

func (fx boardFixture) apply(t *testing.T) applicationPayload {
	t.Helper()
	rec := fx.env.Request(http.MethodPost, "/api/jobs/"+fx.jobID+"/apply", map[string]string{"cover_letter": "I love Go."}, fx.user)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var app applicationPayload
	testutil.Decode(t, rec, &app)
	return app
}

func (fx boardFixture) transition(t *testing.T, appID, status string) *applicationPayload {
	t.Helper()
	rec := fx.env.Request(http.MethodPost, "/api/admin/applications/"+appID+"/transition", map[string]string{"status": status}, fx.admin)
	if rec.Code != http.StatusOK {
		return nil
	}
	var app applicationPayload
	testutil.Decode(t, rec, &app)
	return &app
}

func TestPublicJobListing(t *testing.T) {
	fx := newBoard(t)

	rec := fx.env.Request(http.MethodGet, "/api/jobs?search=backend", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var jobs []struct {
		Title string `json:"title"`
	}
	payload := testutil.Decode(t, rec, &jobs)
	require.Len(t, jobs, 1)
	require.Equal(t, 1, payload.Meta.Total)

	rec = fx.env.Request(http.MethodGet, "/api/jobs/"+fx.jobID, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = fx.env.Request(http.MethodGet, "/api/jobs/missing", nil, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "JOB_NOT_FOUND", testutil.Decode(t, rec, nil).Error.Code)
}

func TestApplicationWorkflowOverHTTP(t *testing.T) {
	fx := newBoard(t)
	env := fx.env

	app := fx.apply(t)
	require.Equal(t, "pending", app.Status)
	require.Empty(t, app.History)

	rec := env.Request(http.MethodPost, "/api/jobs/"+fx.jobID+"/apply", map[string]string{}, fx.user)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "ALREADY_APPLIED", testutil.Decode(t, rec, nil).Error.Code)

	rec = env.Request(http.MethodPost, "/api/admin/applications/"+app.ID+"/transition", map[string]string{"status": "hired"}, fx.admin)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Equal(t, "VALIDATION_ERROR", testutil.Decode(t, rec, nil).Error.Code)

	rec = env.Request(http.MethodPost, "/api/admin/applications/"+app.ID+"/transition", map[string]string{"status": "reviewed"}, fx.admin)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	failure := testutil.Decode(t, rec, nil)
	require.Equal(t, "INVALID_TRANSITION", failure.Error.Code)
	details := failure.Error.Details.(map[string]any)
	require.Equal(t, "pending", details["current_status"])
	require.Equal(t, []any{"submitted"}, details["allowed_next"])

	updated := fx.transition(t, app.ID, "submitted")
	require.NotNil(t, updated)
	updated = fx.transition(t, app.ID, "reviewed")
	require.NotNil(t, updated)
	require.Equal(t, "reviewed", updated.Status)
	require.Len(t, updated.History, 2)

	rec = env.Request(http.MethodPost, "/api/admin/applications/"+app.ID+"/restore", nil, fx.admin)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.Request(http.MethodPost, "/api/admin/applications/"+app.ID+"/reject", nil, fx.admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var rejected applicationPayload
	testutil.Decode(t, rec, &rejected)
	require.Equal(t, "rejected", rejected.Status)

	rec = env.Request(http.MethodPost, "/api/admin/applications/"+app.ID+"/restore", nil, fx.admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var restored applicationPayload
	testutil.Decode(t, rec, &restored)
	require.Equal(t, "submitted", restored.Status)

	rec = env.Request(http.MethodGet, "/api/me/applications/"+app.ID, nil, fx.user)
	require.Equal(t, http.StatusOK, rec.Code)
	var mine applicationPayload
	testutil.Decode(t, rec, &mine)
	require.Equal(t, "submitted", mine.Status)
	statuses := make([]string, 0, len(mine.History))
	for _, entry := range mine.History {
		statuses = append(statuses, entry.Status)
	}
	require.Equal(t, []string{"submitted", "reviewed", "rejected", "submitted"}, statuses)

	rec = env.Request(http.MethodGet, "/api/notifications?unread=true", nil, fx.user)
	require.Equal(t, http.StatusOK, rec.Code)
	var notes []struct {
		ID string `json:"id"`
	}
	testutil.Decode(t, rec, &notes)
	require.Len(t, notes, 4)

	rec = env.Request(http.MethodPost, "/api/notifications/"+notes[0].ID+"/read", nil, fx.user)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.Request(http.MethodPost, "/api/notifications/read-all", nil, fx.user)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.Request(http.MethodGet, "/api/notifications?unread=true", nil, fx.user)
	testutil.Decode(t, rec, &notes)
	require.Empty(t, notes)
}

func TestAdminsOnlySeeTheirOwnApplications(t *testing.T) {
	fx := newBoard(t)
	app := fx.apply(t)

	fx.env.CreateAdmin("Other", "other@example.com", "other-password", false)
	other := fx.env.Login(models.PrincipalAdmin, "other@example.com", "other-password").AccessToken

	rec := fx.env.Request(http.MethodGet, "/api/admin/applications/"+app.ID, nil, other)
	require.Equal(t, http.StatusNotFound, rec.Code)
	rec = fx.env.Request(http.MethodPost, "/api/admin/applications/"+app.ID+"/reject", nil, other)
	require.Equal(t, http.StatusNotFound, rec.Code)

	fx.env.CreateAdmin("Root", "root@example.com", "root-password", true)
	root := fx.env.Login(models.PrincipalAdmin, "root@example.com", "root-password").AccessToken
	rec = fx.env.Request(http.MethodGet, "/api/admin/jobs/"+fx.jobID+"/applications?status=pending", nil, root)
	require.Equal(t, http.StatusOK, rec.Code)
	var apps []applicationPayload
	testutil.Decode(t, rec, &apps)
	require.Len(t, apps, 1)

	rec = fx.env.Request(http.MethodGet, "/api/admin/audit", nil, root)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCancelJobRejectsApplications(t *testing.T) {
	fx := newBoard(t)
	app := fx.apply(t)
	require.NotNil(t, fx.transition(t, app.ID, "submitted"))

	rec := fx.env.Request(http.MethodPost, "/api/admin/jobs/"+fx.jobID+"/cancel", nil, fx.admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result struct {
		Rejected int `json:"rejected_applications"`
		Job      struct {
			Status string `json:"status"`
		} `json:"job"`
	}
	testutil.Decode(t, rec, &result)
	require.Equal(t, 1, result.Rejected)
	require.Equal(t, "cancelled", result.Job.Status)

	rec = fx.env.Request(http.MethodGet, "/api/me/applications", nil, fx.user)
	var mine []applicationPayload
	testutil.Decode(t, rec, &mine)
	require.Len(t, mine, 1)
	require.Equal(t, "rejected", mine[0].Status)

	rec = fx.env.Request(http.MethodPost, "/api/jobs/"+fx.jobID+"/apply", map[string]string{}, fx.user)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = fx.env.Request(http.MethodPut, "/api/admin/jobs/"+fx.jobID, map[string]string{"title": "Revived"}, fx.admin)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Equal(t, "JOB_NOT_OPEN", testutil.Decode(t, rec, nil).Error.Code)
}
