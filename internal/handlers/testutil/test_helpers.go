package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/jobboard/internal/api"
	"github.com/charlesng35/jobboard/internal/app"
	iauth "github.com/charlesng35/jobboard/internal/auth"
	sharedtestutil "github.com/charlesng35/jobboard/internal/database/testutil"
	"github.com/charlesng35/jobboard/internal/dispatch"
	"github.com/charlesng35/jobboard/internal/middleware"
	"github.com/charlesng35/jobboard/internal/models"
	"github.com/charlesng35/jobboard/internal/realtime"
	"github.com/charlesng35/jobboard/pkg/crypto"
	"github.com/charlesng35/jobboard/pkg/mail"
	"github.com/charlesng35/jobboard/pkg/response"
	"github.com/charlesng35/jobboard/pkg/storage"
)

// Pin is the code every PIN issued inside an Env carries.
const Pin = "318204"

// Mailbox records outbound email.
type Mailbox struct {
	mu   sync.Mutex
	sent []mail.Message
	// Fail makes every Send return an error.
	Fail bool
}

// Send implements mail.Mailer.
func (m *Mailbox) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return errMailDown
	}
	m.sent = append(m.sent, msg)
	return nil
}

// Messages returns a copy of everything sent so far.
func (m *Mailbox) Messages() []mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mail.Message(nil), m.sent...)
}

type mailError string

func (e mailError) Error() string { return string(e) }

const errMailDown = mailError("smtp: connection refused")

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T        *testing.T
	DB       *gorm.DB
	Router   *gin.Engine
	JWT      *iauth.JWTService
	Mail     *Mailbox
	Services api.Services
	Config   *app.Config
}

// TokenPair mirrors the token payload returned by login endpoints.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// NewEnv provisions a fresh handler test environment with migrations applied.
func NewEnv(t *testing.T) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithAutoMigrate())

	cfg := &app.Config{
		Server: app.ServerConfig{
			MaxUploadMB: 2,
			RateLimit:   app.RateLimitConfig{Requests: 5, Window: time.Minute},
		},
		Auth: app.AuthConfig{
			JWT:     app.JWTSettings{Secret: "test-suite-super-secret-key-32-bytes!!", Issuer: "test-suite", TTL: time.Hour},
			Session: app.SessionSettings{RefreshTTL: 24 * time.Hour, RefreshLength: 48},
			Local:   app.LocalAuthSettings{LockoutThreshold: 3, LockoutDuration: 10 * time.Minute},
		},
		Monitoring: app.MonitoringConfig{
			Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
			Health:     app.HealthConfig{Enabled: true},
		},
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	require.NoError(t, err)
	sessions, err := iauth.NewSessionService(db, jwtSvc, cfg.Auth.SessionServiceConfig())
	require.NoError(t, err)

	store, err := storage.NewLocalStorage(storage.Config{BasePath: t.TempDir(), BaseURL: "https://cdn.example.com"})
	require.NoError(t, err)

	mailbox := &Mailbox{}
	svc, err := api.BuildServices(db, cfg, api.Runtime{
		Sessions:     sessions,
		Mailer:       mailbox,
		Storage:      store,
		Dispatcher:   dispatch.NewSync(),
		Hub:          realtime.NewHub(),
		PinGenerator: func() (string, error) { return Pin, nil },
	})
	require.NoError(t, err)

	router, err := api.NewRouter(api.Dependencies{
		DB:        db,
		JWT:       jwtSvc,
		Config:    cfg,
		RateStore: middleware.NewMemoryRateStore(),
		Services:  svc,
	})
	require.NoError(t, err)

	return &Env{
		T:        t,
		DB:       db,
		Router:   router,
		JWT:      jwtSvc,
		Mail:     mailbox,
		Services: svc,
		Config:   cfg,
	}
}

// Request performs an HTTP request against the router and returns the recorder.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.Router.ServeHTTP(rec, req)
	return rec
}

// Send performs a prepared request, adding the bearer token when present.
func (e *Env) Send(req *http.Request, token string) *httptest.ResponseRecorder {
	e.T.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.Router.ServeHTTP(rec, req)
	return rec
}

// Decode unmarshals the response envelope and its data into dest.
func Decode(t *testing.T, rec *httptest.ResponseRecorder, dest any) response.Response {
	t.Helper()

	var envelope struct {
		response.Response
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope), rec.Body.String())
	if dest != nil && len(envelope.Data) > 0 {
		require.NoError(t, json.Unmarshal(envelope.Data, dest), string(envelope.Data))
	}
	return envelope.Response
}

// CreateUser inserts a verified user with password.
func (e *Env) CreateUser(name, email, password string) *models.User {
	e.T.Helper()
	hashed, err := crypto.HashPassword(password)
	require.NoError(e.T, err)
	now := time.Now().UTC()
	user := &models.User{Account: models.Account{Name: name, Email: email, Password: hashed, IsVerified: true, VerifiedAt: &now}}
	require.NoError(e.T, e.DB.Create(user).Error)
	return user
}

// CreateAdmin inserts a verified admin with password.
func (e *Env) CreateAdmin(name, email, password string, super bool) *models.Admin {
	e.T.Helper()
	hashed, err := crypto.HashPassword(password)
	require.NoError(e.T, err)
	now := time.Now().UTC()
	admin := &models.Admin{Account: models.Account{Name: name, Email: email, Password: hashed, IsVerified: true, VerifiedAt: &now}, IsSuper: super}
	require.NoError(e.T, e.DB.Create(admin).Error)
	return admin
}

// Login signs in through the kind's login endpoint and returns the tokens.
func (e *Env) Login(kind models.PrincipalKind, email, password string) TokenPair {
	e.T.Helper()

	rec := e.Request(http.MethodPost, "/api/"+string(kind)+"s/login", map[string]string{
		"email":    email,
		"password": password,
	}, "")
	require.Equal(e.T, http.StatusOK, rec.Code, rec.Body.String())

	var result struct {
		Tokens TokenPair `json:"tokens"`
	}
	Decode(e.T, rec, &result)
	require.NotEmpty(e.T, result.Tokens.AccessToken)
	return result.Tokens
}
