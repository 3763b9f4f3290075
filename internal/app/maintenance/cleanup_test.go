package maintenance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	iauth "github.com/charlesng35/jobboard/internal/auth"
	"github.com/charlesng35/jobboard/internal/cache"
	testutil "github.com/charlesng35/jobboard/internal/database/testutil"
	"github.com/charlesng35/jobboard/internal/models"
	"github.com/charlesng35/jobboard/internal/services"
	"github.com/charlesng35/jobboard/pkg/crypto"
)

func TestCleanupTokens(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	now := time.Date(2024, 2, 10, 15, 0, 0, 0, time.UTC)

	require.NoError(t, db.Create(&models.PasswordResetPin{
		BaseModel: models.BaseModel{CreatedAt: now.Add(-2 * time.Hour)},
		Email:     "stale@example.com", Kind: models.PrincipalUser, Pin: "482913",
	}).Error)
	require.NoError(t, db.Create(&models.PasswordResetPin{
		BaseModel: models.BaseModel{CreatedAt: now.Add(-10 * time.Minute)},
		Email:     "fresh@example.com", Kind: models.PrincipalAdmin, Pin: "739104",
	}).Error)

	usedAt := now.Add(-time.Minute)
	for _, token := range []models.PasswordResetToken{
		{PrincipalKind: models.PrincipalUser, PrincipalID: "u1", TokenHash: "expired", ExpiresAt: now.Add(-time.Hour)},
		{PrincipalKind: models.PrincipalUser, PrincipalID: "u2", TokenHash: "used", ExpiresAt: now.Add(time.Hour), UsedAt: &usedAt},
		{PrincipalKind: models.PrincipalAdmin, PrincipalID: "a1", TokenHash: "active", ExpiresAt: now.Add(time.Hour)},
	} {
		token := token
		require.NoError(t, db.Create(&token).Error)
	}

	stats, err := CleanupTokens(context.Background(), db, now, time.Hour)
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.ResetPins)
	require.Equal(t, int64(2), stats.ResetTokens)

	var pin models.PasswordResetPin
	require.NoError(t, db.First(&pin).Error)
	require.Equal(t, "fresh@example.com", pin.Email)

	var token models.PasswordResetToken
	require.NoError(t, db.First(&token).Error)
	require.Equal(t, "active", token.TokenHash)

	_, err = CleanupTokens(context.Background(), nil, now, time.Hour)
	require.Error(t, err)
}

func TestCleanerRunOnce(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	clock := fixedClock{current: time.Now().UTC()}
	ctx := context.Background()

	auditSvc, err := services.NewAuditService(db, services.WithAuditClock(clock.Now))
	require.NoError(t, err)
	notificationSvc, err := services.NewNotificationService(db, services.WithNotificationClock(clock.Now))
	require.NoError(t, err)

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         "cleanup-secret",
		Issuer:         "test-suite",
		AccessTokenTTL: time.Hour,
	})
	require.NoError(t, err)

	sessionSvc, err := iauth.NewSessionService(db, jwtSvc, iauth.SessionConfig{
		RefreshTokenTTL: time.Hour,
		RefreshLength:   16,
		Clock:           clock.Now,
	})
	require.NoError(t, err)

	user := seedUser(t, db, "cleanup@example.com")
	subject := iauth.Subject{ID: user.ID, Kind: models.PrincipalUser}

	_, expiredSession, err := sessionSvc.CreateSession(ctx, subject, iauth.SessionMetadata{})
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.Session{}).Where("id = ?", expiredSession.ID).
		Update("expires_at", clock.Now().Add(-2*time.Hour)).Error)

	_, activeSession, err := sessionSvc.CreateSession(ctx, subject, iauth.SessionMetadata{})
	require.NoError(t, err)

	_, revokedSession, err := sessionSvc.CreateSession(ctx, subject, iauth.SessionMetadata{})
	require.NoError(t, err)
	require.NoError(t, sessionSvc.RevokeSession(ctx, revokedSession.ID))

	require.NoError(t, auditSvc.Log(ctx, services.AuditEntry{Action: "test.action", Result: services.AuditResultSuccess}))
	require.NoError(t, db.Model(&models.AuditLog{}).Where("1 = 1").
		Update("created_at", clock.Now().AddDate(0, 0, -10)).Error)

	require.NoError(t, db.Create(&models.Notification{
		BaseModel: models.BaseModel{CreatedAt: clock.Now().AddDate(0, 0, -10)},
		UserID:    user.ID, Type: "info", Title: "seen", IsRead: true,
	}).Error)

	require.NoError(t, db.Create(&models.PasswordResetToken{
		PrincipalKind: models.PrincipalUser,
		PrincipalID:   user.ID,
		TokenHash:     "reset-expired",
		ExpiresAt:     clock.Now().Add(-time.Hour),
	}).Error)

	store := cache.NewDatabaseStore(db)
	require.NoError(t, db.Create(&models.CacheEntry{Key: "stale", Value: []byte("1"), ExpiresAt: time.Now().Add(-time.Minute)}).Error)

	c := NewCleaner(db,
		WithNow(clock.Now),
		WithSessions(sessionSvc),
		WithAudit(auditSvc, 7),
		WithNotifications(notificationSvc, 7),
		WithCache(store),
		WithCron(cron.New(cron.WithLogger(cron.DiscardLogger))),
	)

	require.NoError(t, c.RunOnce(ctx))

	assertNotFound := func(id string) {
		var s models.Session
		err := db.First(&s, "id = ?", id).Error
		require.ErrorIs(t, err, gorm.ErrRecordNotFound)
	}
	assertNotFound(expiredSession.ID)
	assertNotFound(revokedSession.ID)

	var remaining models.Session
	require.NoError(t, db.First(&remaining, "id = ?", activeSession.ID).Error)

	assertEmpty := func(model any) {
		var count int64
		require.NoError(t, db.Model(model).Count(&count).Error)
		require.Zero(t, count)
	}
	assertEmpty(&models.AuditLog{})
	assertEmpty(&models.Notification{})
	assertEmpty(&models.PasswordResetToken{})
	assertEmpty(&models.CacheEntry{})
}

func TestCleanerJoinsFailures(t *testing.T) {
	c := NewCleaner(nil, WithCache(failingPurger{}))
	err := c.RunOnce(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "purge unavailable")
}

func TestCleanerStartRejectsBadSchedule(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	c := NewCleaner(db, WithSchedule("not a schedule"))
	require.Error(t, c.Start())

	idle := NewCleaner(nil)
	require.NoError(t, idle.Start())
	<-idle.Stop().Done()
}

type failingPurger struct{}

func (failingPurger) PurgeExpired(context.Context) (int64, error) {
	return 0, errors.New("purge unavailable")
}

func seedUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	hash, err := crypto.HashPassword("Password123!")
	require.NoError(t, err)

	user := &models.User{Account: models.Account{Name: "Cleanup", Email: email, Password: hash}}
	require.NoError(t, db.Create(user).Error)
	return user
}

type fixedClock struct {
	current time.Time
}

func (c *fixedClock) Now() time.Time {
	return c.current
}
