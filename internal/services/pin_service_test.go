package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"

	"github.com/charlesng35/jobboard/internal/models"
)

func newPinService(t *testing.T, db *gorm.DB, mailer *fakeMailer, clock *testClock, code string, extra ...PinOption) *PinService {
	t.Helper()
	opts := append([]PinOption{WithPinClock(clock.Now), WithPinGenerator(fixedPin(code))}, extra...)
	svc, err := NewPinService(db, mailer, PinConfig{}, opts...)
	require.NoError(t, err)
	return svc
}

func TestPinVerificationLifecycle(t *testing.T) {
	db := openServiceDB(t)
	clock := newTestClock()
	mailer := &fakeMailer{}
	svc := newPinService(t, db, mailer, clock, "042913")
	user := createUser(t, db, "ada@example.com")

	issue, err := svc.Issue(context.Background(), user, PurposeVerification)
	require.NoError(t, err)
	require.Equal(t, "042913", issue.Code)
	require.True(t, issue.EmailSent)

	sent := mailer.messages()
	require.Len(t, sent, 1)
	require.Equal(t, []string{"ada@example.com"}, sent[0].To)
	require.Contains(t, sent[0].Body, "042913")
	require.Contains(t, sent[0].Body, "1440")

	var stored models.User
	require.NoError(t, db.First(&stored, "id = ?", user.ID).Error)
	require.Equal(t, "042913", stored.GetPinCode())
	require.NotNil(t, stored.GetPinIssuedAt())

	ok, err := svc.Verify(context.Background(), &stored, "000000", PurposeVerification)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = svc.Verify(context.Background(), &stored, "042913", PurposeVerification)
	require.NoError(t, err)
	require.True(t, ok)

	var reloaded models.User
	require.NoError(t, db.First(&reloaded, "id = ?", user.ID).Error)
	require.True(t, reloaded.IsVerified)
	require.NotNil(t, reloaded.VerifiedAt)
	require.Nil(t, reloaded.PinCode)
	require.Nil(t, reloaded.PinCreatedAt)

	ok, err = svc.Verify(context.Background(), &reloaded, "042913", PurposeVerification)
	require.NoError(t, err)
	require.False(t, ok, "a code verifies at most once")
}

func TestPinVerificationExpires(t *testing.T) {
	db := openServiceDB(t)
	clock := newTestClock()
	svc := newPinService(t, db, &fakeMailer{}, clock, "042913")
	user := createUser(t, db, "late@example.com")

	_, err := svc.Issue(context.Background(), user, PurposeVerification)
	require.NoError(t, err)

	clock.Advance(1450 * time.Minute)

	ok, err := svc.Verify(context.Background(), user, "042913", PurposeVerification)
	require.NoError(t, err)
	require.False(t, ok)

	var stored models.User
	require.NoError(t, db.First(&stored, "id = ?", user.ID).Error)
	require.False(t, stored.IsVerified)
}

func TestPinVerificationReissueReplacesCode(t *testing.T) {
	db := openServiceDB(t)
	clock := newTestClock()
	codes := []string{"135790", "902114"}
	next := 0
	svc, err := NewPinService(db, &fakeMailer{}, PinConfig{},
		WithPinClock(clock.Now),
		WithPinGenerator(func() (string, error) {
			code := codes[next]
			next++
			return code, nil
		}),
	)
	require.NoError(t, err)
	admin := createAdmin(t, db, "boss@example.com", false)

	_, err = svc.Issue(context.Background(), admin, PurposeVerification)
	require.NoError(t, err)
	_, err = svc.Issue(context.Background(), admin, PurposeVerification)
	require.NoError(t, err)

	ok, err := svc.Verify(context.Background(), admin, "135790", PurposeVerification)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = svc.Verify(context.Background(), admin, "902114", PurposeVerification)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestPinResetUpsertAndConsume(t *testing.T) {
	db := openServiceDB(t)
	clock := newTestClock()
	codes := []string{"112358", "246813"}
	next := 0
	svc, err := NewPinService(db, &fakeMailer{}, PinConfig{},
		WithPinClock(clock.Now),
		WithPinGenerator(func() (string, error) {
			code := codes[next]
			next++
			return code, nil
		}),
	)
	require.NoError(t, err)
	user := createUser(t, db, "reset@example.com")

	_, err = svc.Issue(context.Background(), user, PurposeReset)
	require.NoError(t, err)
	_, err = svc.Issue(context.Background(), user, PurposeReset)
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&models.PasswordResetPin{}).Count(&count).Error)
	require.EqualValues(t, 1, count)

	ok, err := svc.Verify(context.Background(), user, "112358", PurposeReset)
	require.NoError(t, err)
	require.False(t, ok, "superseded code must not verify")

	ok, err = svc.Verify(context.Background(), user, "246813", PurposeReset)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, db.Model(&models.PasswordResetPin{}).Count(&count).Error)
	require.Zero(t, count)

	ok, err = svc.Verify(context.Background(), user, "246813", PurposeReset)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPinResetIsScopedByKind(t *testing.T) {
	db := openServiceDB(t)
	clock := newTestClock()
	svc := newPinService(t, db, &fakeMailer{}, clock, "582047")
	user := createUser(t, db, "shared@example.com")
	admin := createAdmin(t, db, "shared@example.com", false)

	_, err := svc.Issue(context.Background(), user, PurposeReset)
	require.NoError(t, err)

	ok, err := svc.Verify(context.Background(), admin, "582047", PurposeReset)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = svc.Verify(context.Background(), user, "582047", PurposeReset)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestPinResetExpires(t *testing.T) {
	db := openServiceDB(t)
	clock := newTestClock()
	svc := newPinService(t, db, &fakeMailer{}, clock, "582047")
	user := createUser(t, db, "slow@example.com")

	_, err := svc.Issue(context.Background(), user, PurposeReset)
	require.NoError(t, err)

	clock.Advance(60 * time.Minute)
	ok, err := svc.Verify(context.Background(), user, "582047", PurposeReset)
	require.NoError(t, err)
	require.True(t, ok, "exactly at the limit is still valid")

	_, err = svc.Issue(context.Background(), user, PurposeReset)
	require.NoError(t, err)
	clock.Advance(61 * time.Minute)
	ok, err = svc.Verify(context.Background(), user, "582047", PurposeReset)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPinVerificationDiscardedAfterRepeatedMisses(t *testing.T) {
	db := openServiceDB(t)
	clock := newTestClock()
	svc := newPinService(t, db, &fakeMailer{}, clock, "042913")
	user := createUser(t, db, "guess@example.com")

	_, err := svc.Issue(context.Background(), user, PurposeVerification)
	require.NoError(t, err)

	for i := 0; i < DefaultMaxPinAttempts-1; i++ {
		ok, err := svc.Verify(context.Background(), user, "000000", PurposeVerification)
		require.NoError(t, err)
		require.False(t, ok)
	}

	var stored models.User
	require.NoError(t, db.First(&stored, "id = ?", user.ID).Error)
	require.Equal(t, DefaultMaxPinAttempts-1, stored.PinAttempts)
	require.Equal(t, "042913", stored.GetPinCode())

	ok, err := svc.Verify(context.Background(), &stored, "000000", PurposeVerification)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, db.First(&stored, "id = ?", user.ID).Error)
	require.Nil(t, stored.PinCode)
	require.Zero(t, stored.PinAttempts)

	ok, err = svc.Verify(context.Background(), &stored, "042913", PurposeVerification)
	require.NoError(t, err)
	require.False(t, ok, "the right code no longer verifies once the budget is spent")

	_, err = svc.Issue(context.Background(), &stored, PurposeVerification)
	require.NoError(t, err)
	for i := 0; i < DefaultMaxPinAttempts-1; i++ {
		ok, err = svc.Verify(context.Background(), &stored, "000000", PurposeVerification)
		require.NoError(t, err)
		require.False(t, ok)
	}
	ok, err = svc.Verify(context.Background(), &stored, "042913", PurposeVerification)
	require.NoError(t, err)
	require.True(t, ok, "a reissued code starts with a fresh budget")
}

func TestPinResetDiscardedAfterRepeatedMisses(t *testing.T) {
	db := openServiceDB(t)
	clock := newTestClock()
	svc, err := NewPinService(db, &fakeMailer{}, PinConfig{MaxAttempts: 3},
		WithPinClock(clock.Now),
		WithPinGenerator(fixedPin("582047")),
	)
	require.NoError(t, err)
	user := createUser(t, db, "brute@example.com")

	_, err = svc.Issue(context.Background(), user, PurposeReset)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		ok, err := svc.Verify(context.Background(), user, "902114", PurposeReset)
		require.NoError(t, err)
		require.False(t, ok)
	}
	var record models.PasswordResetPin
	require.NoError(t, db.Take(&record, "email = ?", "brute@example.com").Error)
	require.Equal(t, 2, record.Attempts)

	ok, err := svc.Verify(context.Background(), user, "902114", PurposeReset)
	require.NoError(t, err)
	require.False(t, ok)

	var count int64
	require.NoError(t, db.Model(&models.PasswordResetPin{}).Count(&count).Error)
	require.Zero(t, count)

	ok, err = svc.Verify(context.Background(), user, "582047", PurposeReset)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = svc.Issue(context.Background(), user, PurposeReset)
	require.NoError(t, err)
	ok, err = svc.Verify(context.Background(), user, "582047", PurposeReset)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestPinMailFailureIsReportedNotReturned(t *testing.T) {
	db := openServiceDB(t)
	clock := newTestClock()
	core, logs := observer.New(zapcore.WarnLevel)
	svc := newPinService(t, db, &fakeMailer{err: errMailDown}, clock, "042913", WithPinLogger(zap.New(core)))
	user := createUser(t, db, "offline@example.com")

	issue, err := svc.Issue(context.Background(), user, PurposeVerification)
	require.NoError(t, err)
	require.False(t, issue.EmailSent)

	entries := logs.FilterMessage("pin email delivery failed").All()
	require.Len(t, entries, 1)
	require.Equal(t, user.ID, entries[0].ContextMap()["principal_id"])

	var stored models.User
	require.NoError(t, db.First(&stored, "id = ?", user.ID).Error)
	require.Equal(t, "042913", stored.GetPinCode(), "the code is stored even when mail fails")
}

func TestPinIssueRejectsUnknownPurpose(t *testing.T) {
	db := openServiceDB(t)
	svc := newPinService(t, db, &fakeMailer{}, newTestClock(), "042913")
	user := createUser(t, db, "odd@example.com")

	_, err := svc.Issue(context.Background(), user, PinPurpose("login"))
	require.Error(t, err)
}
