package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/jobboard/internal/dispatch"
	"github.com/charlesng35/jobboard/internal/models"
	"github.com/charlesng35/jobboard/internal/realtime"
	"github.com/charlesng35/jobboard/internal/workflow"
	"github.com/charlesng35/jobboard/pkg/push"
)

type recordingHub struct {
	mu     sync.Mutex
	events []string
}

func (h *recordingHub) BroadcastToUser(_ string, _ string, message realtime.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, message.Event)
}

func (h *recordingHub) received() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.events...)
}

type fakePushSender struct {
	mu           sync.Mutex
	sent         []push.Notification
	unregistered map[string]bool
}

func (s *fakePushSender) Send(_ context.Context, n push.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unregistered[n.Token] {
		return push.ErrTokenUnregistered
	}
	s.sent = append(s.sent, n)
	return nil
}

func TestNotificationServiceCreateAndList(t *testing.T) {
	db := openServiceDB(t)
	user := createUser(t, db, "alice@example.com")
	hub := &recordingHub{}

	svc, err := NewNotificationService(db, WithNotificationBroadcaster(hub))
	require.NoError(t, err)

	ctx := context.Background()
	dto, err := svc.Create(ctx, CreateNotificationInput{
		UserID:   user.ID,
		Type:     NotificationApplicationStatus,
		Title:    "Application update",
		Message:  "Your application is now reviewed.",
		Metadata: map[string]any{"application_id": "app-1"},
	})
	require.NoError(t, err)
	require.Equal(t, NotificationApplicationStatus, dto.Type)
	require.Equal(t, "app-1", dto.Metadata["application_id"])

	items, total, err := svc.ListForUser(ctx, ListNotificationsInput{UserID: user.ID})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, dto.ID, items[0].ID)
	require.False(t, items[0].IsRead)
	require.Equal(t, []string{"notification.created"}, hub.received())

	_, err = svc.Create(ctx, CreateNotificationInput{UserID: user.ID})
	require.Error(t, err)
}

func TestNotificationServiceMarkReadAndUnread(t *testing.T) {
	db := openServiceDB(t)
	clock := newTestClock()
	user := createUser(t, db, "bob@example.com")

	svc, err := NewNotificationService(db, WithNotificationClock(clock.Now))
	require.NoError(t, err)

	ctx := context.Background()
	first, err := svc.Create(ctx, CreateNotificationInput{UserID: user.ID, Type: "info", Title: "One"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateNotificationInput{UserID: user.ID, Type: "info", Title: "Two"})
	require.NoError(t, err)

	read, err := svc.MarkRead(ctx, user.ID, first.ID)
	require.NoError(t, err)
	require.True(t, read.IsRead)
	require.NotNil(t, read.ReadAt)

	unread, _, err := svc.ListForUser(ctx, ListNotificationsInput{UserID: user.ID, UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, unread, 1)

	back, err := svc.MarkUnread(ctx, user.ID, first.ID)
	require.NoError(t, err)
	require.False(t, back.IsRead)
	require.Nil(t, back.ReadAt)

	require.NoError(t, svc.MarkAllRead(ctx, user.ID))
	unread, _, err = svc.ListForUser(ctx, ListNotificationsInput{UserID: user.ID, UnreadOnly: true})
	require.NoError(t, err)
	require.Empty(t, unread)

	_, err = svc.MarkRead(ctx, "someone-else", first.ID)
	require.ErrorIs(t, err, ErrNotificationMissing)
	require.ErrorIs(t, svc.Delete(ctx, "someone-else", first.ID), ErrNotificationMissing)
	require.NoError(t, svc.Delete(ctx, user.ID, first.ID))
}

func TestNotificationServiceCleanupRead(t *testing.T) {
	db := openServiceDB(t)
	clock := newTestClock()
	user := createUser(t, db, "carol@example.com")
	svc, err := NewNotificationService(db, WithNotificationClock(clock.Now))
	require.NoError(t, err)

	old := models.Notification{
		BaseModel: models.BaseModel{CreatedAt: clock.Now().AddDate(0, 0, -40)},
		UserID:    user.ID, Type: "info", Title: "old read", IsRead: true,
	}
	oldUnread := models.Notification{
		BaseModel: models.BaseModel{CreatedAt: clock.Now().AddDate(0, 0, -40)},
		UserID:    user.ID, Type: "info", Title: "old unread",
	}
	require.NoError(t, db.Create(&old).Error)
	require.NoError(t, db.Create(&oldUnread).Error)

	removed, err := svc.CleanupRead(context.Background(), 30)
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)
}

func TestApplicationStatusChangedFansOut(t *testing.T) {
	db := openServiceDB(t)
	fx := seedApplication(t, db)
	mailer := &fakeMailer{}
	sender := &fakePushSender{unregistered: map[string]bool{"stale-token": true}}
	hub := &recordingHub{}

	require.NoError(t, db.Create(&models.DeviceToken{UserID: fx.User.ID, Token: "live-token", Platform: "android", LastSeenAt: time.Now()}).Error)
	require.NoError(t, db.Create(&models.DeviceToken{UserID: fx.User.ID, Token: "stale-token", Platform: "ios", LastSeenAt: time.Now()}).Error)

	dispatcher := dispatch.NewSync()
	svc, err := NewNotificationService(db, WithNotificationBroadcaster(hub), WithNotificationDispatcher(dispatcher))
	require.NoError(t, err)
	svc.RegisterHandlers(dispatcher, sender, mailer)

	svc.ApplicationStatusChanged(context.Background(), ApplicationEvent{
		ApplicationID: fx.Application.ID,
		UserID:        fx.User.ID,
		UserName:      fx.User.Name,
		UserEmail:     fx.User.Email,
		JobID:         fx.Job.ID,
		JobTitle:      fx.Job.Title,
		Status:        workflow.StatusReviewed,
		Feedback:      "Looks promising",
	})

	items, _, err := svc.ListForUser(context.Background(), ListNotificationsInput{UserID: fx.User.ID})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "reviewed", items[0].Metadata["status"])
	require.Equal(t, "/applications/"+fx.Application.ID, items[0].ActionURL)

	require.Len(t, sender.sent, 1)
	require.Equal(t, "live-token", sender.sent[0].Token)

	var tokens []models.DeviceToken
	require.NoError(t, db.Find(&tokens).Error)
	require.Len(t, tokens, 1, "unregistered tokens are forgotten")

	sent := mailer.messages()
	require.Len(t, sent, 1)
	require.Equal(t, []string{fx.User.Email}, sent[0].To)
	require.Contains(t, sent[0].Subject, "Backend Engineer")
	require.Equal(t, []string{"notification.created", "application.status"}, hub.received())
}
