package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/jobboard/internal/dispatch"
	"github.com/charlesng35/jobboard/internal/models"
	"github.com/charlesng35/jobboard/internal/realtime"
	"github.com/charlesng35/jobboard/pkg/logger"
	"github.com/charlesng35/jobboard/pkg/mail"
	"github.com/charlesng35/jobboard/pkg/push"
)

// Notification types and dispatcher task kinds.
const (
	NotificationApplicationStatus = "application.status"

	TaskPushSend              = "push.send"
	TaskEmailApplicationState = "email.application_status"
)

// NotificationDTO represents the API-friendly notification payload.
type NotificationDTO struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	ActionURL string         `json:"action_url,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	IsRead    bool           `json:"is_read"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	ReadAt    *time.Time     `json:"read_at,omitempty"`
}

// CreateNotificationInput defines attributes required to persist a notification.
type CreateNotificationInput struct {
	UserID    string
	Type      string
	Title     string
	Message   string
	ActionURL string
	Metadata  map[string]any
	// Push also delivers the notification to the user's registered devices.
	Push bool
}

// ListNotificationsInput defines filters for querying user notifications.
type ListNotificationsInput struct {
	ListOptions
	UserID     string
	UnreadOnly bool
}

// NotificationEventPayload represents data sent to realtime consumers.
type NotificationEventPayload struct {
	Notification   *NotificationDTO `json:"notification,omitempty"`
	NotificationID string           `json:"notification_id,omitempty"`
}

// Broadcaster fans realtime messages out to connected clients.
type Broadcaster interface {
	BroadcastToUser(stream, userID string, message realtime.Message)
}

// PushTask is the dispatcher payload for device pushes.
type PushTask struct {
	UserID string            `json:"user_id"`
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Data   map[string]string `json:"data,omitempty"`
}

// ApplicationEmailTask is the dispatcher payload for status emails.
type ApplicationEmailTask struct {
	To       string `json:"to"`
	Name     string `json:"name"`
	JobTitle string `json:"job_title"`
	Status   string `json:"status"`
	Feedback string `json:"feedback"`
}

// NotificationOption customises the NotificationService.
type NotificationOption func(*NotificationService)

// WithNotificationBroadcaster streams changes to websocket subscribers.
func WithNotificationBroadcaster(hub Broadcaster) NotificationOption {
	return func(s *NotificationService) {
		s.hub = hub
	}
}

// WithNotificationDispatcher routes push and email delivery through d.
func WithNotificationDispatcher(d dispatch.Dispatcher) NotificationOption {
	return func(s *NotificationService) {
		s.dispatcher = d
	}
}

// WithNotificationClock injects a custom time source.
func WithNotificationClock(clock func() time.Time) NotificationOption {
	return func(s *NotificationService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// NotificationService manages in-app notifications and their push and email
// fan-out.
type NotificationService struct {
	db         *gorm.DB
	hub        Broadcaster
	dispatcher dispatch.Dispatcher
	now        func() time.Time
	log        *zap.Logger
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(db *gorm.DB, opts ...NotificationOption) (*NotificationService, error) {
	if db == nil {
		return nil, errors.New("notification service: db is required")
	}
	svc := &NotificationService{
		db:  db,
		now: time.Now,
		log: logger.WithModule("notifications"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// RegisterHandlers binds the push and email task handlers on d.
func (s *NotificationService) RegisterHandlers(d dispatch.Dispatcher, sender push.Sender, mailer mail.Mailer) {
	if d == nil {
		return
	}
	if sender != nil {
		d.Handle(TaskPushSend, func(ctx context.Context, task dispatch.Task) error {
			var payload PushTask
			if err := task.Decode(&payload); err != nil {
				return err
			}
			return s.deliverPush(ctx, sender, payload)
		})
	}
	if mailer != nil {
		d.Handle(TaskEmailApplicationState, func(ctx context.Context, task dispatch.Task) error {
			var payload ApplicationEmailTask
			if err := task.Decode(&payload); err != nil {
				return err
			}
			msg, err := mail.NewTemplateMessage(payload.To, "Update on your application for "+payload.JobTitle, mail.TemplateApplicationStatus, mail.ApplicationStatusTemplateData{
				Name:     payload.Name,
				JobTitle: payload.JobTitle,
				Status:   payload.Status,
				Feedback: payload.Feedback,
			})
			if err != nil {
				return err
			}
			return mailer.Send(ctx, msg)
		})
	}
}

// ApplicationStatusChanged records and fans out an application status update.
func (s *NotificationService) ApplicationStatusChanged(ctx context.Context, event ApplicationEvent) {
	if strings.TrimSpace(event.UserID) == "" {
		return
	}
	title := fmt.Sprintf("Application update: %s", event.JobTitle)
	message := fmt.Sprintf("Your application is now %s.", event.Status)

	_, err := s.Create(ctx, CreateNotificationInput{
		UserID:    event.UserID,
		Type:      NotificationApplicationStatus,
		Title:     title,
		Message:   message,
		ActionURL: "/applications/" + event.ApplicationID,
		Metadata: map[string]any{
			"application_id": event.ApplicationID,
			"job_id":         event.JobID,
			"status":         event.Status,
			"feedback":       event.Feedback,
		},
		Push: true,
	})
	if err != nil {
		s.log.Warn("application notification failed",
			zap.String("application_id", event.ApplicationID),
			zap.Error(err))
	}

	if s.hub != nil {
		s.hub.BroadcastToUser(realtime.StreamApplications, event.UserID, realtime.Message{
			Stream: realtime.StreamApplications,
			Event:  "application.status",
			Data: map[string]any{
				"application_id": event.ApplicationID,
				"job_id":         event.JobID,
				"status":         event.Status,
				"feedback":       event.Feedback,
			},
		})
	}

	if event.UserEmail != "" {
		s.enqueue(ctx, TaskEmailApplicationState, ApplicationEmailTask{
			To:       event.UserEmail,
			Name:     event.UserName,
			JobTitle: event.JobTitle,
			Status:   string(event.Status),
			Feedback: event.Feedback,
		})
	}
}

// ListForUser returns notifications for the supplied user ordered by recency.
func (s *NotificationService) ListForUser(ctx context.Context, input ListNotificationsInput) ([]NotificationDTO, int64, error) {
	ctx = ensureContext(ctx)
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, 0, errors.New("notification service: user id is required")
	}
	_, perPage, offset := input.normalise()

	query := s.db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ?", userID)
	if input.UnreadOnly {
		query = query.Where("is_read = ?", false)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("notification service: count notifications: %w", err)
	}

	var rows []models.Notification
	if err := query.
		Order("created_at DESC").
		Limit(perPage).
		Offset(offset).
		Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("notification service: list notifications: %w", err)
	}

	return mapNotificationRows(rows), total, nil
}

// Create registers a new notification and broadcasts the event.
func (s *NotificationService) Create(ctx context.Context, input CreateNotificationInput) (*NotificationDTO, error) {
	ctx = ensureContext(ctx)
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, errors.New("notification service: user id is required")
	}
	notificationType := strings.TrimSpace(input.Type)
	if notificationType == "" {
		return nil, errors.New("notification service: type is required")
	}

	notification := models.Notification{
		UserID:    userID,
		Type:      notificationType,
		Title:     strings.TrimSpace(input.Title),
		Message:   strings.TrimSpace(input.Message),
		ActionURL: strings.TrimSpace(input.ActionURL),
		Metadata:  encodeJSON(input.Metadata),
	}

	if err := s.db.WithContext(ctx).Create(&notification).Error; err != nil {
		return nil, fmt.Errorf("notification service: create notification: %w", err)
	}

	dto := mapNotification(notification)
	s.broadcast(userID, "notification.created", &NotificationEventPayload{
		Notification: &dto,
	})

	if input.Push {
		s.enqueue(ctx, TaskPushSend, PushTask{
			UserID: userID,
			Title:  notification.Title,
			Body:   notification.Message,
			Data: map[string]string{
				"notification_id": notification.ID,
				"type":            notification.Type,
			},
		})
	}
	return &dto, nil
}

// MarkRead sets the notification read flag for a user.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID string) (*NotificationDTO, error) {
	ctx = ensureContext(ctx)
	notification, err := s.load(ctx, userID, notificationID)
	if err != nil {
		return nil, err
	}

	notification.MarkRead(s.now().UTC())
	if err := s.db.WithContext(ctx).Model(notification).
		Select("is_read", "read_at").
		Updates(notification).Error; err != nil {
		return nil, fmt.Errorf("notification service: mark read: %w", err)
	}

	dto := mapNotification(*notification)
	s.broadcast(userID, "notification.read", &NotificationEventPayload{
		Notification:   &dto,
		NotificationID: notification.ID,
	})
	return &dto, nil
}

// MarkUnread unsets the notification read flag.
func (s *NotificationService) MarkUnread(ctx context.Context, userID, notificationID string) (*NotificationDTO, error) {
	ctx = ensureContext(ctx)
	notification, err := s.load(ctx, userID, notificationID)
	if err != nil {
		return nil, err
	}

	notification.MarkUnread()
	if err := s.db.WithContext(ctx).Model(notification).
		Select("is_read", "read_at").
		Updates(notification).Error; err != nil {
		return nil, fmt.Errorf("notification service: mark unread: %w", err)
	}

	dto := mapNotification(*notification)
	s.broadcast(userID, "notification.updated", &NotificationEventPayload{
		Notification:   &dto,
		NotificationID: notification.ID,
	})
	return &dto, nil
}

// Delete removes a notification owned by the supplied user.
func (s *NotificationService) Delete(ctx context.Context, userID, notificationID string) error {
	ctx = ensureContext(ctx)
	result := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Delete(&models.Notification{})
	if result.Error != nil {
		return fmt.Errorf("notification service: delete notification: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotificationMissing
	}

	s.broadcast(userID, "notification.deleted", &NotificationEventPayload{
		NotificationID: notificationID,
	})
	return nil
}

// MarkAllRead marks all notifications for the user as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) error {
	ctx = ensureContext(ctx)
	now := s.now().UTC()
	if err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]any{
			"is_read": true,
			"read_at": now,
		}).Error; err != nil {
		return fmt.Errorf("notification service: mark all read: %w", err)
	}

	s.broadcast(userID, "notification.read_all", nil)
	return nil
}

// CleanupRead deletes read notifications older than retentionDays.
func (s *NotificationService) CleanupRead(ctx context.Context, retentionDays int) (int64, error) {
	ctx = ensureContext(ctx)
	if retentionDays <= 0 {
		return 0, errors.New("notification service: retentionDays must be positive")
	}
	cutoff := s.now().UTC().AddDate(0, 0, -retentionDays)
	result := s.db.WithContext(ctx).
		Where("is_read = ? AND created_at < ?", true, cutoff).
		Delete(&models.Notification{})
	if result.Error != nil {
		return 0, fmt.Errorf("notification service: cleanup: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *NotificationService) load(ctx context.Context, userID, notificationID string) (*models.Notification, error) {
	var notification models.Notification
	if err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", notificationID, userID).
		First(&notification).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotificationMissing
		}
		return nil, fmt.Errorf("notification service: load notification: %w", err)
	}
	return &notification, nil
}

func (s *NotificationService) deliverPush(ctx context.Context, sender push.Sender, payload PushTask) error {
	var tokens []models.DeviceToken
	if err := s.db.WithContext(ctx).Where("user_id = ?", payload.UserID).Find(&tokens).Error; err != nil {
		return fmt.Errorf("notification service: load device tokens: %w", err)
	}

	var failed error
	for _, token := range tokens {
		err := sender.Send(ctx, push.Notification{
			Token: token.Token,
			Title: payload.Title,
			Body:  payload.Body,
			Data:  payload.Data,
		})
		switch {
		case err == nil:
		case errors.Is(err, push.ErrTokenUnregistered):
			if delErr := s.db.WithContext(ctx).Delete(&models.DeviceToken{}, "id = ?", token.ID).Error; delErr != nil {
				s.log.Warn("forget device token failed", zap.String("token_id", token.ID), zap.Error(delErr))
			}
		default:
			failed = err
		}
	}
	return failed
}

func (s *NotificationService) enqueue(ctx context.Context, kind string, payload any) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Enqueue(ctx, kind, payload); err != nil {
		s.log.Warn("enqueue delivery task failed", zap.String("kind", kind), zap.Error(err))
	}
}

func (s *NotificationService) broadcast(userID, event string, payload *NotificationEventPayload) {
	if s.hub == nil {
		return
	}
	message := realtime.Message{
		Stream: realtime.StreamNotifications,
		Event:  event,
	}
	if payload != nil {
		message.Data = payload
	}
	s.hub.BroadcastToUser(realtime.StreamNotifications, userID, message)
}

func mapNotificationRows(rows []models.Notification) []NotificationDTO {
	items := make([]NotificationDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapNotification(row))
	}
	return items
}

func mapNotification(row models.Notification) NotificationDTO {
	return NotificationDTO{
		ID:        row.ID,
		UserID:    row.UserID,
		Type:      row.Type,
		Title:     row.Title,
		Message:   row.Message,
		ActionURL: row.ActionURL,
		Metadata:  decodeJSON(row.Metadata),
		IsRead:    row.IsRead,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
		ReadAt:    row.ReadAt,
	}
}
