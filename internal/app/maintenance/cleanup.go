package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	iauth "github.com/charlesng35/jobboard/internal/auth"
	"github.com/charlesng35/jobboard/internal/models"
	"github.com/charlesng35/jobboard/internal/services"
	"github.com/charlesng35/jobboard/pkg/logger"
)

const (
	defaultAuditRetentionDays        = 90
	defaultNotificationRetentionDays = 30
	defaultSchedule                  = "@hourly"
	defaultResetPinExpiry            = services.DefaultResetExpiry
)

// Purger drops expired cache entries.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Cleaner runs periodic housekeeping: expired sessions, stale reset codes
// and tokens, expired cache rows, old audit logs and read notifications.
type Cleaner struct {
	db            *gorm.DB
	sessions      *iauth.SessionService
	audit         *services.AuditService
	notifications *services.NotificationService
	cache         Purger
	cron          *cron.Cron
	now           func() time.Time
	log           *zap.Logger

	schedule              string
	auditRetention        int
	notificationRetention int
	resetPinExpiry        time.Duration
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for expiry comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithSchedule overrides the cron expression for the cleanup pass.
func WithSchedule(expr string) Option {
	return func(cleaner *Cleaner) {
		if expr != "" {
			cleaner.schedule = expr
		}
	}
}

// WithSessions enables expired session cleanup.
func WithSessions(sessions *iauth.SessionService) Option {
	return func(cleaner *Cleaner) {
		cleaner.sessions = sessions
	}
}

// WithAudit enables audit log retention.
func WithAudit(audit *services.AuditService, retentionDays int) Option {
	return func(cleaner *Cleaner) {
		cleaner.audit = audit
		if retentionDays > 0 {
			cleaner.auditRetention = retentionDays
		}
	}
}

// WithNotifications enables pruning of read notifications.
func WithNotifications(notifications *services.NotificationService, retentionDays int) Option {
	return func(cleaner *Cleaner) {
		cleaner.notifications = notifications
		if retentionDays > 0 {
			cleaner.notificationRetention = retentionDays
		}
	}
}

// WithCache enables purging of expired cache rows.
func WithCache(purger Purger) Option {
	return func(cleaner *Cleaner) {
		cleaner.cache = purger
	}
}

// WithResetPinExpiry aligns reset code cleanup with the PIN service lifetime.
func WithResetPinExpiry(expiry time.Duration) Option {
	return func(cleaner *Cleaner) {
		if expiry > 0 {
			cleaner.resetPinExpiry = expiry
		}
	}
}

// NewCleaner constructs a Cleaner. Token cleanup runs whenever db is set;
// every other job is opt-in through options.
func NewCleaner(db *gorm.DB, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		db:                    db,
		now:                   time.Now,
		schedule:              defaultSchedule,
		auditRetention:        defaultAuditRetentionDays,
		notificationRetention: defaultNotificationRetentionDays,
		resetPinExpiry:        defaultResetPinExpiry,
		log:                   logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	return cleaner
}

func (c *Cleaner) enabled() bool {
	return c.db != nil || c.sessions != nil || c.audit != nil || c.notifications != nil || c.cache != nil
}

// Start registers the cleanup job and launches the scheduler.
func (c *Cleaner) Start() error {
	if !c.enabled() {
		return nil
	}
	if _, err := c.cron.AddFunc(c.schedule, func() {
		if err := c.RunOnce(context.Background()); err != nil {
			c.log.Warn("maintenance run finished with errors", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("maintenance: schedule %q: %w", c.schedule, err)
	}
	c.cron.Start()
	c.log.Info("maintenance scheduled", zap.String("schedule", c.schedule))
	return nil
}

// Stop halts the scheduler; the returned context is done once running jobs finish.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes every configured cleanup sequentially and joins the failures.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if c.sessions != nil {
		if removed, err := c.sessions.CleanupExpired(ctx); err != nil {
			errs = multierr.Append(errs, err)
		} else if removed > 0 {
			c.log.Debug("expired sessions removed", zap.Int64("count", removed))
		}
	}

	if c.db != nil {
		if stats, err := CleanupTokens(ctx, c.db, c.now(), c.resetPinExpiry); err != nil {
			errs = multierr.Append(errs, err)
		} else if stats.ResetPins+stats.ResetTokens > 0 {
			c.log.Debug("stale reset credentials removed",
				zap.Int64("pins", stats.ResetPins),
				zap.Int64("tokens", stats.ResetTokens))
		}
	}

	if c.cache != nil {
		if _, err := c.cache.PurgeExpired(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if c.audit != nil && c.auditRetention > 0 {
		if _, err := c.audit.CleanupOlderThan(ctx, c.auditRetention); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if c.notifications != nil && c.notificationRetention > 0 {
		if _, err := c.notifications.CleanupRead(ctx, c.notificationRetention); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}

// TokenCleanupStats captures the number of records removed per table.
type TokenCleanupStats struct {
	ResetPins   int64
	ResetTokens int64
}

// CleanupTokens removes reset codes older than pinExpiry and reset tokens that
// are expired or already used.
func CleanupTokens(ctx context.Context, db *gorm.DB, now time.Time, pinExpiry time.Duration) (TokenCleanupStats, error) {
	if db == nil {
		return TokenCleanupStats{}, errors.New("cleanup tokens: db is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if pinExpiry <= 0 {
		pinExpiry = defaultResetPinExpiry
	}

	stats := TokenCleanupStats{}

	if result := db.WithContext(ctx).
		Where("created_at < ?", now.Add(-pinExpiry)).
		Delete(&models.PasswordResetPin{}); result.Error != nil {
		return stats, fmt.Errorf("cleanup tokens: reset pins: %w", result.Error)
	} else {
		stats.ResetPins = result.RowsAffected
	}

	if result := db.WithContext(ctx).
		Where("expires_at < ? OR used_at IS NOT NULL", now).
		Delete(&models.PasswordResetToken{}); result.Error != nil {
		return stats, fmt.Errorf("cleanup tokens: reset tokens: %w", result.Error)
	} else {
		stats.ResetTokens = result.RowsAffected
	}

	return stats, nil
}
