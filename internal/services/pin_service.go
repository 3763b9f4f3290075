package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/jobboard/internal/models"
	"github.com/charlesng35/jobboard/pkg/crypto"
	"github.com/charlesng35/jobboard/pkg/logger"
	"github.com/charlesng35/jobboard/pkg/mail"
	"github.com/charlesng35/jobboard/pkg/metrics"
)

// PinPurpose selects where a code is stored and which email announces it.
type PinPurpose string

const (
	PurposeVerification PinPurpose = "verification"
	PurposeReset        PinPurpose = "reset"
)

// Valid reports whether p is a known purpose.
func (p PinPurpose) Valid() bool {
	return p == PurposeVerification || p == PurposeReset
}

const (
	DefaultVerificationExpiry = 24 * time.Hour
	DefaultResetExpiry        = 60 * time.Minute
	DefaultMaxPinAttempts     = 5
)

// PinConfig holds code lifetimes per purpose and the number of wrong
// guesses an outstanding code survives.
type PinConfig struct {
	VerificationExpiry time.Duration
	ResetExpiry        time.Duration
	MaxAttempts        int
}

// PinIssue is the outcome of issuing a code. EmailSent is false when the
// code was stored but the announcement email could not be delivered.
type PinIssue struct {
	Code      string
	EmailSent bool
}

// PinOption customises the PinService.
type PinOption func(*PinService)

// WithPinClock injects a custom time source.
func WithPinClock(clock func() time.Time) PinOption {
	return func(s *PinService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithPinGenerator replaces the random code source.
func WithPinGenerator(generate func() (string, error)) PinOption {
	return func(s *PinService) {
		if generate != nil {
			s.generate = generate
		}
	}
}

// WithPinLogger overrides the logger used for delivery failures.
func WithPinLogger(log *zap.Logger) PinOption {
	return func(s *PinService) {
		if log != nil {
			s.log = log
		}
	}
}

// PinService issues and checks 6-digit codes for email verification and
// password reset, for both users and admins.
type PinService struct {
	db       *gorm.DB
	mailer   mail.Mailer
	cfg      PinConfig
	now      func() time.Time
	generate func() (string, error)
	log      *zap.Logger
}

// NewPinService constructs a PinService.
func NewPinService(db *gorm.DB, mailer mail.Mailer, cfg PinConfig, opts ...PinOption) (*PinService, error) {
	if db == nil {
		return nil, errors.New("pin service: db is required")
	}
	if cfg.VerificationExpiry <= 0 {
		cfg.VerificationExpiry = DefaultVerificationExpiry
	}
	if cfg.ResetExpiry <= 0 {
		cfg.ResetExpiry = DefaultResetExpiry
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxPinAttempts
	}

	svc := &PinService{
		db:       db,
		mailer:   mailer,
		cfg:      cfg,
		now:      time.Now,
		generate: crypto.GeneratePin,
		log:      logger.WithModule("pins"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Expiry returns the lifetime of codes issued for purpose.
func (s *PinService) Expiry(purpose PinPurpose) time.Duration {
	if purpose == PurposeReset {
		return s.cfg.ResetExpiry
	}
	return s.cfg.VerificationExpiry
}

// Issue generates and stores a fresh code for principal, replacing any
// outstanding one of the same purpose, then emails it. Only storage failures
// are returned as errors.
func (s *PinService) Issue(ctx context.Context, principal models.Principal, purpose PinPurpose) (PinIssue, error) {
	ctx = ensureContext(ctx)
	if principal == nil {
		return PinIssue{}, errors.New("pin service: principal is required")
	}
	if !purpose.Valid() {
		return PinIssue{}, fmt.Errorf("pin service: unknown purpose %q", purpose)
	}

	code, err := s.generate()
	if err != nil {
		return PinIssue{}, fmt.Errorf("pin service: generate code: %w", err)
	}
	now := s.now().UTC()

	switch purpose {
	case PurposeVerification:
		err = s.storeVerification(ctx, principal, code, now)
	case PurposeReset:
		err = s.storeReset(ctx, principal, code, now)
	}
	if err != nil {
		return PinIssue{}, err
	}

	sent := s.deliver(ctx, principal, code, purpose)
	metrics.PinsIssued.WithLabelValues(string(purpose), strconv.FormatBool(sent)).Inc()

	return PinIssue{Code: code, EmailSent: sent}, nil
}

// Verify checks code against the outstanding code for principal and consumes
// it on success. Each issued code verifies at most once, and is discarded
// after MaxAttempts wrong guesses.
func (s *PinService) Verify(ctx context.Context, principal models.Principal, code string, purpose PinPurpose) (bool, error) {
	ctx = ensureContext(ctx)
	if principal == nil {
		return false, errors.New("pin service: principal is required")
	}

	var (
		ok  bool
		err error
	)
	switch purpose {
	case PurposeVerification:
		ok, err = s.verifyVerification(ctx, principal, strings.TrimSpace(code))
	case PurposeReset:
		ok, err = s.verifyReset(ctx, principal, strings.TrimSpace(code))
	default:
		return false, fmt.Errorf("pin service: unknown purpose %q", purpose)
	}
	if err != nil {
		return false, err
	}

	result := "failure"
	if ok {
		result = "success"
	}
	metrics.PinVerifications.WithLabelValues(string(purpose), result).Inc()
	return ok, nil
}

func (s *PinService) storeVerification(ctx context.Context, principal models.Principal, code string, now time.Time) error {
	err := s.db.WithContext(ctx).
		Model(principal).
		Updates(map[string]any{
			"pin_code":       code,
			"pin_created_at": now,
			"pin_attempts":   0,
		}).Error
	if err != nil {
		return fmt.Errorf("pin service: store verification code: %w", err)
	}
	principal.SetPinCode(code, now)
	return nil
}

func (s *PinService) storeReset(ctx context.Context, principal models.Principal, code string, now time.Time) error {
	record := models.PasswordResetPin{
		BaseModel: models.BaseModel{CreatedAt: now, UpdatedAt: now},
		Email:     normaliseEmail(principal.GetEmail()),
		Kind:      principal.Kind(),
		Pin:       code,
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "email"}, {Name: "kind"}},
			DoUpdates: clause.AssignmentColumns([]string{"pin", "attempts", "created_at", "updated_at"}),
		}).
		Create(&record).Error
	if err != nil {
		return fmt.Errorf("pin service: store reset code: %w", err)
	}
	return nil
}

func (s *PinService) verifyVerification(ctx context.Context, principal models.Principal, code string) (bool, error) {
	stored := principal.GetPinCode()
	issuedAt := principal.GetPinIssuedAt()
	if stored == "" || issuedAt == nil || code == "" {
		return false, nil
	}
	if !crypto.EqualCodes(stored, code) {
		return false, s.missVerification(ctx, principal, stored)
	}
	now := s.now().UTC()
	if now.After(issuedAt.Add(s.cfg.VerificationExpiry)) {
		return false, nil
	}

	res := s.db.WithContext(ctx).
		Model(principal).
		Where("pin_code = ?", stored).
		Updates(map[string]any{
			"pin_code":       nil,
			"pin_created_at": nil,
			"pin_attempts":   0,
			"is_verified":    true,
			"verified_at":    now,
		})
	if res.Error != nil {
		return false, fmt.Errorf("pin service: consume verification code: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	principal.ClearPin()
	principal.MarkVerified(now)
	return true, nil
}

func (s *PinService) verifyReset(ctx context.Context, principal models.Principal, code string) (bool, error) {
	if code == "" {
		return false, nil
	}

	var record models.PasswordResetPin
	err := s.db.WithContext(ctx).
		Where("email = ? AND kind = ?", normaliseEmail(principal.GetEmail()), principal.Kind()).
		Take(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("pin service: load reset code: %w", err)
	}

	if !crypto.EqualCodes(record.Pin, code) {
		return false, s.missReset(ctx, record)
	}
	if s.now().UTC().Sub(record.CreatedAt) > s.cfg.ResetExpiry {
		return false, nil
	}

	res := s.db.WithContext(ctx).
		Where("id = ? AND pin = ?", record.ID, record.Pin).
		Delete(&models.PasswordResetPin{})
	if res.Error != nil {
		return false, fmt.Errorf("pin service: consume reset code: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// missVerification counts a wrong guess and drops the code once the budget
// is spent.
func (s *PinService) missVerification(ctx context.Context, principal models.Principal, stored string) error {
	db := s.db.WithContext(ctx)
	err := db.Model(principal).
		Where("pin_code = ?", stored).
		UpdateColumn("pin_attempts", gorm.Expr("pin_attempts + 1")).Error
	if err != nil {
		return fmt.Errorf("pin service: count verification miss: %w", err)
	}

	res := db.Model(principal).
		Where("pin_code = ? AND pin_attempts >= ?", stored, s.cfg.MaxAttempts).
		UpdateColumns(map[string]any{
			"pin_code":       nil,
			"pin_created_at": nil,
			"pin_attempts":   0,
		})
	if res.Error != nil {
		return fmt.Errorf("pin service: discard verification code: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		principal.ClearPin()
		s.log.Info("verification code discarded after repeated misses",
			zap.String("kind", string(principal.Kind())),
			zap.String("principal_id", principal.GetID()))
	}
	return nil
}

func (s *PinService) missReset(ctx context.Context, record models.PasswordResetPin) error {
	db := s.db.WithContext(ctx)
	err := db.Model(&models.PasswordResetPin{}).
		Where("id = ? AND pin = ?", record.ID, record.Pin).
		UpdateColumn("attempts", gorm.Expr("attempts + 1")).Error
	if err != nil {
		return fmt.Errorf("pin service: count reset miss: %w", err)
	}

	res := db.Where("id = ? AND pin = ? AND attempts >= ?", record.ID, record.Pin, s.cfg.MaxAttempts).
		Delete(&models.PasswordResetPin{})
	if res.Error != nil {
		return fmt.Errorf("pin service: discard reset code: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		s.log.Info("reset code discarded after repeated misses",
			zap.String("kind", string(record.Kind)))
	}
	return nil
}

func (s *PinService) deliver(ctx context.Context, principal models.Principal, code string, purpose PinPurpose) bool {
	if s.mailer == nil {
		s.log.Warn("pin email skipped: no mailer configured",
			zap.String("purpose", string(purpose)),
			zap.String("principal_id", principal.GetID()))
		return false
	}

	template, subject := mail.TemplatePinVerification, "Verify your email address"
	if purpose == PurposeReset {
		template, subject = mail.TemplatePinReset, "Your password reset code"
	}

	msg, err := mail.NewTemplateMessage(principal.GetEmail(), subject, template, mail.PinTemplateData{
		Name:          principal.GetName(),
		Code:          code,
		ExpiryMinutes: int(s.Expiry(purpose) / time.Minute),
	})
	if err == nil {
		err = s.mailer.Send(ctx, msg)
	}
	if err != nil {
		s.log.Warn("pin email delivery failed",
			zap.String("purpose", string(purpose)),
			zap.String("kind", string(principal.Kind())),
			zap.String("principal_id", principal.GetID()),
			zap.Error(err))
		return false
	}
	return true
}
