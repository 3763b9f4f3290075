package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/jobboard/internal/auth"
	"github.com/charlesng35/jobboard/internal/models"
	"github.com/charlesng35/jobboard/pkg/crypto"
	appErrors "github.com/charlesng35/jobboard/pkg/errors"
	"github.com/charlesng35/jobboard/pkg/logger"
	"github.com/charlesng35/jobboard/pkg/metrics"
)

const (
	minPasswordLength = 8
	resetTokenBytes   = 32
)

// AccountConfig tunes login lockout and password reset tokens.
type AccountConfig struct {
	LockoutThreshold int
	LockoutDuration  time.Duration
	ResetTokenTTL    time.Duration
}

// RegisterInput carries a new local account.
type RegisterInput struct {
	Kind     models.PrincipalKind
	Name     string
	Email    string
	Password string
}

// LoginInput carries local credentials and client details.
type LoginInput struct {
	Kind      models.PrincipalKind
	Email     string
	Password  string
	IPAddress string
	UserAgent string
}

// LoginResult is a freshly issued session for an authenticated principal.
type LoginResult struct {
	Tokens    auth.TokenPair   `json:"tokens"`
	Principal models.Principal `json:"principal"`
}

// ResetGrant authorises one password change.
type ResetGrant struct {
	Token     string    `json:"reset_token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AccountOption customises the AccountService.
type AccountOption func(*AccountService)

// WithAccountClock injects a custom time source.
func WithAccountClock(clock func() time.Time) AccountOption {
	return func(s *AccountService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithAccountAudit records authentication events.
func WithAccountAudit(audit *AuditService) AccountOption {
	return func(s *AccountService) {
		s.audit = audit
	}
}

// WithSocialVerifier enables social login for provider.
func WithSocialVerifier(provider string, verifier auth.IdentityVerifier) AccountOption {
	return func(s *AccountService) {
		if verifier == nil {
			return
		}
		s.verifiers[strings.ToLower(strings.TrimSpace(provider))] = verifier
	}
}

// AccountService implements registration, login, email verification,
// password reset and social login for users and admins.
type AccountService struct {
	db        *gorm.DB
	pins      *PinService
	sessions  *auth.SessionService
	audit     *AuditService
	verifiers map[string]auth.IdentityVerifier
	cfg       AccountConfig
	now       func() time.Time
	log       *zap.Logger
}

// NewAccountService constructs an AccountService.
func NewAccountService(db *gorm.DB, pins *PinService, sessions *auth.SessionService, cfg AccountConfig, opts ...AccountOption) (*AccountService, error) {
	if db == nil {
		return nil, errors.New("account service: db is required")
	}
	if pins == nil {
		return nil, errors.New("account service: pin service is required")
	}
	if sessions == nil {
		return nil, errors.New("account service: session service is required")
	}
	if cfg.LockoutThreshold <= 0 {
		cfg.LockoutThreshold = 5
	}
	if cfg.LockoutDuration <= 0 {
		cfg.LockoutDuration = 15 * time.Minute
	}
	if cfg.ResetTokenTTL <= 0 {
		cfg.ResetTokenTTL = 15 * time.Minute
	}

	svc := &AccountService{
		db:        db,
		pins:      pins,
		sessions:  sessions,
		verifiers: make(map[string]auth.IdentityVerifier),
		cfg:       cfg,
		now:       time.Now,
		log:       logger.WithModule("accounts"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Register creates an unverified account and emails its verification code.
// When the email cannot be delivered the account is removed again, so the
// address can register once mail works.
func (s *AccountService) Register(ctx context.Context, input RegisterInput) (models.Principal, error) {
	ctx = ensureContext(ctx)
	email := normaliseEmail(input.Email)
	name := strings.TrimSpace(input.Name)

	fields := map[string]string{}
	if name == "" {
		fields["name"] = "required"
	}
	if email == "" {
		fields["email"] = "required"
	}
	if len(input.Password) < minPasswordLength {
		fields["password"] = fmt.Sprintf("must be at least %d characters", minPasswordLength)
	}
	if len(fields) > 0 {
		return nil, appErrors.NewValidation("Invalid registration", fields)
	}

	principal, err := newPrincipal(input.Kind)
	if err != nil {
		return nil, err
	}
	hash, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("account service: hash password: %w", err)
	}
	account := accountOf(principal)
	account.Name = name
	account.Email = email
	account.Password = hash

	if err := s.db.WithContext(ctx).Create(principal).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("account service: create account: %w", err)
	}

	issue, err := s.pins.Issue(ctx, principal, PurposeVerification)
	if err == nil && !issue.EmailSent {
		err = ErrEmailDeliveryFailed
	}
	if err != nil {
		if delErr := s.db.WithContext(ctx).Delete(principal).Error; delErr != nil {
			s.log.Error("remove account after failed registration",
				zap.String("kind", string(input.Kind)),
				zap.String("principal_id", principal.GetID()),
				zap.Error(delErr))
		}
		return nil, err
	}

	recordAudit(s.audit, ctx, AuditEntry{
		Actor:      Actor{Kind: principal.Kind(), ID: principal.GetID(), Email: email},
		Action:     AuditActionRegister,
		Resource:   AuditResourceAccount,
		ResourceID: principal.GetID(),
		Result:     AuditResultSuccess,
	})
	return principal, nil
}

// Login checks local credentials and opens a session.
func (s *AccountService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	ctx = ensureContext(ctx)
	principal, err := s.authenticate(ctx, input)
	result := "success"
	switch {
	case errors.Is(err, ErrAccountLocked):
		result = "locked"
	case err != nil:
		result = "failure"
	}
	metrics.AuthAttempts.WithLabelValues(string(input.Kind), result).Inc()

	actor := Actor{Kind: input.Kind, Email: input.Email, IPAddress: input.IPAddress, UserAgent: input.UserAgent}
	if principal != nil {
		actor.ID = principal.GetID()
	}
	if err != nil {
		if !appErrors.IsInternal(err) {
			recordAudit(s.audit, ctx, AuditEntry{Actor: actor, Action: AuditActionLogin, Resource: AuditResourceAccount, Result: AuditResultFailure, Metadata: map[string]any{"reason": appErrors.FromError(err).Code}})
		}
		return nil, err
	}

	tokens, _, err := s.sessions.CreateSession(ctx, auth.Subject{ID: principal.GetID(), Kind: principal.Kind()}, auth.SessionMetadata{
		IPAddress: input.IPAddress,
		UserAgent: input.UserAgent,
	})
	if err != nil {
		return nil, fmt.Errorf("account service: create session: %w", err)
	}

	recordAudit(s.audit, ctx, AuditEntry{Actor: actor, Action: AuditActionLogin, Resource: AuditResourceAccount, ResourceID: actor.ID, Result: AuditResultSuccess})
	return &LoginResult{Tokens: tokens, Principal: principal}, nil
}

// VerifyEmail consumes a verification code for the account behind email.
func (s *AccountService) VerifyEmail(ctx context.Context, kind models.PrincipalKind, email, pin string) (models.Principal, error) {
	ctx = ensureContext(ctx)
	principal, err := s.findByEmail(ctx, kind, email)
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			return nil, ErrInvalidPin
		}
		return nil, err
	}
	if principal.Verified() {
		return nil, ErrAlreadyVerified
	}

	ok, err := s.pins.Verify(ctx, principal, pin, PurposeVerification)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidPin
	}

	recordAudit(s.audit, ctx, AuditEntry{
		Actor:      Actor{Kind: kind, ID: principal.GetID(), Email: principal.GetEmail()},
		Action:     AuditActionEmailVerified,
		Resource:   AuditResourceAccount,
		ResourceID: principal.GetID(),
		Result:     AuditResultSuccess,
	})
	return principal, nil
}

// ResendVerification issues a new verification code. Unknown addresses
// succeed silently.
func (s *AccountService) ResendVerification(ctx context.Context, kind models.PrincipalKind, email string) error {
	ctx = ensureContext(ctx)
	principal, err := s.findByEmail(ctx, kind, email)
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			return nil
		}
		return err
	}
	if principal.Verified() {
		return ErrAlreadyVerified
	}

	issue, err := s.pins.Issue(ctx, principal, PurposeVerification)
	if err != nil {
		return err
	}
	if !issue.EmailSent {
		return ErrEmailDeliveryFailed
	}
	return nil
}

// ForgotPassword emails a reset code. The outcome is the same whether or
// not the address belongs to an account.
func (s *AccountService) ForgotPassword(ctx context.Context, kind models.PrincipalKind, email string) error {
	ctx = ensureContext(ctx)
	principal, err := s.findByEmail(ctx, kind, email)
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			s.log.Debug("password reset for unknown address", zap.String("kind", string(kind)))
			return nil
		}
		return err
	}

	issue, err := s.pins.Issue(ctx, principal, PurposeReset)
	if err != nil {
		return err
	}
	if !issue.EmailSent {
		s.log.Warn("password reset code not delivered",
			zap.String("kind", string(kind)),
			zap.String("principal_id", principal.GetID()))
	}
	return nil
}

// VerifyResetPin consumes a reset code and grants a short-lived reset token.
func (s *AccountService) VerifyResetPin(ctx context.Context, kind models.PrincipalKind, email, pin string) (*ResetGrant, error) {
	ctx = ensureContext(ctx)
	principal, err := s.findByEmail(ctx, kind, email)
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			return nil, ErrInvalidPin
		}
		return nil, err
	}

	ok, err := s.pins.Verify(ctx, principal, pin, PurposeReset)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidPin
	}

	token, err := crypto.GenerateToken(resetTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("account service: generate reset token: %w", err)
	}
	now := s.now().UTC()
	record := models.PasswordResetToken{
		BaseModel:     models.BaseModel{CreatedAt: now, UpdatedAt: now},
		PrincipalKind: principal.Kind(),
		PrincipalID:   principal.GetID(),
		TokenHash:     crypto.HashToken(token),
		ExpiresAt:     now.Add(s.cfg.ResetTokenTTL),
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return nil, fmt.Errorf("account service: store reset token: %w", err)
	}
	return &ResetGrant{Token: token, ExpiresAt: record.ExpiresAt}, nil
}

// ResetPassword consumes a reset token, sets the new password and signs the
// principal out everywhere.
func (s *AccountService) ResetPassword(ctx context.Context, token, password string) error {
	ctx = ensureContext(ctx)
	if len(password) < minPasswordLength {
		return appErrors.NewValidation("Invalid password", map[string]string{"password": fmt.Sprintf("must be at least %d characters", minPasswordLength)})
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidResetToken
	}
	hash, err := crypto.HashPassword(password)
	if err != nil {
		return fmt.Errorf("account service: hash password: %w", err)
	}

	now := s.now().UTC()
	var record models.PasswordResetToken
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("token_hash = ?", crypto.HashToken(token)).Take(&record).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidResetToken
			}
			return fmt.Errorf("account service: load reset token: %w", err)
		}
		if record.UsedAt != nil || now.After(record.ExpiresAt) {
			return ErrInvalidResetToken
		}

		res := tx.Model(&models.PasswordResetToken{}).
			Where("id = ? AND used_at IS NULL", record.ID).
			Update("used_at", now)
		if res.Error != nil {
			return fmt.Errorf("account service: consume reset token: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrInvalidResetToken
		}

		principal, err := newPrincipal(record.PrincipalKind)
		if err != nil {
			return err
		}
		res = tx.Model(principal).
			Where("id = ?", record.PrincipalID).
			Updates(map[string]any{
				"password":        hash,
				"failed_attempts": 0,
				"locked_until":    nil,
			})
		if res.Error != nil {
			return fmt.Errorf("account service: update password: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrInvalidResetToken
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.sessions.RevokePrincipalSessions(ctx, auth.Subject{ID: record.PrincipalID, Kind: record.PrincipalKind}); err != nil {
		s.log.Warn("revoke sessions after password reset", zap.String("principal_id", record.PrincipalID), zap.Error(err))
	}
	recordAudit(s.audit, ctx, AuditEntry{
		Actor:      Actor{Kind: record.PrincipalKind, ID: record.PrincipalID},
		Action:     AuditActionPasswordReset,
		Resource:   AuditResourceAccount,
		ResourceID: record.PrincipalID,
		Result:     AuditResultSuccess,
	})
	return nil
}

// SocialLogin signs a user in with a provider ID token, linking or creating
// the account on first use.
func (s *AccountService) SocialLogin(ctx context.Context, provider, idToken string, meta auth.SessionMetadata) (*LoginResult, error) {
	ctx = ensureContext(ctx)
	provider = strings.ToLower(strings.TrimSpace(provider))
	verifier, ok := s.verifiers[provider]
	if !ok {
		return nil, appErrors.NewBadRequest("Unsupported social login provider")
	}

	identity, err := verifier.Verify(ctx, strings.TrimSpace(idToken))
	if err != nil {
		metrics.AuthAttempts.WithLabelValues(string(models.PrincipalUser), "failure").Inc()
		if errors.Is(err, auth.ErrSocialTokenInvalid) {
			return nil, appErrors.ErrUnauthorized.WithMessage("Invalid identity token").WithInternal(err)
		}
		return nil, appErrors.ErrServiceUnavailable.WithInternal(err)
	}
	if identity.Email == "" || !identity.EmailVerified {
		return nil, appErrors.ErrUnauthorized.WithMessage("The identity provider did not confirm the email address")
	}

	user, err := s.linkSocialUser(ctx, identity)
	if err != nil {
		return nil, err
	}

	tokens, _, err := s.sessions.CreateSession(ctx, auth.Subject{ID: user.ID, Kind: models.PrincipalUser}, meta)
	if err != nil {
		return nil, fmt.Errorf("account service: create session: %w", err)
	}
	metrics.AuthAttempts.WithLabelValues(string(models.PrincipalUser), "success").Inc()
	recordAudit(s.audit, ctx, AuditEntry{
		Actor:      Actor{Kind: models.PrincipalUser, ID: user.ID, Email: user.Email, IPAddress: meta.IPAddress, UserAgent: meta.UserAgent},
		Action:     AuditActionSocialLogin,
		Resource:   AuditResourceAccount,
		ResourceID: user.ID,
		Result:     AuditResultSuccess,
		Metadata:   map[string]any{"provider": identity.Provider},
	})
	return &LoginResult{Tokens: tokens, Principal: user}, nil
}

// Refresh rotates a refresh token.
func (s *AccountService) Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error) {
	tokens, _, err := s.sessions.RefreshSession(ensureContext(ctx), refreshToken)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrSessionNotFound),
			errors.Is(err, auth.ErrSessionRevoked),
			errors.Is(err, auth.ErrSessionExpired),
			errors.Is(err, auth.ErrSessionInvalidToken):
			return auth.TokenPair{}, appErrors.ErrUnauthorized.WithMessage("Invalid refresh token")
		}
		return auth.TokenPair{}, err
	}
	return tokens, nil
}

// Logout revokes the session behind the current access token.
func (s *AccountService) Logout(ctx context.Context, sessionID string) error {
	err := s.sessions.RevokeSession(ensureContext(ctx), sessionID)
	if errors.Is(err, auth.ErrSessionNotFound) {
		return nil
	}
	return err
}

// FindPrincipal loads an account by kind and id.
func (s *AccountService) FindPrincipal(ctx context.Context, kind models.PrincipalKind, id string) (models.Principal, error) {
	ctx = ensureContext(ctx)
	principal, err := newPrincipal(kind)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Where("id = ?", strings.TrimSpace(id)).Take(principal).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPrincipalNotFound
		}
		return nil, fmt.Errorf("account service: load account: %w", err)
	}
	return principal, nil
}

// IssuePin issues a code for the account identified by kind and id.
func (s *AccountService) IssuePin(ctx context.Context, kind models.PrincipalKind, principalID string, purpose PinPurpose) (PinIssue, error) {
	principal, err := s.FindPrincipal(ctx, kind, principalID)
	if err != nil {
		return PinIssue{}, err
	}
	return s.pins.Issue(ctx, principal, purpose)
}

// VerifyPin checks a code for the account identified by kind and id.
func (s *AccountService) VerifyPin(ctx context.Context, kind models.PrincipalKind, principalID, code string, purpose PinPurpose) (bool, error) {
	principal, err := s.FindPrincipal(ctx, kind, principalID)
	if err != nil {
		return false, err
	}
	return s.pins.Verify(ctx, principal, code, purpose)
}

func (s *AccountService) authenticate(ctx context.Context, input LoginInput) (models.Principal, error) {
	if normaliseEmail(input.Email) == "" || input.Password == "" {
		return nil, appErrors.ErrInvalidCredentials
	}
	principal, err := s.findByEmail(ctx, input.Kind, input.Email)
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			return nil, appErrors.ErrInvalidCredentials
		}
		return nil, err
	}

	account := accountOf(principal)
	now := s.now().UTC()

	if account.Locked(now) {
		return principal, ErrAccountLocked
	}
	if account.LockedUntil != nil {
		account.LockedUntil = nil
		account.FailedAttempts = 0
		if err := s.db.WithContext(ctx).Model(principal).Updates(map[string]any{
			"locked_until":    nil,
			"failed_attempts": 0,
		}).Error; err != nil {
			return nil, fmt.Errorf("account service: reset lock state: %w", err)
		}
	}

	if account.Password == "" || !crypto.VerifyPassword(account.Password, input.Password) {
		return principal, s.handleFailedAttempt(ctx, principal, now)
	}
	if !principal.Verified() {
		return principal, ErrEmailNotVerified
	}

	account.FailedAttempts = 0
	account.LastLoginAt = &now
	if err := s.db.WithContext(ctx).Model(principal).Updates(map[string]any{
		"failed_attempts": 0,
		"locked_until":    nil,
		"last_login_at":   now,
	}).Error; err != nil {
		return nil, fmt.Errorf("account service: update login state: %w", err)
	}
	return principal, nil
}

func (s *AccountService) handleFailedAttempt(ctx context.Context, principal models.Principal, now time.Time) error {
	account := accountOf(principal)
	account.FailedAttempts++

	updates := map[string]any{
		"failed_attempts": account.FailedAttempts,
	}
	if account.FailedAttempts >= s.cfg.LockoutThreshold {
		lockUntil := now.Add(s.cfg.LockoutDuration)
		account.LockedUntil = &lockUntil
		updates["locked_until"] = lockUntil
	}

	if err := s.db.WithContext(ctx).Model(principal).Updates(updates).Error; err != nil {
		return fmt.Errorf("account service: update failed attempts: %w", err)
	}
	if account.Locked(now) {
		return ErrAccountLocked
	}
	return appErrors.ErrInvalidCredentials
}

func (s *AccountService) linkSocialUser(ctx context.Context, identity *auth.SocialIdentity) (*models.User, error) {
	now := s.now().UTC()
	email := normaliseEmail(identity.Email)

	var user models.User
	err := s.db.WithContext(ctx).
		Where("provider = ? AND provider_subject = ?", identity.Provider, identity.Subject).
		Take(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("account service: load social user: %w", err)
	}

	err = s.db.WithContext(ctx).Where("email = ?", email).Take(&user).Error
	switch {
	case err == nil:
		updates := map[string]any{
			"provider":         identity.Provider,
			"provider_subject": identity.Subject,
		}
		if !user.IsVerified {
			updates["is_verified"] = true
			updates["verified_at"] = now
			updates["pin_code"] = nil
			updates["pin_created_at"] = nil
			updates["pin_attempts"] = 0
		}
		if user.Avatar == "" && identity.Picture != "" {
			updates["avatar"] = identity.Picture
		}
		if err := s.db.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("account service: link social user: %w", err)
		}
		if err := s.db.WithContext(ctx).Where("id = ?", user.ID).Take(&user).Error; err != nil {
			return nil, fmt.Errorf("account service: reload user: %w", err)
		}
		return &user, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("account service: load user: %w", err)
	}

	user = models.User{
		Account: models.Account{
			Name:  defaultIfEmpty(strings.TrimSpace(identity.Name), email),
			Email: email,
		},
		Avatar:          identity.Picture,
		Provider:        identity.Provider,
		ProviderSubject: identity.Subject,
	}
	user.MarkVerified(now)
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, appErrors.ErrConflict
		}
		return nil, fmt.Errorf("account service: create social user: %w", err)
	}
	return &user, nil
}

func (s *AccountService) findByEmail(ctx context.Context, kind models.PrincipalKind, email string) (models.Principal, error) {
	principal, err := newPrincipal(kind)
	if err != nil {
		return nil, err
	}
	email = normaliseEmail(email)
	if email == "" {
		return nil, ErrPrincipalNotFound
	}
	if err := s.db.WithContext(ctx).Where("email = ?", email).Take(principal).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPrincipalNotFound
		}
		return nil, fmt.Errorf("account service: load account: %w", err)
	}
	return principal, nil
}

func newPrincipal(kind models.PrincipalKind) (models.Principal, error) {
	switch kind {
	case models.PrincipalUser:
		return &models.User{}, nil
	case models.PrincipalAdmin:
		return &models.Admin{}, nil
	default:
		return nil, appErrors.NewBadRequest("Unknown account kind")
	}
}

func accountOf(principal models.Principal) *models.Account {
	switch p := principal.(type) {
	case *models.User:
		return &p.Account
	case *models.Admin:
		return &p.Account
	default:
		return &models.Account{}
	}
}
