package app

import (
	"strings"
	"time"

	"github.com/charlesng35/jobboard/internal/auth"
	"github.com/charlesng35/jobboard/internal/services"
)

const (
	defaultLockoutThreshold = 5
	defaultLockoutDuration  = 15 * time.Minute
	defaultResetTokenTTL    = 15 * time.Minute
)

// JWTServiceConfig converts AuthConfig into the parameters expected by the JWT service.
func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	ttl := c.JWT.TTL
	if ttl <= 0 {
		ttl = auth.DefaultAccessTokenTTL
	}

	return auth.JWTConfig{
		Secret:         c.JWT.Secret,
		Issuer:         c.JWT.Issuer,
		AccessTokenTTL: ttl,
	}
}

// SessionServiceConfig converts AuthConfig into SessionService parameters.
func (c AuthConfig) SessionServiceConfig() auth.SessionConfig {
	ttl := c.Session.RefreshTTL
	if ttl <= 0 {
		ttl = auth.DefaultRefreshTokenTTL
	}

	length := c.Session.RefreshLength
	if length <= 0 {
		length = 48
	}

	return auth.SessionConfig{
		RefreshTokenTTL: ttl,
		RefreshLength:   length,
	}
}

// AccountServiceConfig converts lockout and reset token settings.
func (c AuthConfig) AccountServiceConfig() services.AccountConfig {
	duration := c.Local.LockoutDuration
	if duration <= 0 {
		duration = defaultLockoutDuration
	}

	threshold := c.Local.LockoutThreshold
	if threshold <= 0 {
		threshold = defaultLockoutThreshold
	}

	resetTTL := c.ResetTokenTTL
	if resetTTL <= 0 {
		resetTTL = defaultResetTokenTTL
	}

	return services.AccountConfig{
		LockoutThreshold: threshold,
		LockoutDuration:  duration,
		ResetTokenTTL:    resetTTL,
	}
}

// PinServiceConfig converts minute-based PIN lifetimes.
func (c PinConfig) PinServiceConfig() services.PinConfig {
	cfg := services.PinConfig{
		VerificationExpiry: time.Duration(c.VerificationExpiryMinutes) * time.Minute,
		ResetExpiry:        time.Duration(c.ResetExpiryMinutes) * time.Minute,
		MaxAttempts:        c.MaxAttempts,
	}
	if cfg.VerificationExpiry <= 0 {
		cfg.VerificationExpiry = services.DefaultVerificationExpiry
	}
	if cfg.ResetExpiry <= 0 {
		cfg.ResetExpiry = services.DefaultResetExpiry
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = services.DefaultMaxPinAttempts
	}
	return cfg
}

// GoogleVerifierConfig converts the Google sign-in section.
func (c SocialConfig) GoogleVerifierConfig() auth.GoogleConfig {
	ids := make([]string, 0, len(c.Google.ClientIDs))
	for _, id := range c.Google.ClientIDs {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return auth.GoogleConfig{ClientIDs: ids}
}
