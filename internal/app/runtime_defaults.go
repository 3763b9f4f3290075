package app

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/multierr"

	"github.com/charlesng35/jobboard/pkg/crypto"
)

const (
	jwtSecretBytes     = 48
	minJWTSecretLength = 32
)

// ApplyRuntimeDefaults fills secrets that may be generated per process and
// rejects settings that would only fail later at first use. The returned map
// names generated keys so callers can warn without logging values.
func ApplyRuntimeDefaults(cfg *Config) (map[string]bool, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	generated := make(map[string]bool)
	if strings.TrimSpace(cfg.Auth.JWT.Secret) == "" {
		secret, err := crypto.GenerateToken(jwtSecretBytes)
		if err != nil {
			return nil, fmt.Errorf("generate jwt secret: %w", err)
		}
		cfg.Auth.JWT.Secret = secret
		generated["auth.jwt.secret"] = true
	}

	if err := validateRuntime(cfg); err != nil {
		return nil, err
	}
	return generated, nil
}

func validateRuntime(cfg *Config) error {
	var err error
	require := func(ok bool, format string, args ...any) {
		if !ok {
			err = multierr.Append(err, fmt.Errorf(format, args...))
		}
	}

	require(len(cfg.Auth.JWT.Secret) >= minJWTSecretLength,
		"auth.jwt.secret must be at least %d characters", minJWTSecretLength)
	require(cfg.Bootstrap.AdminEmail == "" || cfg.Bootstrap.AdminPassword != "",
		"bootstrap.admin_password is required when bootstrap.admin_email is set")

	if smtp := cfg.Email.SMTP; smtp.Enabled {
		require(strings.TrimSpace(smtp.Host) != "", "email.smtp.host is required when smtp is enabled")
		require(strings.TrimSpace(smtp.From) != "", "email.smtp.from is required when smtp is enabled")
	}
	if fcm := cfg.Push.FCM; fcm.Enabled {
		require(strings.TrimSpace(fcm.CredentialsFile) != "" || strings.TrimSpace(fcm.CredentialsJSON) != "",
			"push.fcm credentials are required when fcm is enabled")
	}
	if google := cfg.Social.Google; google.Enabled {
		require(len(google.ClientIDs) > 0, "social.google.client_ids is required when google sign-in is enabled")
	}
	if strings.EqualFold(strings.TrimSpace(cfg.Storage.Driver), "s3") {
		require(strings.TrimSpace(cfg.Storage.Bucket) != "", "storage.bucket is required for the s3 driver")
	}
	return err
}
