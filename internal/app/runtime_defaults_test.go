package app

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestApplyRuntimeDefaultsGeneratesJWTSecret(t *testing.T) {
	cfg := &Config{}

	generated, err := ApplyRuntimeDefaults(cfg)
	require.NoError(t, err)
	require.True(t, generated["auth.jwt.secret"])
	require.GreaterOrEqual(t, len(cfg.Auth.JWT.Secret), minJWTSecretLength)
}

func TestApplyRuntimeDefaultsKeepsConfiguredSecret(t *testing.T) {
	secret := strings.Repeat("k", minJWTSecretLength)
	cfg := &Config{}
	cfg.Auth.JWT.Secret = secret

	generated, err := ApplyRuntimeDefaults(cfg)
	require.NoError(t, err)
	require.Empty(t, generated)
	require.Equal(t, secret, cfg.Auth.JWT.Secret)
}

func TestApplyRuntimeDefaultsReportsEveryProblem(t *testing.T) {
	cfg := &Config{}
	cfg.Auth.JWT.Secret = "short"
	cfg.Bootstrap.AdminEmail = "root@example.com"
	cfg.Email.SMTP.Enabled = true
	cfg.Push.FCM.Enabled = true
	cfg.Social.Google.Enabled = true
	cfg.Storage.Driver = "S3"

	_, err := ApplyRuntimeDefaults(cfg)
	require.Error(t, err)
	require.Len(t, multierr.Errors(err), 7)
	require.ErrorContains(t, err, "auth.jwt.secret")
	require.ErrorContains(t, err, "bootstrap.admin_password")
	require.ErrorContains(t, err, "storage.bucket")
}

func TestApplyRuntimeDefaultsNilConfig(t *testing.T) {
	_, err := ApplyRuntimeDefaults(nil)
	require.EqualError(t, err, "config is nil")
}
