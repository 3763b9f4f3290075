package app

import (
	"strings"

	"github.com/charlesng35/jobboard/internal/database"
	"github.com/charlesng35/jobboard/internal/dispatch"
	"github.com/charlesng35/jobboard/pkg/mail"
	"github.com/charlesng35/jobboard/pkg/push"
	"github.com/charlesng35/jobboard/pkg/storage"
)

// Connection converts DatabaseConfig to database.Config.
func (c DatabaseConfig) Connection() database.Config {
	return database.Config{
		Driver:          c.Driver,
		Path:            c.Path,
		DSN:             c.DSN,
		Host:            c.Host,
		Port:            c.Port,
		Name:            c.Name,
		User:            c.User,
		Password:        c.Password,
		Options:         c.Options,
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
		LogQueries:      c.LogQueries,
	}
}

// Seed converts BootstrapConfig to database.SeedOptions.
func (c BootstrapConfig) Seed() database.SeedOptions {
	return database.SeedOptions{
		AdminName:     strings.TrimSpace(c.AdminName),
		AdminEmail:    strings.TrimSpace(c.AdminEmail),
		AdminPassword: c.AdminPassword,
	}
}

// SenderConfig converts FCM settings for push.NewFCMSender.
func (c FCMConfig) SenderConfig() push.FCMConfig {
	cfg := push.FCMConfig{
		ProjectID:       strings.TrimSpace(c.ProjectID),
		CredentialsFile: strings.TrimSpace(c.CredentialsFile),
		Endpoint:        strings.TrimSpace(c.Endpoint),
		Timeout:         c.Timeout,
	}
	if raw := strings.TrimSpace(c.CredentialsJSON); raw != "" {
		cfg.CredentialsJSON = []byte(raw)
	}
	return cfg
}

// Backend converts StorageConfig to storage.Config.
func (c StorageConfig) Backend() storage.Config {
	return storage.Config{
		Driver:    c.Driver,
		BasePath:  c.BasePath,
		BaseURL:   c.BaseURL,
		Bucket:    c.Bucket,
		Region:    c.Region,
		Endpoint:  c.Endpoint,
		AccessKey: c.AccessKey,
		SecretKey: c.SecretKey,
		PathStyle: c.PathStyle,
	}
}

// DispatchConfig converts QueueConfig to dispatch.Config.
func (c QueueConfig) DispatchConfig() dispatch.Config {
	return dispatch.Config{
		Driver:      c.Driver,
		Workers:     c.Workers,
		Buffer:      c.Buffer,
		MaxAttempts: c.MaxAttempts,
		AMQP: dispatch.AMQPConfig{
			URL:      strings.TrimSpace(c.AMQP.URL),
			Queue:    strings.TrimSpace(c.AMQP.Queue),
			Prefetch: c.AMQP.Prefetch,
		},
	}
}

// SMTPSettings converts EmailConfig to the mail package representation.
func (c EmailConfig) SMTPSettings() mail.SMTPSettings {
	smtp := c.SMTP
	return mail.SMTPSettings{
		Enabled:  smtp.Enabled,
		Host:     strings.TrimSpace(smtp.Host),
		Port:     smtp.Port,
		Username: smtp.Username,
		Password: smtp.Password,
		From:     strings.TrimSpace(smtp.From),
		UseTLS:   smtp.UseTLS,
		Timeout:  smtp.Timeout,
	}
}
