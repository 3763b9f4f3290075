package database

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/jobboard/internal/models"
	"github.com/charlesng35/jobboard/pkg/crypto"
)

// SeedOptions describes the optional bootstrap super admin.
type SeedOptions struct {
	AdminName     string
	AdminEmail    string
	AdminPassword string
}

// AutoMigrate runs GORM auto migrations for all core models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Admin{},
		&models.PasswordResetPin{},
		&models.PasswordResetToken{},
		&models.Session{},
		&models.Company{},
		&models.Job{},
		&models.Profile{},
		&models.Education{},
		&models.Experience{},
		&models.Document{},
		&models.Application{},
		&models.ApplicationStatusHistory{},
		&models.Favorite{},
		&models.Notification{},
		&models.DeviceToken{},
		&models.AuditLog{},
		&models.CacheEntry{},
	)
}

// SeedData creates the bootstrap super admin when one is configured and
// no admin with that email exists yet. Seeded admins are pre-verified.
func SeedData(db *gorm.DB, opts SeedOptions) error {
	email := strings.ToLower(strings.TrimSpace(opts.AdminEmail))
	if email == "" {
		return nil
	}
	if opts.AdminPassword == "" {
		return errors.New("bootstrap admin requires a password")
	}

	var existing models.Admin
	err := db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("lookup bootstrap admin: %w", err)
	}

	hashed, err := crypto.HashPassword(opts.AdminPassword)
	if err != nil {
		return fmt.Errorf("hash bootstrap admin password: %w", err)
	}

	name := strings.TrimSpace(opts.AdminName)
	if name == "" {
		name = "Administrator"
	}

	now := time.Now().UTC()
	admin := &models.Admin{
		Account: models.Account{
			Name:     name,
			Email:    email,
			Password: hashed,
		},
		IsSuper: true,
	}
	admin.MarkVerified(now)

	return db.Create(admin).Error
}
