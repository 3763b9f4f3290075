package models

import "time"

// PasswordResetToken authorises one password change after a reset PIN was verified.
type PasswordResetToken struct {
	BaseModel

	PrincipalKind PrincipalKind `gorm:"size:16;not null;index:idx_reset_token_principal" json:"principal_kind"`
	PrincipalID   string        `gorm:"size:36;not null;index:idx_reset_token_principal" json:"principal_id"`
	TokenHash     string        `gorm:"size:64;uniqueIndex;not null" json:"-"`
	ExpiresAt     time.Time     `gorm:"index" json:"expires_at"`
	UsedAt        *time.Time    `json:"used_at"`
}
