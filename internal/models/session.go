package models

import "time"

// Session is a refresh-token session for a user or admin.
type Session struct {
	BaseModel

	PrincipalKind PrincipalKind `gorm:"size:16;not null;index:idx_session_principal" json:"principal_kind"`
	PrincipalID   string        `gorm:"size:36;not null;index:idx_session_principal" json:"principal_id"`
	// RefreshToken holds the SHA-256 of the token handed to the client.
	RefreshToken string     `gorm:"size:64;uniqueIndex;not null" json:"-"`
	IPAddress    string     `gorm:"size:64" json:"ip_address"`
	UserAgent    string     `gorm:"size:512" json:"user_agent"`
	ExpiresAt    time.Time  `gorm:"index" json:"expires_at"`
	LastUsedAt   time.Time  `json:"last_used_at"`
	RevokedAt    *time.Time `json:"revoked_at"`
}
