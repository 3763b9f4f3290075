package models

import "time"

// DeviceToken is an FCM registration token for a user's device.
type DeviceToken struct {
	BaseModel

	UserID     string    `gorm:"size:36;not null;index" json:"user_id"`
	Token      string    `gorm:"size:512;not null;uniqueIndex" json:"token"`
	Platform   string    `gorm:"size:16" json:"platform"`
	LastSeenAt time.Time `json:"last_seen_at"`
}
