package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification is an in-app message for a candidate, usually about one of
// their applications. Unread rows are listed per user, newest first.
type Notification struct {
	BaseModel

	UserID    string         `gorm:"size:36;not null;index:idx_notifications_inbox,priority:1" json:"user_id"`
	User      *User          `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Type      string         `gorm:"size:64;not null" json:"type"`
	Title     string         `gorm:"size:255;not null" json:"title"`
	Message   string         `gorm:"type:text" json:"message"`
	ActionURL string         `gorm:"size:512" json:"action_url"`
	Metadata  datatypes.JSON `json:"metadata"`

	IsRead bool       `gorm:"not null;default:false;index:idx_notifications_inbox,priority:2" json:"is_read"`
	ReadAt *time.Time `json:"read_at"`
}

// MarkRead flips the read flag, stamping ReadAt only on the first read.
func (n *Notification) MarkRead(at time.Time) {
	if n.IsRead {
		return
	}
	n.IsRead = true
	n.ReadAt = &at
}

// MarkUnread clears the read flag and timestamp.
func (n *Notification) MarkUnread() {
	n.IsRead = false
	n.ReadAt = nil
}
