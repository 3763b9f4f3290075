package models

import "gorm.io/datatypes"

// AuditLog records security-relevant and administrative actions.
type AuditLog struct {
	BaseModel

	ActorKind  PrincipalKind  `gorm:"size:16;index:idx_audit_actor" json:"actor_kind,omitempty"`
	ActorID    *string        `gorm:"size:36;index:idx_audit_actor" json:"actor_id,omitempty"`
	ActorEmail string         `gorm:"size:255" json:"actor_email,omitempty"`
	Action     string         `gorm:"size:64;not null;index" json:"action"`
	Resource   string         `gorm:"size:64;index" json:"resource"`
	ResourceID string         `gorm:"size:36;index" json:"resource_id,omitempty"`
	Result     string         `gorm:"size:16;not null" json:"result"`
	IPAddress  string         `gorm:"size:64" json:"ip_address"`
	UserAgent  string         `gorm:"size:512" json:"user_agent"`
	Metadata   datatypes.JSON `json:"metadata"`
}
