package models

// PasswordResetPin is the single outstanding reset code for an (email, kind) pair.
type PasswordResetPin struct {
	BaseModel

	Email string        `gorm:"size:255;not null;uniqueIndex:idx_reset_pin_identity" json:"email"`
	Kind  PrincipalKind `gorm:"size:16;not null;uniqueIndex:idx_reset_pin_identity" json:"kind"`
	Pin   string        `gorm:"size:16;not null" json:"-"`

	// Attempts counts wrong guesses against Pin.
	Attempts int `gorm:"default:0" json:"-"`
}

// TableName pins the table name used by the upsert.
func (PasswordResetPin) TableName() string {
	return "password_reset_pins"
}
