package models

// User is a job seeker account.
type User struct {
	BaseModel
	Account

	Avatar string `gorm:"size:512" json:"avatar,omitempty"`

	// Provider and ProviderSubject identify accounts created through social login.
	Provider        string `gorm:"size:32;index:idx_user_provider_subject" json:"provider,omitempty"`
	ProviderSubject string `gorm:"size:255;index:idx_user_provider_subject" json:"-"`

	Profile *Profile `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"profile,omitempty"`
}

func (u *User) GetID() string { return u.ID }

func (u *User) Kind() PrincipalKind { return PrincipalUser }
