package models

// Admin is a recruiter/back-office account that manages companies and jobs.
type Admin struct {
	BaseModel
	Account

	// IsSuper grants visibility over every company.
	IsSuper bool `gorm:"default:false" json:"is_super"`

	Companies []Company `gorm:"foreignKey:AdminID" json:"companies,omitempty"`
}

func (a *Admin) GetID() string { return a.ID }

func (a *Admin) Kind() PrincipalKind { return PrincipalAdmin }
