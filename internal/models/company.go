package models

// Company groups job listings under an owning admin.
type Company struct {
	BaseModel

	AdminID     string `gorm:"size:36;not null;index" json:"admin_id"`
	Name        string `gorm:"size:255;not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`
	Website     string `gorm:"size:512" json:"website"`
	Location    string `gorm:"size:255" json:"location"`
	LogoURL     string `gorm:"size:512" json:"logo_url"`

	Jobs []Job `gorm:"foreignKey:CompanyID;constraint:OnDelete:CASCADE" json:"jobs,omitempty"`
}
