package models

import "time"

// Profile is the applicant-facing résumé of a user.
type Profile struct {
	BaseModel

	UserID   string `gorm:"size:36;not null;uniqueIndex" json:"user_id"`
	User     *User  `gorm:"foreignKey:UserID" json:"-"`
	Headline string `gorm:"size:255" json:"headline"`
	Summary  string `gorm:"type:text" json:"summary"`
	Phone    string `gorm:"size:32" json:"phone"`
	Location string `gorm:"size:255" json:"location"`

	Educations  []Education  `gorm:"foreignKey:ProfileID;constraint:OnDelete:CASCADE" json:"educations,omitempty"`
	Experiences []Experience `gorm:"foreignKey:ProfileID;constraint:OnDelete:CASCADE" json:"experiences,omitempty"`
	Documents   []Document   `gorm:"foreignKey:ProfileID;constraint:OnDelete:CASCADE" json:"documents,omitempty"`
}

// Education is a degree or course entry on a profile.
type Education struct {
	BaseModel

	ProfileID    string     `gorm:"size:36;not null;index" json:"profile_id"`
	Institution  string     `gorm:"size:255;not null" json:"institution"`
	Degree       string     `gorm:"size:255" json:"degree"`
	FieldOfStudy string     `gorm:"size:255" json:"field_of_study"`
	StartDate    *time.Time `json:"start_date,omitempty"`
	EndDate      *time.Time `json:"end_date,omitempty"`
	Description  string     `gorm:"type:text" json:"description"`
}

// Experience is a past or current position on a profile.
type Experience struct {
	BaseModel

	ProfileID   string     `gorm:"size:36;not null;index" json:"profile_id"`
	Company     string     `gorm:"size:255;not null" json:"company"`
	Title       string     `gorm:"size:255;not null" json:"title"`
	Location    string     `gorm:"size:255" json:"location"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	Current     bool       `gorm:"default:false" json:"current"`
	Description string     `gorm:"type:text" json:"description"`
}

// Document is an uploaded file attached to a profile.
type Document struct {
	BaseModel

	ProfileID   string `gorm:"size:36;not null;index" json:"profile_id"`
	Name        string `gorm:"size:255;not null" json:"name"`
	Kind        string `gorm:"size:32;not null;default:other" json:"kind"`
	StorageKey  string `gorm:"size:512;not null" json:"-"`
	ContentType string `gorm:"size:128" json:"content_type"`
	Size        int64  `json:"size"`
}
