package models

import "github.com/charlesng35/jobboard/internal/workflow"

// Application is a profile's candidacy for a job.
// Status mirrors the most recent history entry.
type Application struct {
	BaseModel

	JobID       string          `gorm:"size:36;not null;uniqueIndex:idx_application_job_profile" json:"job_id"`
	Job         *Job            `gorm:"foreignKey:JobID" json:"job,omitempty"`
	ProfileID   string          `gorm:"size:36;not null;uniqueIndex:idx_application_job_profile;index" json:"profile_id"`
	Profile     *Profile        `gorm:"foreignKey:ProfileID" json:"profile,omitempty"`
	CoverLetter string          `gorm:"type:text" json:"cover_letter"`
	ResumePath  string          `gorm:"size:512" json:"resume_path,omitempty"`
	Status      workflow.Status `gorm:"size:32;not null;default:pending;index" json:"status"`
	Version     int             `gorm:"not null;default:0" json:"-"`

	History []ApplicationStatusHistory `gorm:"foreignKey:ApplicationID;constraint:OnDelete:CASCADE" json:"history,omitempty"`
}

// ApplicationStatusHistory is an append-only record of a status change.
type ApplicationStatusHistory struct {
	BaseModel

	ApplicationID string          `gorm:"size:36;not null;uniqueIndex:idx_application_history_seq" json:"application_id"`
	Sequence      int             `gorm:"not null;uniqueIndex:idx_application_history_seq" json:"sequence"`
	Status        workflow.Status `gorm:"size:32;not null" json:"status"`
	Feedback      *string         `gorm:"type:text" json:"feedback"`
}

// TableName keeps the singular table name used by the history log.
func (ApplicationStatusHistory) TableName() string {
	return "application_status_history"
}
