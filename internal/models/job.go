package models

import "time"

// JobStatus is the listing state of a job.
type JobStatus string

const (
	JobOpen      JobStatus = "open"
	JobClosed    JobStatus = "closed"
	JobCancelled JobStatus = "cancelled"
)

// Valid reports whether s is a known job status.
func (s JobStatus) Valid() bool {
	switch s {
	case JobOpen, JobClosed, JobCancelled:
		return true
	}
	return false
}

// Job is a listing applicants can apply to.
type Job struct {
	BaseModel

	CompanyID      string     `gorm:"size:36;not null;index" json:"company_id"`
	Company        *Company   `gorm:"foreignKey:CompanyID" json:"company,omitempty"`
	Title          string     `gorm:"size:255;not null;index" json:"title"`
	Description    string     `gorm:"type:text" json:"description"`
	Location       string     `gorm:"size:255;index" json:"location"`
	EmploymentType string     `gorm:"size:32" json:"employment_type"`
	SalaryMin      *int       `json:"salary_min,omitempty"`
	SalaryMax      *int       `json:"salary_max,omitempty"`
	Status         JobStatus  `gorm:"size:16;not null;default:open;index" json:"status"`
	CancelledAt    *time.Time `json:"cancelled_at,omitempty"`

	Applications []Application `gorm:"foreignKey:JobID;constraint:OnDelete:CASCADE" json:"-"`
}
