package models

// Favorite bookmarks a job for a user.
type Favorite struct {
	BaseModel

	UserID string `gorm:"size:36;not null;uniqueIndex:idx_favorite_user_job" json:"user_id"`
	JobID  string `gorm:"size:36;not null;uniqueIndex:idx_favorite_user_job;index" json:"job_id"`
	Job    *Job   `gorm:"foreignKey:JobID;constraint:OnDelete:CASCADE" json:"job,omitempty"`
}
