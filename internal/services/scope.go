package services

import (
	"strings"

	"gorm.io/gorm"

	"github.com/charlesng35/jobboard/internal/models"
)

// AdminScope bounds what an admin may see: the companies they own, or
// everything for super admins.
type AdminScope struct {
	AdminID string
	Super   bool
}

// ScopeFor builds the scope of an authenticated admin.
func ScopeFor(admin *models.Admin) AdminScope {
	if admin == nil {
		return AdminScope{}
	}
	return AdminScope{AdminID: admin.ID, Super: admin.IsSuper}
}

func (s AdminScope) companies(query *gorm.DB) *gorm.DB {
	if s.Super {
		return query
	}
	return query.Where("companies.admin_id = ?", strings.TrimSpace(s.AdminID))
}

// jobs restricts a jobs query to companies the admin may manage.
func (s AdminScope) jobs(query *gorm.DB) *gorm.DB {
	if s.Super {
		return query
	}
	return query.Where("jobs.company_id IN (?)", s.companyIDs(query))
}

// applications restricts an applications query to jobs the admin may manage.
func (s AdminScope) applications(query *gorm.DB) *gorm.DB {
	if s.Super {
		return query
	}
	jobIDs := query.Session(&gorm.Session{NewDB: true}).
		Model(&models.Job{}).
		Select("jobs.id").
		Where("jobs.company_id IN (?)", s.companyIDs(query))
	return query.Where("applications.job_id IN (?)", jobIDs)
}

func (s AdminScope) companyIDs(query *gorm.DB) *gorm.DB {
	return query.Session(&gorm.Session{NewDB: true}).
		Model(&models.Company{}).
		Select("companies.id").
		Where("companies.admin_id = ?", strings.TrimSpace(s.AdminID))
}
