package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/jobboard/internal/handlers"
	"github.com/charlesng35/jobboard/internal/middleware"
	"github.com/charlesng35/jobboard/internal/models"
)

type adminRouteDeps struct {
	Companies    *handlers.CompanyHandler
	Jobs         *handlers.JobHandler
	Applications *handlers.ApplicationHandler
	Audit        *handlers.AuditHandler
}

func registerAdminRoutes(api *gin.RouterGroup, requireAuth gin.HandlerFunc, deps adminRouteDeps) {
	admin := api.Group("/admin")
	admin.Use(requireAuth, middleware.RequireKind(models.PrincipalAdmin))

	companies := admin.Group("/companies")
	{
		companies.GET("", deps.Companies.List)
		companies.POST("", deps.Companies.Create)
		companies.GET("/:id", deps.Companies.Get)
		companies.PUT("/:id", deps.Companies.Update)
		companies.DELETE("/:id", deps.Companies.Delete)
	}

	jobs := admin.Group("/jobs")
	{
		jobs.GET("", deps.Jobs.List)
		jobs.POST("", deps.Jobs.Create)
		jobs.GET("/:id", deps.Jobs.Get)
		jobs.PUT("/:id", deps.Jobs.Update)
		jobs.DELETE("/:id", deps.Jobs.Delete)
		jobs.POST("/:id/cancel", deps.Jobs.Cancel)
		jobs.GET("/:id/applications", deps.Applications.ListForJob)
	}

	applications := admin.Group("/applications")
	{
		applications.GET("/:id", deps.Applications.Get)
		applications.POST("/:id/transition", deps.Applications.Transition)
		applications.POST("/:id/restore", deps.Applications.Restore)
		applications.POST("/:id/reject", deps.Applications.Reject)
	}

	admin.GET("/audit", deps.Audit.List)
}
