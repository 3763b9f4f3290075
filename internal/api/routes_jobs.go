package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/jobboard/internal/handlers"
	"github.com/charlesng35/jobboard/internal/middleware"
	"github.com/charlesng35/jobboard/internal/models"
)

type jobRouteDeps struct {
	Jobs         *handlers.JobHandler
	Applications *handlers.ApplicationHandler
}

func registerJobRoutes(api *gin.RouterGroup, requireAuth gin.HandlerFunc, deps jobRouteDeps) {
	jobs := api.Group("/jobs")
	{
		jobs.GET("", deps.Jobs.ListPublic)
		jobs.GET("/:id", deps.Jobs.GetPublic)
		jobs.POST("/:id/apply", requireAuth, middleware.RequireKind(models.PrincipalUser), deps.Applications.Apply)
	}
}
