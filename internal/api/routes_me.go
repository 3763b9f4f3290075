package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/jobboard/internal/handlers"
	"github.com/charlesng35/jobboard/internal/middleware"
	"github.com/charlesng35/jobboard/internal/models"
)

type meRouteDeps struct {
	Profile      *handlers.ProfileHandler
	Applications *handlers.ApplicationHandler
	Favorites    *handlers.FavoriteHandler
	Devices      *handlers.DeviceHandler
}

func registerMeRoutes(api *gin.RouterGroup, requireAuth gin.HandlerFunc, deps meRouteDeps) {
	me := api.Group("/me")
	me.Use(requireAuth, middleware.RequireKind(models.PrincipalUser))

	me.GET("/profile", deps.Profile.Get)
	me.PUT("/profile", deps.Profile.Update)

	me.POST("/educations", deps.Profile.AddEducation)
	me.PUT("/educations/:id", deps.Profile.UpdateEducation)
	me.DELETE("/educations/:id", deps.Profile.DeleteEducation)

	me.POST("/experiences", deps.Profile.AddExperience)
	me.PUT("/experiences/:id", deps.Profile.UpdateExperience)
	me.DELETE("/experiences/:id", deps.Profile.DeleteExperience)

	me.GET("/documents", deps.Profile.ListDocuments)
	me.POST("/documents", deps.Profile.UploadDocument)
	me.DELETE("/documents/:id", deps.Profile.DeleteDocument)

	me.GET("/applications", deps.Applications.ListMine)
	me.GET("/applications/:id", deps.Applications.GetMine)

	me.GET("/favorites", deps.Favorites.List)
	me.PUT("/favorites/:jobID", deps.Favorites.Add)
	me.DELETE("/favorites/:jobID", deps.Favorites.Remove)

	me.GET("/devices", deps.Devices.List)
	me.POST("/devices", deps.Devices.Register)
	me.DELETE("/devices", deps.Devices.Unregister)
}
