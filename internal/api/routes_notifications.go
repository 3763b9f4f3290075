package api

import (
	"github.com/gin-gonic/gin"

	iauth "github.com/charlesng35/jobboard/internal/auth"
	"github.com/charlesng35/jobboard/internal/handlers"
	"github.com/charlesng35/jobboard/internal/middleware"
	"github.com/charlesng35/jobboard/internal/models"
)

type notificationRouteDeps struct {
	Notifications *handlers.NotificationHandler
	Realtime      *handlers.RealtimeHandler
}

func registerNotificationRoutes(api *gin.RouterGroup, jwt *iauth.JWTService, deps notificationRouteDeps) {
	userOnly := middleware.RequireKind(models.PrincipalUser)

	api.GET("/notifications/stream", middleware.Auth(jwt, middleware.WithQueryToken("token")), userOnly, deps.Realtime.Stream)

	group := api.Group("/notifications")
	group.Use(middleware.Auth(jwt), userOnly)
	{
		group.GET("", deps.Notifications.List)
		group.POST("/read-all", deps.Notifications.MarkAllRead)
		group.POST("/:id/read", deps.Notifications.MarkRead)
		group.POST("/:id/unread", deps.Notifications.MarkUnread)
		group.DELETE("/:id", deps.Notifications.Delete)
	}
}
