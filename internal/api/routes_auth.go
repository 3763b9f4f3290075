package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/jobboard/internal/handlers"
	"github.com/charlesng35/jobboard/internal/models"
)

func registerAuthRoutes(api *gin.RouterGroup, requireAuth, pinLimit gin.HandlerFunc, h *handlers.AuthHandler) {
	kinds := map[string]models.PrincipalKind{
		"/users":  models.PrincipalUser,
		"/admins": models.PrincipalAdmin,
	}
	for prefix, kind := range kinds {
		group := api.Group(prefix)
		group.POST("/register", h.Register(kind))
		group.POST("/login", h.Login(kind))
		group.POST("/verify-email", pinLimit, h.VerifyEmail(kind))
		group.POST("/resend-verification", pinLimit, h.ResendVerification(kind))
		group.POST("/forgot-password", pinLimit, h.ForgotPassword(kind))
		group.POST("/verify-reset-pin", pinLimit, h.VerifyResetPin(kind))
	}

	auth := api.Group("/auth")
	{
		auth.POST("/reset-password", h.ResetPassword)
		auth.POST("/refresh", h.Refresh)
		auth.POST("/social/:provider", h.Social)
		auth.GET("/me", requireAuth, h.Me)
		auth.POST("/logout", requireAuth, h.Logout)
	}
}
