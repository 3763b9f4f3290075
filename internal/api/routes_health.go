package api

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/charlesng35/jobboard/internal/app"
	"github.com/charlesng35/jobboard/internal/handlers"
)

func registerHealthRoutes(r *gin.Engine, cfg *app.Config, db *gorm.DB) {
	if !cfg.Monitoring.Health.Enabled {
		return
	}
	health := handlers.Health(db)
	r.GET("/health", health)
	r.GET("/api/health", health)
}
