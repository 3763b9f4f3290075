package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/charlesng35/jobboard/pkg/response"
)

// Health reports liveness plus a database ping for readiness checks.
func Health(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := http.StatusOK
		checks := gin.H{"database": "ok"}

		if db != nil {
			ctx, cancel := context.WithTimeout(requestContext(c), 2*time.Second)
			defer cancel()
			sqlDB, err := db.DB()
			if err == nil {
				err = sqlDB.PingContext(ctx)
			}
			if err != nil {
				status = http.StatusServiceUnavailable
				checks["database"] = "unavailable"
			}
		}

		state := "ok"
		if status != http.StatusOK {
			state = "degraded"
		}
		response.Success(c, status, gin.H{
			"status":     state,
			"checks":     checks,
			"checked_at": time.Now().UTC(),
		})
	}
}
