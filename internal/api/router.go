package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/charlesng35/jobboard/internal/app"
	iauth "github.com/charlesng35/jobboard/internal/auth"
	"github.com/charlesng35/jobboard/internal/handlers"
	"github.com/charlesng35/jobboard/internal/middleware"
	"github.com/charlesng35/jobboard/internal/realtime"
	"github.com/charlesng35/jobboard/internal/services"
)

// Services bundles the domain services the HTTP layer calls into.
type Services struct {
	Accounts      *services.AccountService
	Applications  *services.ApplicationService
	Jobs          *services.JobService
	Companies     *services.CompanyService
	Profiles      *services.ProfileService
	Favorites     *services.FavoriteService
	Notifications *services.NotificationService
	Devices       *services.DeviceTokenService
	Audit         *services.AuditService
}

// Dependencies are the runtime collaborators NewRouter needs.
type Dependencies struct {
	DB        *gorm.DB
	JWT       *iauth.JWTService
	Hub       *realtime.Hub
	Config    *app.Config
	RateStore middleware.RateStore
	Services  Services
}

func (d Dependencies) validate() error {
	switch {
	case d.DB == nil:
		return fmt.Errorf("database handle must be provided")
	case d.JWT == nil:
		return fmt.Errorf("jwt service must be provided")
	case d.Config == nil:
		return fmt.Errorf("config must be provided")
	case d.Services.Accounts == nil:
		return fmt.Errorf("account service must be provided")
	case d.Services.Applications == nil || d.Services.Jobs == nil || d.Services.Companies == nil:
		return fmt.Errorf("job board services must be provided")
	case d.Services.Profiles == nil || d.Services.Favorites == nil:
		return fmt.Errorf("profile services must be provided")
	case d.Services.Notifications == nil || d.Services.Devices == nil || d.Services.Audit == nil:
		return fmt.Errorf("notification and audit services must be provided")
	}
	return nil
}

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	cfg := deps.Config

	r := gin.New()

	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{}))
	r.Use(middleware.CORS(middleware.CORSOptions{
		AllowedOrigins:   cfg.Server.CORS.AllowedOrigins,
		AllowCredentials: cfg.Server.CORS.AllowCredentials,
	}))

	registerHealthRoutes(r, cfg, deps.DB)
	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	svc := deps.Services
	maxUpload := cfg.Server.MaxUploadMB << 20

	// PIN-sending endpoints share a tighter budget.
	window := cfg.Server.RateLimit.Window
	if window <= 0 {
		window = time.Minute
	}
	pinLimit := middleware.RateLimit(deps.RateStore, cfg.Server.RateLimit.Requests, window)

	requireAuth := middleware.Auth(deps.JWT)
	api := r.Group("/api")

	registerAuthRoutes(api, requireAuth, pinLimit, handlers.NewAuthHandler(svc.Accounts))
	registerJobRoutes(api, requireAuth, jobRouteDeps{
		Jobs:         handlers.NewJobHandler(svc.Jobs, svc.Accounts),
		Applications: handlers.NewApplicationHandler(svc.Applications, svc.Accounts, maxUpload),
	})
	registerAdminRoutes(api, requireAuth, adminRouteDeps{
		Companies:    handlers.NewCompanyHandler(svc.Companies, svc.Accounts),
		Jobs:         handlers.NewJobHandler(svc.Jobs, svc.Accounts),
		Applications: handlers.NewApplicationHandler(svc.Applications, svc.Accounts, maxUpload),
		Audit:        handlers.NewAuditHandler(svc.Audit, svc.Accounts),
	})
	registerMeRoutes(api, requireAuth, meRouteDeps{
		Profile:      handlers.NewProfileHandler(svc.Profiles, maxUpload),
		Applications: handlers.NewApplicationHandler(svc.Applications, svc.Accounts, maxUpload),
		Favorites:    handlers.NewFavoriteHandler(svc.Favorites),
		Devices:      handlers.NewDeviceHandler(svc.Devices),
	})
	registerNotificationRoutes(api, deps.JWT, notificationRouteDeps{
		Notifications: handlers.NewNotificationHandler(svc.Notifications),
		Realtime:      handlers.NewRealtimeHandler(deps.Hub),
	})

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
