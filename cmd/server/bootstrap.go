package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/jobboard/internal/api"
	"github.com/charlesng35/jobboard/internal/app"
	"github.com/charlesng35/jobboard/internal/app/maintenance"
	iauth "github.com/charlesng35/jobboard/internal/auth"
	"github.com/charlesng35/jobboard/internal/cache"
	"github.com/charlesng35/jobboard/internal/database"
	"github.com/charlesng35/jobboard/internal/dispatch"
	"github.com/charlesng35/jobboard/internal/middleware"
	"github.com/charlesng35/jobboard/internal/realtime"
	"github.com/charlesng35/jobboard/pkg/logger"
	"github.com/charlesng35/jobboard/pkg/mail"
	"github.com/charlesng35/jobboard/pkg/push"
	"github.com/charlesng35/jobboard/pkg/storage"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB         *gorm.DB
	Cache      cache.Store
	Dispatcher dispatch.Dispatcher
	Hub        *realtime.Hub
	Cleaner    *maintenance.Cleaner
	Router     *gin.Engine

	stopWorkers context.CancelFunc
	workersDone chan struct{}
}

// bootstrapRuntime initialises the database, cache, delivery channels,
// domain services and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	stack.Cache, err = cache.New(cfg.Cache.Driver, stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise cache: %w", err)
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	sessionCfg := cfg.Auth.SessionServiceConfig()
	sessionCfg.Cache = iauth.NewStoreSessionCache(stack.Cache)
	sessionSvc, err := iauth.NewSessionService(stack.DB, jwtSvc, sessionCfg)
	if err != nil {
		return nil, fmt.Errorf("initialise session service: %w", err)
	}

	mailer, err := initialiseMailer(cfg)
	if err != nil {
		return nil, err
	}

	sender, err := initialisePush(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := storage.New(cfg.Storage.Backend())
	if err != nil {
		return nil, fmt.Errorf("initialise storage: %w", err)
	}

	stack.Dispatcher, err = dispatch.New(cfg.Queue.DispatchConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise dispatcher: %w", err)
	}

	stack.Hub = realtime.NewHub(realtime.WithAllowedOrigins(cfg.Server.CORS.AllowedOrigins...))

	verifiers := map[string]iauth.IdentityVerifier{}
	if cfg.Social.Google.Enabled {
		google, err := iauth.NewGoogleVerifier(cfg.Social.GoogleVerifierConfig())
		if err != nil {
			return nil, fmt.Errorf("initialise google sign-in: %w", err)
		}
		verifiers["google"] = google
	}

	svc, err := api.BuildServices(stack.DB, cfg, api.Runtime{
		Sessions:   sessionSvc,
		Mailer:     mailer,
		Push:       sender,
		Storage:    store,
		Dispatcher: stack.Dispatcher,
		Hub:        stack.Hub,
		Verifiers:  verifiers,
	})
	if err != nil {
		return nil, fmt.Errorf("build services: %w", err)
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	stack.stopWorkers = cancel
	stack.workersDone = make(chan struct{})
	go func(d dispatch.Dispatcher) {
		defer close(stack.workersDone)
		if err := d.Run(workerCtx); err != nil {
			log.Error("dispatcher stopped", zap.Error(err))
		}
	}(stack.Dispatcher)

	if cfg.Maintenance.Enabled {
		opts := []maintenance.Option{
			maintenance.WithSchedule(cfg.Maintenance.Schedule),
			maintenance.WithSessions(sessionSvc),
			maintenance.WithAudit(svc.Audit, cfg.Maintenance.AuditRetentionDays),
			maintenance.WithNotifications(svc.Notifications, cfg.Maintenance.NotificationRetentionDays),
			maintenance.WithResetPinExpiry(cfg.Pin.PinServiceConfig().ResetExpiry),
		}
		if purger, ok := stack.Cache.(maintenance.Purger); ok {
			opts = append(opts, maintenance.WithCache(purger))
		}
		stack.Cleaner = maintenance.NewCleaner(stack.DB, opts...)
		if err := stack.Cleaner.Start(); err != nil {
			return nil, fmt.Errorf("start maintenance jobs: %w", err)
		}
	}

	stack.Router, err = api.NewRouter(api.Dependencies{
		DB:        stack.DB,
		JWT:       jwtSvc,
		Hub:       stack.Hub,
		Config:    cfg,
		RateStore: middleware.NewCacheRateStore(stack.Cache),
		Services:  svc,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

func initialiseMailer(cfg *app.Config) (mail.Mailer, error) {
	if !cfg.Email.SMTP.Enabled {
		logger.WithModule("bootstrap").Warn("smtp disabled; emails are logged instead of sent")
		return mail.NewLogMailer(logger.WithModule("mail")), nil
	}
	mailer, err := mail.NewSMTPMailer(cfg.Email.SMTPSettings())
	if err != nil {
		return nil, fmt.Errorf("initialise smtp mailer: %w", err)
	}
	return mailer, nil
}

func initialisePush(ctx context.Context, cfg *app.Config) (push.Sender, error) {
	if !cfg.Push.FCM.Enabled {
		return push.NewLogSender(logger.WithModule("push")), nil
	}
	sender, err := push.NewFCMSender(ctx, cfg.Push.FCM.SenderConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise fcm sender: %w", err)
	}
	return sender, nil
}

// Shutdown stops background work and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Cleaner != nil {
		<-s.Cleaner.Stop().Done()
		if err := s.Cleaner.RunOnce(ctx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
	}

	if s.Hub != nil {
		s.Hub.Close()
	}

	if s.stopWorkers != nil {
		s.stopWorkers()
		<-s.workersDone
	}
	if s.Dispatcher != nil {
		if err := s.Dispatcher.Close(); err != nil {
			log.Warn("dispatcher shutdown", zap.Error(err))
		}
	}

	if s.DB != nil {
		closeDatabase(s.DB, log)
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.Connection()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrateAndSeed(db, cfg.Bootstrap.Seed()); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))))

	return db, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
