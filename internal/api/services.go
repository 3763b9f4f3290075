package api

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/jobboard/internal/app"
	iauth "github.com/charlesng35/jobboard/internal/auth"
	"github.com/charlesng35/jobboard/internal/dispatch"
	"github.com/charlesng35/jobboard/internal/realtime"
	"github.com/charlesng35/jobboard/internal/services"
	"github.com/charlesng35/jobboard/pkg/mail"
	"github.com/charlesng35/jobboard/pkg/push"
	"github.com/charlesng35/jobboard/pkg/storage"
)

// Runtime carries the infrastructure the services are built on. Optional
// collaborators may be nil: notifications then skip that channel.
type Runtime struct {
	Sessions   *iauth.SessionService
	Mailer     mail.Mailer
	Push       push.Sender
	Storage    storage.Storage
	Dispatcher dispatch.Dispatcher
	Hub        *realtime.Hub
	Verifiers  map[string]iauth.IdentityVerifier
	// Clock overrides time.Now, mainly for tests.
	Clock func() time.Time
	// PinGenerator overrides random PIN generation, mainly for tests.
	PinGenerator func() (string, error)
}

// BuildServices wires every domain service from cfg and rt.
func BuildServices(db *gorm.DB, cfg *app.Config, rt Runtime) (Services, error) {
	if db == nil || cfg == nil {
		return Services{}, fmt.Errorf("build services: db and config are required")
	}
	if rt.Sessions == nil {
		return Services{}, fmt.Errorf("build services: session service is required")
	}
	clock := rt.Clock
	if clock == nil {
		clock = time.Now
	}

	audit, err := services.NewAuditService(db, services.WithAuditClock(clock))
	if err != nil {
		return Services{}, err
	}

	pinOpts := []services.PinOption{services.WithPinClock(clock)}
	if rt.PinGenerator != nil {
		pinOpts = append(pinOpts, services.WithPinGenerator(rt.PinGenerator))
	}
	pins, err := services.NewPinService(db, rt.Mailer, cfg.Pin.PinServiceConfig(), pinOpts...)
	if err != nil {
		return Services{}, err
	}

	accountOpts := []services.AccountOption{services.WithAccountClock(clock), services.WithAccountAudit(audit)}
	for provider, verifier := range rt.Verifiers {
		accountOpts = append(accountOpts, services.WithSocialVerifier(provider, verifier))
	}
	accounts, err := services.NewAccountService(db, pins, rt.Sessions, cfg.Auth.AccountServiceConfig(), accountOpts...)
	if err != nil {
		return Services{}, err
	}

	notifyOpts := []services.NotificationOption{services.WithNotificationClock(clock)}
	if rt.Hub != nil {
		notifyOpts = append(notifyOpts, services.WithNotificationBroadcaster(rt.Hub))
	}
	if rt.Dispatcher != nil {
		notifyOpts = append(notifyOpts, services.WithNotificationDispatcher(rt.Dispatcher))
	}
	notifications, err := services.NewNotificationService(db, notifyOpts...)
	if err != nil {
		return Services{}, err
	}
	notifications.RegisterHandlers(rt.Dispatcher, rt.Push, rt.Mailer)

	appOpts := []services.ApplicationOption{
		services.WithApplicationClock(clock),
		services.WithApplicationAudit(audit),
		services.WithApplicationNotifier(notifications),
	}
	if rt.Storage != nil {
		appOpts = append(appOpts, services.WithApplicationStorage(rt.Storage))
	}
	applications, err := services.NewApplicationService(db, appOpts...)
	if err != nil {
		return Services{}, err
	}

	jobs, err := services.NewJobService(db, applications, services.WithJobClock(clock), services.WithJobAudit(audit))
	if err != nil {
		return Services{}, err
	}
	companies, err := services.NewCompanyService(db)
	if err != nil {
		return Services{}, err
	}
	profiles, err := services.NewProfileService(db, rt.Storage)
	if err != nil {
		return Services{}, err
	}
	favorites, err := services.NewFavoriteService(db)
	if err != nil {
		return Services{}, err
	}
	devices, err := services.NewDeviceTokenService(db)
	if err != nil {
		return Services{}, err
	}

	return Services{
		Accounts:      accounts,
		Applications:  applications,
		Jobs:          jobs,
		Companies:     companies,
		Profiles:      profiles,
		Favorites:     favorites,
		Notifications: notifications,
		Devices:       devices,
		Audit:         audit,
	}, nil
}
