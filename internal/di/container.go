package di

import (
	"time"

	"github.com/angelpublicista/tenemos-filo-api/internal/handler"
	"github.com/angelpublicista/tenemos-filo-api/internal/identity"
	"github.com/angelpublicista/tenemos-filo-api/internal/notification"
	"github.com/angelpublicista/tenemos-filo-api/internal/repository"
	"github.com/angelpublicista/tenemos-filo-api/internal/service"
	"github.com/angelpublicista/tenemos-filo-api/internal/wizard"
	"github.com/angelpublicista/tenemos-filo-api/internal/worker"
	"github.com/angelpublicista/tenemos-filo-api/pkg/saga"
	"github.com/angelpublicista/tenemos-filo-api/pkg/session"
	"github.com/angelpublicista/tenemos-filo-api/pkg/telemetry"
)

// Container holds all dependencies for the registration API
type Container struct {
	// Infrastructure
	Identity   identity.Provider
	Sagas      *saga.StateMachine
	Sessions   *session.Manager
	Mailer     notification.TemplatedSender
	Dispatcher notification.Dispatcher
	Metrics    *telemetry.Metrics

	// Repositories
	ProfileRepo      repository.ProfileRepository
	OrganizationRepo repository.OrganizationRepository
	VenueRepo        repository.VenueRepository

	// Services
	DuplicateChecker    service.DuplicateChecker
	ProvisioningService service.ProvisioningService
	OnboardingService   service.OnboardingService
	AuthService         service.AuthService
	EmailService        service.EmailService
	VenueService        service.VenueService
	Wizard              *wizard.Service

	// Workers
	Reconciler *worker.Reconciler

	// Handlers
	HealthHandler     *handler.HealthHandler
	EmailHandler      *handler.EmailHandler
	AuthHandler       *handler.AuthHandler
	OnboardingHandler *handler.OnboardingHandler
	VenueHandler      *handler.VenueHandler
}

// ContainerConfig contains configuration for building the container
type ContainerConfig struct {
	Version string

	ProfileRepo      repository.ProfileRepository
	OrganizationRepo repository.OrganizationRepository
	VenueRepo        repository.VenueRepository

	Identity    identity.Provider
	SagaStore   saga.StateStore
	Sessions    *session.Manager
	DraftStore  wizard.Store
	Mailer      notification.TemplatedSender
	Dispatcher  notification.Dispatcher
	Metrics     *telemetry.Metrics
	HealthCheck map[string]handler.HealthCheck

	WizardTTL        time.Duration
	ReconcilerConfig *worker.ReconcilerConfig
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *ContainerConfig) *Container {
	c := &Container{
		Identity:         cfg.Identity,
		Sagas:            saga.NewStateMachine(cfg.SagaStore),
		Sessions:         cfg.Sessions,
		Mailer:           cfg.Mailer,
		Dispatcher:       cfg.Dispatcher,
		Metrics:          cfg.Metrics,
		ProfileRepo:      cfg.ProfileRepo,
		OrganizationRepo: cfg.OrganizationRepo,
		VenueRepo:        cfg.VenueRepo,
	}

	// Initialize services
	c.DuplicateChecker = service.NewDuplicateChecker(c.ProfileRepo)
	c.ProvisioningService = service.NewProvisioningService(
		c.ProfileRepo,
		c.Identity,
		c.DuplicateChecker,
		c.Sagas,
		c.Dispatcher,
		c.Metrics,
	)
	c.OnboardingService = service.NewOnboardingService(
		c.ProfileRepo,
		c.OrganizationRepo,
		c.VenueRepo,
		c.Identity,
		c.DuplicateChecker,
		c.Sagas,
		c.Dispatcher,
		c.Metrics,
	)
	c.AuthService = service.NewAuthService(c.Identity, c.ProfileRepo, c.Sessions)
	c.EmailService = service.NewEmailService(c.Mailer)
	c.VenueService = service.NewVenueService(c.VenueRepo)
	c.Wizard = wizard.NewService(cfg.DraftStore, c.OnboardingService, cfg.WizardTTL)

	// Initialize workers
	c.Reconciler = worker.NewReconciler(
		c.Sagas,
		c.ProvisioningService,
		c.OnboardingService,
		c.Metrics,
		cfg.ReconcilerConfig,
	)

	// Initialize handlers
	c.HealthHandler = handler.NewHealthHandler(cfg.Version, cfg.HealthCheck)
	c.EmailHandler = handler.NewEmailHandler(c.EmailService)
	c.AuthHandler = handler.NewAuthHandler(c.ProvisioningService, c.AuthService)
	c.OnboardingHandler = handler.NewOnboardingHandler(c.OnboardingService, c.Wizard)
	c.VenueHandler = handler.NewVenueHandler(c.VenueService)

	return c
}
