package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/angelpublicista/tenemos-filo-api/internal/domain"
	"github.com/angelpublicista/tenemos-filo-api/internal/wizard"
	"github.com/angelpublicista/tenemos-filo-api/pkg/middleware"
)

// RouterConfig wires handlers and middleware into the HTTP API
type RouterConfig struct {
	ServiceName string
	Sessions    middleware.SessionResolver
	CORS        middleware.CORSConfig
	RateLimit   middleware.RateLimitConfig
	// Audit is optional
	Audit *middleware.AuditLogger

	Health     *HealthHandler
	Email      *EmailHandler
	Auth       *AuthHandler
	Onboarding *OnboardingHandler
	Venue      *VenueHandler
}

func init() {
	// name binding errors by json field, as the wizard validator does
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(wizard.JSONFieldName)
	}
}

// NewRouter builds the gin engine
func NewRouter(cfg *RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(cfg.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.CORS(cfg.CORS))
	if cfg.Audit != nil {
		r.Use(middleware.AuditMiddleware(cfg.Audit))
	}

	r.GET("/health", cfg.Health.Health)
	r.GET("/ready", cfg.Health.Ready)

	limited := middleware.RateLimiter(cfg.RateLimit)
	auth := middleware.SessionAuth(&middleware.SessionConfig{Resolver: cfg.Sessions})

	r.POST("/api/email", limited, cfg.Email.Send)

	v1 := r.Group("/api/v1")
	{
		authGroup := v1.Group("/auth")
		authGroup.POST("/register", limited, cfg.Auth.Register)
		authGroup.POST("/login", limited, cfg.Auth.Login)
		authGroup.POST("/password-reset", limited, cfg.Auth.PasswordReset)
		authGroup.POST("/logout", auth, cfg.Auth.Logout)

		v1.GET("/me", auth, cfg.Auth.Me)

		onboarding := v1.Group("/onboarding")
		onboarding.POST("/host", limited, cfg.Onboarding.OnboardHost)
		onboarding.POST("/wizard", limited, cfg.Onboarding.CreateDraft)
		onboarding.GET("/wizard/:id", cfg.Onboarding.GetDraft)
		onboarding.PUT("/wizard/:id/steps/:step", cfg.Onboarding.SaveStep)
		onboarding.POST("/wizard/:id/back", cfg.Onboarding.Back)
		onboarding.POST("/wizard/:id/submit", limited, cfg.Onboarding.Submit)

		v1.GET("/organizations/:id/venues",
			auth,
			middleware.RequireRole(string(domain.RoleHost), string(domain.RoleAdmin)),
			cfg.Venue.ListByOrganization,
		)
	}

	return r
}
