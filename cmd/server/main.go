package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/angelpublicista/tenemos-filo-api/internal/di"
	"github.com/angelpublicista/tenemos-filo-api/internal/handler"
	"github.com/angelpublicista/tenemos-filo-api/internal/identity"
	"github.com/angelpublicista/tenemos-filo-api/internal/notification"
	"github.com/angelpublicista/tenemos-filo-api/internal/repository"
	"github.com/angelpublicista/tenemos-filo-api/internal/wizard"
	"github.com/angelpublicista/tenemos-filo-api/internal/worker"
	"github.com/angelpublicista/tenemos-filo-api/pkg/config"
	"github.com/angelpublicista/tenemos-filo-api/pkg/database"
	"github.com/angelpublicista/tenemos-filo-api/pkg/kafka"
	"github.com/angelpublicista/tenemos-filo-api/pkg/logger"
	"github.com/angelpublicista/tenemos-filo-api/pkg/middleware"
	"github.com/angelpublicista/tenemos-filo-api/pkg/mongodb"
	pkgredis "github.com/angelpublicista/tenemos-filo-api/pkg/redis"
	"github.com/angelpublicista/tenemos-filo-api/pkg/saga"
	"github.com/angelpublicista/tenemos-filo-api/pkg/session"
	"github.com/angelpublicista/tenemos-filo-api/pkg/telemetry"
)

const serviceName = "tenemos-filo-api"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	if err := logger.Init(&logger.Config{
		Level:       cfg.App.LogLevel,
		ServiceName: serviceName,
		Development: cfg.IsDevelopment(),
		OutputPath:  "stdout",
	}); err != nil {
		logger.Fatal("failed to initialize logger", zap.Error(err))
	}
	defer func() { _ = logger.Sync() }()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Telemetry
	if _, err := telemetry.Init(ctx, &telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    cfg.OTel.ServiceName,
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
		CollectorAddr:  cfg.OTel.CollectorAddr,
	}); err != nil {
		logger.Fatal("failed to initialize telemetry", zap.Error(err))
	}
	metrics, err := telemetry.NewMetrics()
	if err != nil {
		logger.Fatal("failed to create metrics", zap.Error(err))
	}

	// MongoDB: profiles, organizations, venues
	mongoClient, err := mongodb.Connect(ctx, mongodb.FromAppConfig(cfg.MongoDB))
	if err != nil {
		logger.Fatal("failed to connect to mongodb", zap.Error(err))
	}
	if err := repository.EnsureIndexes(ctx, mongoClient.Database()); err != nil {
		logger.Fatal("failed to create mongodb indexes", zap.Error(err))
	}

	// PostgreSQL: saga log, audit log
	db, err := database.NewPostgres(ctx, database.FromAppConfig(cfg.Database))
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}
	sagaStore := saga.NewPostgresStateStore(db.Pool())
	if err := sagaStore.EnsureSchema(ctx); err != nil {
		logger.Fatal("failed to create saga schema", zap.Error(err))
	}
	if _, err := db.Pool().Exec(ctx, middleware.AuditSchema); err != nil {
		logger.Fatal("failed to create audit schema", zap.Error(err))
	}

	// Redis: sessions, wizard drafts, rate limits
	redisClient, err := pkgredis.NewClient(ctx, pkgredis.FromAppConfig(cfg.Redis))
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}

	sessions := session.NewManager(
		session.NewRedisStore(redisClient.Client, cfg.Session.KeyPrefix),
		session.ManagerConfig{
			Secret: cfg.JWT.Secret,
			TTL:    cfg.JWT.AccessTokenTTL,
			Issuer: cfg.JWT.Issuer,
		},
	)

	idp, err := newIdentityProvider(cfg)
	if err != nil {
		logger.Fatal("failed to create identity provider", zap.Error(err))
	}

	renderer, err := notification.NewRenderer(cfg.App.PublicURL)
	if err != nil {
		logger.Fatal("failed to load email templates", zap.Error(err))
	}
	sender := notification.NewSMTPSender(notification.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		User:     cfg.SMTP.User,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})
	mailer := notification.NewMailer(renderer, sender, cfg.SMTP.From, metrics)

	var (
		dispatcher notification.Dispatcher
		producer   *kafka.Producer
	)
	switch cfg.Notification.Mode {
	case "kafka":
		producer, err = kafka.NewProducer(ctx, kafka.ProducerConfig{
			Brokers:  cfg.Kafka.Brokers,
			ClientID: cfg.Kafka.ClientID,
		})
		if err != nil {
			logger.Fatal("failed to create kafka producer", zap.Error(err))
		}
		dispatcher = notification.NewKafkaDispatcher(producer, cfg.Notification.Topic, cfg.Notification.PublishTimeout)
	default:
		dispatcher = notification.NewAsyncDispatcher(mailer, notification.AsyncDispatcherConfig{
			Workers:    cfg.Notification.Workers,
			BufferSize: cfg.Notification.BufferSize,
		})
	}

	container := di.NewContainer(&di.ContainerConfig{
		Version:          cfg.App.Version,
		ProfileRepo:      repository.NewMongoProfileRepository(mongoClient.Database()),
		OrganizationRepo: repository.NewMongoOrganizationRepository(mongoClient.Database()),
		VenueRepo:        repository.NewMongoVenueRepository(mongoClient.Database()),
		Identity:         idp,
		SagaStore:        sagaStore,
		Sessions:         sessions,
		DraftStore:       wizard.NewRedisStore(redisClient.Client, ""),
		Mailer:           mailer,
		Dispatcher:       dispatcher,
		Metrics:          metrics,
		HealthCheck: map[string]handler.HealthCheck{
			"mongodb":  mongoClient.HealthCheck,
			"postgres": db.HealthCheck,
			"redis":    redisClient.HealthCheck,
		},
		WizardTTL: cfg.Wizard.TTL,
		ReconcilerConfig: &worker.ReconcilerConfig{
			ScanInterval: cfg.Reconciler.ScanInterval,
			StaleAfter:   cfg.Reconciler.StaleAfter,
			BatchSize:    cfg.Reconciler.BatchSize,
			MaxAttempts:  cfg.Reconciler.MaxAttempts,
		},
	})

	auditLogger := middleware.NewAuditLogger(middleware.DefaultAuditConfig(middleware.NewPostgresAuditSink(db.Pool())))

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.Server.AllowOrigins

	rateLimit := middleware.DefaultRateLimitConfig()
	rateLimit.RequestsPerSecond = cfg.Server.AuthRateLimit
	rateLimit.BurstSize = cfg.Server.AuthRateBurst
	rateLimit.Redis = redisClient.Client

	router := handler.NewRouter(&handler.RouterConfig{
		ServiceName: serviceName,
		Sessions:    container.Sessions,
		CORS:        corsConfig,
		RateLimit:   rateLimit,
		Audit:       auditLogger,
		Health:      container.HealthHandler,
		Email:       container.EmailHandler,
		Auth:        container.AuthHandler,
		Onboarding:  container.OnboardingHandler,
		Venue:       container.VenueHandler,
	})

	if cfg.Reconciler.Enabled {
		container.Reconciler.Start(ctx)
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("HTTP server listening",
			zap.String("addr", srv.Addr),
			zap.String("environment", cfg.App.Environment),
			zap.String("notification_mode", cfg.Notification.Mode),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(err))
	}
	container.Reconciler.Stop()
	if err := dispatcher.Close(shutdownCtx); err != nil {
		logger.Error("notification dispatcher close failed", zap.Error(err))
	}
	if producer != nil {
		producer.Close()
	}
	if err := auditLogger.Close(); err != nil {
		logger.Error("audit logger close failed", zap.Error(err))
	}
	if err := redisClient.Close(); err != nil {
		logger.Error("redis close failed", zap.Error(err))
	}
	db.Close()
	if err := mongoClient.Close(shutdownCtx); err != nil {
		logger.Error("mongodb close failed", zap.Error(err))
	}
	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		logger.Error("telemetry shutdown failed", zap.Error(err))
	}

	logger.Info("server stopped")
}

func newIdentityProvider(cfg *config.Config) (identity.Provider, error) {
	switch cfg.Identity.Provider {
	case "memory":
		logger.Warn("using the in-memory identity provider")
		return identity.NewMemoryProvider(), nil
	case "firebase":
		return identity.NewFirebaseProvider(identity.FirebaseConfig{
			BaseURL:    cfg.Identity.BaseURL,
			APIKey:     cfg.Identity.APIKey,
			AdminToken: cfg.Identity.AdminToken,
			Timeout:    cfg.Identity.Timeout,
		}), nil
	}
	return nil, errors.New("unknown identity provider: " + cfg.Identity.Provider)
}
