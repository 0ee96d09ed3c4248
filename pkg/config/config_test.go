package config

import (
	"os"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		App:          AppConfig{Name: "test", Environment: "development"},
		Server:       ServerConfig{Port: 8080},
		Database:     DatabaseConfig{Host: "localhost", DBName: "tenemos_filo"},
		MongoDB:      MongoDBConfig{URI: "mongodb://localhost:27017", Database: "tenemos_filo"},
		JWT:          JWTConfig{Secret: "secret"},
		Identity:     IdentityConfig{Provider: "memory"},
		Notification: NotificationConfig{Mode: "inline"},
	}
}

func TestLoad_WithDefaults(t *testing.T) {
	envVars := []string{
		"APP_NAME", "APP_ENVIRONMENT", "APP_DEBUG", "APP_PUBLIC_URL",
		"SERVER_HOST", "SERVER_PORT",
		"DATABASE_HOST", "DATABASE_PORT",
		"REDIS_HOST", "REDIS_PORT",
		"MONGODB_URI", "MONGODB_DATABASE",
		"KAFKA_BROKERS",
		"JWT_SECRET",
		"SMTP_HOST", "SMTP_PORT", "SMTP_FROM",
		"IDENTITY_PROVIDER", "IDENTITY_BASE_URL",
		"NOTIFICATION_MODE",
		"RECONCILER_SCAN_INTERVAL", "RECONCILER_MAX_ATTEMPTS",
		"WIZARD_TTL",
	}
	for _, v := range envVars {
		os.Unsetenv(v)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.App.Name != "tenemos-filo" {
		t.Errorf("App.Name = %q, want %q", cfg.App.Name, "tenemos-filo")
	}

	if cfg.App.Environment != "development" {
		t.Errorf("App.Environment = %q, want %q", cfg.App.Environment, "development")
	}

	if cfg.App.PublicURL != "https://tenemosfilo.com" {
		t.Errorf("App.PublicURL = %q, want %q", cfg.App.PublicURL, "https://tenemosfilo.com")
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 8080)
	}

	if cfg.Database.Port != 5432 {
		t.Errorf("Database.Port = %d, want %d", cfg.Database.Port, 5432)
	}

	if cfg.Redis.Port != 6379 {
		t.Errorf("Redis.Port = %d, want %d", cfg.Redis.Port, 6379)
	}

	if cfg.SMTP.Host != "smtp-relay.sendinblue.com" || cfg.SMTP.Port != 587 {
		t.Errorf("SMTP = %s:%d, want smtp-relay.sendinblue.com:587", cfg.SMTP.Host, cfg.SMTP.Port)
	}

	if cfg.SMTP.From != "noreply@tenemosfilo.com" {
		t.Errorf("SMTP.From = %q, want %q", cfg.SMTP.From, "noreply@tenemosfilo.com")
	}

	if cfg.Identity.BaseURL != "https://identitytoolkit.googleapis.com/v1" {
		t.Errorf("Identity.BaseURL = %q", cfg.Identity.BaseURL)
	}

	if cfg.Notification.Mode != "inline" {
		t.Errorf("Notification.Mode = %q, want %q", cfg.Notification.Mode, "inline")
	}

	if cfg.Reconciler.ScanInterval != time.Minute {
		t.Errorf("Reconciler.ScanInterval = %v, want %v", cfg.Reconciler.ScanInterval, time.Minute)
	}

	if cfg.Reconciler.MaxAttempts != 5 {
		t.Errorf("Reconciler.MaxAttempts = %d, want %d", cfg.Reconciler.MaxAttempts, 5)
	}

	if cfg.Wizard.TTL != 2*time.Hour {
		t.Errorf("Wizard.TTL = %v, want %v", cfg.Wizard.TTL, 2*time.Hour)
	}

	if len(cfg.Kafka.Brokers) != 1 || cfg.Kafka.Brokers[0] != "localhost:9092" {
		t.Errorf("Kafka.Brokers = %v, want [localhost:9092]", cfg.Kafka.Brokers)
	}
}

func TestLoad_WithEnvOverride(t *testing.T) {
	os.Setenv("APP_NAME", "test-app")
	os.Setenv("SERVER_PORT", "9090")
	os.Setenv("MONGODB_DATABASE", "filo_test")
	os.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	os.Setenv("APP_PUBLIC_URL", "https://staging.tenemosfilo.com/")
	defer func() {
		os.Unsetenv("APP_NAME")
		os.Unsetenv("SERVER_PORT")
		os.Unsetenv("MONGODB_DATABASE")
		os.Unsetenv("KAFKA_BROKERS")
		os.Unsetenv("APP_PUBLIC_URL")
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.App.Name != "test-app" {
		t.Errorf("App.Name = %q, want %q", cfg.App.Name, "test-app")
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9090)
	}

	if cfg.MongoDB.Database != "filo_test" {
		t.Errorf("MongoDB.Database = %q, want %q", cfg.MongoDB.Database, "filo_test")
	}

	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Errorf("Kafka.Brokers = %v, want [k1:9092 k2:9092]", cfg.Kafka.Brokers)
	}

	if cfg.App.PublicURL != "https://staging.tenemosfilo.com" {
		t.Errorf("App.PublicURL = %q, want trailing slash trimmed", cfg.App.PublicURL)
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "testuser",
		Password: "testpass",
		DBName:   "testdb",
		SSLMode:  "disable",
	}

	expected := "host=localhost port=5432 user=testuser password=testpass dbname=testdb sslmode=disable"
	if dsn := cfg.DSN(); dsn != expected {
		t.Errorf("DSN() = %q, want %q", dsn, expected)
	}
}

func TestRedisConfig_Addr(t *testing.T) {
	cfg := RedisConfig{
		Host: "redis.example.com",
		Port: 6380,
	}

	expected := "redis.example.com:6380"
	if addr := cfg.Addr(); addr != expected {
		t.Errorf("Addr() = %q, want %q", addr, expected)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(c *Config) {}},
		{name: "missing app name", mutate: func(c *Config) { c.App.Name = "" }, wantErr: true},
		{name: "invalid port", mutate: func(c *Config) { c.Server.Port = -1 }, wantErr: true},
		{name: "port too high", mutate: func(c *Config) { c.Server.Port = 70000 }, wantErr: true},
		{name: "missing database host", mutate: func(c *Config) { c.Database.Host = "" }, wantErr: true},
		{name: "missing mongodb database", mutate: func(c *Config) { c.MongoDB.Database = "" }, wantErr: true},
		{name: "missing JWT secret", mutate: func(c *Config) { c.JWT.Secret = "" }, wantErr: true},
		{
			name: "default JWT secret in production",
			mutate: func(c *Config) {
				c.App.Environment = "production"
				c.JWT.Secret = defaultJWTSecret
				c.Identity = IdentityConfig{Provider: "firebase", APIKey: "key"}
			},
			wantErr: true,
		},
		{
			name: "firebase without api key in production",
			mutate: func(c *Config) {
				c.App.Environment = "production"
				c.Identity = IdentityConfig{Provider: "firebase"}
			},
			wantErr: true,
		},
		{
			name:   "firebase without api key in development",
			mutate: func(c *Config) { c.Identity = IdentityConfig{Provider: "firebase"} },
		},
		{
			name: "memory identity in production",
			mutate: func(c *Config) {
				c.App.Environment = "production"
				c.Identity.Provider = "memory"
			},
			wantErr: true,
		},
		{name: "unknown identity provider", mutate: func(c *Config) { c.Identity.Provider = "ldap" }, wantErr: true},
		{name: "kafka notifications", mutate: func(c *Config) { c.Notification.Mode = "kafka" }},
		{name: "unknown notification mode", mutate: func(c *Config) { c.Notification.Mode = "sms" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_IsProduction(t *testing.T) {
	cfg := &Config{
		App: AppConfig{Environment: "production"},
	}
	if !cfg.IsProduction() {
		t.Error("IsProduction() = false, want true")
	}

	cfg.App.Environment = "development"
	if cfg.IsProduction() {
		t.Error("IsProduction() = true, want false")
	}
}

func TestConfig_IsDevelopment(t *testing.T) {
	cfg := &Config{
		App: AppConfig{Environment: "development"},
	}
	if !cfg.IsDevelopment() {
		t.Error("IsDevelopment() = false, want true")
	}

	cfg.App.Environment = "production"
	if cfg.IsDevelopment() {
		t.Error("IsDevelopment() = true, want false")
	}
}
