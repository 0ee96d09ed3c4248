package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/angelpublicista/tenemos-filo-api/internal/notification"
	"github.com/angelpublicista/tenemos-filo-api/pkg/config"
	"github.com/angelpublicista/tenemos-filo-api/pkg/kafka"
	"github.com/angelpublicista/tenemos-filo-api/pkg/logger"
	"github.com/angelpublicista/tenemos-filo-api/pkg/telemetry"
)

const serviceName = "tenemos-filo-mailer"

// mailer delivers the notification jobs published by the API in kafka mode
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := telemetry.Init(ctx, &telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    serviceName,
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

	renderer, err := notification.NewRenderer(cfg.App.PublicURL)
	if err != nil {
		logger.Fatal("failed to load email templates", zap.Error(err))
	}
	mailer := notification.NewMailer(renderer, notification.NewSMTPSender(notification.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		User:     cfg.SMTP.User,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	}), cfg.SMTP.From, metrics)

	consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:  cfg.Kafka.Brokers,
		ClientID: cfg.Kafka.ClientID,
		Group:    cfg.Kafka.ConsumerGroup,
		Topics:   []string{cfg.Notification.Topic},
	})
	if err != nil {
		logger.Fatal("failed to create kafka consumer", zap.Error(err))
	}
	defer consumer.Close()

	logger.Info("mailer consuming",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("topic", cfg.Notification.Topic),
		zap.String("group", cfg.Kafka.ConsumerGroup),
	)

	handler := notification.NewConsumer(mailer)
	if err := consumer.Run(ctx, handler.Handle); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("consumer stopped", zap.Error(err))
	}

	if err := telemetry.Shutdown(context.Background()); err != nil {
		logger.Error("telemetry shutdown failed", zap.Error(err))
	}
	logger.Info("mailer stopped")
}
