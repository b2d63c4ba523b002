package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rookgm/storefront/config"
	"github.com/rookgm/storefront/internal/email"
	"github.com/rookgm/storefront/internal/messaging"
	"github.com/rookgm/storefront/internal/models"
	"github.com/rookgm/storefront/internal/telemetry"
	"go.uber.org/zap"
)

const (
	serviceName  = "storefront-notifier"
	retryBackoff = 5 * time.Second
)

var version = "dev"

// newLogger creates logger with log level
func newLogger(level string) (*zap.Logger, error) {
	loggerLvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	loggerCfg := zap.NewProductionConfig()
	loggerCfg.Level = loggerLvl

	return loggerCfg.Build()
}

func main() {
	cfg, err := config.New()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Error initializing logger: %v", err)
	}
	defer logger.Sync()

	if len(cfg.KafkaBrokers) == 0 || cfg.ResendAPIKey == "" {
		logger.Fatal("KAFKA_BROKERS and RESEND_API_KEY are required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, cfg.OTLPEndpoint, serviceName, version)
	if err != nil {
		logger.Fatal("Error initializing tracer", zap.Error(err))
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("Error shutting down tracer", zap.Error(err))
		}
	}()

	mailer := email.NewClient(cfg.ResendAPIKey, cfg.EmailFrom, cfg.ResendBaseURL, 0)
	confirm := func(ctx context.Context, event models.OrderCompletedEvent) error {
		if event.Email == "" {
			logger.Warn("order event has no email, skipped", zap.String("order_id", event.OrderID))
			return nil
		}

		msg, err := email.OrderConfirmationMessage(event)
		if err != nil {
			return err
		}
		if err := mailer.Send(ctx, msg); err != nil {
			return err
		}

		logger.Info("order confirmation is sent", zap.String("order_id", event.OrderID))
		return nil
	}

	logger.Info("Running notifier", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("version", version))

	for ctx.Err() == nil {
		// group reader resumes from last committed offset
		consumer := messaging.NewConsumer(cfg.KafkaBrokers, messaging.TopicOrderCompleted, cfg.KafkaGroupID)
		err := consumer.ConsumeOrderCompleted(ctx, confirm)
		consumer.Close()
		if ctx.Err() != nil {
			break
		}

		logger.Error("Error consuming order events", zap.Error(err))
		select {
		case <-ctx.Done():
		case <-time.After(retryBackoff):
		}
	}

	logger.Info("Notifier stopped")
}
