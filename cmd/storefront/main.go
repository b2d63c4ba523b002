package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rookgm/storefront/config"
	"github.com/rookgm/storefront/internal/auth"
	"github.com/rookgm/storefront/internal/email"
	"github.com/rookgm/storefront/internal/fx"
	handler "github.com/rookgm/storefront/internal/handler/http"
	"github.com/rookgm/storefront/internal/messaging"
	"github.com/rookgm/storefront/internal/models"
	"github.com/rookgm/storefront/internal/payment/flutterwave"
	"github.com/rookgm/storefront/internal/payment/paypal"
	"github.com/rookgm/storefront/internal/repository"
	"github.com/rookgm/storefront/internal/repository/postgres"
	"github.com/rookgm/storefront/internal/service"
	"github.com/rookgm/storefront/internal/telemetry"
	"github.com/rookgm/storefront/internal/webhook"
	"github.com/rookgm/storefront/internal/worker"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const (
	serviceName     = "storefront"
	shutdownTimeout = 10 * time.Second
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

// drain shuts server down and then stops background writers
func drain(server *http.Server, timeout time.Duration, logger *zap.Logger, stopWriters context.CancelFunc) {
	defer stopWriters()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error shutting down server", zap.Error(err))
	}
}

func main() {

	// create new config
	cfg, err := config.New()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	// initialize logger
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Error initializing logger: %v", err)
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal("Error loading reminder time zone", zap.Error(err))
	}

	// create context canceled on SIGINT/SIGTERM
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

	metrics := telemetry.NewMetrics(prometheus.NewRegistry())

	// initialize database
	db, err := postgres.New(ctx, cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("Error initializing database", zap.Error(err))
	}
	defer db.Close()

	// migrate database
	err = db.Migrate()
	if err != nil {
		logger.Fatal("Error migrating database", zap.Error(err))
	}

	token := auth.NewAuthToken([]byte(cfg.AuthSecret))

	// external clients
	mailer := email.NewClient(cfg.ResendAPIKey, cfg.EmailFrom, cfg.ResendBaseURL, 0)
	rates := fx.NewClient(cfg.FXAPIURL)
	gateways := map[models.Provider]service.PaymentGateway{
		models.ProviderFlutterwave: flutterwave.NewClient(cfg.FlutterwaveSecretKey, cfg.FrontendURL,
			flutterwave.WithBaseURL(cfg.FlutterwaveBaseURL),
			flutterwave.WithTimeout(cfg.ProviderTimeout),
		),
		models.ProviderPayPal: paypal.NewClient(cfg.PayPalClientID, cfg.PayPalSecret, cfg.FrontendURL,
			paypal.WithBaseURL(cfg.PayPalBaseURL),
			paypal.WithTimeout(cfg.ProviderTimeout),
		),
	}

	var publisher service.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		producer := messaging.NewProducer(cfg.KafkaBrokers, messaging.TopicOrderCompleted)
		defer producer.Close()
		publisher = producer
	} else {
		logger.Info("KAFKA_BROKERS is not set, order events are not published")
	}

	// dependency injection
	// order
	orderRepo := repository.NewOrderRepository(db)
	orderService := service.NewOrderService(orderRepo, rates, cfg.FallbackUSDRate, logger)
	orderHandler := handler.NewOrderHandler(orderService)

	// payment
	tokenRepo := repository.NewTokenRepository(db)
	paymentService := service.NewPaymentService(orderRepo, tokenRepo, gateways, metrics, logger)
	reconciler := service.NewReconciler(orderRepo, tokenRepo, gateways, publisher, metrics, logger)
	paymentHandler := handler.NewPaymentHandler(paymentService, reconciler, webhook.NewVerifier(cfg.FlutterwaveSecretHash), metrics, logger)

	// reminder
	reminderRepo := repository.NewReminderRepository(db)
	reminderService := service.NewReminderService(reminderRepo, mailer, metrics, loc, logger)
	reminderHandler := handler.NewReminderHandler(reminderService)

	schedule := cfg.ReminderSchedule
	if schedule == "" {
		schedule = worker.DefaultSchedule
	}
	reminderProcessor, err := worker.NewReminderProcessor(reminderService, schedule, loc, logger)
	if err != nil {
		logger.Fatal("Error creating reminder processor", zap.Error(err))
	}

	// cart
	cartRepo := repository.NewCartRepository(db)
	cartService := service.NewCartService(cartRepo, cfg.CartFlushDelay, logger)
	cartHandler := handler.NewCartHandler(cartService)

	// newsletter and contact form
	subscriptionRepo := repository.NewSubscriptionRepository(db)
	subscriptionService := service.NewSubscriptionService(subscriptionRepo, mailer, cfg.ContactInbox, logger)
	subscriptionHandler := handler.NewSubscriptionHandler(subscriptionService)

	router := newRouter(routes{
		payment:      paymentHandler,
		order:        orderHandler,
		reminder:     reminderHandler,
		cart:         cartHandler,
		subscription: subscriptionHandler,
		health:       handler.Healthz(db),
		metrics:      metrics.Handler(),
	}, token, logger)

	server := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           otelhttp.NewHandler(router, serviceName),
		ReadHeaderTimeout: 5 * time.Second,
	}

	var wg sync.WaitGroup

	// cart writer is stopped after server is drained
	cartCtx, stopCart := context.WithCancel(context.Background())
	defer stopCart()

	wg.Add(1)
	go func() {
		defer wg.Done()
		cartService.Run(cartCtx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := reminderProcessor.ProcessReminders(ctx); err != nil {
			logger.Error("Reminder processor stopped", zap.Error(err))
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		drain(server, shutdownTimeout, logger, stopCart)
	}()

	logger.Info("Running server", zap.String("addr", cfg.ServerAddr), zap.String("version", version))

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Error starting server", zap.Error(err))
		stop()
	}

	// wait for drained requests, cart flush and running reminder scan
	wg.Wait()
	logger.Info("Server stopped")
}
