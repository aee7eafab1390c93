// Package main is the entry point of the LearnFlow progression engine.
//
// The engine owns the path from enrollment through task progression and
// payment settlement to certificate issuance:
// - Domain: pure business rules without external dependencies
// - Application: use case orchestration (Commands/Queries/Event Handlers)
// - Infrastructure: PostgreSQL, Redis, gateway and platform service clients
// - Interface: public HTTP surface (verification, gateway webhook)
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/learnflow/learnflow-progression-core/config"
	"github.com/learnflow/learnflow-progression-core/internal/application/command"
	"github.com/learnflow/learnflow-progression-core/internal/application/eventhandler"
	"github.com/learnflow/learnflow-progression-core/internal/application/query"
	"github.com/learnflow/learnflow-progression-core/internal/domain/payment"
	"github.com/learnflow/learnflow-progression-core/internal/infrastructure/external/gateway"
	"github.com/learnflow/learnflow-progression-core/internal/infrastructure/messaging"
	"github.com/learnflow/learnflow-progression-core/internal/infrastructure/persistence/postgres"
	redisinfra "github.com/learnflow/learnflow-progression-core/internal/infrastructure/persistence/redis"
	"github.com/learnflow/learnflow-progression-core/internal/infrastructure/service"
	httpserver "github.com/learnflow/learnflow-progression-core/internal/interface/http"
	"github.com/learnflow/learnflow-progression-core/pkg/logger"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := logger.New(logger.Options{
		Output: os.Stdout,
		Level:  logger.ParseLevel(cfg.Observability.LogLevel),
	})
	log.Info("starting progression engine",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. POSTGRESQL
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")
	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}()

	if err := dbConn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	log.Info("database connection established")

	if cfg.Database.AutoMigrate {
		log.Info("running database migrations...")
		migrator := postgres.NewMigrator(dbConn)
		if err := migrator.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("migrations completed")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to Redis...")
	redisClient, err := redisinfra.NewClient(ctx, redisinfra.Config{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	defer func() {
		log.Info("closing Redis connection...")
		_ = redisClient.Close()
	}()
	log.Info("Redis connection established")

	eventDedup := redisinfra.NewEventDeduplicator(redisClient, cfg.Redis.WebhookEventTTL)
	verificationCache := redisinfra.NewVerificationCache(redisClient, cfg.Redis.VerificationTTL)

	// ─────────────────────────────────────────────────────────────────────────
	// 5. REPOSITORIES
	// ─────────────────────────────────────────────────────────────────────────
	enrollmentRepo := postgres.NewEnrollmentRepository(dbConn)
	taskRepo := postgres.NewTaskRepository(dbConn)
	submissionRepo := postgres.NewSubmissionRepository(dbConn)
	paymentRepo := postgres.NewPaymentRepository(dbConn)
	certificateRepo := postgres.NewCertificateRepository(dbConn)
	uowRunner := postgres.NewUnitOfWorkRunner(dbConn)

	// ─────────────────────────────────────────────────────────────────────────
	// 6. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	busConfig := messaging.DefaultEventBusConfig()
	busConfig.Logger = log
	eventBus := messaging.NewEventBus(busConfig)
	defer func() {
		log.Info("closing event bus...")
		_ = eventBus.Close()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 7. EXTERNAL CLIENTS
	// ─────────────────────────────────────────────────────────────────────────
	gatewayClient := gateway.NewClient(gateway.Config{
		BaseURL:    cfg.Gateway.BaseURL,
		KeyID:      cfg.Gateway.KeyID,
		KeySecret:  cfg.Gateway.KeySecret,
		Timeout:    cfg.Gateway.RequestTimeout,
		MaxRetries: cfg.Gateway.MaxRetries,
	}, log)

	directoryClient := service.NewDirectoryClient(service.DirectoryConfig{
		BaseURL: cfg.Directory.BaseURL,
		APIKey:  cfg.Directory.APIKey,
		Timeout: cfg.Directory.RequestTimeout,
	}, log)

	emailSender := service.NewEmailSender(service.EmailConfig{
		APIKey:      cfg.Email.APIKey,
		FromName:    cfg.Email.FromName,
		FromAddress: cfg.Email.FromAddress,
	}, directoryClient, log)

	smsSender := service.NewSMSSender(service.SMSConfig{
		BaseURL:  cfg.SMS.BaseURL,
		APIKey:   cfg.SMS.APIKey,
		SenderID: cfg.SMS.SenderID,
		Timeout:  cfg.SMS.RequestTimeout,
	}, directoryClient, log)

	notifier := service.NewNotificationService(service.NotificationConfig{
		BaseURL: cfg.Notification.BaseURL,
		APIKey:  cfg.Notification.APIKey,
		Timeout: cfg.Notification.RequestTimeout,
	}, log)

	renderer := service.NewRendererClient(service.RendererConfig{
		BaseURL: cfg.Certificate.RendererBaseURL,
		APIKey:  cfg.Certificate.RendererAPIKey,
		Timeout: cfg.Certificate.RendererTimeout,
	}, log)

	signatureVerifier := payment.NewSignatureVerifier(cfg.Gateway.SignatureSecret)

	// ─────────────────────────────────────────────────────────────────────────
	// 8. APPLICATION LAYER
	// ─────────────────────────────────────────────────────────────────────────
	submitTaskCmd := command.NewSubmitTaskHandler(enrollmentRepo, taskRepo, submissionRepo, eventBus)
	reviewSubmissionCmd := command.NewReviewSubmissionHandler(uowRunner, taskRepo, eventBus)
	createOrderCmd := command.NewCreatePaymentOrderHandler(enrollmentRepo, paymentRepo, gatewayClient, eventBus)
	verifyPaymentCmd := command.NewVerifyPaymentHandler(uowRunner, paymentRepo, gatewayClient, signatureVerifier, eventBus)
	processWebhookCmd := command.NewProcessWebhookHandler(uowRunner, eventDedup, eventBus)
	issueCertificateCmd := command.NewIssueCertificateHandler(
		uowRunner, enrollmentRepo, certificateRepo, taskRepo, directoryClient, eventBus,
		cfg.Certificate.CompletionThreshold,
	)
	revokeCertificateCmd := command.NewRevokeCertificateHandler(certificateRepo, verificationCache, eventBus)

	taskStatusesQuery := query.NewGetTaskStatusesHandler(enrollmentRepo, taskRepo, submissionRepo)
	verifyCertificateQuery := query.NewVerifyCertificateHandler(certificateRepo, verificationCache)

	// ─────────────────────────────────────────────────────────────────────────
	// 9. EVENT HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("registering event handlers...")

	reviewedHandler := eventhandler.NewOnSubmissionReviewedHandler(enrollmentRepo, notifier, emailSender, log)
	paymentHandler := eventhandler.NewOnPaymentCompletedHandler(notifier, emailSender, smsSender, log)
	completedHandler := eventhandler.NewOnEnrollmentCompletedHandler(notifier, emailSender, log)
	certificateHandler := eventhandler.NewOnCertificateIssuedHandler(certificateRepo, renderer, notifier, emailSender, log)

	if err := eventBus.Subscribe(reviewedHandler, reviewedHandler.EventTypes()...); err != nil {
		return fmt.Errorf("failed to subscribe review handler: %w", err)
	}
	if err := eventBus.Subscribe(paymentHandler, paymentHandler.EventTypes()...); err != nil {
		return fmt.Errorf("failed to subscribe payment handler: %w", err)
	}
	if err := eventBus.Subscribe(completedHandler, completedHandler.EventTypes()...); err != nil {
		return fmt.Errorf("failed to subscribe completion handler: %w", err)
	}
	if err := eventBus.Subscribe(certificateHandler, certificateHandler.EventTypes()...); err != nil {
		return fmt.Errorf("failed to subscribe certificate handler: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 10. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	serverCfg := httpserver.DefaultConfig()
	serverCfg.Host = cfg.HTTP.Host
	serverCfg.Port = cfg.HTTP.Port
	serverCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	serverCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	serverCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	serverCfg.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
	serverCfg.WebhookSecret = cfg.Gateway.WebhookSecret
	serverCfg.APIKey = cfg.HTTP.InternalAPIKey

	server := httpserver.NewServer(serverCfg, httpserver.Dependencies{
		VerifyCertificateHandler:  verifyCertificateQuery,
		GetTaskStatusesHandler:    taskStatusesQuery,
		ProcessWebhookHandler:     processWebhookCmd,
		SubmitTaskHandler:         submitTaskCmd,
		ReviewSubmissionHandler:   reviewSubmissionCmd,
		CreatePaymentOrderHandler: createOrderCmd,
		VerifyPaymentHandler:      verifyPaymentCmd,
		IssueCertificateHandler:   issueCertificateCmd,
		RevokeCertificateHandler:  revokeCertificateCmd,
		Logger:                    log,
	})

	errCh := server.StartAsync()

	// ─────────────────────────────────────────────────────────────────────────
	// 11. SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", logger.Err(err))
	}

	log.Info("progression engine stopped")
	return nil
}
