package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/seny03/HSE-Software-Design-sub000/internal/database"
	"github.com/seny03/HSE-Software-Design-sub000/internal/event"
	kafka_infra "github.com/seny03/HSE-Software-Design-sub000/internal/kafka"
	"github.com/seny03/HSE-Software-Design-sub000/internal/outbox"
	app "github.com/seny03/HSE-Software-Design-sub000/internal/payments/app/payments"
	"github.com/seny03/HSE-Software-Design-sub000/internal/payments/config"
	http_payments "github.com/seny03/HSE-Software-Design-sub000/internal/payments/handler/http/payments"
	kafka_handler "github.com/seny03/HSE-Software-Design-sub000/internal/payments/handler/kafka"
	pg_account_repo "github.com/seny03/HSE-Software-Design-sub000/internal/payments/repository/account_repo/postgres"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapConfig.EncoderConfig.TimeKey = "timestamp"

	appLogger, err := zapConfig.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create zap logger: %v\n", err)
		os.Exit(1)
	}
	appLogger.Info("Payment Service starting...")

	appLogger.Info("Waiting for database to be available...")

	var db *sql.DB
	maxRetries := 10
	retryDelay := 5 * time.Second

	for i := 0; i < maxRetries; i++ {
		db, err = database.NewPostgresDB(cfg.GetDBConnectionString())
		if err == nil {
			appLogger.Info("Successfully connected to PostgreSQL database!")
			break
		}
		appLogger.Warn(fmt.Sprintf("Failed to connect to database (attempt %d/%d): %v. Retrying in %s...", i+1, maxRetries, err, retryDelay))
		time.Sleep(retryDelay)
	}

	if db == nil {
		appLogger.Fatal("Could not connect to database after multiple retries. Exiting.", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			appLogger.Error("Error closing database connection", zap.Error(err))
		}
	}()

	appLogger.Info("Running database migrations...")
	migrateDSN := "postgres://" + cfg.GetDBMigrationConnectionString()
	m, err := migrate.New(cfg.MigrationsPath, migrateDSN)
	if err != nil {
		appLogger.Fatal("Failed to create migrate instance", zap.Error(err))
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		appLogger.Fatal("Failed to run database migrations", zap.Error(err))
	}
	appLogger.Info("Database migrations completed successfully (or no new migrations).")

	requiredTopics := []string{event.TopicOrderCreated, event.TopicPaymentCompleted, event.TopicPaymentFailed}
	topicCtx, cancelTopics := context.WithTimeout(context.Background(), time.Minute)
	if err := kafka_infra.EnsureTopics(topicCtx, cfg.GetKafkaBrokers(), requiredTopics, appLogger); err != nil {
		appLogger.Warn("Failed to ensure Kafka topics, continuing anyway", zap.Error(err))
	}
	cancelTopics()

	kafkaProducer, err := kafka_infra.NewProducer(cfg.GetKafkaBrokers(), appLogger)
	if err != nil {
		appLogger.Fatal("Failed to create Kafka producer", zap.Error(err))
	}
	defer func() {
		if err := kafkaProducer.Close(); err != nil {
			appLogger.Error("Error closing Kafka producer", zap.Error(err))
		}
	}()

	accountRepository := pg_account_repo.NewAccountRepository(db, appLogger)
	outboxStore := outbox.NewPostgresStore(db, appLogger.With(zap.String("component", "OutboxStore")))

	paymentService := app.NewPaymentService(accountRepository, outboxStore, appLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	relay := outbox.NewRelay(outboxStore, kafkaProducer, cfg.OutboxPollInterval, cfg.OutboxBatchSize, appLogger.With(zap.String("component", "OutboxRelay")))
	go relay.Run(ctx)
	appLogger.Info("Transactional outbox relay started.")

	orderCreatedConsumer := kafka_infra.NewConsumer(
		cfg.GetKafkaBrokers(),
		event.TopicOrderCreated,
		cfg.KafkaConsumerGroup,
		kafka_handler.OrderCreatedHandler(paymentService, appLogger),
		appLogger.With(zap.String("component", "OrderCreatedConsumer")),
	)
	go func() {
		if err := orderCreatedConsumer.Consume(ctx); err != nil && err != context.Canceled {
			appLogger.Error("Order created consumer stopped", zap.Error(err))
		}
	}()
	appLogger.Info("Kafka order created consumer started!")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	http_payments.RegisterRoutes(r, paymentService, appLogger)

	serverAddr := fmt.Sprintf(":%d", cfg.HTTPPort)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()
	appLogger.Info("Payment Service started", zap.String("address", serverAddr))

	<-sigChan

	appLogger.Info("Shutting down Payment Service...")
	cancel()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Fatal("Payment Service graceful shutdown failed", zap.Error(err))
	}
	if err := orderCreatedConsumer.Close(); err != nil {
		appLogger.Error("Error closing order created consumer", zap.Error(err))
	}
	appLogger.Info("Payment Service stopped.")
}
