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
	app "github.com/seny03/HSE-Software-Design-sub000/internal/orders/app/orders"
	"github.com/seny03/HSE-Software-Design-sub000/internal/orders/config"
	http_orders "github.com/seny03/HSE-Software-Design-sub000/internal/orders/handler/http/orders"
	kafka_handler "github.com/seny03/HSE-Software-Design-sub000/internal/orders/handler/kafka"
	"github.com/seny03/HSE-Software-Design-sub000/internal/orders/paymentsclient"
	pg_order_repo "github.com/seny03/HSE-Software-Design-sub000/internal/orders/repository/order_repo/postgres"
	pg_product_repo "github.com/seny03/HSE-Software-Design-sub000/internal/orders/repository/product_repo/postgres"
	"github.com/seny03/HSE-Software-Design-sub000/internal/outbox"
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
	appLogger.Info("Order Service starting...")

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
	waitCtx, cancelWait := context.WithTimeout(context.Background(), time.Duration(cfg.TopicWaitAttempts)*cfg.TopicWaitBackoff+time.Minute)
	if err := kafka_infra.AwaitTopics(waitCtx, cfg.GetKafkaBrokers(), requiredTopics, cfg.TopicWaitAttempts, cfg.TopicWaitBackoff, appLogger); err != nil {
		// Availability over strict readiness: consumers will retry on their
		// own once the topics appear.
		appLogger.Warn("Kafka topics are not ready, starting anyway", zap.Error(err))
	}
	cancelWait()

	kafkaProducer, err := kafka_infra.NewProducer(cfg.GetKafkaBrokers(), appLogger)
	if err != nil {
		appLogger.Fatal("Failed to create Kafka producer", zap.Error(err))
	}
	defer func() {
		if err := kafkaProducer.Close(); err != nil {
			appLogger.Error("Error closing Kafka producer", zap.Error(err))
		}
	}()

	orderRepository := pg_order_repo.NewOrderRepository(db, appLogger)
	productRepository := pg_product_repo.NewProductRepository(db, appLogger)
	paymentsClient := paymentsclient.New(cfg.PaymentsBaseURL, cfg.PaymentsTimeout, appLogger.With(zap.String("component", "PaymentsClient")))

	orderService := app.NewOrderService(orderRepository, productRepository, paymentsClient, appLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	outboxStore := outbox.NewPostgresStore(db, appLogger.With(zap.String("component", "OutboxStore")))
	relay := outbox.NewRelay(outboxStore, kafkaProducer, cfg.OutboxPollInterval, cfg.OutboxBatchSize, appLogger.With(zap.String("component", "OutboxRelay")))
	go relay.Run(ctx)
	appLogger.Info("Transactional outbox relay started.")

	completedConsumer := kafka_infra.NewConsumer(
		cfg.GetKafkaBrokers(),
		event.TopicPaymentCompleted,
		cfg.KafkaConsumerGroup,
		kafka_handler.PaymentCompletedHandler(orderService, appLogger),
		appLogger.With(zap.String("component", "PaymentCompletedConsumer")),
	)
	failedConsumer := kafka_infra.NewConsumer(
		cfg.GetKafkaBrokers(),
		event.TopicPaymentFailed,
		cfg.KafkaConsumerGroup,
		kafka_handler.PaymentFailedHandler(orderService, appLogger),
		appLogger.With(zap.String("component", "PaymentFailedConsumer")),
	)
	go func() {
		if err := completedConsumer.Consume(ctx); err != nil && err != context.Canceled {
			appLogger.Error("Payment completed consumer stopped", zap.Error(err))
		}
	}()
	go func() {
		if err := failedConsumer.Consume(ctx); err != nil && err != context.Canceled {
			appLogger.Error("Payment failed consumer stopped", zap.Error(err))
		}
	}()
	appLogger.Info("Kafka payment outcome consumers started!")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	http_orders.RegisterRoutes(r, orderService, appLogger)

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
	appLogger.Info("Order Service started", zap.String("address", serverAddr))

	<-sigChan

	appLogger.Info("Shutting down Order Service...")
	cancel()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Fatal("Order Service graceful shutdown failed", zap.Error(err))
	}
	if err := completedConsumer.Close(); err != nil {
		appLogger.Error("Error closing payment completed consumer", zap.Error(err))
	}
	if err := failedConsumer.Close(); err != nil {
		appLogger.Error("Error closing payment failed consumer", zap.Error(err))
	}
	appLogger.Info("Order Service stopped.")
}
