package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	DBConfig struct {
		DBHost     string
		DBPort     string
		DBUser     string
		DBPassword string
		DBName     string
		DBSSLMode  string
	}

	HTTPPort int

	KafkaURL           string
	KafkaConsumerGroup string

	PaymentsBaseURL string
	PaymentsTimeout time.Duration

	MigrationsPath string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int

	TopicWaitAttempts int
	TopicWaitBackoff  time.Duration
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}

	cfg.DBConfig.DBHost = getEnvOrDefault("ORDERS_DB_HOST", "localhost")
	cfg.DBConfig.DBPort = getEnvOrDefault("ORDERS_DB_PORT", "5432")
	cfg.DBConfig.DBUser = getEnvOrDefault("ORDERS_DB_USER", "postgres")
	cfg.DBConfig.DBPassword = getEnvOrDefault("ORDERS_DB_PASSWORD", "postgres")
	cfg.DBConfig.DBName = getEnvOrDefault("ORDERS_DB_NAME", "orders_db")
	cfg.DBConfig.DBSSLMode = getEnvOrDefault("ORDERS_DB_SSLMODE", "disable")

	port, err := strconv.Atoi(getEnvOrDefault("ORDERS_HTTP_PORT", "8081"))
	if err != nil {
		return nil, fmt.Errorf("invalid ORDERS_HTTP_PORT: %w", err)
	}
	cfg.HTTPPort = port

	cfg.KafkaURL = getEnvOrDefault("KAFKA_BROKER_URL", "localhost:9092")
	cfg.KafkaConsumerGroup = getEnvOrDefault("KAFKA_CONSUMER_GROUP", "order-service-group")

	cfg.PaymentsBaseURL = getEnvOrDefault("PAYMENTS_BASE_URL", "http://localhost:8082")
	cfg.PaymentsTimeout, err = time.ParseDuration(getEnvOrDefault("PAYMENTS_TIMEOUT", "5s"))
	if err != nil {
		return nil, fmt.Errorf("invalid PAYMENTS_TIMEOUT: %w", err)
	}

	cfg.MigrationsPath = getEnvOrDefault("ORDERS_MIGRATIONS_PATH", "file://migrations/orders")

	cfg.OutboxPollInterval, err = time.ParseDuration(getEnvOrDefault("OUTBOX_POLL_INTERVAL", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid OUTBOX_POLL_INTERVAL: %w", err)
	}
	cfg.OutboxBatchSize, err = strconv.Atoi(getEnvOrDefault("OUTBOX_BATCH_SIZE", "100"))
	if err != nil {
		return nil, fmt.Errorf("invalid OUTBOX_BATCH_SIZE: %w", err)
	}

	cfg.TopicWaitAttempts, err = strconv.Atoi(getEnvOrDefault("TOPIC_WAIT_ATTEMPTS", "30"))
	if err != nil {
		return nil, fmt.Errorf("invalid TOPIC_WAIT_ATTEMPTS: %w", err)
	}
	cfg.TopicWaitBackoff, err = time.ParseDuration(getEnvOrDefault("TOPIC_WAIT_BACKOFF", "2s"))
	if err != nil {
		return nil, fmt.Errorf("invalid TOPIC_WAIT_BACKOFF: %w", err)
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func (c *Config) GetDBConnectionString() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBConfig.DBHost, c.DBConfig.DBPort, c.DBConfig.DBUser, c.DBConfig.DBPassword, c.DBConfig.DBName, c.DBConfig.DBSSLMode)
}

func (c *Config) GetDBMigrationConnectionString() string {
	return fmt.Sprintf("%s:%s@%s:%s/%s?sslmode=%s",
		c.DBConfig.DBUser, c.DBConfig.DBPassword, c.DBConfig.DBHost, c.DBConfig.DBPort, c.DBConfig.DBName, c.DBConfig.DBSSLMode)
}

func (c *Config) GetKafkaBrokers() []string {
	return []string{c.KafkaURL}
}
