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

	MigrationsPath string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}

	cfg.DBConfig.DBHost = getEnvOrDefault("PAYMENTS_DB_HOST", "localhost")
	cfg.DBConfig.DBPort = getEnvOrDefault("PAYMENTS_DB_PORT", "5433")
	cfg.DBConfig.DBUser = getEnvOrDefault("PAYMENTS_DB_USER", "postgres")
	cfg.DBConfig.DBPassword = getEnvOrDefault("PAYMENTS_DB_PASSWORD", "postgres")
	cfg.DBConfig.DBName = getEnvOrDefault("PAYMENTS_DB_NAME", "payments_db")
	cfg.DBConfig.DBSSLMode = getEnvOrDefault("PAYMENTS_DB_SSLMODE", "disable")

	port, err := strconv.Atoi(getEnvOrDefault("PAYMENTS_HTTP_PORT", "8082"))
	if err != nil {
		return nil, fmt.Errorf("invalid PAYMENTS_HTTP_PORT: %w", err)
	}
	cfg.HTTPPort = port

	cfg.KafkaURL = getEnvOrDefault("KAFKA_BROKER_URL", "localhost:9092")
	cfg.KafkaConsumerGroup = getEnvOrDefault("KAFKA_CONSUMER_GROUP", "payment-service-group")

	cfg.MigrationsPath = getEnvOrDefault("PAYMENTS_MIGRATIONS_PATH", "file://migrations/payments")

	cfg.OutboxPollInterval, err = time.ParseDuration(getEnvOrDefault("OUTBOX_POLL_INTERVAL", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid OUTBOX_POLL_INTERVAL: %w", err)
	}
	cfg.OutboxBatchSize, err = strconv.Atoi(getEnvOrDefault("OUTBOX_BATCH_SIZE", "100"))
	if err != nil {
		return nil, fmt.Errorf("invalid OUTBOX_BATCH_SIZE: %w", err)
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
