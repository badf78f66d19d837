package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	GatewayPort        int
	OrdersServiceURL   string
	PaymentsServiceURL string
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		OrdersServiceURL:   getEnvOrDefault("ORDERS_SERVICE_URL", "http://localhost:8081"),
		PaymentsServiceURL: getEnvOrDefault("PAYMENTS_SERVICE_URL", "http://localhost:8082"),
	}

	port, err := strconv.Atoi(getEnvOrDefault("GATEWAY_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid GATEWAY_PORT: %w", err)
	}
	cfg.GatewayPort = port

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
