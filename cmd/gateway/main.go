package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/seny03/HSE-Software-Design-sub000/internal/gateway/config"
	"github.com/seny03/HSE-Software-Design-sub000/internal/gateway/router"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create zap logger: %v\n", err)
		os.Exit(1)
	}

	r, err := router.NewRouter(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create router", zap.Error(err))
	}

	addr := fmt.Sprintf(":%d", cfg.GatewayPort)
	logger.Info("API Gateway starting", zap.Int("port", cfg.GatewayPort))
	if err := http.ListenAndServe(addr, r); err != nil {
		logger.Fatal("HTTP server failed", zap.Error(err))
	}
}
