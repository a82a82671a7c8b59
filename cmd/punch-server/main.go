package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/existflow/punch/internal/logger"
	"github.com/existflow/punch/server"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	logConfig := logger.DefaultConfig()
	logConfig.Level = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))
	logConfig.FilePath = os.Getenv("LOG_FILE")
	logConfig.Console = true
	if err := logger.Init(logConfig); err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Close()
	}()

	var srv *server.Server
	if os.Getenv("PUNCH_SERVER_MEMORY") == "true" {
		logger.Warn("Using in-memory store; data is lost on exit")
		srv = server.NewWithStore(server.NewMemoryStore())
	} else {
		dbURL := getEnv("DATABASE_URL", "postgres://localhost:5432/punch?sslmode=disable")
		var err error
		srv, err = server.New(dbURL)
		if err != nil {
			logger.Error("Failed to create server", logger.F("error", err))
			os.Exit(1)
		}
	}
	defer func() {
		if err := srv.Close(); err != nil {
			logger.Error("Error closing server", logger.F("error", err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("punch-server starting", logger.F("port", port))
		if err := srv.Start(":" + port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", logger.F("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown failed", logger.F("error", err))
	}
	logger.Info("punch-server stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
