package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dhishan/family-expense-tracker/internal/auth"
	"github.com/dhishan/family-expense-tracker/internal/backend"
	"github.com/dhishan/family-expense-tracker/internal/config"
	apphttp "github.com/dhishan/family-expense-tracker/internal/http"
	"github.com/dhishan/family-expense-tracker/internal/log"
	"github.com/dhishan/family-expense-tracker/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.New(log.DefaultConfig()).Error("Failed to load configuration", log.FieldError, err)
		os.Exit(1)
	}

	// Setup structured logging
	newLogger := func(component string) *log.Logger {
		return log.New(log.Config{
			Level:     log.ParseLevel(cfg.LogLevel),
			Component: component,
			JSON:      cfg.IsProduction(),
			Output:    os.Stdout,
		})
	}
	logger := newLogger(log.ComponentApp)
	log.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}

	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	result, err := backend.NewFactory(newLogger(log.ComponentBackend).Logger).CreateBackend(initCtx, backendCfg)
	initCancel()
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()

	svc := services.New(result.Store, result.Publisher, services.SystemClock)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Dependencies{
		Services: svc,
		Store:    result.Store,
		Tokens:   auth.NewTokens(cfg.SecretKey, cfg.JWTExpiration()),
		Verifier: auth.NewGoogleVerifier(cfg.GoogleClientID),
		Logger:   newLogger(log.ComponentHTTP),
	}, apphttp.Options{
		APIPrefix:          cfg.APIPrefix,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	// Graceful shutdown handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		cancel()
	}()

	logger.Info("Starting family expense tracker API",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"environment", cfg.Environment,
		"api_prefix", cfg.APIPrefix)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
