// Package main provides the SoilSense API server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/soilsense/soilsense/internal/api"
	"github.com/soilsense/soilsense/internal/artifact"
	"github.com/soilsense/soilsense/internal/auth"
	"github.com/soilsense/soilsense/internal/config"
	"github.com/soilsense/soilsense/internal/database"
	"github.com/soilsense/soilsense/internal/fertility"
	"github.com/soilsense/soilsense/internal/logging"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to a YAML config file")
		migrateOnly = flag.Bool("migrate", false, "Run migrations and exit")
	)
	flag.Parse()

	if err := run(*configPath, *migrateOnly); err != nil {
		fmt.Fprintf(os.Stderr, "soilsense-server: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, migrateOnly bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.ValidateServer(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("running database migrations")
	version, err := database.Migrate(cfg.Database.URL)
	if err != nil {
		return err
	}
	logger.Info("migrations complete", zap.Uint("schema_version", version))

	if migrateOnly {
		return nil
	}

	ctx := context.Background()
	db, err := database.New(ctx, database.Options{
		URL:      cfg.Database.URL,
		MaxConns: cfg.Database.MaxConns,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	predictor := fertility.New(openModel(ctx, cfg.Model, logger), logger)

	authVerifier, err := auth.NewVerifier(auth.Config{
		Secret:     cfg.Auth.JWTSecret,
		TokenTTL:   cfg.Auth.TokenTTL,
		JWKSDomain: cfg.Auth.JWKSDomain,
		Audience:   cfg.Auth.Audience,
	})
	if err != nil {
		return fmt.Errorf("failed to create auth verifier: %w", err)
	}

	server := api.NewServer(api.Config{
		DB:           db,
		Predictor:    predictor,
		AuthVerifier: authVerifier,
		Logger:       logger,
	})
	defer server.Close()

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", addr), zap.Bool("model_loaded", predictor.ModelLoaded()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// openModel loads the configured model. Any failure leaves the server on the
// rule engine.
func openModel(ctx context.Context, cfg config.ModelConfig, logger *zap.Logger) *fertility.Model {
	m, err := artifact.Open(ctx, artifact.Source{
		Path:          cfg.Path,
		RemoteURL:     cfg.RemoteURL,
		RemoteTimeout: cfg.RemoteTimeout,
		RemoteRPS:     cfg.RemoteRPS,
	}, logger)
	switch {
	case errors.Is(err, artifact.ErrNoModel):
		logger.Info("no model configured, using rule-based predictions")
		return nil
	case err != nil:
		logger.Error("failed to load model, using rule-based predictions", zap.Error(err))
		return nil
	}
	return m
}
