package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/rongwang/fabricstock/internal/api"
	"github.com/rongwang/fabricstock/internal/config"
	"github.com/rongwang/fabricstock/internal/repository"
	"github.com/rongwang/fabricstock/internal/service"
	"github.com/rongwang/fabricstock/internal/utils"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger := utils.NewLogger(cfg.Log.Level)

	// Create repository
	repo, closeRepo, err := newRepository(cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	// Create service
	svc := service.NewDefaultService(repo, service.Options{
		IdleTTL: cfg.Drafts.IdleTTL,
		Logger:  logger,
	})

	sweeper, err := service.NewSweeper(svc, cfg.Drafts.SweepSchedule, logger)
	if err != nil {
		return err
	}
	sweeper.Start()
	defer sweeper.Stop()

	// Create API handler
	handler := api.NewHandler(svc, logger)

	// Set up Gin router
	gin.SetMode(cfg.Server.GinMode)
	router := gin.Default()
	router.Use(api.JWTSecret([]byte(cfg.Auth.JWTSecret)))
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start server
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", srv.Addr, "backend", cfg.Inventory.Backend)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down", "open_drafts", svc.Drafts().Len())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newRepository builds the configured inventory backend and a func releasing
// its resources
func newRepository(cfg *config.Config) (repository.Repository, func(), error) {
	switch cfg.Inventory.Backend {
	case config.BackendPostgres:
		db, err := config.SetupDatabase(cfg)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewPostgresRepository(db), func() { db.Close() }, nil

	case config.BackendMemory:
		return repository.NewMemoryRepository(), func() {}, nil

	default:
		repo, err := repository.NewHTTPRepository(repository.HTTPConfig{
			BaseURL: cfg.Inventory.BaseURL,
			Token:   cfg.Inventory.Token,
			Timeout: cfg.Inventory.Timeout,
		})
		if err != nil {
			return nil, nil, err
		}
		return repo, func() {}, nil
	}
}
