/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the installment engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, flags)
  2. Initialize SQLite store
  3. Create service and API handler
  4. Configure HTTP router
  5. Start nightly refresh scheduler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides PORT)
  -db      SQLite database path (overrides DB_PATH)
           Use ":memory:" for in-memory database

ENVIRONMENT:
  See config/config.go. The common ones:
  PORT, DB_PATH, APP_ENV, LOG_LEVEL, TIMEZONE, REFRESH_SCHEDULE

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the refresh scheduler (waits for a running job)
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

EXAMPLES:
  # Run with file database
  ./server -db="./data/installments.db"

  # Run with in-memory database
  ./server -db=":memory:"

SEE ALSO:
  - api/server.go: Router configuration
  - api/scheduler.go: Nightly refresh
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/installment-engine/api"
	"github.com/warp/installment-engine/config"
	"github.com/warp/installment-engine/installment"
	"github.com/warp/installment-engine/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}

	// Flags override the environment
	port := flag.Int("port", cfg.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	flag.Parse()
	cfg.Port = *port
	cfg.DBPath = *dbPath
	if err := cfg.Validate(); err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}

	logger := cfg.NewLogger()
	loc, _ := cfg.Location()

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize database")
	}
	defer store.Close()

	// Initialize service and handler
	svc := installment.NewService(store, logger)
	svc.Location = loc
	handler := api.NewHandler(svc, store, logger)

	scheduler := api.NewRefreshScheduler(svc, store, logger)
	scheduler.Spec = cfg.RefreshSchedule
	scheduler.Concurrency = cfg.RefreshConcurrency
	scheduler.Location = loc
	handler.Scheduler = scheduler

	router := api.NewRouter(handler, api.RouterConfig{
		AllowedOrigins: cfg.AllowedOrigins,
		RateLimit:      cfg.RateLimit,
		Production:     cfg.IsProduction(),
	})

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	if cfg.RefreshEnabled {
		if err := scheduler.Start(); err != nil {
			logger.WithError(err).Fatal("failed to start refresh scheduler")
		}
	}

	go func() {
		logger.WithFields(logrus.Fields{
			"addr": cfg.Addr(),
			"db":   cfg.DBPath,
			"env":  cfg.Env,
		}).Info("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("server forced to shutdown")
		return
	}

	logger.Info("server stopped")
}
