/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the motivation engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, then flags)
  2. Build the JSON logger
  3. Open the store (SQLite or PostgreSQL)
  4. Create API handler and router
  5. Start the payroll scheduler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port     HTTP server port (overrides PORT)
  -driver   Store driver: sqlite or postgres (overrides DB_DRIVER)
  -db       SQLite database path (overrides DB_PATH)
            Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/motivation.db"

  # Run against PostgreSQL
  DATABASE_URL=postgres://localhost/motivation ./server -driver=postgres

  # Run on different port without the scheduler
  PAYROLL_INTERVAL=0 ./server -port=3000

SEE ALSO:
  - config/config.go: Environment variables
  - api/server.go: Router configuration
  - api/scheduler.go: Payroll scheduler
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/motivation-engine/api"
	"github.com/warp/motivation-engine/config"
	"github.com/warp/motivation-engine/motivation"
	"github.com/warp/motivation-engine/store/postgres"
	"github.com/warp/motivation-engine/store/sqlite"
)

// closableRepository is a store that owns a connection.
type closableRepository interface {
	motivation.Repository
	Close() error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Flags override the environment
	port := flag.Int("port", cfg.App.Port, "HTTP server port")
	driver := flag.String("driver", cfg.Database.Driver, "Store driver (sqlite or postgres)")
	dbPath := flag.String("db", cfg.Database.Path, "SQLite database path")
	flag.Parse()
	cfg.App.Port = *port
	cfg.Database.Driver = *driver
	cfg.Database.Path = *dbPath
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := config.NewLogger(cfg.Log)
	slog.SetDefault(logger)

	store, err := openStore(context.Background(), cfg.Database)
	if err != nil {
		logger.Error("failed to initialize database", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}
	defer store.Close()
	logger.Info("database ready", "driver", cfg.Database.Driver)

	// Initialize handler
	handler := api.NewHandler(store, motivation.SystemClock{}, logger)
	handler.Runner.Concurrency = cfg.Payroll.Concurrency

	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: cfg.App.CORSOrigins,
		Logger:         logger,
	})

	scheduler := api.NewPayrollScheduler(handler.Runner, store, handler.Clock, logger)
	scheduler.CheckInterval = cfg.Payroll.Interval
	scheduler.Enabled = cfg.Payroll.Interval > 0
	scheduler.Start()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server starting", "port", cfg.App.Port, "env", cfg.App.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
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
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server stopped")
}

func openStore(ctx context.Context, cfg config.DatabaseConfig) (closableRepository, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return postgres.New(ctx, cfg.URL)
	default:
		return sqlite.New(cfg.Path)
	}
}
