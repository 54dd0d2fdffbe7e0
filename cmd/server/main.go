/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the recargos engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env + environment), then apply flags
  2. Build the JSON logger (ECS field names)
  3. Initialize SQLite store
  4. Create API handler and recalculator with dependencies
  5. Configure HTTP router
  6. Start the config-change scheduler
  7. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides APP_PORT)
  -db      SQLite database path (overrides DB_PATH)
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler (waits for a running batch)
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

EXAMPLES:
  # Run with file database
  ./server -db="./data/recargos.db"

  # Run with in-memory database
  ./server -db=":memory:"

ENVIRONMENT:
  See config/config.go for every variable (APP_PORT, DB_PATH, LOG_LEVEL,
  RECALC_*, HOLIDAY_LOOKUP_TIMEOUT, SCHEDULER_INTERVAL, COMPANY_ID).

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/httplog/v3"

	"github.com/warp/recargos-engine/api"
	"github.com/warp/recargos-engine/config"
	"github.com/warp/recargos-engine/generic"
	"github.com/warp/recargos-engine/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Flags override the environment
	port := flag.Int("port", cfg.App.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.Database.Path, "SQLite database path")
	flag.Parse()
	cfg.App.Port = *port
	cfg.Database.Path = *dbPath
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	level, _ := cfg.SlogLevel()
	logFormat := httplog.SchemaECS.Concise(false)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(slog.String("app", "recargos-engine"))
	slog.SetDefault(logger)

	// Initialize store
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		logger.Error("failed to initialize database", "error", err, "path", cfg.Database.Path)
		os.Exit(1)
	}
	defer store.Close()

	// Initialize handler
	handler := api.NewHandler(store, cfg.Holidays.LookupTimeout, logger)
	handler.Recalculator.Concurrency = cfg.Recalc.Workers
	handler.Recalculator.MaxAttempts = cfg.Recalc.MaxAttempts
	handler.Recalculator.Backoff = cfg.Recalc.Backoff

	// Create router
	router := api.NewRouter(handler, api.RouterOptions{
		Logger:         logger,
		LogLevel:       level,
		AllowedOrigins: cfg.App.CORSOrigins,
	})

	// Recalculate the month when payroll parametros change
	scheduler := api.NewRecalcScheduler(store, store, handler.Recalculator, logger)
	scheduler.CheckInterval = cfg.Scheduler.Interval
	scheduler.CompanyID = generic.CompanyID(cfg.Scheduler.CompanyID)
	scheduler.Enabled = cfg.Scheduler.Interval > 0
	scheduler.Start()

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server starting", "port", cfg.App.Port, "db", cfg.Database.Path)
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
		return
	}

	logger.Info("server stopped")
}
