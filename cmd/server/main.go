/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the rental ledger server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Load configuration (file + environment)
  3. Initialize logging and the SQLite store
  4. Create the API handler and router
  5. Start the generation scheduler
  6. Start the server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Configuration file path (default: ./config.yaml if present)
  -port    Override the HTTP server port
  -db      Override the SQLite database path (":memory:" for in-memory)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler (waits for an in-flight run)
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close the database connection

SEE ALSO:
  - config/config.go: configuration keys and defaults
  - api/server.go: router configuration
  - store/sqlite/sqlite.go: database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/warp/rental-ledger/api"
	"github.com/warp/rental-ledger/config"
	"github.com/warp/rental-ledger/store/sqlite"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "configuration file path")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Store.Path = *dbPath
	}

	// Logging
	log := logrus.New()
	log.SetOutput(os.Stdout)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Warnf("Invalid log level %q, defaulting to info", cfg.Log.Level)
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	// Store
	store, err := sqlite.New(cfg.Store.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Handler and router
	handler := api.NewHandler(store, log)
	router := api.NewRouter(handler, cfg.Server.AllowedOrigins)

	// Scheduler
	var scheduler *api.GenerationScheduler
	if cfg.Scheduler.Enabled {
		scheduler = api.NewGenerationScheduler(handler.Engine, log)
		if cfg.Scheduler.Spec != "" {
			scheduler.Spec = cfg.Scheduler.Spec
		}
		if err := scheduler.Start(); err != nil {
			log.Fatalf("Failed to start scheduler: %v", err)
		}
	}

	// Server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infof("Server starting on http://localhost:%d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	if scheduler != nil {
		scheduler.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Info("Server stopped")
}
