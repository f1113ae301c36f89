// Assay server — evaluates problem descriptions for LLM suitability and
// streams pipeline progress over SSE.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/assay-dev/assay/pkg/analyzer"
	"github.com/assay-dev/assay/pkg/api"
	"github.com/assay-dev/assay/pkg/config"
	"github.com/assay-dev/assay/pkg/engine"
	"github.com/assay-dev/assay/pkg/snapshot"
	"github.com/assay-dev/assay/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "."),
		"Path to configuration directory")
	flag.Parse()

	// Load .env file from config directory
	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", envPath, "error", err)
	} else {
		slog.Info("Loaded environment", "path", envPath)
	}

	slog.Info("Starting assay", "version", version.Full(), "config_dir", *configDir)

	ctx := context.Background()

	// 1. Initialize configuration
	cfg, err := config.Initialize(*configDir)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}

	// 2. Snapshot store (only in snapshot resume mode)
	var store engine.SnapshotStore
	var pool *pgxpool.Pool
	if cfg.ResumeMode == config.ResumeModeSnapshot {
		var connErr error
		pool, connErr = snapshot.Connect(ctx, cfg.DatabaseURL)
		if connErr != nil {
			slog.Error("Failed to connect to snapshot database", "error", connErr)
			os.Exit(1)
		}
		defer pool.Close()
		store = snapshot.NewPostgres(pool)
		slog.Info("Connected to PostgreSQL snapshot store")
	}

	// 3. Run manager over the heuristic analyzer
	manager := engine.NewManager(analyzer.New(), cfg, store, slog.Default())
	manager.StartSweeper(ctx)
	defer manager.StopSweeper()

	// 4. HTTP server
	server := api.NewServer(manager, cfg, slog.Default())
	if pool != nil {
		server.SetDBPinger(pool)
	}
	httpServer := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: server.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info("Assay started successfully",
		"resume_mode", cfg.ResumeMode,
		"error_strategy", cfg.Pipeline.ErrorStrategy)

	// 5. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 6. Graceful shutdown: cancel active runs so their streams terminate,
	// then stop the server.
	manager.CancelAll()
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
