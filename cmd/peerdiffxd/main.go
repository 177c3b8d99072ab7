// Command peerdiffxd is the peerdiffx server daemon.
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

	"github.com/gusuku-oknw/peerdiffx/api"
	"github.com/gusuku-oknw/peerdiffx/background"
	"github.com/gusuku-oknw/peerdiffx/config"
	"github.com/gusuku-oknw/peerdiffx/store"
	"github.com/gusuku-oknw/peerdiffx/vcs"
)

func main() {
	// Parse flags
	listen := flag.String("listen", "", "Address to listen on (default: :7450)")
	dbURL := flag.String("db", "", "SQLite path or postgres:// URL (default: ./data/peerdiffx.db)")
	configPath := flag.String("config", "", "YAML config file")
	flag.Parse()

	if *configPath != "" {
		os.Setenv("PDX_CONFIG", *configPath)
	}

	// Load config (flags override env, env overrides file)
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *dbURL != "" {
		cfg.DBURL = *dbURL
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()}))
	slog.SetDefault(logger)

	logger.Info("peerdiffxd starting",
		"listen", cfg.Listen,
		"driver", store.DetectDriver(cfg.DBURL).String(),
		"lock_ttl", cfg.LockTTL,
		"export_ttl_days", cfg.ExportTTLDays,
		"version", cfg.Version,
	)

	if store.DetectDriver(cfg.DBURL) == store.DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.DBURL), 0755); err != nil {
			logger.Error("failed to create data directory", "error", err)
			os.Exit(1)
		}
	}

	db, err := store.Open(cfg.DBURL)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	xmlOpts := cfg.XMLDiff
	svc := vcs.New(db, vcs.Options{
		Logger:        logger,
		XMLDiff:       &xmlOpts,
		LockTTL:       cfg.LockTTL,
		ExportTTLDays: cfg.ExportTTLDays,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reaper := background.NewReaper(svc, cfg.ReapInterval, logger)
	reaper.Start(ctx)

	// Create HTTP server
	mux := api.NewRouter(svc, cfg, logger)
	handler := api.WithDefaults(mux, logger, cfg.RequestTimeout)

	srv := &http.Server{
		Addr:         cfg.Listen,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Handle graceful shutdown
	done := make(chan struct{})
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		logger.Info("shutting down")
		reaper.Stop()

		// Give connections 30s to finish
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "error", err)
		}

		close(done)
	}()

	logger.Info("peerdiffxd listening", "addr", cfg.Listen)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	<-done
	logger.Info("peerdiffxd stopped")
}
