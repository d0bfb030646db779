package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"snapfetch/internal/media"
	"snapfetch/internal/server/api"
	"snapfetch/internal/server/config"
	"snapfetch/internal/server/service"
	"snapfetch/internal/server/session"
	"snapfetch/internal/server/storage"
)

func main() {
	// Structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load config
	cfg := config.Load()
	slog.Info("configuration loaded",
		"port", cfg.Port,
		"storage_path", cfg.StoragePath,
		"max_file_size", cfg.MaxFileSize,
		"session_ttl", cfg.SessionTTL,
		"max_sessions_per_owner", cfg.MaxSessionsPerOwner,
	)

	// Initialize storage
	dirs := storage.NewFileSystemStore(cfg.StoragePath)
	if err := dirs.EnsureBase(); err != nil {
		slog.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	slog.Info("session storage initialized", "path", cfg.StoragePath)

	// Session metadata, quota, and expiry
	meta := session.NewFileMetadata(cfg.StoragePath)
	sessions := session.NewManager(meta, dirs, cfg.MaxSessionsPerOwner)

	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	sweeper := session.NewSweeper(sessions, dirs, cfg.SessionTTL, cfg.CleanupInterval)
	sweeper.Start(sweepCtx)

	// Providers
	providers := media.Registry{
		media.NewTwitterProvider(cfg.TwitterParserURL, cfg.ParserAPIKey, cfg.ProviderTimeout),
		media.NewInstagramProvider(cfg.InstagramParserURL, cfg.ParserAPIKey, cfg.ProviderTimeout),
	}

	// Service and HTTP router
	svc := service.NewMediaService(dirs, sessions, sweeper, providers, cfg)
	handler := api.NewHandler(svc)
	e := api.SetupRouter(handler, cfg)

	// Start server in a goroutine
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Port)
		slog.Info("starting server", "addr", addr, "base_url", cfg.BaseURL)
		if err := e.Start(addr); err != nil {
			slog.Info("server stopped", "reason", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutting down", "signal", sig)

	// Stop accepting new requests, finish in-flight with 30s timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	// Stop the sweeper
	sweepCancel()
	sweeper.Wait()

	slog.Info("server exited cleanly")
}
