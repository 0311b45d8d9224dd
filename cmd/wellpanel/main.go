package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	garminadapter "github.com/ericfisherdev/wellpanel/internal/adapter/driven/garmin"
	sqliteadapter "github.com/ericfisherdev/wellpanel/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/wellpanel/internal/adapter/driving/http"
	"github.com/ericfisherdev/wellpanel/internal/application"
	"github.com/ericfisherdev/wellpanel/internal/config"
	"github.com/ericfisherdev/wellpanel/internal/domain/port/driven"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on invalid env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"sync_interval", cfg.SyncInterval,
		"sync_days", cfg.SyncDays,
		"retention_days", cfg.RetentionDays,
		"token_persistence", cfg.TokenKey != nil,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire adapters.
	wellnessStore := sqliteadapter.NewWellnessRepo(db, cfg.RetentionDays)
	stateStore := sqliteadapter.NewStateRepo(db)

	// Token persistence needs an encryption key; without one the session
	// lives in memory and a restart requires a fresh login.
	var tokenStore driven.TokenStore
	if cfg.TokenKey != nil {
		tokenStore = sqliteadapter.NewTokenRepo(db, cfg.TokenKey)
	} else {
		slog.Warn("WELLPANEL_TOKEN_KEY not set, vendor session will not survive restarts")
	}

	client := garminadapter.NewClient(tokenStore)

	// 6. Resume a persisted session, then fall back to env credentials.
	if err := client.Restore(ctx); err != nil {
		slog.Warn("session restore failed", "error", err)
	}
	if !client.Authenticated() && cfg.HasVendorCredentials() {
		if err := client.Login(ctx, cfg.VendorEmail, cfg.VendorPassword); err != nil {
			slog.Error("startup login failed, syncing disabled until login via API", "error", err)
		}
	}
	if !client.Authenticated() {
		slog.Info("no vendor session, syncing inactive until credentials are provided via API")
	}

	// 7. Create services and start the sync loop.
	authSvc := application.NewAuthService(client)
	syncSvc := application.NewSyncService(client, wellnessStore, stateStore, cfg.SyncDays, cfg.SyncInterval)
	statsSvc := application.NewStatsService(wellnessStore, stateStore)
	go syncSvc.Start(ctx)

	// 8. Create HTTP handler and server.
	apiHandler := httphandler.NewHandler(authSvc, syncSvc, statsSvc, slog.Default())
	handler := httphandler.NewServeMux(apiHandler, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	slog.Info("wellpanel started",
		"listen_addr", cfg.ListenAddr,
		"sync_interval", cfg.SyncInterval,
	)

	// 9. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	// 10. Graceful shutdown with 10s timeout for HTTP server drain.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
