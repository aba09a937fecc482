/*
Package main is the entry point for the sockchat server.

It loads configuration, initializes the global logger, connects the configured stores, starts
the chat Hub and the HTTP server, and shuts everything down gracefully on SIGINT or SIGTERM.
If the database cannot be reached at startup, a fallback router reporting the failure is
served instead of the application.

Run with -sync-assets to upload PUBLIC_DIR to the configured asset bucket and exit.
*/
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

	"sockchat/internal/app/storage"
	"sockchat/internal/app/view"
	"sockchat/internal/configs"
	"sockchat/internal/handler"
	"sockchat/internal/pkg/logx"
)

func main() {
	syncAssets := flag.Bool("sync-assets", false, "upload PUBLIC_DIR to the asset bucket and exit")
	flag.Parse()

	// Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	logx.InitGlobalLogger(cfg.IsDevelopment())
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Str("session_backend", cfg.SessionBackend).
		Bool("cluster_mode", cfg.ClusterMode).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Int("pow_difficulty", cfg.RegisterPowDifficulty).
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *syncAssets {
		if err := runAssetSync(ctx, cfg); err != nil {
			logx.Fatal(err, "Asset sync failed")
		}
		return
	}

	views, err := view.New()
	if err != nil {
		logx.Fatal(err, "Failed to parse templates")
	}

	var router http.Handler

	app, err := buildApp(ctx, cfg, views)
	if err != nil {
		logx.Error(err, "Unable to connect to database, serving fallback router")
		router = handler.FallbackRouter(views, err)
	} else {
		router = app.router
		defer app.close()
	}

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("sockchat listening on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 5 seconds.
	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "Server forced to shutdown")
	}

	logx.Info("Server gracefully stopped.")
}

func runAssetSync(ctx context.Context, cfg *configs.AppConfig) error {
	if !cfg.AssetsFromS3() {
		return errors.New("ASSETS_S3_* is not configured")
	}

	assets, err := storage.NewAssetService(ctx, assetConfig(cfg))
	if err != nil {
		return err
	}

	n, err := assets.SyncDir(ctx, os.DirFS(cfg.PublicDir))
	if err != nil {
		return err
	}

	logx.Info("Public assets uploaded", "objects", n, "bucket", cfg.AssetsS3Bucket)
	return nil
}

func assetConfig(cfg *configs.AppConfig) storage.ServiceConfig {
	return storage.ServiceConfig{
		S3Endpoint:        cfg.AssetsS3Endpoint,
		S3BucketName:      cfg.AssetsS3Bucket,
		S3AccessKeyID:     cfg.AssetsS3AccessKeyID,
		S3SecretAccessKey: cfg.AssetsS3SecretAccessKey,
	}
}
