// volkit server
//
// Features:
// - Single-volume file manager over HTTP
// - Chunked/resumable uploads with atomic reassembly
// - Atomic whole-file uploads (temp + rename)
// - Recursive search and folder sizing
// - SSE change events, optional fsnotify volume watcher
// - Prometheus metrics & structured logging (zap)
// - Optional JWT auth and per-client rate limiting
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/volkit/volkit/internal/api"
	"github.com/volkit/volkit/internal/auth"
	"github.com/volkit/volkit/internal/config"
	"github.com/volkit/volkit/internal/events"
	"github.com/volkit/volkit/internal/logging"
	"github.com/volkit/volkit/internal/metrics"
	"github.com/volkit/volkit/internal/quota"
	"github.com/volkit/volkit/internal/vfs"
	"github.com/volkit/volkit/internal/watcher"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Can't use structured logging yet
		panic("configuration error: " + err.Error())
	}

	// Initialize structured logging
	if err := logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	}); err != nil {
		panic("logging init error: " + err.Error())
	}
	defer logging.Sync()

	logging.Info("volkit server starting...",
		zap.String("listen", cfg.ListenAddr),
		zap.String("metrics", cfg.MetricsAddr),
		zap.String("volume", cfg.VolumeRoot))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Bind the volume
	volume, err := vfs.NewVolume(cfg.VolumeRoot)
	if err != nil {
		logging.Fatal("volume init failed", zap.Error(err))
	}

	// Chunked upload session manager
	sessions := vfs.NewSessionManager(cfg.UploadExpiry)

	// SSE broadcaster
	broadcaster := events.NewBroadcaster()
	logging.Info("SSE broadcaster initialized")

	// Optional volume watcher for out-of-band changes
	if cfg.WatchVolume {
		w, err := watcher.New(volume.Root(), broadcaster)
		if err != nil {
			logging.Error("volume watcher init failed", zap.Error(err))
		} else {
			w.Start(ctx)
			logging.Info("volume watcher started", zap.String("root", volume.Root()))
		}
	}

	// Optional auth
	var authHandler *auth.Auth
	if cfg.AuthEnabled() {
		authHandler, err = auth.New(cfg.JWTSecret, cfg.AuthUsername, cfg.AuthPassword)
		if err != nil {
			logging.Fatal("auth init failed", zap.Error(err))
		}
		logging.Info("auth enabled", zap.String("user", cfg.AuthUsername))
	}

	// Rate limiter
	rateLimiter := quota.NewRateLimiter()

	// Create API server
	srv := api.NewServer(volume, sessions, authHandler, broadcaster, rateLimiter, cfg)

	// Start metrics server
	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metrics.Handler(),
	}
	go func() {
		logging.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logging.Error("metrics server error", zap.Error(err))
		}
	}()

	// Start HTTP server
	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Handler(),
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logging.Info("shutting down...")
		cancel()
		httpServer.Close()
		metricsServer.Close()
	}()

	// Periodic cleanup: expired upload sessions and stale rate-limit buckets
	go func() {
		ticker := time.NewTicker(15 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := sessions.CleanupExpired(); n > 0 {
					logging.Info("cleaned up expired upload sessions", zap.Int("count", n))
				}
				metrics.SetChunkSessionsActive(int64(sessions.Active()))
				rateLimiter.Cleanup(24 * time.Hour)
			}
		}
	}()

	logging.Info("server listening", zap.String("addr", cfg.ListenAddr))
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		logging.Fatal("server error", zap.Error(err))
	}
}
