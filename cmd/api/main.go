package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"story-palace/internal/app"
	"story-palace/internal/config"
	"story-palace/internal/pkg/logger"
	"story-palace/internal/playback"
	"story-palace/internal/screen"

	// Use an alias to prevent naming collisions with the 'server' variable
	apiserver "story-palace/internal/api/server"
)

func main() {
	// 1. Setup Configuration
	cfg := config.Load()

	l, err := logger.New(cfg.Log.Mode)
	if err != nil {
		log.Fatalf("❌ Failed to init logger: %v", err)
	}
	defer l.Sync()
	l.Info("Starting Story Palace API Server...")

	// 2. Initialize Infrastructure
	a, err := app.New(cfg, l)
	if err != nil {
		l.Fatal("❌ Startup failed", "error", err)
	}

	// 3. Setup Metrics
	playback.RegisterMetrics()
	mux := http.NewServeMux()
	mux.Handle("/_metrics", promhttp.Handler())
	metricsServer := &http.Server{Addr: cfg.Server.MetricsPort, Handler: mux}

	srv := apiserver.New(cfg, a.Catalog, a.Screen, a, l)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Run the screen, the API and metrics until a signal arrives
	err = a.Run(ctx,
		func(ctx context.Context) error {
			// a remote-controlled screen is on display from the start
			if _, err := a.Screen.Dispatch(ctx, screen.Event{Type: screen.Appeared}); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
		func(ctx context.Context) error {
			return srv.Start(ctx, cfg.Server.APIPort)
		},
		func(ctx context.Context) error {
			go func() {
				<-ctx.Done()
				metricsServer.Close()
			}()
			l.Info("📊 Metrics exposed", "url", "http://localhost"+cfg.Server.MetricsPort+"/_metrics")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				l.Warn("⚠️ Metrics server error", "error", err)
			}
			return nil
		},
	)
	if err != nil {
		l.Fatal("❌ Server failed", "error", err)
	}
	l.Info("👋 API Server stopped")
}
