package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"story-palace/internal/audio"
	"story-palace/internal/config"
	"story-palace/internal/ingest"
	"story-palace/internal/pkg/logger"
	"story-palace/internal/storage"
)

func main() {
	once := flag.Bool("once", false, "Drain the ingest queue once and exit")
	retag := flag.Bool("retag", false, "Stamp titles into untagged library narrations and exit")
	flag.Parse()

	// 1. Setup Configuration
	cfg := config.Load()

	l, err := logger.New(cfg.Log.Mode)
	if err != nil {
		log.Fatalf("❌ Failed to init logger: %v", err)
	}
	defer l.Sync()
	l.Info("Starting Story Palace Narration Importer...")

	// 2. Initialize Infrastructure
	store := storage.New(cfg)

	// Ensure temp directory exists for processing
	os.MkdirAll(cfg.Server.TempDir, 0755)

	tools := audio.DefaultTools()
	if cfg.Audio.ProbeBinary != "" {
		tools.FFprobe = cfg.Audio.ProbeBinary
	}
	worker := ingest.New(ingest.Options{
		Prefix:          cfg.Storage.Prefix,
		TempDir:         cfg.Server.TempDir,
		PollingInterval: time.Duration(cfg.Server.PollingInterval) * time.Second,
	}, store, tools, l)

	switch {
	case *retag:
		if _, err := worker.Retag(); err != nil {
			l.Fatal("❌ Retag failed", "error", err)
		}
		return
	case *once:
		n := worker.ProcessQueue()
		l.Info("✅ Queue drained", "imported", n)
		return
	}

	// 3. Setup Metrics
	ingest.RegisterMetrics()
	go func() {
		http.Handle("/_metrics", promhttp.Handler())
		l.Info("📊 Metrics exposed", "url", "http://localhost"+cfg.Server.MetricsPort+"/_metrics")
		if err := http.ListenAndServe(cfg.Server.MetricsPort, nil); err != nil {
			l.Warn("⚠️ Metrics server error", "error", err)
		}
	}()

	// 4. Start Worker
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	worker.Run(ctx)
	l.Info("👋 Importer stopped")
}
