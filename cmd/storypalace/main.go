package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"story-palace/internal/app"
	"story-palace/internal/config"
	"story-palace/internal/pkg/logger"
	"story-palace/internal/tui"
)

func main() {
	// 1. Parse Flags
	logPath := flag.String("log", "storypalace.log", "Log file (the terminal belongs to the UI)")
	catalogFile := flag.String("catalog", "", "Override catalog with a YAML file")
	flag.Parse()

	// 2. Load Config
	cfg := config.Load()
	if *catalogFile != "" {
		cfg.Catalog.Source = "file"
		cfg.Catalog.File = *catalogFile
	}

	l, err := logger.NewWithOutput(cfg.Log.Mode, *logPath)
	if err != nil {
		log.Fatalf("❌ Failed to init logger: %v", err)
	}
	defer l.Sync()

	// 3. Init Infrastructure
	a, err := app.New(cfg, l)
	if err != nil {
		l.Fatal("❌ Startup failed", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// 4. Run the screen loop and the terminal together
	err = a.Run(ctx, func(ctx context.Context) error {
		defer cancel() // quitting the UI stops the loop
		p := tea.NewProgram(tui.New(a.Screen, cfg.Knob.DragStepDegrees), tea.WithAltScreen(), tea.WithContext(ctx))
		_, err := p.Run()
		if err != nil && ctx.Err() != nil {
			return nil
		}
		return err
	})
	if err != nil {
		l.Error("❌ Story Palace stopped with error", "error", err)
		os.Exit(1)
	}
	l.Info("👋 Story Palace closed")
}
