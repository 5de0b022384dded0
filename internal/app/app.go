// Package app wires configuration into a running story screen.
package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"story-palace/internal/assets"
	"story-palace/internal/audio"
	"story-palace/internal/catalog"
	"story-palace/internal/config"
	database "story-palace/internal/db"
	"story-palace/internal/history"
	"story-palace/internal/models"
	"story-palace/internal/pkg/logger"
	"story-palace/internal/playback"
	"story-palace/internal/screen"
	"story-palace/internal/speech"
	"story-palace/internal/storage"
)

type App struct {
	Config   *config.Config
	Log      *logger.Logger
	Storage  *storage.Client
	Catalog  *catalog.Catalog
	Resolver *assets.Resolver
	DB       *database.Client
	History  *history.Recorder
	Screen   *screen.Screen
	speaker  speech.Speaker
}

// New builds every dependency of a screen. The history database is
// optional: when it cannot be opened the screen runs without a log.
func New(cfg *config.Config, log *logger.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log}

	a.Storage = storage.New(cfg)

	cat, err := LoadCatalog(cfg, a.Storage, log)
	if err != nil {
		return nil, err
	}
	a.Catalog = cat
	log.Info("📚 Catalog loaded", "source", cfg.Catalog.Source, "stories", cat.Len())

	a.Resolver = assets.NewResolver(a.Storage, cfg.Storage.Prefix, cfg.Server.TempDir, log)
	keep := refs(cat)
	a.Resolver.Cleanup(keep)
	a.Resolver.Prefetch(keep)

	var recorder screen.Recorder
	if db, err := database.New(cfg, log); err != nil {
		log.Warn("⚠️ History disabled", "error", err)
	} else if err := db.AutoMigrate(); err != nil {
		log.Warn("⚠️ History disabled", "error", err)
	} else {
		a.DB = db
		a.History = history.NewRecorder(db.DB)
		recorder = a.History
	}

	a.speaker = NewSpeaker(cfg, log)
	a.Screen = screen.New(cat, a.Resolver, NewOutput(cfg, log), a.speaker, screen.Options{
		Playback: playback.Options{
			Locale:         cfg.Speech.Locale,
			InitialVolume:  cfg.Audio.InitialVolume,
			AnnounceOnPlay: cfg.Speech.AnnounceOnPlay,
		},
		VolumeStep: cfg.Audio.VolumeStep,
		Recorder:   recorder,
	}, log)

	return a, nil
}

// Run drives the screen loop alongside extra services until ctx is
// cancelled or one of them fails.
func (a *App) Run(ctx context.Context, services ...func(context.Context) error) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.Screen.Run(ctx) })
	for _, svc := range services {
		svc := svc
		g.Go(func() error { return svc(ctx) })
	}
	return g.Wait()
}

// LoadCatalog reads the story list from the configured source.
func LoadCatalog(cfg *config.Config, src catalog.Source, log *logger.Logger) (*catalog.Catalog, error) {
	switch cfg.Catalog.Source {
	case "", "default":
		return catalog.Default(), nil
	case "file":
		return catalog.Load(cfg.Catalog.File)
	case "storage":
		return catalog.Scan(src, cfg.Storage.Prefix, log)
	default:
		return nil, fmt.Errorf("unknown catalog source %q", cfg.Catalog.Source)
	}
}

// NewSpeaker picks the speech engine. "log" is for headless machines.
func NewSpeaker(cfg *config.Config, log *logger.Logger) speech.Speaker {
	if cfg.Speech.Provider == "log" {
		return speech.NewLog(log)
	}
	return speech.NewCommand(cfg.Speech.Binary, log)
}

// NewOutput builds the ffplay output, validating with ffprobe when enabled.
func NewOutput(cfg *config.Config, log *logger.Logger) audio.Output {
	var validate *audio.Tools
	if cfg.Audio.Validate {
		tools := audio.DefaultTools()
		if cfg.Audio.ProbeBinary != "" {
			tools.FFprobe = cfg.Audio.ProbeBinary
		}
		validate = &tools
	}
	return audio.NewPlayer(cfg.Audio.PlayerBinary, validate, log)
}

func refs(c *catalog.Catalog) []string {
	out := make([]string, 0, c.Len())
	for _, s := range c.Stories() {
		out = append(out, s.AudioRef)
	}
	return out
}

// Recent exposes the history for the API, or nothing when it is disabled.
func (a *App) Recent(sessionID string, limit int) ([]models.ListenEvent, error) {
	if a.History == nil {
		return nil, nil
	}
	return a.History.Recent(sessionID, limit)
}
