// Package ingest turns raw narrations dropped in the ingest bucket into
// tagged, loudness-normalized library objects.
package ingest

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"story-palace/internal/audio"
	"story-palace/internal/metadata"
	"story-palace/internal/pkg/logger"
	"story-palace/internal/storage"
	"story-palace/internal/utils"
)

var (
	jobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storypalace_ingest_jobs_total",
			Help: "Total ingest jobs",
		},
		[]string{"status"},
	)
	duration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "storypalace_ingest_duration_seconds",
			Help:    "Processing time",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func RegisterMetrics() {
	prometheus.MustRegister(jobs, duration)
}

type Options struct {
	Prefix          string // library prefix, e.g. "stories/"
	TempDir         string
	PollingInterval time.Duration
}

type Worker struct {
	opts    Options
	storage *storage.Client
	tools   audio.Tools
	log     *logger.Logger
}

func New(opts Options, store *storage.Client, tools audio.Tools, log *logger.Logger) *Worker {
	if opts.PollingInterval <= 0 {
		opts.PollingInterval = time.Minute
	}
	return &Worker{opts: opts, storage: store, tools: tools, log: log}
}

// Run drains the queue every polling interval until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.opts.PollingInterval)
	defer ticker.Stop()

	w.log.Info("👀 Watching ingest bucket", "interval", w.opts.PollingInterval)
	w.ProcessQueue()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.ProcessQueue()
		}
	}
}

// ProcessQueue imports every supported file currently in the ingest
// bucket and returns how many made it into the library.
func (w *Worker) ProcessQueue() int {
	keys, err := w.storage.ListIngestFiles()
	if err != nil {
		w.log.Error("Error listing ingest bucket", "error", err)
		return 0
	}

	if len(keys) > 0 {
		w.log.Info("Found items in ingest queue", "count", len(keys))
	}

	imported := 0
	for _, key := range keys {
		if strings.HasSuffix(key, "/") || !audio.IsSupportedFormat(key) {
			continue
		}

		w.log.Info("Processing", "key", key)
		dest, err := w.processFile(key)
		switch {
		case err != nil:
			w.log.Error("❌ FAILED", "key", key, "error", err)
			jobs.WithLabelValues("failure").Inc()
		case dest == "":
			jobs.WithLabelValues("rejected").Inc()
		default:
			w.log.Info("✅ IMPORTED", "key", key, "library_key", dest)
			jobs.WithLabelValues("success").Inc()
			imported++
		}
	}
	return imported
}

// processFile returns the library key written, or "" when the file was
// rejected as corrupt and dropped from the queue.
func (w *Worker) processFile(key string) (string, error) {
	timer := prometheus.NewTimer(duration)
	defer timer.ObserveDuration()

	baseName := filepath.Base(key)
	ext := strings.ToLower(filepath.Ext(baseName))
	nameWithoutExt := strings.TrimSuffix(baseName, filepath.Ext(baseName))

	rawPath := filepath.Join(w.opts.TempDir, "raw_"+baseName)
	cleanPath := filepath.Join(w.opts.TempDir, "clean_"+nameWithoutExt+".mp3")

	defer os.Remove(rawPath)
	defer os.Remove(cleanPath)

	// 1. Download
	if err := w.download(key, rawPath); err != nil {
		return "", err
	}

	// 2. Validation before processing
	w.log.Debug("🔍 Validating integrity", "file", baseName)
	if err := w.tools.Validate(rawPath); err != nil {
		w.log.Warn("Skipping corrupted file", "file", baseName, "error", err)
		return "", w.storage.DeleteIngestFile(key) // Remove from queue so it doesn't loop
	}

	// 3. Title: embedded tag first, then the filename
	title := w.localTitle(rawPath)
	if title == "" {
		title = utils.CleanFilename(baseName)
	}

	// 4. FLAC stays lossless, everything else becomes normalized mp3
	uploadPath, contentType, destExt := cleanPath, "audio/mpeg", ".mp3"
	if ext == ".flac" {
		uploadPath, contentType, destExt = rawPath, "audio/flac", ".flac"
		if err := metadata.StampFLAC(rawPath, title); err != nil {
			return "", err
		}
	} else {
		w.log.Debug("-> Normalizing audio", "file", baseName)
		if err := w.tools.Normalize(rawPath, cleanPath); err != nil {
			return "", err
		}
		if err := metadata.StampMP3(cleanPath, title); err != nil {
			return "", err
		}
	}

	// 5. Upload
	destinationKey := BuildKey(w.opts.Prefix, title, key, destExt)
	if exists, _ := w.storage.LibraryFileExists(destinationKey); exists {
		w.log.Warn("Replacing existing library object", "library_key", destinationKey)
	}
	f, err := os.Open(uploadPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := w.storage.UploadLibraryFile(destinationKey, f, contentType); err != nil {
		return "", err
	}

	return destinationKey, w.storage.DeleteIngestFile(key)
}

func (w *Worker) download(key, dest string) error {
	obj, err := w.storage.DownloadIngestFile(key)
	if err != nil {
		return err
	}
	return writeBody(obj.Body, dest)
}

// writeBody copies body to dest and closes both.
func writeBody(body io.ReadCloser, dest string) error {
	defer body.Close()

	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	_, err = io.Copy(f, body)
	if cerr := f.Close(); err == nil {
		err = cerr // Close before validation so ffprobe can read it
	}
	return err
}

func (w *Worker) localTitle(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	title, err := metadata.ReadTitle(f)
	if err != nil {
		w.log.Debug("Local tags unreadable", "file", filepath.Base(path), "error", err)
		return ""
	}
	return title
}
