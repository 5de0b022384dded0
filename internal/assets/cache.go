package assets

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"story-palace/internal/pkg/logger"
	"story-palace/internal/storage"
)

// ErrAssetNotFound means the story's audio is absent from the library.
var ErrAssetNotFound = errors.New("audio asset not found")

// Store defines what we need from the storage layer
type Store interface {
	Open(key string) (io.ReadCloser, error)
}

type download struct {
	done chan struct{}
	err  error
}

// Resolver turns a story's audio reference into a local, playable file.
// Library objects are copied into a cache directory on first use;
// concurrent requests for the same key share one download.
type Resolver struct {
	store   Store
	prefix  string
	baseDir string
	log     *logger.Logger

	mu      sync.Mutex
	pending map[string]*download
}

func NewResolver(store Store, prefix, tmpDir string, log *logger.Logger) *Resolver {
	cacheDir := filepath.Join(tmpDir, "story_cache")
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		log.Warn("⚠️ Failed to create cache dir", "dir", cacheDir, "error", err)
	}

	return &Resolver{
		store:   store,
		prefix:  prefix,
		baseDir: cacheDir,
		log:     log,
		pending: make(map[string]*download),
	}
}

// Resolve returns the local path for ref, downloading it when needed.
func (r *Resolver) Resolve(ref string) (string, error) {
	if !filepath.IsLocal(filepath.FromSlash(ref)) {
		return "", fmt.Errorf("%w: invalid reference %q", ErrAssetNotFound, ref)
	}
	key := r.prefix + ref
	localPath := r.filePath(key)

	// 1. Already cached
	if r.exists(localPath) {
		now := time.Now()
		os.Chtimes(localPath, now, now)
		return localPath, nil
	}

	// 2. Someone else is downloading it
	r.mu.Lock()
	if d, ok := r.pending[key]; ok {
		r.mu.Unlock()
		<-d.done
		if d.err != nil {
			return "", d.err
		}
		return localPath, nil
	}
	if r.exists(localPath) {
		// Finished between the first check and the lock
		r.mu.Unlock()
		return localPath, nil
	}

	// 3. Register our intent to download
	d := &download{done: make(chan struct{})}
	r.pending[key] = d
	r.mu.Unlock()

	defer func() {
		close(d.done)
		r.mu.Lock()
		delete(r.pending, key)
		r.mu.Unlock()
	}()

	r.log.Debug("📥 Cache miss", "key", key)
	if err := r.download(key, localPath); err != nil {
		if errors.Is(err, storage.ErrNotFound) || os.IsNotExist(err) {
			err = fmt.Errorf("%w: %s", ErrAssetNotFound, ref)
		}
		d.err = err
		return "", err
	}

	return localPath, nil
}

// Prefetch warms the cache in the background.
func (r *Resolver) Prefetch(refs []string) {
	for _, ref := range refs {
		go func(ref string) {
			if _, err := r.Resolve(ref); err != nil {
				r.log.Warn("❌ Prefetch failed", "ref", ref, "error", err)
			}
		}(ref)
	}
}

// Cleanup removes cached files not in keepRefs.
func (r *Resolver) Cleanup(keepRefs []string) {
	keep := make(map[string]bool)
	for _, ref := range keepRefs {
		keep[r.filePath(r.prefix+ref)] = true
	}

	files, err := os.ReadDir(r.baseDir)
	if err != nil {
		return
	}

	for _, file := range files {
		fullPath := filepath.Join(r.baseDir, file.Name())
		if !keep[fullPath] {
			os.Remove(fullPath)
		}
	}
}

// filePath flattens the key so nested library folders can't collide.
func (r *Resolver) filePath(key string) string {
	safeName := strings.ReplaceAll(filepath.ToSlash(key), "/", "__")
	return filepath.Join(r.baseDir, safeName)
}

func (r *Resolver) exists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir() && info.Size() > 0
}

func (r *Resolver) download(key, dest string) error {
	reader, err := r.store.Open(key)
	if err != nil {
		return err
	}
	defer reader.Close()

	tmp := dest + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, reader); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	// Rename to final file (Atomic)
	return os.Rename(tmp, dest)
}
