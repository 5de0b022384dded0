package catalog

import (
	"bytes"
	"io"
	"path"
	"sort"
	"strings"

	"story-palace/internal/metadata"
	"story-palace/internal/models"
	"story-palace/internal/pkg/logger"
	"story-palace/internal/utils"
)

// Largest prefix of a file read to find its tags.
const maxTagBytes = 4 << 20

// Source is what a library scan needs from the storage layer.
type Source interface {
	ListAudioFiles(prefix string) ([]string, error)
	Open(key string) (io.ReadCloser, error)
}

// Scan builds a catalog from every audio object under prefix, ordered by
// key. Titles come from embedded tags, falling back to the file name.
func Scan(src Source, prefix string, log *logger.Logger) (*Catalog, error) {
	keys, err := src.ListAudioFiles(prefix)
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)

	stories := make([]models.Story, 0, len(keys))
	for _, key := range keys {
		ref := strings.TrimPrefix(key, prefix)
		if ref == "" {
			continue
		}
		title := readTitle(src, key, log)
		if title == "" {
			title = utils.CleanFilename(path.Base(ref))
		}
		stories = append(stories, models.NewStory(title, ref))
	}

	if len(stories) == 0 {
		return nil, ErrEmpty
	}
	log.Info("📚 Catalog scanned", "prefix", prefix, "stories", len(stories))
	return New(stories)
}

func readTitle(src Source, key string, log *logger.Logger) string {
	rc, err := src.Open(key)
	if err != nil {
		log.Warn("⚠️ Could not open story for tags", "key", key, "error", err)
		return ""
	}
	defer rc.Close()

	// Tag readers need to seek, object bodies can't.
	data, err := io.ReadAll(io.LimitReader(rc, maxTagBytes))
	if err != nil {
		log.Warn("⚠️ Could not read story for tags", "key", key, "error", err)
		return ""
	}
	title, err := metadata.ReadTitle(bytes.NewReader(data))
	if err != nil {
		log.Debug("No title tag", "key", key, "error", err)
		return ""
	}
	return title
}
