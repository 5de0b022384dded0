package ingest

import (
	"path"
	"path/filepath"
	"strings"

	"story-palace/internal/utils"
)

// BuildKey places a narration in the library: prefix + title slug + ext.
// The part after the prefix is the story's audio reference.
func BuildKey(prefix, title, originalKey, ext string) string {
	slug := utils.Sanitize(title, "")
	if slug == "" {
		slug = utils.Sanitize(utils.CleanFilename(filepath.Base(originalKey)), "Untitled")
	}
	return path.Join(prefix, strings.ToLower(slug)+ext)
}
