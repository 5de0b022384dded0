package utils

import (
	"path/filepath"
	"regexp"
	"strings"
)

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9\-\s]+`)

// CleanFilename turns "the_brave-knight.mp3" into "the brave knight".
func CleanFilename(filename string) string {
	ext := filepath.Ext(filename)
	clean := strings.TrimSuffix(filename, ext)
	clean = strings.ReplaceAll(clean, "_", " ")
	clean = strings.ReplaceAll(clean, "-", " ")
	return strings.Join(strings.Fields(clean), " ")
}

// Sanitize makes text safe for a storage key, returning def when empty.
func Sanitize(text, def string) string {
	clean := strings.TrimSpace(unsafeChars.ReplaceAllString(text, ""))
	if clean == "" {
		return def
	}
	return strings.Join(strings.Fields(clean), "_")
}
