package audio

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

var ErrCorrupt = errors.New("audio: stream is not decodable")

var supportedExtensions = []string{
	".mp3", ".flac", ".wav", ".ogg", ".m4a", ".aac", ".aiff", ".opus",
}

func IsSupportedFormat(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, e := range supportedExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Tools locates the ffmpeg/ffprobe binaries.
type Tools struct {
	FFmpeg  string
	FFprobe string
}

func DefaultTools() Tools {
	return Tools{FFmpeg: "ffmpeg", FFprobe: "ffprobe"}
}

// Normalize re-encodes input to a loudness-normalized mp3 without tags.
func (t Tools) Normalize(input, output string) error {
	cmd := exec.Command(t.FFmpeg, "-y", "-i", input,
		"-map", "0:a:0", // Audio only
		"-map_metadata", "-1", // Strip tags, the importer stamps its own
		"-af", "loudnorm=I=-16:TP=-1.5:LRA=11",
		"-c:a", "libmp3lame", "-b:a", "128k",
		output)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg normalize: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// Probe returns the decoded duration of path. Truncated or corrupt
// streams make ffprobe fail, which is reported as ErrCorrupt.
func (t Tools) Probe(path string) (time.Duration, error) {
	if _, err := os.Stat(path); err != nil {
		return 0, err
	}

	cmd := exec.Command(t.FFprobe, "-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	secs, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil || secs <= 0 {
		return 0, fmt.Errorf("%w: no duration in %q", ErrCorrupt, strings.TrimSpace(string(out)))
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// Validate checks that path exists and is decodable.
func (t Tools) Validate(path string) error {
	_, err := t.Probe(path)
	return err
}
