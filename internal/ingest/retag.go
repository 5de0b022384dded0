package ingest

import (
	"os"
	"path/filepath"
	"strings"

	"story-palace/internal/metadata"
	"story-palace/internal/utils"
)

// Retag stamps a title into library narrations that were uploaded by
// hand without one, so catalog scans show a readable name. Only mp3 and
// flac objects can be stamped; others are left alone.
func (w *Worker) Retag() (int, error) {
	w.log.Info("🛠️ Starting retag of untitled narrations", "prefix", w.opts.Prefix)

	keys, err := w.storage.ListAudioFiles(w.opts.Prefix)
	if err != nil {
		return 0, err
	}

	fixed := 0
	for i, key := range keys {
		if i > 0 && i%10 == 0 {
			w.log.Info("⏳ Retag progress", "done", i, "total", len(keys))
		}

		ext := strings.ToLower(filepath.Ext(key))
		if ext != ".mp3" && ext != ".flac" {
			continue
		}

		ok, err := w.retagOne(key, ext)
		if err != nil {
			w.log.Warn("⚠️ Retag failed", "key", key, "error", err)
			continue
		}
		if ok {
			fixed++
		}
	}

	w.log.Info("✅ Retag complete", "stamped", fixed, "scanned", len(keys))
	return fixed, nil
}

func (w *Worker) retagOne(key, ext string) (bool, error) {
	local := filepath.Join(w.opts.TempDir, "retag_"+filepath.Base(key))
	defer os.Remove(local)

	obj, err := w.storage.DownloadFile(key)
	if err != nil {
		return false, err
	}
	if err := writeBody(obj.Body, local); err != nil {
		return false, err
	}

	if w.localTitle(local) != "" {
		return false, nil
	}

	title := utils.CleanFilename(filepath.Base(key))
	contentType := "audio/mpeg"
	if ext == ".flac" {
		contentType = "audio/flac"
		err = metadata.StampFLAC(local, title)
	} else {
		err = metadata.StampMP3(local, title)
	}
	if err != nil {
		return false, err
	}

	f, err := os.Open(local)
	if err != nil {
		return false, err
	}
	defer f.Close()

	w.log.Debug("🔄 Stamped", "key", key, "title", title)
	return true, w.storage.UploadLibraryFile(key, f, contentType)
}
