package history

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	database "story-palace/internal/db"
	"story-palace/internal/models"
	"story-palace/internal/pkg/logger"
)

func newRecorder(t *testing.T) *Recorder {
	t.Helper()
	client, err := database.NewSQLite(filepath.Join(t.TempDir(), "history.db"), logger.Nop())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := client.AutoMigrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	r := NewRecorder(client.DB)

	clock := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	r.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return r
}

func TestRecordAndRecent(t *testing.T) {
	r := newRecorder(t)
	forest := models.NewStory("Magical Forest", "forest.mp3")
	knight := models.NewStory("Brave Knight", "knight.mp3")

	mustRecord(t, r, "a", models.ActionAnnounce, forest, nil)
	mustRecord(t, r, "a", models.ActionPlay, forest, nil)
	mustRecord(t, r, "b", models.ActionFailure, knight, errors.New("asset not found"))

	events, err := r.Recent("", 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(events))
	}
	if events[0].Action != models.ActionFailure || events[0].Detail != "asset not found" {
		t.Errorf("newest = %+v, want the failure first", events[0])
	}

	events, _ = r.Recent("a", 10)
	if len(events) != 2 || events[0].Action != models.ActionPlay {
		t.Errorf("session a = %+v", events)
	}

	events, _ = r.Recent("", 1)
	if len(events) != 1 {
		t.Errorf("limit ignored: %d events", len(events))
	}
}

func TestLastPlayed(t *testing.T) {
	r := newRecorder(t)

	if _, err := r.LastPlayed(); !errors.Is(err, ErrNoHistory) {
		t.Fatalf("err = %v, want ErrNoHistory", err)
	}

	mustRecord(t, r, "a", models.ActionPlay, models.NewStory("Lost Treasure", "treasure.mp3"), nil)
	mustRecord(t, r, "a", models.ActionPlay, models.NewStory("Space Adventure", "space.mp3"), nil)
	mustRecord(t, r, "a", models.ActionStop, models.NewStory("Space Adventure", "space.mp3"), nil)

	ev, err := r.LastPlayed()
	if err != nil {
		t.Fatalf("LastPlayed: %v", err)
	}
	if ev.Title != "Space Adventure" {
		t.Errorf("last played = %q, want Space Adventure", ev.Title)
	}
}

func mustRecord(t *testing.T, r *Recorder, session, action string, s models.Story, cause error) {
	t.Helper()
	if err := r.Record(session, action, s, cause); err != nil {
		t.Fatalf("Record: %v", err)
	}
}
