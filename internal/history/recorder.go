// Package history keeps the append-only listen log.
package history

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"story-palace/internal/models"
)

const maxRecent = 500

var ErrNoHistory = errors.New("no history yet")

type Recorder struct {
	db  *gorm.DB
	now func() time.Time
}

func NewRecorder(db *gorm.DB) *Recorder {
	return &Recorder{db: db, now: time.Now}
}

// Record appends one action. cause is stored as the detail of failures.
func (r *Recorder) Record(sessionID, action string, story models.Story, cause error) error {
	ev := models.ListenEvent{
		SessionID: sessionID,
		Action:    action,
		Title:     story.Title,
		AudioRef:  story.AudioRef,
		CreatedAt: r.now().UTC(),
	}
	if cause != nil {
		ev.Detail = cause.Error()
	}
	return r.db.Create(&ev).Error
}

// Recent returns up to limit events, newest first. sessionID filters
// when not empty.
func (r *Recorder) Recent(sessionID string, limit int) ([]models.ListenEvent, error) {
	if limit <= 0 || limit > maxRecent {
		limit = maxRecent
	}
	q := r.db.Order("created_at DESC, id DESC").Limit(limit)
	if sessionID != "" {
		q = q.Where("session_id = ?", sessionID)
	}
	var events []models.ListenEvent
	err := q.Find(&events).Error
	return events, err
}

// LastPlayed returns the most recent story that started playing.
func (r *Recorder) LastPlayed() (models.ListenEvent, error) {
	var ev models.ListenEvent
	err := r.db.Where("action = ?", models.ActionPlay).Order("created_at DESC, id DESC").First(&ev).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ev, ErrNoHistory
	}
	return ev, err
}
