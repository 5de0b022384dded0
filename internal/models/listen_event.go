package models

import "time"

// Listen actions recorded in the history log.
const (
	ActionAnnounce = "announce"
	ActionPlay     = "play"
	ActionPause    = "pause"
	ActionResume   = "resume"
	ActionStop     = "stop"
	ActionFinish   = "finish"
	ActionReset    = "reset"
	ActionFailure  = "failure"
)

// ListenEvent is one row of the append-only listen history.
// It records what the listener did, never where playback stopped.
type ListenEvent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	SessionID string    `gorm:"index;size:36" json:"session_id"` // Screen instance
	Action    string    `gorm:"index;size:20" json:"action"`
	Title     string    `json:"title"`
	AudioRef  string    `json:"audio_ref"`
	Detail    string    `json:"detail,omitempty"` // Error text for failures
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName overrides the default pluralization
func (ListenEvent) TableName() string {
	return "listen_events"
}
