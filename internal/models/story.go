package models

import "github.com/google/uuid"

// Story is one immutable catalog entry.
type Story struct {
	ID       uuid.UUID `json:"id" yaml:"-"`
	Title    string    `json:"title" yaml:"title"`     // Display and speech text
	AudioRef string    `json:"audio_ref" yaml:"audio"` // Key relative to the library prefix (forest.mp3)
}

// NewStory assigns a fresh ID.
func NewStory(title, audioRef string) Story {
	return Story{ID: uuid.New(), Title: title, AudioRef: audioRef}
}
