package playback

import (
	"errors"

	"story-palace/internal/assets"
)

// Status is the playback state of the screen.
type Status int

const (
	Idle Status = iota
	Playing
	Paused
)

// String returns the state name.
func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "unknown"
	}
}

// IsActive reports whether an audio handle is held.
func (s Status) IsActive() bool {
	return s == Playing || s == Paused
}

var (
	// ErrAssetNotFound: the story's audio is absent from the library.
	ErrAssetNotFound = assets.ErrAssetNotFound
	// ErrPlaybackFailed: the audio was found but could not be played.
	ErrPlaybackFailed = errors.New("playback failed")
	// ErrSpeechFailed: the title could not be announced.
	ErrSpeechFailed = errors.New("speech failed")
)
