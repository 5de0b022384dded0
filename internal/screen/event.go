package screen

import (
	"errors"
	"fmt"
	"math"
)

// Kind names one input event.
type Kind string

const (
	DragChanged  Kind = "drag_changed"
	DragEnded    Kind = "drag_ended"
	TapPrevious  Kind = "tap_previous"
	TapNext      Kind = "tap_next"
	TapPlayPause Kind = "tap_play_pause"
	LongPress    Kind = "long_press"
	VolumeUp     Kind = "volume_up"
	VolumeDown   Kind = "volume_down"
	Appeared     Kind = "appeared"
	Disappeared  Kind = "disappeared"
)

var ErrInvalidEvent = errors.New("invalid event")

// Event is one input from a host shell. A drag carries either an absolute
// dial angle or a pointer offset (X, Y) from the knob centre.
type Event struct {
	Type  Kind     `json:"type" binding:"required"`
	Angle *float64 `json:"angle,omitempty"`
	X     *float64 `json:"x,omitempty"`
	Y     *float64 `json:"y,omitempty"`
}

func DragTo(angle float64) Event {
	return Event{Type: DragChanged, Angle: &angle}
}

func DragAt(x, y float64) Event {
	return Event{Type: DragChanged, X: &x, Y: &y}
}

// Validate rejects unknown kinds and drags without a position.
func (e Event) Validate() error {
	switch e.Type {
	case DragChanged:
		if e.Angle != nil {
			if math.IsNaN(*e.Angle) || math.IsInf(*e.Angle, 0) {
				return fmt.Errorf("%w: angle must be finite", ErrInvalidEvent)
			}
			return nil
		}
		if e.X == nil || e.Y == nil {
			return fmt.Errorf("%w: drag needs angle or x and y", ErrInvalidEvent)
		}
		return nil
	case DragEnded, TapPrevious, TapNext, TapPlayPause, LongPress,
		VolumeUp, VolumeDown, Appeared, Disappeared:
		return nil
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, e.Type)
	}
}
