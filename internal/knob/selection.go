// Package knob maps a rotary dial onto the story catalog.
//
// The selection is kept twice: as a discrete catalog index and as a
// continuous dial angle. Drags move the angle freely and only produce a
// selection change when the nearest step changes; taps move the index
// and snap the angle to that index's canonical position.
package knob

import (
	"math"

	"story-palace/internal/catalog"
	"story-palace/internal/models"
)

// Selection is not safe for concurrent use; the screen loop owns it.
type Selection struct {
	catalog   *catalog.Catalog
	index     int
	angle     float64
	listeners []func(models.Story)
}

func New(c *catalog.Catalog) *Selection {
	return &Selection{catalog: c}
}

// OnChange registers fn to run after every selection change.
func (s *Selection) OnChange(fn func(models.Story)) {
	s.listeners = append(s.listeners, fn)
}

// StepDegrees is the arc covered by one story.
func (s *Selection) StepDegrees() float64 {
	return 360 / float64(s.catalog.Len())
}

func (s *Selection) Index() int { return s.index }

func (s *Selection) Angle() float64 { return s.angle }

func (s *Selection) Len() int { return s.catalog.Len() }

// Current returns catalog[index].
func (s *Selection) Current() models.Story { return s.catalog.At(s.index) }

// SetAngle moves the dial to a (any real, normalized here) and derives
// the index from the nearest step. Listeners only run when the index
// changes. NaN and infinities are ignored.
func (s *Selection) SetAngle(a float64) bool {
	if math.IsNaN(a) || math.IsInf(a, 0) {
		return false
	}
	a = Normalize(a)
	s.angle = a

	n := s.catalog.Len()
	idx := int(math.Round(a/s.StepDegrees())) % n
	if idx == s.index {
		return false
	}
	s.index = idx
	s.notify()
	return true
}

// Step moves offset stories (positive is forward), wrapping both ways,
// and snaps the angle. Listeners always run, even when a one-story
// catalog leaves the index where it was.
func (s *Selection) Step(offset int) {
	n := s.catalog.Len()
	s.index = ((s.index+offset)%n + n) % n
	s.angle = float64(s.index) * s.StepDegrees()
	s.notify()
}

// Settle snaps the angle onto the current index at the end of a drag.
func (s *Selection) Settle() {
	s.angle = float64(s.index) * s.StepDegrees()
}

// Rewind returns to the first story without notifying listeners.
func (s *Selection) Rewind() models.Story {
	s.index = 0
	s.angle = 0
	return s.Current()
}

func (s *Selection) notify() {
	story := s.Current()
	for _, fn := range s.listeners {
		fn(story)
	}
}

// Normalize wraps a into [0, 360).
func Normalize(a float64) float64 {
	a = math.Mod(a, 360)
	if a < 0 {
		a += 360
	}
	if a >= 360 {
		// -tiny + 360 rounds up to 360
		a = 0
	}
	return a
}

// AngleFromPoint converts a pointer offset from the knob centre, in screen
// coordinates (y grows downwards), into a clockwise angle from 12 o'clock.
func AngleFromPoint(dx, dy float64) float64 {
	if dx == 0 && dy == 0 {
		return 0
	}
	return Normalize(math.Atan2(dx, -dy) * 180 / math.Pi)
}
