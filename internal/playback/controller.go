// Package playback owns the single audio handle and speech engine of a
// screen. Switching stories always stops the previous audio before any
// new audio is loaded.
package playback

import (
	"errors"
	"fmt"
	"io/fs"
	"math"

	"github.com/prometheus/client_golang/prometheus"

	"story-palace/internal/audio"
	"story-palace/internal/models"
	"story-palace/internal/pkg/logger"
	"story-palace/internal/speech"
)

// Metrics
var (
	announcementsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "storypalace_announcements_total", Help: "Titles announced"},
	)
	playbackStartsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "storypalace_playback_starts_total", Help: "Stories started from idle"},
	)
	failuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "storypalace_failures_total", Help: "Audio and speech failures"},
		[]string{"kind"},
	)
)

func RegisterMetrics() {
	prometheus.MustRegister(announcementsTotal, playbackStartsTotal, failuresTotal)
}

// Resolver maps a story's audio reference to a playable local path.
type Resolver interface {
	Resolve(ref string) (string, error)
}

// Selection is the part of the knob the controller reads.
type Selection interface {
	Current() models.Story
	Rewind() models.Story
}

// Observer is told about every user-visible action; err is set for
// failures only.
type Observer func(action string, story models.Story, err error)

type Options struct {
	Locale         string
	InitialVolume  float64
	AnnounceOnPlay bool
}

// Controller is not safe for concurrent use. Reports from the audio
// output arrive on other goroutines and are handed to post, which must
// run them on the goroutine that owns the controller.
type Controller struct {
	selection  Selection
	resolver   Resolver
	output     audio.Output
	speaker    speech.Speaker
	opts       Options
	log        *logger.Logger
	post       func(func())
	background func(func())
	observer   Observer

	status  Status
	handle  audio.Handle
	story   models.Story // owner of handle
	token   int          // identifies the current load in async reports
	loading bool
	volume  float64
}

// New builds an Idle controller. An InitialVolume of zero means full volume.
func New(sel Selection, resolver Resolver, output audio.Output, speaker speech.Speaker, opts Options, log *logger.Logger) *Controller {
	if opts.InitialVolume <= 0 {
		opts.InitialVolume = 1
	}
	return &Controller{
		selection:  sel,
		resolver:   resolver,
		output:     output,
		speaker:    speaker,
		opts:       opts,
		log:        log,
		post:       func(fn func()) { fn() },
		background: func(fn func()) { fn() },
		volume:     clamp(opts.InitialVolume),
	}
}

// SetPoster routes asynchronous audio reports through post.
func (c *Controller) SetPoster(post func(func())) { c.post = post }

// SetBackground makes starting a story resolve and open its audio on run
// (usually a new goroutine) instead of the caller. The outcome comes back
// through the poster, so TogglePlayPause returns before it is known.
func (c *Controller) SetBackground(run func(func())) { c.background = run }

func (c *Controller) SetObserver(o Observer) { c.observer = o }

func (c *Controller) Status() Status { return c.status }

func (c *Controller) Volume() float64 { return c.volume }

// Loading reports whether a story's audio is being fetched.
func (c *Controller) Loading() bool { return c.loading }

// Loaded returns the story whose audio is held, if any.
func (c *Controller) Loaded() (models.Story, bool) {
	return c.story, c.handle != nil
}

// TogglePlayPause starts the current story from Idle, pauses while
// Playing and resumes while Paused. Load failures leave the controller
// Idle; pause/resume failures leave it where it was. While a load is in
// flight it does nothing.
func (c *Controller) TogglePlayPause() error {
	switch c.status {
	case Playing:
		if err := c.handle.Pause(); err != nil {
			return c.fail(c.story, fmt.Errorf("%w: pause: %v", ErrPlaybackFailed, err))
		}
		c.status = Paused
		c.emit(models.ActionPause, c.story, nil)
		return nil
	case Paused:
		if err := c.handle.Resume(); err != nil {
			return c.fail(c.story, fmt.Errorf("%w: resume: %v", ErrPlaybackFailed, err))
		}
		c.status = Playing
		c.emit(models.ActionResume, c.story, nil)
		return nil
	default:
		return c.start()
	}
}

func (c *Controller) start() error {
	if c.loading {
		c.log.Debug("Already loading", "story", c.selection.Current().Title)
		return nil
	}
	story := c.selection.Current()
	c.token++
	token := c.token
	c.loading = true

	var result error
	c.background(func() {
		h, err := c.load(story, token)
		c.post(func() { result = c.loaded(token, story, h, err) })
	})
	return result
}

// load resolves and opens the story's audio. It may run off the owning
// goroutine, so it only touches the resolver and the output.
func (c *Controller) load(story models.Story, token int) (audio.Handle, error) {
	path, err := c.resolver.Resolve(story.AudioRef)
	if err != nil {
		if !errors.Is(err, ErrAssetNotFound) {
			err = fmt.Errorf("%w: resolve %s: %v", ErrPlaybackFailed, story.AudioRef, err)
		}
		return nil, err
	}

	h, err := c.output.Load(path, func(err error) {
		c.post(func() { c.finished(token, err) })
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s: %v", ErrAssetNotFound, story.AudioRef, err)
		}
		return nil, fmt.Errorf("%w: load %s: %v", ErrPlaybackFailed, story.AudioRef, err)
	}
	return h, nil
}

// loaded takes over the result of load. A load overtaken by a selection
// change, reset or teardown is discarded.
func (c *Controller) loaded(token int, story models.Story, h audio.Handle, err error) error {
	if token != c.token {
		if h != nil {
			h.Stop()
		}
		c.log.Debug("Dropped superseded load", "story", story.Title)
		return nil
	}
	c.loading = false
	if err != nil {
		return c.fail(story, err)
	}

	if err := h.SetVolume(c.volume); err != nil {
		c.log.Warn("⚠️ Could not apply volume", "story", story.Title, "error", err)
	}
	if err := h.Play(); err != nil {
		h.Stop()
		return c.fail(story, fmt.Errorf("%w: play %s: %v", ErrPlaybackFailed, story.AudioRef, err))
	}

	c.handle = h
	c.story = story
	c.status = Playing
	playbackStartsTotal.Inc()
	c.log.Info("▶️ Playing", "story", story.Title)
	c.emit(models.ActionPlay, story, nil)

	if c.opts.AnnounceOnPlay {
		c.announce(story)
	}
	return nil
}

// OnSelectionChanged releases any held audio, then announces story. It
// runs for every selection change, including while Idle.
func (c *Controller) OnSelectionChanged(story models.Story) error {
	c.release()
	return c.announce(story)
}

// Announce speaks title right away, cutting off the previous utterance.
func (c *Controller) Announce(title string) error {
	return c.announce(models.Story{Title: title})
}

// Reset is the long-press "back to start": release, rewind to the first
// story, announce it.
func (c *Controller) Reset() error {
	c.release()
	story := c.selection.Rewind()
	c.log.Info("⏮️ Reset to first story", "story", story.Title)
	c.emit(models.ActionReset, story, nil)
	return c.announce(story)
}

// AdjustVolume moves the volume by delta within [0, 1]. Without a held
// handle it does nothing.
func (c *Controller) AdjustVolume(delta float64) {
	if c.handle == nil {
		return
	}
	c.volume = clamp(c.volume + delta)
	if err := c.handle.SetVolume(c.volume); err != nil {
		c.log.Warn("⚠️ Could not change volume", "story", c.story.Title, "error", err)
	}
}

// Teardown stops speech and releases audio. Called when the screen goes away.
func (c *Controller) Teardown() {
	if err := c.speaker.Stop(); err != nil {
		c.log.Warn("⚠️ Could not stop speech", "error", err)
	}
	c.release()
}

func (c *Controller) announce(story models.Story) error {
	if err := c.speaker.Speak(story.Title, c.opts.Locale); err != nil {
		return c.fail(story, fmt.Errorf("%w: %v", ErrSpeechFailed, err))
	}
	announcementsTotal.Inc()
	c.log.Debug("🗣️ Announced", "title", story.Title)
	c.emit(models.ActionAnnounce, story, nil)
	return nil
}

// release stops and drops the held handle, abandons any load in flight
// and returns to Idle.
func (c *Controller) release() {
	c.token++
	c.loading = false
	if c.handle != nil {
		if err := c.handle.Stop(); err != nil {
			c.log.Warn("⚠️ Could not stop audio", "story", c.story.Title, "error", err)
		}
		c.emit(models.ActionStop, c.story, nil)
		c.handle = nil
		c.story = models.Story{}
	}
	c.status = Idle
}

// finished handles the end of a handle reported by the audio output.
func (c *Controller) finished(token int, err error) {
	if token != c.token || c.handle == nil {
		return // released already
	}
	story := c.story
	c.handle = nil
	c.story = models.Story{}
	c.status = Idle

	if err != nil {
		c.fail(story, fmt.Errorf("%w: %s ended: %v", ErrPlaybackFailed, story.AudioRef, err))
		return
	}
	c.log.Info("🏁 Story finished", "story", story.Title)
	c.emit(models.ActionFinish, story, nil)
}

func (c *Controller) fail(story models.Story, err error) error {
	kind := "playback"
	switch {
	case errors.Is(err, ErrAssetNotFound):
		kind = "asset_not_found"
	case errors.Is(err, ErrSpeechFailed):
		kind = "speech"
	}
	failuresTotal.WithLabelValues(kind).Inc()
	c.log.Warn("❌ "+kind+" failure", "story", story.Title, "error", err)
	c.emit(models.ActionFailure, story, err)
	return err
}

func (c *Controller) emit(action string, story models.Story, err error) {
	if c.observer != nil {
		c.observer(action, story, err)
	}
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
