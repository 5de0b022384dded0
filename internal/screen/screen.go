// Package screen runs one story screen: a knob selection and a playback
// controller driven by a single event loop.
package screen

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"story-palace/internal/audio"
	"story-palace/internal/catalog"
	"story-palace/internal/knob"
	"story-palace/internal/models"
	"story-palace/internal/pkg/logger"
	"story-palace/internal/playback"
	"story-palace/internal/speech"
)

var ErrClosed = errors.New("screen closed")

// Recorder receives every user-visible action.
type Recorder interface {
	Record(sessionID, action string, story models.Story, cause error) error
}

type Options struct {
	Playback   playback.Options
	VolumeStep float64
	Recorder   Recorder
}

// Snapshot is the immutable view state published after every event.
type Snapshot struct {
	SessionID   string  `json:"session_id"`
	Index       int     `json:"index"`
	Count       int     `json:"count"`
	Angle       float64 `json:"angle"`
	StepDegrees float64 `json:"step_degrees"`
	Title       string  `json:"title"`
	AudioRef    string  `json:"audio_ref"`
	Status      string  `json:"status"`
	Loading     bool    `json:"loading"`
	Volume      float64 `json:"volume"`
	Visible     bool    `json:"visible"`
	Error       string  `json:"error,omitempty"`
}

type request struct {
	event Event
	reply chan Snapshot
}

type Screen struct {
	id         string
	selection  *knob.Selection
	controller *playback.Controller
	recorder   Recorder
	volumeStep float64
	log        *logger.Logger

	requests chan request
	tasks    chan func()
	done     chan struct{}
	runOnce  sync.Once

	// loop-owned
	visible bool
	lastErr error

	mu      sync.RWMutex
	snap    Snapshot
	subs    map[int]chan Snapshot
	nextSub int
	closed  bool
}

func New(cat *catalog.Catalog, resolver playback.Resolver, output audio.Output, speaker speech.Speaker, opts Options, log *logger.Logger) *Screen {
	if opts.VolumeStep <= 0 {
		opts.VolumeStep = 0.1
	}
	id := uuid.NewString()
	log = log.With("session", id)

	s := &Screen{
		id:         id,
		selection:  knob.New(cat),
		recorder:   opts.Recorder,
		volumeStep: opts.VolumeStep,
		log:        log,
		requests:   make(chan request),
		tasks:      make(chan func(), 16),
		done:       make(chan struct{}),
		subs:       make(map[int]chan Snapshot),
	}
	s.controller = playback.New(s.selection, resolver, output, speaker, opts.Playback, log)
	s.controller.SetPoster(s.post)
	s.controller.SetBackground(func(fn func()) { go fn() })
	s.controller.SetObserver(s.observe)
	s.selection.OnChange(func(story models.Story) {
		// the error is already recorded through observe
		_ = s.controller.OnSelectionChanged(story)
	})
	s.snap = s.buildSnapshot()
	return s
}

func (s *Screen) ID() string { return s.id }

// Run processes events until ctx is cancelled, then tears down. It must
// be called once.
func (s *Screen) Run(ctx context.Context) error {
	s.log.Info("📺 Screen loop started", "stories", s.selection.Len())
	defer s.shutdown()

	for {
		select {
		case <-ctx.Done():
			s.controller.Teardown()
			s.visible = false
			s.publish()
			s.log.Info("🛑 Screen loop stopped")
			return nil
		case req := <-s.requests:
			s.handle(req.event)
			req.reply <- s.publish()
		case task := <-s.tasks:
			task()
			s.publish()
		}
	}
}

// Dispatch hands ev to the loop and waits until it has been applied.
// The returned snapshot reflects ev; playback errors are reported in its
// Error field, not returned.
func (s *Screen) Dispatch(ctx context.Context, ev Event) (Snapshot, error) {
	if err := ev.Validate(); err != nil {
		return Snapshot{}, err
	}
	req := request{event: ev, reply: make(chan Snapshot, 1)}
	select {
	case s.requests <- req:
	case <-s.done:
		return Snapshot{}, ErrClosed
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
	select {
	case snap := <-req.reply:
		return snap, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

// Snapshot returns the latest published state. Safe from any goroutine.
func (s *Screen) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Subscribe returns a channel that receives the current snapshot and
// every later one. A slow reader only ever sees the newest snapshot.
// The channel is closed by cancel or when the loop stops.
func (s *Screen) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Snapshot, 1)
	if s.closed {
		ch <- s.snap
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- s.snap

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

func (s *Screen) handle(ev Event) {
	if !s.visible && ev.Type != Appeared {
		s.log.Debug("Ignoring input while hidden", "event", ev.Type)
		return
	}
	s.lastErr = nil

	switch ev.Type {
	case Appeared:
		s.visible = true
		s.log.Info("👀 Screen appeared")
	case Disappeared:
		s.controller.Teardown()
		s.visible = false
		s.log.Info("🙈 Screen disappeared")
	case DragChanged:
		var angle float64
		if ev.Angle != nil {
			angle = *ev.Angle
		} else {
			angle = knob.AngleFromPoint(*ev.X, *ev.Y)
		}
		s.selection.SetAngle(angle)
	case DragEnded:
		s.selection.Settle()
	case TapPrevious:
		s.selection.Step(-1)
	case TapNext:
		s.selection.Step(1)
	case TapPlayPause:
		_ = s.controller.TogglePlayPause()
	case LongPress:
		_ = s.controller.Reset()
	case VolumeUp:
		s.controller.AdjustVolume(s.volumeStep)
	case VolumeDown:
		s.controller.AdjustVolume(-s.volumeStep)
	}
}

// post queues fn onto the loop. It gives up once the loop has stopped.
func (s *Screen) post(fn func()) {
	select {
	case s.tasks <- fn:
	case <-s.done:
	}
}

// observe runs on the loop for every controller action.
func (s *Screen) observe(action string, story models.Story, cause error) {
	if action == models.ActionFailure {
		s.lastErr = cause
	}
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(s.id, action, story, cause); err != nil {
		s.log.Warn("⚠️ Could not record history", "action", action, "error", err)
	}
}

func (s *Screen) buildSnapshot() Snapshot {
	story := s.selection.Current()
	snap := Snapshot{
		SessionID:   s.id,
		Index:       s.selection.Index(),
		Count:       s.selection.Len(),
		Angle:       s.selection.Angle(),
		StepDegrees: s.selection.StepDegrees(),
		Title:       story.Title,
		AudioRef:    story.AudioRef,
		Status:      s.controller.Status().String(),
		Loading:     s.controller.Loading(),
		Volume:      s.controller.Volume(),
		Visible:     s.visible,
	}
	if s.lastErr != nil {
		snap.Error = s.lastErr.Error()
	}
	return snap
}

func (s *Screen) publish() Snapshot {
	snap := s.buildSnapshot()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = snap
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
			// drop the stale one; only publish sends, so the retry fits
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
	return snap
}

func (s *Screen) shutdown() {
	s.runOnce.Do(func() {
		close(s.done)
		s.mu.Lock()
		defer s.mu.Unlock()
		s.closed = true
		for id, ch := range s.subs {
			delete(s.subs, id)
			close(ch)
		}
	})
}
