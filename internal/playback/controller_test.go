package playback

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"story-palace/internal/audio"
	"story-palace/internal/catalog"
	"story-palace/internal/knob"
	"story-palace/internal/models"
	"story-palace/internal/pkg/logger"
)

// --- fakes ---

type recorder struct {
	calls []string
}

func (r *recorder) add(format string, args ...any) {
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

type fakeResolver struct {
	missing map[string]bool
	err     error
}

func (f *fakeResolver) Resolve(ref string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.missing[ref] {
		return "", fmt.Errorf("%w: %s", ErrAssetNotFound, ref)
	}
	return "/cache/" + ref, nil
}

type fakeHandle struct {
	path     string
	rec      *recorder
	done     func(error)
	volume   float64
	pauseErr error
	stopped  bool
}

func (h *fakeHandle) Play() error {
	h.rec.add("play %s", h.path)
	return nil
}

func (h *fakeHandle) Pause() error {
	if h.pauseErr != nil {
		return h.pauseErr
	}
	h.rec.add("pause %s", h.path)
	return nil
}

func (h *fakeHandle) Resume() error {
	h.rec.add("resume %s", h.path)
	return nil
}

func (h *fakeHandle) Stop() error {
	h.stopped = true
	h.rec.add("stop %s", h.path)
	return nil
}

func (h *fakeHandle) SetVolume(level float64) error {
	h.volume = level
	return nil
}

type fakeOutput struct {
	rec     *recorder
	loadErr error
	handles []*fakeHandle
}

func (o *fakeOutput) Load(path string, done func(error)) (audio.Handle, error) {
	if o.loadErr != nil {
		return nil, o.loadErr
	}
	o.rec.add("load %s", path)
	h := &fakeHandle{path: path, rec: o.rec, done: done}
	o.handles = append(o.handles, h)
	return h, nil
}

func (o *fakeOutput) last() *fakeHandle {
	return o.handles[len(o.handles)-1]
}

type fakeSpeaker struct {
	spoken []string
	err    error
	stops  int
}

func (s *fakeSpeaker) Speak(text, locale string) error {
	if s.err != nil {
		return s.err
	}
	s.spoken = append(s.spoken, text)
	return nil
}

func (s *fakeSpeaker) Stop() error {
	s.stops++
	return nil
}

type fixture struct {
	sel      *knob.Selection
	ctrl     *Controller
	rec      *recorder
	output   *fakeOutput
	resolver *fakeResolver
	speaker  *fakeSpeaker
	actions  []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	rec := &recorder{}
	f := &fixture{
		sel:      knob.New(catalog.Default()),
		rec:      rec,
		output:   &fakeOutput{rec: rec},
		resolver: &fakeResolver{missing: map[string]bool{}},
		speaker:  &fakeSpeaker{},
	}
	f.ctrl = New(f.sel, f.resolver, f.output, f.speaker, Options{Locale: "en-US"}, logger.Nop())
	f.ctrl.SetObserver(func(action string, _ models.Story, _ error) {
		f.actions = append(f.actions, action)
	})
	f.sel.OnChange(func(s models.Story) { f.ctrl.OnSelectionChanged(s) })
	return f
}

// --- tests ---

func TestToggle_StartsCurrentStory(t *testing.T) {
	f := newFixture(t)

	if err := f.ctrl.TogglePlayPause(); err != nil {
		t.Fatalf("TogglePlayPause: %v", err)
	}
	if f.ctrl.Status() != Playing {
		t.Fatalf("status = %v, want playing", f.ctrl.Status())
	}
	story, ok := f.ctrl.Loaded()
	if !ok || story.Title != "The Magical Forest" {
		t.Errorf("loaded = %q (%v), want The Magical Forest", story.Title, ok)
	}
	if f.output.last().volume != 1 {
		t.Errorf("volume = %v, want 1", f.output.last().volume)
	}
}

func TestSwitch_StopsBeforeLoad(t *testing.T) {
	f := newFixture(t)
	f.ctrl.TogglePlayPause()

	f.sel.Step(1)
	if f.ctrl.Status() != Idle {
		t.Fatalf("status after switch = %v, want idle", f.ctrl.Status())
	}
	if len(f.speaker.spoken) != 1 || f.speaker.spoken[0] != "The Brave Knight" {
		t.Errorf("spoken = %v, want [The Brave Knight]", f.speaker.spoken)
	}

	f.ctrl.TogglePlayPause()

	want := []string{
		"load /cache/forest.mp3",
		"play /cache/forest.mp3",
		"stop /cache/forest.mp3",
		"load /cache/knight.mp3",
		"play /cache/knight.mp3",
	}
	if fmt.Sprint(f.rec.calls) != fmt.Sprint(want) {
		t.Errorf("calls = %v\nwant    %v", f.rec.calls, want)
	}
}

func TestSwitch_NeverTwoLiveHandles(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 6; i++ {
		f.ctrl.TogglePlayPause()
		f.sel.Step(1)
	}
	f.ctrl.TogglePlayPause()

	live := 0
	for _, h := range f.output.handles {
		if !h.stopped {
			live++
		}
	}
	if live != 1 {
		t.Errorf("live handles = %d, want 1", live)
	}
}

func TestToggle_MissingAssetStaysIdle(t *testing.T) {
	f := newFixture(t)
	f.resolver.missing["forest.mp3"] = true

	err := f.ctrl.TogglePlayPause()
	if !errors.Is(err, ErrAssetNotFound) {
		t.Fatalf("err = %v, want ErrAssetNotFound", err)
	}
	if f.ctrl.Status() != Idle {
		t.Errorf("status = %v, want idle", f.ctrl.Status())
	}
	if _, ok := f.ctrl.Loaded(); ok {
		t.Error("Expected no handle after a missing asset")
	}
	if len(f.output.handles) != 0 {
		t.Errorf("Expected no load, got %d", len(f.output.handles))
	}
	if f.actions[len(f.actions)-1] != models.ActionFailure {
		t.Errorf("last action = %q, want failure", f.actions[len(f.actions)-1])
	}
}

func TestToggle_LoadErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"file vanished", fs.ErrNotExist, ErrAssetNotFound},
		{"corrupt", errors.New("invalid data"), ErrPlaybackFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.output.loadErr = tt.err

			if err := f.ctrl.TogglePlayPause(); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
			if f.ctrl.Status() != Idle {
				t.Errorf("status = %v, want idle", f.ctrl.Status())
			}
		})
	}
}

func TestToggle_ResolverFailureIsPlaybackFailure(t *testing.T) {
	f := newFixture(t)
	f.resolver.err = errors.New("disk full")

	if err := f.ctrl.TogglePlayPause(); !errors.Is(err, ErrPlaybackFailed) {
		t.Errorf("err = %v, want ErrPlaybackFailed", err)
	}
}

func TestPauseResume_KeepsHandle(t *testing.T) {
	f := newFixture(t)
	f.ctrl.TogglePlayPause()
	first := f.output.last()

	f.ctrl.TogglePlayPause()
	if f.ctrl.Status() != Paused {
		t.Fatalf("status = %v, want paused", f.ctrl.Status())
	}
	f.ctrl.TogglePlayPause()
	if f.ctrl.Status() != Playing {
		t.Fatalf("status = %v, want playing", f.ctrl.Status())
	}

	if len(f.output.handles) != 1 || f.output.last() != first {
		t.Errorf("Expected the same handle, got %d loads", len(f.output.handles))
	}
	if first.stopped {
		t.Error("Expected handle to stay alive across pause/resume")
	}
}

func TestPause_FailureKeepsState(t *testing.T) {
	f := newFixture(t)
	f.ctrl.TogglePlayPause()
	f.output.last().pauseErr = errors.New("no such process")

	if err := f.ctrl.TogglePlayPause(); !errors.Is(err, ErrPlaybackFailed) {
		t.Errorf("err = %v, want ErrPlaybackFailed", err)
	}
	if f.ctrl.Status() != Playing {
		t.Errorf("status = %v, want playing", f.ctrl.Status())
	}
}

func TestSelectionChange_WhileIdleAnnounces(t *testing.T) {
	f := newFixture(t)

	f.sel.Step(-1)

	if len(f.speaker.spoken) != 1 || f.speaker.spoken[0] != "The Space Adventure" {
		t.Errorf("spoken = %v, want [The Space Adventure]", f.speaker.spoken)
	}
	if len(f.output.handles) != 0 {
		t.Error("Expected no audio to load on a selection change")
	}
}

func TestSpeechFailure_LeavesStateUnchanged(t *testing.T) {
	f := newFixture(t)
	f.speaker.err = errors.New("engine gone")

	err := f.ctrl.Announce("The Lost Treasure")
	if !errors.Is(err, ErrSpeechFailed) {
		t.Fatalf("err = %v, want ErrSpeechFailed", err)
	}
	if f.ctrl.Status() != Idle {
		t.Errorf("status = %v, want idle", f.ctrl.Status())
	}
}

func TestReset(t *testing.T) {
	f := newFixture(t)
	f.sel.Step(2)
	f.ctrl.TogglePlayPause()
	f.speaker.spoken = nil

	if err := f.ctrl.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if f.ctrl.Status() != Idle {
		t.Errorf("status = %v, want idle", f.ctrl.Status())
	}
	if f.sel.Index() != 0 || f.sel.Angle() != 0 {
		t.Errorf("selection = %d / %v, want 0 / 0", f.sel.Index(), f.sel.Angle())
	}
	if !f.output.last().stopped {
		t.Error("Expected the playing handle to be stopped")
	}
	if len(f.speaker.spoken) != 1 || f.speaker.spoken[0] != "The Magical Forest" {
		t.Errorf("spoken = %v, want [The Magical Forest]", f.speaker.spoken)
	}
}

func TestAdjustVolume(t *testing.T) {
	f := newFixture(t)

	f.ctrl.AdjustVolume(-0.5)
	if f.ctrl.Volume() != 1 {
		t.Errorf("volume changed without a handle: %v", f.ctrl.Volume())
	}

	f.ctrl.TogglePlayPause()
	f.ctrl.AdjustVolume(-0.25)
	if got := f.output.last().volume; got != 0.75 {
		t.Errorf("handle volume = %v, want 0.75", got)
	}
	f.ctrl.AdjustVolume(5)
	if f.ctrl.Volume() != 1 {
		t.Errorf("volume = %v, want clamped to 1", f.ctrl.Volume())
	}
	f.ctrl.AdjustVolume(-5)
	if f.ctrl.Volume() != 0 {
		t.Errorf("volume = %v, want clamped to 0", f.ctrl.Volume())
	}
}

func TestFinished_ReturnsToIdle(t *testing.T) {
	f := newFixture(t)
	f.ctrl.TogglePlayPause()

	f.output.last().done(nil)

	if f.ctrl.Status() != Idle {
		t.Errorf("status = %v, want idle", f.ctrl.Status())
	}
	if f.actions[len(f.actions)-1] != models.ActionFinish {
		t.Errorf("last action = %q, want finish", f.actions[len(f.actions)-1])
	}
}

func TestFinished_ErrorIsReported(t *testing.T) {
	f := newFixture(t)
	var reported error
	f.ctrl.SetObserver(func(action string, _ models.Story, err error) {
		if action == models.ActionFailure {
			reported = err
		}
	})
	f.ctrl.TogglePlayPause()

	f.output.last().done(errors.New("decoder crashed"))

	if !errors.Is(reported, ErrPlaybackFailed) {
		t.Errorf("reported = %v, want ErrPlaybackFailed", reported)
	}
	if f.ctrl.Status() != Idle {
		t.Errorf("status = %v, want idle", f.ctrl.Status())
	}
}

func TestFinished_StaleReportIgnored(t *testing.T) {
	f := newFixture(t)
	f.ctrl.TogglePlayPause()
	stale := f.output.last()

	f.sel.Step(1)
	f.ctrl.TogglePlayPause()

	stale.done(nil)

	if f.ctrl.Status() != Playing {
		t.Errorf("status = %v, want playing", f.ctrl.Status())
	}
	if story, _ := f.ctrl.Loaded(); story.Title != "The Brave Knight" {
		t.Errorf("loaded = %q, want The Brave Knight", story.Title)
	}
}

func TestFinished_UsesPoster(t *testing.T) {
	f := newFixture(t)
	var queued []func()
	f.ctrl.SetPoster(func(fn func()) { queued = append(queued, fn) })
	f.ctrl.TogglePlayPause()
	runAll(&queued)
	if f.ctrl.Status() != Playing {
		t.Fatalf("status = %v, want playing", f.ctrl.Status())
	}

	f.output.last().done(nil)
	if f.ctrl.Status() != Playing {
		t.Fatal("Expected the report to wait for the poster")
	}
	runAll(&queued)
	if f.ctrl.Status() != Idle {
		t.Errorf("status = %v, want idle", f.ctrl.Status())
	}
}

func TestToggle_LoadsInBackground(t *testing.T) {
	f := newFixture(t)
	var background []func()
	f.ctrl.SetBackground(func(fn func()) { background = append(background, fn) })

	if err := f.ctrl.TogglePlayPause(); err != nil {
		t.Fatalf("TogglePlayPause: %v", err)
	}
	if f.ctrl.Status() != Idle || !f.ctrl.Loading() {
		t.Fatalf("status = %v loading = %v, want idle and loading", f.ctrl.Status(), f.ctrl.Loading())
	}
	if len(f.rec.calls) != 0 {
		t.Fatalf("audio touched before the load ran: %v", f.rec.calls)
	}

	// a second press while loading is ignored
	f.ctrl.TogglePlayPause()
	if len(background) != 1 {
		t.Fatalf("loads queued = %d, want 1", len(background))
	}

	runAll(&background)
	if f.ctrl.Status() != Playing || f.ctrl.Loading() {
		t.Errorf("status = %v loading = %v, want playing", f.ctrl.Status(), f.ctrl.Loading())
	}
}

func TestToggle_SupersededLoadIsDropped(t *testing.T) {
	f := newFixture(t)
	var background []func()
	f.ctrl.SetBackground(func(fn func()) { background = append(background, fn) })

	f.ctrl.TogglePlayPause()
	f.sel.Step(1)
	runAll(&background)

	if f.ctrl.Status() != Idle || f.ctrl.Loading() {
		t.Errorf("status = %v loading = %v, want idle", f.ctrl.Status(), f.ctrl.Loading())
	}
	if _, ok := f.ctrl.Loaded(); ok {
		t.Error("Expected the late handle to be discarded")
	}
	want := []string{"load /cache/forest.mp3", "stop /cache/forest.mp3"}
	if fmt.Sprint(f.rec.calls) != fmt.Sprint(want) {
		t.Errorf("calls = %v, want %v", f.rec.calls, want)
	}
	for _, a := range f.actions {
		if a == models.ActionPlay {
			t.Error("superseded story reported as playing")
		}
	}
}

func runAll(queue *[]func()) {
	for len(*queue) > 0 {
		fn := (*queue)[0]
		*queue = (*queue)[1:]
		fn()
	}
}

func TestTeardown(t *testing.T) {
	f := newFixture(t)
	f.ctrl.TogglePlayPause()

	f.ctrl.Teardown()

	if f.speaker.stops != 1 {
		t.Errorf("speaker stops = %d, want 1", f.speaker.stops)
	}
	if !f.output.last().stopped || f.ctrl.Status() != Idle {
		t.Error("Expected audio to be released")
	}
}

func TestAnnounceOnPlay(t *testing.T) {
	f := newFixture(t)
	f.ctrl.opts.AnnounceOnPlay = true

	f.ctrl.TogglePlayPause()

	if len(f.speaker.spoken) != 1 || f.speaker.spoken[0] != "The Magical Forest" {
		t.Errorf("spoken = %v, want [The Magical Forest]", f.speaker.spoken)
	}
}
