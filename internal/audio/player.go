package audio

import (
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"story-palace/internal/pkg/logger"
)

var ErrStopped = errors.New("audio: handle already stopped")

// Player plays files through one ffplay process per handle.
type Player struct {
	binary string
	tools  *Tools // nil skips validation
	log    *logger.Logger
}

func NewPlayer(binary string, validate *Tools, log *logger.Logger) *Player {
	if binary == "" {
		binary = "ffplay"
	}
	return &Player{binary: binary, tools: validate, log: log}
}

func (p *Player) Load(path string, done func(error)) (Handle, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() || info.Size() == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrCorrupt, path)
	}
	if p.tools != nil {
		if err := p.tools.Validate(path); err != nil {
			return nil, err
		}
	}
	return &Stream{player: p, path: path, done: done, volume: 1}, nil
}

// Stream is a Handle backed by an ffplay process. ffplay cannot change
// volume on the fly, so SetVolume restarts the process at the elapsed
// offset.
type Stream struct {
	player *Player
	path   string
	done   func(error)

	mu        sync.Mutex
	cmd       *exec.Cmd
	gen       int // bumped per process, stale exits are ignored
	volume    float64
	offset    time.Duration // played before the current process started
	startedAt time.Time
	paused    bool
	stopped   bool
}

func (s *Stream) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrStopped
	}
	if s.cmd != nil {
		return nil
	}
	s.offset = 0
	s.paused = false
	return s.startLocked()
}

func (s *Stream) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrStopped
	}
	if s.paused {
		return nil
	}
	if s.cmd != nil {
		if err := suspend(s.cmd.Process); err != nil {
			return err
		}
		s.offset += time.Since(s.startedAt)
	}
	s.paused = true
	return nil
}

func (s *Stream) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrStopped
	}
	if !s.paused {
		return nil
	}
	s.paused = false
	if s.cmd == nil {
		// Killed while paused by a volume change
		return s.startLocked()
	}
	if err := resume(s.cmd.Process); err != nil {
		return err
	}
	s.startedAt = time.Now()
	return nil
}

func (s *Stream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	s.killLocked()
	return nil
}

func (s *Stream) SetVolume(level float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrStopped
	}
	level = math.Max(0, math.Min(1, level))
	if level == s.volume {
		return nil
	}
	s.volume = level
	if s.cmd == nil {
		return nil
	}
	if s.paused {
		// Picked up by Resume
		s.killLocked()
		return nil
	}
	s.offset += time.Since(s.startedAt)
	s.killLocked()
	return s.startLocked()
}

func (s *Stream) startLocked() error {
	args := []string{
		"-nodisp", "-autoexit",
		"-loglevel", "error",
		"-volume", strconv.Itoa(int(math.Round(s.volume * 100))),
	}
	if s.offset > 0 {
		args = append(args, "-ss", strconv.FormatFloat(s.offset.Seconds(), 'f', 3, 64))
	}
	args = append(args, s.path)

	cmd := exec.Command(s.player.binary, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	s.gen++
	s.cmd = cmd
	s.startedAt = time.Now()
	go s.wait(cmd, s.gen)
	return nil
}

func (s *Stream) killLocked() {
	if s.cmd == nil {
		return
	}
	if s.paused {
		_ = resume(s.cmd.Process)
	}
	_ = s.cmd.Process.Kill()
	s.cmd = nil
}

func (s *Stream) wait(cmd *exec.Cmd, gen int) {
	err := cmd.Wait()

	s.mu.Lock()
	if s.stopped || gen != s.gen || s.cmd != cmd {
		s.mu.Unlock()
		return
	}
	s.cmd = nil
	s.stopped = true
	s.mu.Unlock()

	if err != nil {
		s.player.log.Warn("❌ Playback process failed", "path", s.path, "error", err)
	} else {
		s.player.log.Debug("🏁 Playback finished", "path", s.path)
	}
	if s.done != nil {
		s.done(err)
	}
}
