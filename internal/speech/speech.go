// Package speech announces story titles through a text-to-speech engine.
// Every Speak pre-empts the utterance in progress instead of queuing.
package speech

import (
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"story-palace/internal/pkg/logger"
)

type Speaker interface {
	Speak(text, locale string) error
	Stop() error
}

// Command speaks by running a TTS binary (espeak-ng, espeak or say).
type Command struct {
	binary string
	log    *logger.Logger

	mu  sync.Mutex
	cmd *exec.Cmd
}

func NewCommand(binary string, log *logger.Logger) *Command {
	if binary == "" {
		binary = "espeak-ng"
	}
	return &Command{binary: binary, log: log}
}

func (c *Command) Speak(text, locale string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()

	cmd := exec.Command(c.binary, c.args(text, locale)...)
	if err := cmd.Start(); err != nil {
		return err
	}
	c.cmd = cmd
	go c.wait(cmd, text)
	return nil
}

func (c *Command) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	return nil
}

func (c *Command) args(text, locale string) []string {
	switch filepath.Base(c.binary) {
	case "say":
		// say picks voices by name, not locale
		return []string{text}
	default:
		if locale == "" {
			return []string{text}
		}
		return []string{"-v", strings.ToLower(locale), text}
	}
}

func (c *Command) stopLocked() {
	if c.cmd == nil {
		return
	}
	_ = c.cmd.Process.Kill()
	c.cmd = nil
}

func (c *Command) wait(cmd *exec.Cmd, text string) {
	err := cmd.Wait()

	c.mu.Lock()
	preempted := c.cmd != cmd
	if !preempted {
		c.cmd = nil
	}
	c.mu.Unlock()

	if err != nil && !preempted {
		c.log.Warn("⚠️ Utterance failed", "text", text, "error", err)
	}
}

// Log only writes utterances to the log. Useful headless.
type Log struct {
	log *logger.Logger
}

func NewLog(log *logger.Logger) *Log {
	return &Log{log: log}
}

func (l *Log) Speak(text, locale string) error {
	l.log.Info("🗣️ Speak", "text", text, "locale", locale)
	return nil
}

func (l *Log) Stop() error { return nil }
