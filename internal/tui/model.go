// Package tui is the terminal host for a story screen.
package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"story-palace/internal/screen"
)

// Screen is the part of screen.Screen the terminal drives.
type Screen interface {
	Dispatch(ctx context.Context, ev screen.Event) (screen.Snapshot, error)
	Subscribe() (<-chan screen.Snapshot, func())
	Snapshot() screen.Snapshot
}

const dispatchTimeout = 5 * time.Second

type snapshotMsg screen.Snapshot

type errMsg struct{ err error }

type closedMsg struct{}

type Model struct {
	screen   Screen
	dragStep float64
	updates  <-chan screen.Snapshot
	cancel   func()
	snap     screen.Snapshot
	err      error
	width    int
	quitting bool
}

func New(s Screen, dragStep float64) Model {
	if dragStep <= 0 {
		dragStep = 15
	}
	updates, cancel := s.Subscribe()
	return Model{
		screen:   s,
		dragStep: dragStep,
		updates:  updates,
		cancel:   cancel,
		snap:     s.Snapshot(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.dispatch(screen.Event{Type: screen.Appeared}), m.wait())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case snapshotMsg:
		m.snap = screen.Snapshot(msg)
		return m, m.wait()

	case errMsg:
		m.err = msg.err
		return m, nil

	case closedMsg:
		m.quitting = true
		return m, tea.Quit

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.err = nil
	switch msg.String() {
	case "ctrl+c", "q", "esc":
		m.quitting = true
		m.cancel()
		return m, tea.Sequence(m.dispatch(screen.Event{Type: screen.Disappeared}), tea.Quit)
	case "left", "h":
		return m, m.dispatch(screen.Event{Type: screen.TapPrevious})
	case "right", "l":
		return m, m.dispatch(screen.Event{Type: screen.TapNext})
	case " ", "enter", "p":
		return m, m.dispatch(screen.Event{Type: screen.TapPlayPause})
	case "r":
		return m, m.dispatch(screen.Event{Type: screen.LongPress})
	case "+", "=", "up":
		return m, m.dispatch(screen.Event{Type: screen.VolumeUp})
	case "-", "down":
		return m, m.dispatch(screen.Event{Type: screen.VolumeDown})
	case ",":
		return m, m.dispatch(screen.DragTo(m.snap.Angle - m.dragStep))
	case ".":
		return m, m.dispatch(screen.DragTo(m.snap.Angle + m.dragStep))
	case "s":
		return m, m.dispatch(screen.Event{Type: screen.DragEnded})
	}
	return m, nil
}

// dispatch sends ev off the UI goroutine. The resulting snapshot
// arrives through the subscription.
func (m Model) dispatch(ev screen.Event) tea.Cmd {
	s := m.screen
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()
		if _, err := s.Dispatch(ctx, ev); err != nil {
			return errMsg{err}
		}
		return nil
	}
}

func (m Model) wait() tea.Cmd {
	updates := m.updates
	return func() tea.Msg {
		snap, ok := <-updates
		if !ok {
			return closedMsg{}
		}
		return snapshotMsg(snap)
	}
}
