package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"story-palace/internal/screen"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F5C542"))
	dialStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#7D56F4")).Padding(0, 1)
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

const (
	dialRadius = 5
	// terminal cells are roughly twice as tall as wide
	dialAspect = 2.0
)

func (m Model) View() string {
	if m.quitting {
		return "Goodnight 🌙\n"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(m.snap.Title))
	b.WriteString("\n")
	b.WriteString(dialStyle.Render(renderDial(m.snap.Count, m.snap.Index, m.snap.Angle)))
	b.WriteString("\n")

	status := fmt.Sprintf("%s  %d/%d  vol %d%%", statusIcon(m.snap), m.snap.Index+1, m.snap.Count, int(math.Round(m.snap.Volume*100)))
	b.WriteString(statusStyle.Render(status))
	b.WriteString("\n")

	if m.snap.Error != "" {
		b.WriteString(errorStyle.Render("⚠ " + m.snap.Error))
		b.WriteString("\n")
	} else if m.err != nil {
		b.WriteString(errorStyle.Render("⚠ " + m.err.Error()))
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render("←/→ story • space play/pause • ,/. turn • s settle • r restart • +/- volume • q quit"))
	b.WriteString("\n")
	return b.String()
}

func statusIcon(snap screen.Snapshot) string {
	if snap.Loading {
		return "⏳ loading"
	}
	switch snap.Status {
	case "playing":
		return "▶ playing"
	case "paused":
		return "⏸ paused"
	default:
		return "■ idle"
	}
}

// renderDial draws one marker per story around a circle, the selected
// one filled, and the pointer at the dial's current angle.
func renderDial(count, index int, angle float64) string {
	w := int(2*dialRadius*dialAspect) + 1
	h := 2*dialRadius + 1
	grid := make([][]rune, h)
	for y := range grid {
		grid[y] = []rune(strings.Repeat(" ", w))
	}

	cx, cy := float64(w/2), float64(h/2)
	place := func(deg, r float64, ch rune) {
		rad := deg * math.Pi / 180
		x := int(math.Round(cx + math.Sin(rad)*r*dialAspect))
		y := int(math.Round(cy - math.Cos(rad)*r))
		if y >= 0 && y < h && x >= 0 && x < w {
			grid[y][x] = ch
		}
	}

	if count > 0 {
		step := 360 / float64(count)
		for i := 0; i < count; i++ {
			mark := '○'
			if i == index {
				mark = '●'
			}
			place(float64(i)*step, dialRadius, mark)
		}
	}
	for r := 1.0; r < dialRadius-1; r++ {
		place(angle, r, '·')
	}
	grid[int(cy)][int(cx)] = '◎'

	lines := make([]string, h)
	for y, row := range grid {
		lines[y] = strings.TrimRight(string(row), " ")
	}
	return strings.Join(lines, "\n")
}
