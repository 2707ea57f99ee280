// ABOUTME: Bubbletea model for player TUI
// ABOUTME: Renders session snapshots and turns key presses into control actions
package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/harperreed/tempostream/pkg/audio"
	"github.com/harperreed/tempostream/pkg/session"
)

const volumeStep = 5

// Model represents the TUI state
type Model struct {
	// Session
	status session.Status
	url    string
	format *audio.Format
	tempo  float64
	err    *session.Error
	stats  session.Stats

	// Playback
	volume int
	muted  bool

	// Debug
	showDebug bool

	controls *Controls

	// Dimensions
	width  int
	height int
}

// StatusMsg carries a session snapshot into the TUI
type StatusMsg struct {
	Snapshot session.Snapshot
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	sections := []string{
		titleStyle.Render("tempostream"),
		m.renderStatus(),
		m.renderStream(),
		m.renderControls(),
		m.renderStats(),
	}
	if m.showDebug {
		sections = append(sections, m.renderDebug())
	}

	body := boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
	return lipgloss.JoinVertical(lipgloss.Left, body, m.renderHelp())
}

func row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), value)
}

// renderStatus renders connection state and the failure notice
func (m Model) renderStatus() string {
	var status string
	switch m.status {
	case session.Connected:
		status = connectedStyle.Render("Connected to " + m.url)
	case session.Connecting:
		status = pendingStyle.Render("Connecting to " + m.url)
	case session.Disconnected:
		status = errorStyle.Render("Disconnected")
	default:
		status = valueStyle.Render("Idle")
	}

	lines := []string{row("Status", status)}
	if m.err != nil {
		lines = append(lines, row("", errorStyle.Render("Something went wrong")))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// renderStream renders format and tempo
func (m Model) renderStream() string {
	format := "waiting for handshake"
	if m.format != nil {
		format = fmt.Sprintf("%dHz %s %d-bit %s",
			m.format.SampleRate, channelName(m.format.Channels), m.format.BitDepth, m.format.Encoding)
	}

	tempo := "--"
	if m.tempo != 0 {
		tempo = fmt.Sprintf("%.1f BPM", m.tempo)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		row("Format", valueStyle.Render(format)),
		row("Tempo", tempoStyle.Render(tempo)),
	)
}

// renderControls renders volume
func (m Model) renderControls() string {
	muteIcon := ""
	if m.muted {
		muteIcon = " (muted)"
	}
	return row("Volume", fmt.Sprintf("[%s] %d%%%s", renderBar(m.volume, 100, 10), m.volume, muteIcon))
}

// renderStats renders frame statistics
func (m Model) renderStats() string {
	return row("Frames", fmt.Sprintf("RX: %d  Played: %d  Skipped: %d  Failed: %d",
		m.stats.Received, m.stats.Played, m.stats.Skipped, m.stats.Failed))
}

// renderDebug shows the error detail hidden from the main view
func (m Model) renderDebug() string {
	detail := "none"
	if m.err != nil {
		detail = truncate(m.err.Error(), 60)
	}
	return row("Error", helpStyle.Render(detail))
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	return helpStyle.Render("c:Connect  x:Disconnect  ↑/↓:Volume  m:Mute  d:Debug  q:Quit")
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.controls.send(Action{Kind: ActionQuit})
		return m, tea.Quit
	case "c":
		m.controls.send(Action{Kind: ActionConnect})
	case "x":
		m.controls.send(Action{Kind: ActionDisconnect})
	case "up":
		m.setVolume(m.volume + volumeStep)
	case "down":
		m.setVolume(m.volume - volumeStep)
	case "m":
		m.muted = !m.muted
		m.controls.send(Action{Kind: ActionMute, Muted: m.muted})
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

func (m *Model) setVolume(volume int) {
	if volume > 100 {
		volume = 100
	}
	if volume < 0 {
		volume = 0
	}
	if volume == m.volume {
		return
	}
	m.volume = volume
	m.controls.send(Action{Kind: ActionVolume, Volume: volume})
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	snap := msg.Snapshot
	m.status = snap.Status
	m.url = snap.URL
	m.format = snap.Format
	m.tempo = snap.Tempo
	m.err = snap.Err
	m.stats = snap.Stats
}

// Utility functions
func renderBar(value, max, width int) string {
	filled := (value * width) / max
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}

func channelName(channels int) string {
	switch channels {
	case 1:
		return "Mono"
	case 2:
		return "Stereo"
	}
	return fmt.Sprintf("%dch", channels)
}
