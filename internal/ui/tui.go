// ABOUTME: TUI initialization and control
// ABOUTME: Wraps bubbletea program and carries user actions back to the player
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// ActionKind identifies a user request
type ActionKind int

const (
	ActionConnect ActionKind = iota
	ActionDisconnect
	ActionVolume
	ActionMute
	ActionQuit
)

// Action is a request from the TUI to the player
type Action struct {
	Kind   ActionKind
	Volume int
	Muted  bool
}

// Controls holds the channel for user actions
type Controls struct {
	Actions chan Action
}

// NewControls creates a new control handler
func NewControls() *Controls {
	return &Controls{
		Actions: make(chan Action, 10),
	}
}

// send delivers an action without blocking the UI
func (c *Controls) send(action Action) {
	if c == nil {
		return
	}
	select {
	case c.Actions <- action:
	default:
	}
}

// NewModel creates a new TUI model
func NewModel(controls *Controls, volume int) Model {
	return Model{
		volume:   volume,
		controls: controls,
	}
}

// Run creates the TUI program
func Run(controls *Controls, volume int) *tea.Program {
	return tea.NewProgram(NewModel(controls, volume), tea.WithAltScreen())
}
