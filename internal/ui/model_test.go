// ABOUTME: Tests for TUI model and state management
// ABOUTME: Tests status updates, key handling, and rendering
package ui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/harperreed/tempostream/pkg/audio"
	"github.com/harperreed/tempostream/pkg/session"
)

func TestNewModel(t *testing.T) {
	model := NewModel(nil, 80)

	if model.status != session.Idle {
		t.Errorf("expected idle, got %s", model.status)
	}
	if model.volume != 80 {
		t.Errorf("expected volume 80, got %d", model.volume)
	}
	if model.showDebug {
		t.Error("expected showDebug to be false initially")
	}
}

func TestApplyStatus(t *testing.T) {
	model := NewModel(nil, 100)
	format := audio.Format{Channels: 2, SampleRate: 48000, BitDepth: 16, Encoding: "s16le"}

	model.applyStatus(StatusMsg{Snapshot: session.Snapshot{
		Status: session.Connected,
		URL:    "ws://studio:8927/stream",
		Format: &format,
		Tempo:  120.5,
		Stats:  session.Stats{Received: 10, Played: 8, Skipped: 1, Failed: 1},
	}})

	if model.status != session.Connected {
		t.Errorf("expected connected, got %s", model.status)
	}
	if model.format == nil || model.format.SampleRate != 48000 {
		t.Errorf("expected format, got %+v", model.format)
	}
	if model.tempo != 120.5 {
		t.Errorf("expected tempo 120.5, got %v", model.tempo)
	}
	if model.stats.Played != 8 {
		t.Errorf("expected 8 played, got %d", model.stats.Played)
	}
}

func TestViewShowsGenericErrorNotice(t *testing.T) {
	model := NewModel(nil, 100)
	model.width = 80
	model.applyStatus(StatusMsg{Snapshot: session.Snapshot{
		Status: session.Connected,
		Err:    &session.Error{Kind: session.DecodeFailure, Err: errors.New("bad frame")},
	}})

	view := model.View()
	if !strings.Contains(view, "Something went wrong") {
		t.Error("expected generic failure notice")
	}
	if strings.Contains(view, "bad frame") {
		t.Error("expected error detail hidden outside debug view")
	}

	model.showDebug = true
	if !strings.Contains(model.View(), "bad frame") {
		t.Error("expected error detail in debug view")
	}
}

func TestViewTempoAndFormat(t *testing.T) {
	model := NewModel(nil, 100)
	model.width = 80

	view := model.View()
	if !strings.Contains(view, "waiting for handshake") {
		t.Error("expected placeholder before handshake")
	}

	format := audio.Format{Channels: 1, SampleRate: 44100, BitDepth: 32, Encoding: "f32le"}
	model.applyStatus(StatusMsg{Snapshot: session.Snapshot{Status: session.Connected, Format: &format, Tempo: 128}})

	view = model.View()
	if !strings.Contains(view, "44100Hz Mono 32-bit f32le") {
		t.Errorf("expected format line, got %q", view)
	}
	if !strings.Contains(view, "128.0 BPM") {
		t.Errorf("expected tempo line, got %q", view)
	}
}

func TestViewLoading(t *testing.T) {
	if NewModel(nil, 100).View() != "Loading..." {
		t.Error("expected loading view before first resize")
	}
}

func TestKeyActions(t *testing.T) {
	tests := []struct {
		key  tea.KeyMsg
		want Action
	}{
		{tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("c")}, Action{Kind: ActionConnect}},
		{tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")}, Action{Kind: ActionDisconnect}},
		{tea.KeyMsg{Type: tea.KeyDown}, Action{Kind: ActionVolume, Volume: 95}},
		{tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("m")}, Action{Kind: ActionMute, Muted: true}},
	}

	for _, tt := range tests {
		t.Run(tt.key.String(), func(t *testing.T) {
			controls := NewControls()
			model := NewModel(controls, 100)
			model.Update(tt.key)

			select {
			case got := <-controls.Actions:
				if got != tt.want {
					t.Errorf("expected %+v, got %+v", tt.want, got)
				}
			default:
				t.Error("expected an action")
			}
		})
	}
}

func TestVolumeClamped(t *testing.T) {
	controls := NewControls()
	model := NewModel(controls, 100)

	updated, _ := model.Update(tea.KeyMsg{Type: tea.KeyUp})
	if updated.(Model).volume != 100 {
		t.Errorf("expected volume to stay at 100, got %d", updated.(Model).volume)
	}
	select {
	case a := <-controls.Actions:
		t.Errorf("expected no action at max volume, got %+v", a)
	default:
	}
}

func TestQuitKey(t *testing.T) {
	controls := NewControls()
	model := NewModel(controls, 100)

	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if a := <-controls.Actions; a.Kind != ActionQuit {
		t.Errorf("expected quit action, got %+v", a)
	}
}

func TestNilControls(t *testing.T) {
	model := NewModel(nil, 50)
	model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("c")})
}

func TestHelpers(t *testing.T) {
	if got := truncate("hello world", 8); got != "hello..." {
		t.Errorf("expected %q, got %q", "hello...", got)
	}
	if got := channelName(6); got != "6ch" {
		t.Errorf("expected 6ch, got %q", got)
	}
	if got := renderBar(50, 100, 4); got != "██░░" {
		t.Errorf("expected half bar, got %q", got)
	}
}
