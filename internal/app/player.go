// ABOUTME: Main player application orchestration
// ABOUTME: Coordinates server lookup, the streaming session, audio output, and the UI
package app

import (
	"context"
	"fmt"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/harperreed/tempostream/internal/config"
	"github.com/harperreed/tempostream/internal/discovery"
	"github.com/harperreed/tempostream/internal/ui"
	"github.com/harperreed/tempostream/pkg/audio/output"
	"github.com/harperreed/tempostream/pkg/session"
)

// volumeControl is implemented by outputs with software volume
type volumeControl interface {
	SetVolume(volume int)
	SetMuted(muted bool)
}

// Player represents the main player application
type Player struct {
	config   *config.Config
	log      *zap.SugaredLogger
	logger   *zap.Logger
	output   output.Output
	session  *session.Session
	controls *ui.Controls
	tuiProg  *tea.Program

	url string

	mu         sync.Mutex
	lastStatus session.Status
	hadError   bool
}

// New creates a player from cfg. A nil out selects the output the config
// asks for: the discard sink when audio is disabled, oto otherwise.
func New(cfg *config.Config, out output.Output, logger *zap.Logger) (*Player, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if out == nil {
		if cfg.Audio.Disabled {
			out = output.NewDiscard()
		} else {
			latency, err := output.ParseLatency(cfg.Audio.Latency)
			if err != nil {
				return nil, err
			}
			out = output.NewOto(latency, logger)
		}
	}
	if vc, ok := out.(volumeControl); ok {
		vc.SetVolume(cfg.Audio.Volume)
	}

	p := &Player{
		config: cfg,
		log:    logger.Sugar(),
		logger: logger,
		output: out,
	}
	if cfg.UI.Enabled {
		p.controls = ui.NewControls()
	}

	p.session = session.New(session.Config{
		URL:      cfg.URL,
		Output:   out,
		Logger:   logger,
		OnChange: p.onChange,
	})
	return p, nil
}

// Session returns the underlying streaming session
func (p *Player) Session() *session.Session {
	return p.session
}

// Run connects and blocks until ctx is cancelled or the UI quits
func (p *Player) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer p.session.Close()

	var tuiDone chan struct{}
	if p.config.UI.Enabled {
		p.tuiProg = ui.Run(p.controls, p.config.Audio.Volume)
		tuiDone = make(chan struct{})
		go func() {
			defer close(tuiDone)
			if _, err := p.tuiProg.Run(); err != nil {
				p.log.Errorf("TUI error: %v", err)
			}
		}()
		defer p.tuiProg.Quit()
	}

	url, err := p.resolveURL(ctx)
	if err != nil {
		return err
	}
	p.url = url
	p.session.Connect(url)

	var actions <-chan ui.Action
	if p.controls != nil {
		actions = p.controls.Actions
	}

	for {
		select {
		case <-ctx.Done():
			p.log.Infof("Shutting down")
			return nil
		case <-tuiDone:
			p.log.Infof("TUI closed, shutting down")
			return nil
		case action := <-actions:
			if p.handleAction(action) {
				return nil
			}
		}
	}
}

// resolveURL returns the configured URL or looks one up over mDNS
func (p *Player) resolveURL(ctx context.Context) (string, error) {
	if p.config.URL != "" {
		return p.config.URL, nil
	}

	disc := discovery.NewManager(discovery.Config{
		Service: p.config.Discovery.Service,
		Logger:  p.logger,
	})
	server, err := disc.Discover(ctx, p.config.Discovery.Timeout.Duration)
	if err != nil {
		return "", fmt.Errorf("server discovery failed: %w", err)
	}
	return server.URL(), nil
}

// handleAction applies a UI request and reports whether to quit
func (p *Player) handleAction(action ui.Action) bool {
	switch action.Kind {
	case ui.ActionConnect:
		p.session.Connect(p.url)
	case ui.ActionDisconnect:
		p.session.Disconnect()
	case ui.ActionVolume:
		if vc, ok := p.output.(volumeControl); ok {
			vc.SetVolume(action.Volume)
		}
	case ui.ActionMute:
		if vc, ok := p.output.(volumeControl); ok {
			vc.SetMuted(action.Muted)
		}
	case ui.ActionQuit:
		return true
	}
	return false
}

// onChange forwards snapshots to the TUI and logs transitions
func (p *Player) onChange(snap session.Snapshot) {
	if p.tuiProg != nil {
		p.tuiProg.Send(ui.StatusMsg{Snapshot: snap})
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if snap.Status != p.lastStatus {
		p.lastStatus = snap.Status
		p.log.Infof("Status: %s", snap.Status)
	}
	if (snap.Err != nil) != p.hadError {
		p.hadError = snap.Err != nil
		if snap.Err != nil {
			p.log.Warnf("Session error: %v", snap.Err)
		}
	}
}
