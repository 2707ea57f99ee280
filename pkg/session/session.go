// ABOUTME: Session state machine
// ABOUTME: Handles transport events, negotiates format, and feeds decoded audio to the sink
package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harperreed/tempostream/pkg/audio"
	"github.com/harperreed/tempostream/pkg/audio/decode"
	"github.com/harperreed/tempostream/pkg/audio/output"
	"github.com/harperreed/tempostream/pkg/protocol"
)

// Transport is a connection that reports events asynchronously
type Transport interface {
	// Open starts connecting and delivers events to emit in order
	Open(url string, emit func(protocol.Event))
	SendText(text string) error
	Close() error
}

// Dialer creates a fresh transport for each connect
type Dialer func() Transport

// Config holds session configuration
type Config struct {
	// URL is used when Connect is called with an empty url
	URL string

	// Dialer creates transports (default: protocol.Client)
	Dialer Dialer

	// Output plays decoded audio; nil skips playback
	Output output.Output

	Logger *zap.Logger

	// OnChange is called with a snapshot after every handled event or command.
	// Calls are serialized and never carry an older state than a previous
	// call; it must not call back into the session's commands.
	OnChange func(Snapshot)
}

// Session is one client connection and its negotiated state
type Session struct {
	config Config
	log    *zap.SugaredLogger

	mu        sync.Mutex
	id        string
	url       string
	status    Status
	transport Transport
	closing   bool

	format    *audio.Format
	decoder   *decode.PCMDecoder
	sinkReady bool
	tempo     float64
	err       *Error
	stats     Stats

	warned map[audio.Format]bool

	// seq orders snapshots taken for observers
	seq uint64
	// failed is a transport that broke and must be closed outside the lock
	failed Transport

	notifyMu     sync.Mutex
	lastNotified uint64
}

// notice is a snapshot queued for observers
type notice struct {
	snap Snapshot
	seq  uint64
}

// New creates an idle session
func New(config Config) *Session {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.Dialer == nil {
		logger := config.Logger
		config.Dialer = func() Transport {
			return protocol.NewClient(protocol.ClientConfig{Logger: logger})
		}
	}

	return &Session{
		config: config,
		log:    config.Logger.Sugar(),
		status: Idle,
		warned: make(map[audio.Format]bool),
	}
}

// Connect opens a new transport to url, or to Config.URL when url is empty.
// It is ignored while a connection is pending or established.
func (s *Session) Connect(url string) {
	s.mu.Lock()
	if s.status == Connecting || s.status == Connected {
		s.log.Warnf("Connect ignored: session is %s", s.status)
		s.mu.Unlock()
		return
	}

	if url == "" {
		url = s.config.URL
	}

	previous := s.transport
	transport := s.config.Dialer()

	s.id = uuid.New().String()
	s.url = url
	s.err = nil
	s.closing = false
	s.sinkReady = false
	s.status = Connecting
	s.transport = transport
	s.failed = nil
	s.log.Infof("Session %s connecting to %s", s.id, url)
	n := s.noticeLocked()
	s.mu.Unlock()

	if previous != nil {
		previous.Close()
	}
	s.notify(n)

	transport.Open(url, func(ev protocol.Event) {
		s.handleFrom(transport, ev)
	})
}

// Disconnect closes the transport and the sink. Status changes when the
// transport reports its close.
func (s *Session) Disconnect() {
	s.mu.Lock()
	transport := s.teardownLocked()
	s.failed = nil
	n := s.noticeLocked()
	s.mu.Unlock()

	s.notify(n)
	s.closeTransport(transport)
}

// Close tears the session down. It is safe to call more than once.
func (s *Session) Close() {
	s.Disconnect()
}

// Snapshot returns a copy of the current state
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Handle dispatches an event from the current transport
func (s *Session) Handle(ev protocol.Event) {
	s.mu.Lock()
	s.dispatchLocked(ev)
	failed := s.takeFailedLocked()
	n := s.noticeLocked()
	s.mu.Unlock()

	s.notify(n)
	s.closeTransport(failed)
}

// handleFrom drops events from transports that have been replaced
func (s *Session) handleFrom(transport Transport, ev protocol.Event) {
	s.mu.Lock()
	if transport != s.transport {
		s.mu.Unlock()
		s.log.Debugf("Dropping %s event from stale transport", ev.Kind)
		return
	}
	s.dispatchLocked(ev)
	failed := s.takeFailedLocked()
	n := s.noticeLocked()
	s.mu.Unlock()

	s.notify(n)
	s.closeTransport(failed)
}

func (s *Session) dispatchLocked(ev protocol.Event) {
	switch ev.Kind {
	case protocol.EventOpen:
		s.handleOpen()
	case protocol.EventText:
		s.handleText(ev.Text)
	case protocol.EventBinary:
		s.handleBinary(ev.Data)
	case protocol.EventClose:
		s.handleClose(ev.Code, ev.Reason)
	case protocol.EventError:
		s.handleError(ev.Err)
	}
}

func (s *Session) handleOpen() {
	if s.status != Connecting || s.closing {
		return
	}

	s.status = Connected
	s.log.Infof("Connected to %s", s.url)

	if err := s.send(protocol.OpenToken); err != nil {
		s.handleError(err)
	}
}

// handleText treats every text message as a (re)negotiation
func (s *Session) handleText(text string) {
	if !s.receiving() {
		return
	}

	format, err := protocol.ParseFormat(text)
	if err != nil {
		s.log.Warnf("Rejected handshake %q: %v", text, err)
		s.setError(InvalidFormat, err)
		return
	}

	s.format = &format
	s.decoder = decode.NewPCM(format)
	s.log.Infof("Negotiated format: %s", format)

	if !format.Supported() && !s.warned[format] {
		s.warned[format] = true
		s.log.Warnf("Unsupported PCM encoding %q at %d bits, audio will be silent", format.Encoding, format.BitDepth)
	}

	s.openSink(format)

	if err := s.send(protocol.AcceptToken); err != nil {
		s.handleError(err)
	}
}

func (s *Session) openSink(format audio.Format) {
	s.sinkReady = false
	if s.config.Output == nil {
		return
	}

	if err := s.config.Output.Open(format); err != nil {
		s.log.Warnf("Failed to open audio output: %v", err)
		s.setError(PlaybackFailure, err)
		return
	}
	s.sinkReady = true
}

func (s *Session) handleBinary(data []byte) {
	if !s.receiving() {
		return
	}
	s.stats.Received++

	frame, err := protocol.DecodeFrame(data)
	if err != nil {
		s.stats.Failed++
		s.log.Debugf("Dropping frame: %v", err)
		s.setError(DecodeFailure, err)
		return
	}

	s.tempo = frame.Tempo

	if len(frame.Audio) == 0 || s.format == nil || !s.sinkReady {
		s.stats.Skipped++
		return
	}

	buf, err := s.decoder.Decode(frame.Audio)
	if err != nil {
		s.stats.Failed++
		s.setError(DecodeFailure, err)
		return
	}
	if buf.Frames() == 0 {
		s.stats.Skipped++
		return
	}

	if err := s.config.Output.Play(buf); err != nil {
		s.stats.Failed++
		s.setError(PlaybackFailure, err)
		return
	}
	s.stats.Played++
}

func (s *Session) handleClose(code int, reason string) {
	if s.status != Disconnected {
		s.log.Infof("Disconnected (code %d %s)", code, reason)
	}
	s.status = Disconnected
}

func (s *Session) handleError(err error) {
	if err == nil {
		err = errors.New("transport error")
	}
	s.log.Warnf("Transport failure: %v", err)
	s.setError(TransportFailure, err)
	s.status = Disconnected
	if !s.closing {
		s.failed = s.transport
	}
}

// receiving reports whether messages should still be processed
func (s *Session) receiving() bool {
	return s.status == Connected && !s.closing
}

func (s *Session) setError(kind ErrorKind, err error) {
	s.err = &Error{Kind: kind, Err: err}
}

func (s *Session) send(text string) error {
	if s.transport == nil {
		return errors.New("no transport")
	}
	if err := s.transport.SendText(text); err != nil {
		return fmt.Errorf("failed to send %q: %w", text, err)
	}
	return nil
}

// teardownLocked stops decoding, closes the sink, and returns the transport
// to close outside the lock
func (s *Session) teardownLocked() Transport {
	if s.closing {
		return nil
	}
	s.closing = true

	s.sinkReady = false
	if s.config.Output != nil {
		if err := s.config.Output.Close(); err != nil {
			s.log.Debugf("Closing audio output: %v", err)
		}
	}
	return s.transport
}

// takeFailedLocked returns a transport to close after a failure, once
func (s *Session) takeFailedLocked() Transport {
	failed := s.failed
	s.failed = nil
	return failed
}

func (s *Session) closeTransport(transport Transport) {
	if transport == nil {
		return
	}
	if err := transport.Close(); err != nil {
		s.log.Debugf("Closing transport: %v", err)
	}
}

// noticeLocked snapshots the state for observers in the order it changed
func (s *Session) noticeLocked() notice {
	s.seq++
	return notice{snap: s.snapshotLocked(), seq: s.seq}
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		ID:     s.id,
		URL:    s.url,
		Status: s.status,
		Tempo:  s.tempo,
		Stats:  s.stats,
	}
	if s.format != nil {
		format := *s.format
		snap.Format = &format
	}
	if s.err != nil {
		e := *s.err
		snap.Err = &e
	}
	return snap
}

// notify delivers n unless a newer state was already delivered
func (s *Session) notify(n notice) {
	if s.config.OnChange == nil {
		return
	}

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	if n.seq <= s.lastNotified {
		return
	}
	s.lastNotified = n.seq
	s.config.OnChange(n.snap)
}
