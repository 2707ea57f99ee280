// ABOUTME: Reference server for the tempostream protocol
// ABOUTME: Negotiates format over WebSocket and streams metronome frames to each client
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/harperreed/tempostream/internal/discovery"
	"github.com/harperreed/tempostream/pkg/audio"
	"github.com/harperreed/tempostream/pkg/audio/encode"
	"github.com/harperreed/tempostream/pkg/protocol"
)

const (
	DefaultPort          = 8927
	DefaultTempo         = 120.0
	DefaultFrequency     = 440.0 // A4 note
	DefaultChunkDuration = 20 * time.Millisecond

	writeDeadline = 10 * time.Second
)

// Config holds server configuration
type Config struct {
	Port       int
	Name       string
	EnableMDNS bool

	Format        audio.Format
	Tempo         float64
	Frequency     float64
	ChunkDuration time.Duration

	// DelayThreshold frames are sent unpaced; the stream then holds until real
	// time catches up and paces one chunk per ChunkDuration.
	DelayThreshold int

	HandshakeTimeout time.Duration
	Logger           *zap.Logger
}

// DefaultConfig returns a stereo 48kHz s16le configuration
func DefaultConfig() Config {
	return Config{
		Port:       DefaultPort,
		Name:       "tempostream",
		EnableMDNS: true,
		Format: audio.Format{
			Channels:   2,
			SampleRate: 48000,
			BitDepth:   16,
			Encoding:   audio.EncodingS16LE,
		},
		Tempo:            DefaultTempo,
		Frequency:        DefaultFrequency,
		ChunkDuration:    DefaultChunkDuration,
		HandshakeTimeout: 5 * time.Second,
	}
}

// Server represents the tempostream server
type Server struct {
	config   Config
	serverID string
	log      *zap.SugaredLogger

	// WebSocket upgrader
	upgrader websocket.Upgrader
	mux      *http.ServeMux

	// Client management
	clients   map[string]*client
	clientsMu sync.RWMutex

	// Server clock (monotonic microseconds)
	clockStart time.Time

	mdnsManager *discovery.Manager

	// Control
	ctx        context.Context
	cancel     context.CancelFunc
	stopOnce   sync.Once
	shutdownMu sync.RWMutex
	isShutdown bool
	wg         sync.WaitGroup
}

// client represents a connected client
type client struct {
	id     string
	remote string
	sent   int64
}

// ClientInfo describes a connected client
type ClientInfo struct {
	ID         string
	RemoteAddr string
	FramesSent int64
}

// New creates a new server instance
func New(config Config) (*Server, error) {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.ChunkDuration <= 0 {
		config.ChunkDuration = DefaultChunkDuration
	}
	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = 5 * time.Second
	}
	if config.Format.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", config.Format.SampleRate)
	}
	if _, err := encode.NewPCM(config.Format); err != nil {
		return nil, fmt.Errorf("unsupported stream format: %w", err)
	}
	if chunkFrames(config.Format.SampleRate, config.ChunkDuration) == 0 {
		return nil, fmt.Errorf("chunk duration %s is shorter than one frame", config.ChunkDuration)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config:   config,
		serverID: uuid.New().String(),
		log:      config.Logger.Sugar(),
		mux:      http.NewServeMux(),
		upgrader: websocket.Upgrader{
			// Local network deployments: accept any origin
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients:    make(map[string]*client),
		clockStart: time.Now(),
		ctx:        ctx,
		cancel:     cancel,
	}
	s.mux.HandleFunc(protocol.DefaultPath, s.handleWebSocket)
	return s, nil
}

// Handler returns the HTTP handler serving the stream endpoint
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start serves until Stop is called or the listener fails
func (s *Server) Start() error {
	s.log.Infof("Server starting: %s (ID: %s)", s.config.Name, s.serverID)
	s.log.Infof("Stream format: %s, tempo %.1f BPM", s.config.Format, s.config.Tempo)

	if s.config.EnableMDNS {
		s.mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        s.config.Port,
			Path:        protocol.DefaultPath,
			Logger:      s.config.Logger,
		})
		if err := s.mdnsManager.Advertise(); err != nil {
			s.log.Warnf("Failed to start mDNS advertisement: %v", err)
		}
	}

	addr := fmt.Sprintf(":%d", s.config.Port)
	s.log.Infof("WebSocket server listening on %s%s", addr, protocol.DefaultPath)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}

	errChan := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	var serverErr error
	select {
	case <-s.ctx.Done():
		s.log.Infof("Server shutting down...")
	case err := <-errChan:
		s.log.Errorf("HTTP server error: %v", err)
		serverErr = err
	}

	s.shutdownMu.Lock()
	s.isShutdown = true
	s.shutdownMu.Unlock()

	s.Stop()
	if s.mdnsManager != nil {
		s.mdnsManager.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		s.log.Warnf("HTTP server shutdown error: %v", err)
	}

	s.wg.Wait()
	s.log.Infof("Server stopped cleanly")

	if serverErr != nil {
		return fmt.Errorf("HTTP server failed: %w", serverErr)
	}
	return nil
}

// Stop ends every stream and makes Start return
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		s.cancel()
	})
}

// Clients returns a snapshot of connected clients
func (s *Server) Clients() []ClientInfo {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	infos := make([]ClientInfo, 0, len(s.clients))
	for _, c := range s.clients {
		infos = append(infos, ClientInfo{ID: c.id, RemoteAddr: c.remote, FramesSent: c.sent})
	}
	return infos
}

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.shutdownMu.RLock()
	shutdown := s.isShutdown
	s.shutdownMu.RUnlock()
	if shutdown {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnf("WebSocket upgrade error: %v", err)
		return
	}

	s.wg.Add(1)
	defer s.wg.Done()

	c := &client{id: uuid.New().String(), remote: r.RemoteAddr}
	s.log.Infof("New WebSocket connection from %s (ID: %s)", c.remote, c.id)
	s.handleConnection(conn, c)
}

// handleConnection runs the handshake and then streams until either side stops
func (s *Server) handleConnection(conn *websocket.Conn, c *client) {
	defer conn.Close()

	s.clientsMu.Lock()
	s.clients[c.id] = c
	s.clientsMu.Unlock()

	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, c.id)
		s.clientsMu.Unlock()
		s.log.Infof("Client disconnected: %s", c.id)
	}()

	conn.SetReadDeadline(time.Now().Add(s.config.HandshakeTimeout))

	if err := expectToken(conn, protocol.OpenToken); err != nil {
		s.rejectClient(conn, c, err)
		return
	}

	handshake := protocol.FormatHandshake(s.config.Format)
	if err := s.writeMessage(conn, websocket.TextMessage, []byte(handshake)); err != nil {
		s.log.Warnf("Error sending handshake to %s: %v", c.id, err)
		return
	}

	if err := expectToken(conn, protocol.AcceptToken); err != nil {
		s.rejectClient(conn, c, err)
		return
	}
	conn.SetReadDeadline(time.Time{})

	s.log.Infof("Client %s accepted %q", c.id, handshake)

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	// Reader: the client sends nothing more, but reading surfaces its close
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					s.log.Warnf("WebSocket error from %s: %v", c.id, err)
				}
				return
			}
		}
	}()

	err := s.stream(ctx, conn, c)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.log.Warnf("Stream to %s ended: %v", c.id, err)
		return
	}

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "stream ended")
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}

// stream writes frames until ctx is cancelled or a write fails
func (s *Server) stream(ctx context.Context, conn *websocket.Conn, c *client) error {
	format := s.config.Format

	encoder, err := encode.NewPCM(format)
	if err != nil {
		return err
	}

	source := NewToneSource(format.SampleRate, format.Channels, s.config.Frequency, s.config.Tempo)
	frames := chunkFrames(format.SampleRate, s.config.ChunkDuration)
	pace := newPacer(s.config.DelayThreshold, s.config.ChunkDuration)
	flag := pace.flag

	for {
		if err := pace.wait(ctx); err != nil {
			return err
		}

		pcm, err := encoder.Encode(source.Read(frames))
		if err != nil {
			return fmt.Errorf("failed to encode audio: %w", err)
		}

		data, err := protocol.EncodeFrame(&protocol.Frame{
			Tempo:     source.Tempo(),
			Audio:     pcm,
			Timestamp: s.getClockMicros(),
		})
		if err != nil {
			return err
		}

		if err := s.writeMessage(conn, websocket.BinaryMessage, data); err != nil {
			return fmt.Errorf("error writing frame: %w", err)
		}

		s.clientsMu.Lock()
		c.sent++
		s.clientsMu.Unlock()

		pace.advance()
		if pace.flag != flag {
			flag = pace.flag
			s.log.Debugf("Client %s pacing %s after %d frames", c.id, flag, pace.sent)
		}
	}
}

func (s *Server) writeMessage(conn *websocket.Conn, messageType int, data []byte) error {
	conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	return conn.WriteMessage(messageType, data)
}

// rejectClient closes a connection that broke the handshake
func (s *Server) rejectClient(conn *websocket.Conn, c *client, err error) {
	s.log.Warnf("Handshake failed for %s: %v", c.id, err)

	reason := err.Error()
	if len(reason) > 120 {
		reason = reason[:120]
	}
	msg := websocket.FormatCloseMessage(websocket.CloseProtocolError, reason)
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}

// expectToken reads one text message and checks it
func expectToken(conn *websocket.Conn, token string) error {
	messageType, data, err := conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("waiting for %q: %w", token, err)
	}
	if messageType != websocket.TextMessage || string(data) != token {
		return fmt.Errorf("expected %q, got %q", token, data)
	}
	return nil
}

// getClockMicros returns the server clock in microseconds
func (s *Server) getClockMicros() int64 {
	return time.Since(s.clockStart).Microseconds()
}

// chunkFrames is the number of frames in one chunk duration
func chunkFrames(sampleRate int, d time.Duration) int {
	return int(int64(sampleRate) * int64(d) / int64(time.Second))
}
