// ABOUTME: WebSocket transport for the tempostream protocol
// ABOUTME: Dials asynchronously and reports connection activity as ordered events
package protocol

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// DefaultPath is the HTTP path the reference server serves the stream on
const DefaultPath = "/stream"

const (
	defaultHandshakeTimeout = 10 * time.Second
	closeWriteTimeout       = time.Second
)

// ErrNotConnected is returned when sending before the connection is open
var ErrNotConnected = errors.New("not connected")

// ClientConfig holds transport configuration
type ClientConfig struct {
	HandshakeTimeout time.Duration
	Header           http.Header
	Logger           *zap.Logger
}

// Client is a single-use WebSocket connection.
// Every event for one Open is delivered from one goroutine, in order,
// and the last event is always EventClose.
type Client struct {
	config ClientConfig
	log    *zap.SugaredLogger

	mu      sync.Mutex
	writeMu sync.Mutex
	conn    *websocket.Conn
	opened  bool
	closing bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewClient creates a new WebSocket client
func NewClient(config ClientConfig) *Client {
	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = defaultHandshakeTimeout
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		config: config,
		log:    config.Logger.Sugar(),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// NormalizeURL accepts a full ws:// or wss:// URL, an http(s) URL, or a bare
// host:port and returns a WebSocket URL. A missing path becomes DefaultPath.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("empty url")
	}
	if !strings.Contains(raw, "://") {
		raw = "ws://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", raw, err)
	}

	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("missing host in %q", raw)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = DefaultPath
	}
	return u.String(), nil
}

// Open dials rawURL in the background and reports events to emit.
// It returns immediately; a Client may be opened once.
func (c *Client) Open(rawURL string, emit func(Event)) {
	c.mu.Lock()
	if c.opened {
		c.mu.Unlock()
		go func() {
			emit(ErrorEvent(errors.New("client already opened")))
			emit(CloseEvent(websocket.CloseAbnormalClosure, "already opened"))
		}()
		return
	}
	c.opened = true
	c.mu.Unlock()

	go c.run(rawURL, emit)
}

// Done is closed after the final event has been emitted
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) run(rawURL string, emit func(Event)) {
	defer close(c.done)

	target, err := NormalizeURL(rawURL)
	if err != nil {
		emit(ErrorEvent(fmt.Errorf("dial failed: %w", err)))
		emit(CloseEvent(websocket.CloseAbnormalClosure, "dial failed"))
		return
	}

	c.log.Infof("Connecting to %s", target)

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: c.config.HandshakeTimeout,
	}
	conn, _, err := dialer.DialContext(c.ctx, target, c.config.Header)
	if err != nil {
		if c.isClosing() {
			emit(CloseEvent(websocket.CloseNormalClosure, "closed before open"))
			return
		}
		emit(ErrorEvent(fmt.Errorf("dial failed: %w", err)))
		emit(CloseEvent(websocket.CloseAbnormalClosure, "dial failed"))
		return
	}

	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		conn.Close()
		emit(CloseEvent(websocket.CloseNormalClosure, "closed before open"))
		return
	}
	c.conn = conn
	c.mu.Unlock()

	emit(OpenEvent())
	c.readMessages(conn, emit)
}

// readMessages reads and routes incoming messages until the connection ends
func (c *Client) readMessages(conn *websocket.Conn, emit func(Event)) {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			c.finish(err, emit)
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			emit(BinaryEvent(data))
		case websocket.TextMessage:
			emit(TextEvent(string(data)))
		}
	}
}

// finish translates a read error into the closing events
func (c *Client) finish(err error, emit func(Event)) {
	if c.isClosing() {
		emit(CloseEvent(websocket.CloseNormalClosure, "client disconnect"))
		return
	}

	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		c.log.Infof("Connection closed by server: %d %s", closeErr.Code, closeErr.Text)
		emit(CloseEvent(closeErr.Code, closeErr.Text))
		return
	}

	c.log.Warnf("Read error: %v", err)
	emit(ErrorEvent(fmt.Errorf("read failed: %w", err)))
	emit(CloseEvent(websocket.CloseAbnormalClosure, "read failed"))
}

func (c *Client) isClosing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closing
}

// SendText sends a text message
func (c *Client) SendText(text string) error {
	return c.write(websocket.TextMessage, []byte(text))
}

// SendBinary sends a binary message
func (c *Client) SendBinary(data []byte) error {
	return c.write(websocket.BinaryMessage, data)
}

func (c *Client) write(messageType int, data []byte) error {
	c.mu.Lock()
	conn := c.conn
	closing := c.closing
	c.mu.Unlock()

	if conn == nil || closing {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteMessage(messageType, data); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	return nil
}

// Close closes the connection. It is safe to call more than once and
// before the dial has finished.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return nil
	}
	c.closing = true
	conn := c.conn
	c.mu.Unlock()

	c.cancel()
	if conn == nil {
		return nil
	}

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteTimeout))
	return conn.Close()
}
