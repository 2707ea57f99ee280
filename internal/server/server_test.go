// ABOUTME: Tests for the reference server
// ABOUTME: Exercises the wire handshake and full client sessions end to end
package server

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/harperreed/tempostream/pkg/audio"
	"github.com/harperreed/tempostream/pkg/audio/output"
	"github.com/harperreed/tempostream/pkg/protocol"
	"github.com/harperreed/tempostream/pkg/session"
)

func testConfig() Config {
	config := DefaultConfig()
	config.EnableMDNS = false
	config.ChunkDuration = 10 * time.Millisecond
	config.Tempo = 96
	return config
}

func startServer(t *testing.T, config Config) (*Server, string) {
	t.Helper()
	srv, err := New(config)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Stop()
		ts.Close()
	})
	return srv, "ws" + strings.TrimPrefix(ts.URL, "http") + protocol.DefaultPath
}

func TestNewRejectsUnsupportedFormat(t *testing.T) {
	tests := []struct {
		name   string
		format audio.Format
	}{
		{"24-bit", audio.Format{Channels: 2, SampleRate: 48000, BitDepth: 24, Encoding: "s24le"}},
		{"zero channels", audio.Format{Channels: 0, SampleRate: 48000, BitDepth: 16, Encoding: "s16le"}},
		{"zero rate", audio.Format{Channels: 2, SampleRate: 0, BitDepth: 16, Encoding: "s16le"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := testConfig()
			config.Format = tt.format
			if _, err := New(config); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestWireHandshake(t *testing.T) {
	config := testConfig()
	_, url := startServer(t, config)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(protocol.OpenToken)); err != nil {
		t.Fatalf("failed to send open: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	messageType, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read handshake: %v", err)
	}
	if messageType != websocket.TextMessage {
		t.Fatalf("expected text handshake, got type %d", messageType)
	}

	format, err := protocol.ParseFormat(string(data))
	if err != nil {
		t.Fatalf("failed to parse handshake %q: %v", data, err)
	}
	if format != config.Format {
		t.Errorf("expected %+v, got %+v", config.Format, format)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(protocol.AcceptToken)); err != nil {
		t.Fatalf("failed to send accept: %v", err)
	}

	var last int64 = -1
	for i := 0; i < 3; i++ {
		messageType, data, err = conn.ReadMessage()
		if err != nil {
			t.Fatalf("failed to read frame %d: %v", i, err)
		}
		if messageType != websocket.BinaryMessage {
			t.Fatalf("expected binary frame, got type %d", messageType)
		}

		frame, err := protocol.DecodeFrame(data)
		if err != nil {
			t.Fatalf("failed to decode frame: %v", err)
		}
		if frame.Tempo != 96 {
			t.Errorf("expected tempo 96, got %v", frame.Tempo)
		}

		wantBytes := chunkFrames(48000, 10*time.Millisecond) * format.FrameStride()
		if len(frame.Audio) != wantBytes {
			t.Errorf("expected %d audio bytes, got %d", wantBytes, len(frame.Audio))
		}
		if frame.Timestamp < last {
			t.Errorf("expected increasing timestamps, got %d after %d", frame.Timestamp, last)
		}
		last = frame.Timestamp
	}
}

func TestWrongTokenRejected(t *testing.T) {
	_, url := startServer(t, testConfig())

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	conn.WriteMessage(websocket.TextMessage, []byte("hello"))

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseProtocolError) {
		t.Errorf("expected protocol error close, got %v", err)
	}
}

func TestClientsTracked(t *testing.T) {
	srv, url := startServer(t, testConfig())

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for len(srv.Clients()) != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("expected 1 client, got %d", len(srv.Clients()))
		}
		time.Sleep(10 * time.Millisecond)
	}

	conn.Close()

	for len(srv.Clients()) != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("expected client removed, got %d", len(srv.Clients()))
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// waitFor polls the session until cond holds
func waitFor(t *testing.T, s *session.Session, what string, cond func(session.Snapshot) bool) session.Snapshot {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		snap := s.Snapshot()
		if cond(snap) {
			return snap
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s, last snapshot %+v", what, snap)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSessionEndToEnd(t *testing.T) {
	formats := []audio.Format{
		{Channels: 2, SampleRate: 48000, BitDepth: 16, Encoding: audio.EncodingS16LE},
		{Channels: 1, SampleRate: 22050, BitDepth: 32, Encoding: audio.EncodingF32LE},
	}

	for _, format := range formats {
		t.Run(format.String(), func(t *testing.T) {
			config := testConfig()
			config.Format = format
			_, url := startServer(t, config)

			sink := output.NewDiscard()
			s := session.New(session.Config{URL: url, Output: sink})
			defer s.Close()

			s.Connect("")

			snap := waitFor(t, s, "played frames", func(snap session.Snapshot) bool {
				return snap.Stats.Played >= 3
			})

			if snap.Status != session.Connected {
				t.Errorf("expected connected, got %s", snap.Status)
			}
			if snap.Format == nil || *snap.Format != format {
				t.Errorf("expected format %+v, got %+v", format, snap.Format)
			}
			if snap.Tempo != 96 {
				t.Errorf("expected tempo 96, got %v", snap.Tempo)
			}
			if snap.Err != nil {
				t.Errorf("expected no error, got %v", snap.Err)
			}

			buffers, frames := sink.Counts()
			if buffers < 3 || frames < 3*int64(chunkFrames(format.SampleRate, config.ChunkDuration)) {
				t.Errorf("expected sink to receive audio, got %d buffers %d frames", buffers, frames)
			}

			s.Disconnect()
			waitFor(t, s, "disconnect", func(snap session.Snapshot) bool {
				return snap.Status == session.Disconnected
			})
		})
	}
}

func TestSessionSeesServerStop(t *testing.T) {
	srv, url := startServer(t, testConfig())

	s := session.New(session.Config{URL: url, Output: output.NewDiscard()})
	defer s.Close()
	s.Connect("")

	waitFor(t, s, "first frame", func(snap session.Snapshot) bool {
		return snap.Stats.Received > 0
	})

	srv.Stop()

	snap := waitFor(t, s, "disconnect", func(snap session.Snapshot) bool {
		return snap.Status == session.Disconnected
	})
	if snap.Err != nil {
		t.Errorf("expected clean close without error, got %v", snap.Err)
	}
}

func TestSessionDialFailure(t *testing.T) {
	ts := httptest.NewServer(nil)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + protocol.DefaultPath
	ts.Close()

	s := session.New(session.Config{URL: url})
	defer s.Close()
	s.Connect("")

	snap := waitFor(t, s, "transport failure", func(snap session.Snapshot) bool {
		return snap.Status == session.Disconnected
	})
	if snap.Err == nil || snap.Err.Kind != session.TransportFailure {
		t.Errorf("expected transport-failure, got %v", snap.Err)
	}
}
