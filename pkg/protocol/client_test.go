// ABOUTME: Tests for the WebSocket transport
// ABOUTME: Runs the client against an in-process httptest server
package protocol

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func newTestServer(t *testing.T, handler func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + DefaultPath
}

// collect gathers events until the client reports close
func collect(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var got []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev := <-events:
			got = append(got, ev)
			if ev.Kind == EventClose {
				return got
			}
		case <-timeout:
			t.Fatalf("timed out waiting for close, got %d events", len(got))
			return got
		}
	}
}

func TestClientExchange(t *testing.T) {
	frame, err := EncodeFrame(&Frame{Tempo: 120, Audio: []byte{0, 1}})
	if err != nil {
		t.Fatalf("failed to encode frame: %v", err)
	}

	srv := newTestServer(t, func(conn *websocket.Conn) {
		_, data, err := conn.ReadMessage()
		if err != nil || string(data) != OpenToken {
			t.Errorf("expected %q, got %q (%v)", OpenToken, data, err)
			return
		}
		conn.WriteMessage(websocket.TextMessage, []byte("2 48000 16 s16le"))

		_, data, err = conn.ReadMessage()
		if err != nil || string(data) != AcceptToken {
			t.Errorf("expected %q, got %q (%v)", AcceptToken, data, err)
			return
		}
		conn.WriteMessage(websocket.BinaryMessage, frame)
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
		conn.ReadMessage()
	})

	client := NewClient(ClientConfig{})
	events := make(chan Event, 16)
	client.Open(wsURL(srv), func(ev Event) {
		switch ev.Kind {
		case EventOpen:
			client.SendText(OpenToken)
		case EventText:
			client.SendText(AcceptToken)
		}
		events <- ev
	})

	got := collect(t, events)
	kinds := make([]EventKind, len(got))
	for i, ev := range got {
		kinds[i] = ev.Kind
	}

	want := []EventKind{EventOpen, EventText, EventBinary, EventClose}
	if len(kinds) != len(want) {
		t.Fatalf("expected events %v, got %v", want, kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("event %d: expected %v, got %v", i, want[i], kinds[i])
		}
	}

	if got[1].Text != "2 48000 16 s16le" {
		t.Errorf("expected handshake text, got %q", got[1].Text)
	}
	if string(got[2].Data) != string(frame) {
		t.Error("binary payload mismatch")
	}
	if got[3].Code != websocket.CloseNormalClosure {
		t.Errorf("expected close code %d, got %d", websocket.CloseNormalClosure, got[3].Code)
	}

	select {
	case <-client.Done():
	case <-time.After(time.Second):
		t.Error("expected Done to be closed after final event")
	}
}

func TestClientDialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := wsURL(srv)
	srv.Close()

	client := NewClient(ClientConfig{HandshakeTimeout: time.Second})
	events := make(chan Event, 4)
	client.Open(url, func(ev Event) { events <- ev })

	got := collect(t, events)
	if len(got) != 2 {
		t.Fatalf("expected error and close, got %d events", len(got))
	}
	if got[0].Kind != EventError || got[0].Err == nil {
		t.Errorf("expected error event, got %v", got[0].Kind)
	}
	if got[1].Kind != EventClose {
		t.Errorf("expected close event, got %v", got[1].Kind)
	}
}

func TestClientLocalClose(t *testing.T) {
	srv := newTestServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	client := NewClient(ClientConfig{})
	events := make(chan Event, 4)
	opened := make(chan struct{})
	client.Open(wsURL(srv), func(ev Event) {
		if ev.Kind == EventOpen {
			close(opened)
		}
		events <- ev
	})

	select {
	case <-opened:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for open")
	}

	if err := client.Close(); err != nil {
		t.Errorf("unexpected close error: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("expected second close to be a no-op, got %v", err)
	}

	got := collect(t, events)
	for _, ev := range got {
		if ev.Kind == EventError {
			t.Errorf("expected no error event on local close, got %v", ev.Err)
		}
	}

	if err := client.SendText("late"); err != ErrNotConnected {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}

func TestClientCloseBeforeOpen(t *testing.T) {
	client := NewClient(ClientConfig{})
	client.Close()

	events := make(chan Event, 4)
	client.Open("ws://127.0.0.1:1/stream", func(ev Event) { events <- ev })

	got := collect(t, events)
	if len(got) != 1 || got[0].Kind != EventClose {
		t.Errorf("expected a single close event, got %d events", len(got))
	}
}

func TestSendBeforeOpen(t *testing.T) {
	client := NewClient(ClientConfig{})
	if err := client.SendText(OpenToken); err != ErrNotConnected {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
	if err := client.SendBinary([]byte{1}); err != ErrNotConnected {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"ws://localhost:8927/stream", "ws://localhost:8927/stream", false},
		{"localhost:8927", "ws://localhost:8927/stream", false},
		{"http://host:1/", "ws://host:1/stream", false},
		{"https://host/live", "wss://host/live", false},
		{"", "", true},
		{"ftp://host", "", true},
		{"ws://", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeURL(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
