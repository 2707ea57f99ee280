// ABOUTME: Streaming session package
// ABOUTME: Drives one connection from handshake to playback and exposes its state
// Package session implements the client side of a tempostream connection.
//
// A Session owns the current transport, the negotiated audio format, the last
// tempo and the single current error. Transport events are dispatched through
// Handle one at a time; observers receive a Snapshot after each change.
//
// Example:
//
//	s := session.New(session.Config{
//		URL:    "ws://localhost:8927/stream",
//		Output: output.NewOto(output.LatencyPlayback, logger),
//		OnChange: func(snap session.Snapshot) {
//			fmt.Println(snap.Status, snap.Tempo)
//		},
//	})
//	s.Connect("")
//	defer s.Close()
package session
