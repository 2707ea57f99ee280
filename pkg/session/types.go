// ABOUTME: Session state types
// ABOUTME: Defines status, error kinds, statistics, and observer snapshots
package session

import (
	"fmt"

	"github.com/harperreed/tempostream/pkg/audio"
)

// Status is the connection status
type Status int

const (
	Idle Status = iota
	Connecting
	Connected
	Disconnected
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// ErrorKind classifies the current error
type ErrorKind int

const (
	DecodeFailure ErrorKind = iota
	PlaybackFailure
	TransportFailure
	InvalidFormat
)

func (k ErrorKind) String() string {
	switch k {
	case DecodeFailure:
		return "decode-failure"
	case PlaybackFailure:
		return "playback-failure"
	case TransportFailure:
		return "transport-failure"
	case InvalidFormat:
		return "invalid-format"
	}
	return fmt.Sprintf("error(%d)", int(k))
}

// Error is the session's current error
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Stats counts binary frames by outcome
type Stats struct {
	Received int64 // binary messages seen
	Played   int64 // buffers handed to the sink
	Skipped  int64 // decoded frames with nothing to play
	Failed   int64 // decode or playback failures
}

// Snapshot is a copy of the observable session state
type Snapshot struct {
	ID     string
	URL    string
	Status Status
	Format *audio.Format // nil until a handshake succeeds
	Tempo  float64       // 0 until the first frame
	Err    *Error
	Stats  Stats
}
