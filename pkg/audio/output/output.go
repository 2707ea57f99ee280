// ABOUTME: Audio output interface definition
// ABOUTME: Common interface for playback sinks tied to a negotiated format
package output

import (
	"errors"
	"fmt"
	"time"

	"github.com/harperreed/tempostream/pkg/audio"
)

var (
	// ErrNotOpen is returned by Play before Open or after Close
	ErrNotOpen = errors.New("output not open")
)

// Output represents an audio output context
type Output interface {
	// Open creates or replaces the output context for format
	Open(format audio.Format) error

	// Play schedules buf for immediate playback and returns without waiting
	Play(buf audio.Buffer) error

	// Close stops accepting buffers and releases the device where the backend allows
	Close() error
}

// Latency is a buffering hint for the output context
type Latency string

const (
	LatencyInteractive Latency = "interactive"
	LatencyBalanced    Latency = "balanced"
	LatencyPlayback    Latency = "playback"
)

// ParseLatency validates a latency hint; empty selects LatencyPlayback
func ParseLatency(s string) (Latency, error) {
	switch Latency(s) {
	case "":
		return LatencyPlayback, nil
	case LatencyInteractive, LatencyBalanced, LatencyPlayback:
		return Latency(s), nil
	}
	return "", fmt.Errorf("unknown latency hint %q (expected interactive, balanced or playback)", s)
}

// BufferSize returns the device buffer duration for the hint
func (l Latency) BufferSize() time.Duration {
	switch l {
	case LatencyInteractive:
		return 10 * time.Millisecond
	case LatencyBalanced:
		return 40 * time.Millisecond
	default:
		return 100 * time.Millisecond
	}
}

// validateFormat rejects formats no device can be opened with
func validateFormat(format audio.Format) error {
	if format.SampleRate <= 0 || format.SampleRate > audio.MaxSampleRate {
		return fmt.Errorf("invalid sample rate: %d", format.SampleRate)
	}
	if format.Channels <= 0 || format.Channels > audio.MaxChannels {
		return fmt.Errorf("invalid channel count: %d", format.Channels)
	}
	return nil
}

// checkShape verifies buf matches the channel count of the open context
func checkShape(buf audio.Buffer, channels int) error {
	if buf.NumChannels() != channels {
		return fmt.Errorf("buffer has %d channels, output has %d", buf.NumChannels(), channels)
	}
	return nil
}
