// ABOUTME: Text handshake for format negotiation
// ABOUTME: Parses and formats the four-field PCM format descriptor
package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/harperreed/tempostream/pkg/audio"
)

// Fixed text tokens sent by the client
const (
	OpenToken   = "open"
	AcceptToken = "accept"
)

// handshakeFields is the number of whitespace-separated handshake fields
const handshakeFields = 4

// ErrInvalidFormat is wrapped by every handshake parse failure
var ErrInvalidFormat = errors.New("invalid format")

// ParseFormat parses "<channels> <sampleRate> <bitsPerSample> <pcmFormat>".
// Numeric fields must be base-10 integers; values are not range checked.
func ParseFormat(text string) (audio.Format, error) {
	fields := strings.Fields(text)
	if len(fields) != handshakeFields {
		return audio.Format{}, fmt.Errorf("%w: expected %d fields, got %d", ErrInvalidFormat, handshakeFields, len(fields))
	}

	channels, err := strconv.Atoi(fields[0])
	if err != nil {
		return audio.Format{}, fmt.Errorf("%w: channels %q: %v", ErrInvalidFormat, fields[0], err)
	}

	sampleRate, err := strconv.Atoi(fields[1])
	if err != nil {
		return audio.Format{}, fmt.Errorf("%w: sample rate %q: %v", ErrInvalidFormat, fields[1], err)
	}

	bitDepth, err := strconv.Atoi(fields[2])
	if err != nil {
		return audio.Format{}, fmt.Errorf("%w: bits per sample %q: %v", ErrInvalidFormat, fields[2], err)
	}

	return audio.Format{
		Channels:   channels,
		SampleRate: sampleRate,
		BitDepth:   bitDepth,
		Encoding:   fields[3],
	}, nil
}

// FormatHandshake renders format as the server's handshake text
func FormatHandshake(format audio.Format) string {
	return fmt.Sprintf("%d %d %d %s", format.Channels, format.SampleRate, format.BitDepth, format.Encoding)
}
