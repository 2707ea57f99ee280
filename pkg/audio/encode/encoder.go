// ABOUTME: Encoder interface definition
// ABOUTME: Common interface for raw audio encoders
package encode

import "github.com/harperreed/tempostream/pkg/audio"

// Encoder encodes decoded buffers into wire payloads
type Encoder interface {
	// Encode converts a buffer to interleaved raw bytes
	Encode(buf audio.Buffer) ([]byte, error)
}
