// ABOUTME: Decoder interface definition
// ABOUTME: Common interface for raw audio decoders
package decode

import "github.com/harperreed/tempostream/pkg/audio"

// Decoder decodes raw audio payloads into per-channel float samples
type Decoder interface {
	// Decode converts a raw payload to a decoded buffer
	Decode(data []byte) (audio.Buffer, error)

	// Format returns the format the decoder was created for
	Format() audio.Format
}
