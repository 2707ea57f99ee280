// ABOUTME: PCM audio encoder
// ABOUTME: Encodes normalized float buffers to 16-bit integer or 32-bit float PCM
package encode

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/harperreed/tempostream/pkg/audio"
)

// PCMEncoder encodes PCM audio
type PCMEncoder struct {
	format audio.Format
}

// NewPCM creates a new PCM encoder
func NewPCM(format audio.Format) (Encoder, error) {
	if format.Channels <= 0 || format.Channels > audio.MaxChannels {
		return nil, fmt.Errorf("invalid channel count: %d", format.Channels)
	}

	if !format.Supported() {
		return nil, fmt.Errorf("unsupported format: %d-bit %s (supported: 16-bit, 32-bit %s)",
			format.BitDepth, format.Encoding, audio.EncodingF32LE)
	}

	return &PCMEncoder{format: format}, nil
}

// Encode converts a buffer to interleaved PCM bytes
func (e *PCMEncoder) Encode(buf audio.Buffer) ([]byte, error) {
	if buf.NumChannels() != e.format.Channels {
		return nil, fmt.Errorf("channel mismatch: buffer has %d, format has %d",
			buf.NumChannels(), e.format.Channels)
	}

	samples := buf.Interleave()
	width := e.format.BytesPerSample()
	output := make([]byte, len(samples)*width)

	for i, sample := range samples {
		if e.format.IsFloat() {
			binary.LittleEndian.PutUint32(output[i*width:], math.Float32bits(sample))
		} else {
			binary.LittleEndian.PutUint16(output[i*width:], uint16(audio.SampleToInt16(sample)))
		}
	}

	return output, nil
}
