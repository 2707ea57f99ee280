// ABOUTME: PCM audio decoder
// ABOUTME: Deinterleaves 16-bit integer and 32-bit float PCM into normalized floats
package decode

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/harperreed/tempostream/pkg/audio"
)

// PCM decodes interleaved raw bytes into one float slice per channel.
// The frame count is len(data) / stride; a trailing partial frame is ignored.
// Samples of an unsupported bit depth/encoding decode as 0.
func PCM(data []byte, format audio.Format) audio.Buffer {
	frames := format.Frames(len(data))
	if frames == 0 {
		return audio.Buffer{}
	}

	buf := audio.NewBuffer(format.Channels, frames)
	stride := format.FrameStride()
	width := format.BytesPerSample()
	isFloat := format.IsFloat()

	for c := 0; c < format.Channels; c++ {
		samples := buf.Channels[c]
		for i := 0; i < frames; i++ {
			off := i*stride + c*width
			switch {
			case format.BitDepth == 16:
				samples[i] = audio.SampleFromInt16(int16(binary.LittleEndian.Uint16(data[off:])))
			case isFloat:
				samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))
			}
		}
	}

	return buf
}

// PCMDecoder decodes payloads for one negotiated format
type PCMDecoder struct {
	format audio.Format
}

// NewPCM creates a new PCM decoder
func NewPCM(format audio.Format) *PCMDecoder {
	return &PCMDecoder{format: format}
}

// Decode converts PCM bytes to a decoded buffer. It fails only when the
// format cannot describe a frame at all, including channel counts and bit
// depths beyond audio.MaxChannels and audio.MaxBitDepth.
func (d *PCMDecoder) Decode(data []byte) (audio.Buffer, error) {
	if d.format.FrameStride() <= 0 {
		return audio.Buffer{}, fmt.Errorf("invalid frame geometry: %d channels, %d-bit", d.format.Channels, d.format.BitDepth)
	}
	return PCM(data, d.format), nil
}

// Format returns the negotiated format
func (d *PCMDecoder) Format() audio.Format {
	return d.format
}
