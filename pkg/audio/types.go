// ABOUTME: Audio type definitions
// ABOUTME: Defines the negotiated stream format and decoded float buffers
package audio

import (
	"fmt"
	"math"
)

// Sample encoding tags carried in the handshake
const (
	EncodingS16LE = "s16le" // signed 16-bit little-endian integer
	EncodingF32LE = "f32le" // IEEE-754 32-bit little-endian float
)

// Int16Scale normalizes signed 16-bit samples into [-1.0, 1.0)
const Int16Scale = 32768.0

// Upper bounds for a frame geometry that can be decoded.
// Handshake values beyond these describe no playable frame.
const (
	MaxChannels   = 256
	MaxBitDepth   = 64
	MaxSampleRate = 768000
)

// Format describes a negotiated PCM stream format
type Format struct {
	Channels   int
	SampleRate int
	BitDepth   int
	Encoding   string
}

// BytesPerSample returns the width of a single sample in bytes
func (f Format) BytesPerSample() int {
	return f.BitDepth / 8
}

// FrameStride returns the size of one interleaved frame (all channels) in
// bytes, or 0 when the channel count or bit depth is out of range
func (f Format) FrameStride() int {
	if f.Channels <= 0 || f.Channels > MaxChannels || f.BitDepth <= 0 || f.BitDepth > MaxBitDepth {
		return 0
	}
	return f.Channels * f.BytesPerSample()
}

// Frames returns how many whole frames fit in n bytes; trailing partial frames
// are not counted.
func (f Format) Frames(n int) int {
	stride := f.FrameStride()
	if stride <= 0 || n <= 0 {
		return 0
	}
	return n / stride
}

// IsFloat reports whether samples are 32-bit IEEE floats
func (f Format) IsFloat() bool {
	return f.BitDepth == 32 && f.Encoding == EncodingF32LE
}

// Supported reports whether samples in this format decode to audible output.
// Unsupported formats decode to silence.
func (f Format) Supported() bool {
	return f.BitDepth == 16 || f.IsFloat()
}

func (f Format) String() string {
	return fmt.Sprintf("%s %dHz %dch %d-bit", f.Encoding, f.SampleRate, f.Channels, f.BitDepth)
}

// Buffer holds decoded audio as one slice of normalized samples per channel
type Buffer struct {
	Channels [][]float32
}

// NewBuffer allocates a zeroed buffer of shape [channels][frames]
func NewBuffer(channels, frames int) Buffer {
	if channels < 0 {
		channels = 0
	}
	if frames < 0 {
		frames = 0
	}
	chans := make([][]float32, channels)
	for c := range chans {
		chans[c] = make([]float32, frames)
	}
	return Buffer{Channels: chans}
}

// NumChannels returns the number of channels in the buffer
func (b Buffer) NumChannels() int {
	return len(b.Channels)
}

// Frames returns the number of frames (samples per channel)
func (b Buffer) Frames() int {
	if len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Interleave flattens the buffer into frame-major order (L R L R ...)
func (b Buffer) Interleave() []float32 {
	channels := b.NumChannels()
	frames := b.Frames()
	out := make([]float32, channels*frames)
	for c, samples := range b.Channels {
		for i := 0; i < frames && i < len(samples); i++ {
			out[i*channels+c] = samples[i]
		}
	}
	return out
}

// SampleFromInt16 converts a signed 16-bit sample to a normalized float
func SampleFromInt16(sample int16) float32 {
	return float32(sample) / Int16Scale
}

// SampleToInt16 converts a normalized float to a signed 16-bit sample,
// clamping values outside [-1.0, 1.0]
func SampleToInt16(sample float32) int16 {
	scaled := math.Round(float64(sample) * Int16Scale)
	if scaled > math.MaxInt16 {
		return math.MaxInt16
	}
	if scaled < math.MinInt16 {
		return math.MinInt16
	}
	return int16(scaled)
}
