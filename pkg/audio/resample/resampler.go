// ABOUTME: Linear resampler for decoded audio buffers
// ABOUTME: Converts sample rates across consecutive chunks using linear interpolation
package resample

import (
	"math"

	"github.com/harperreed/tempostream/pkg/audio"
)

// Resampler performs linear interpolation to convert between sample rates
type Resampler struct {
	inputRate  int
	outputRate int
	channels   int
	ratio      float64

	// position is measured in input frames from the start of the next chunk;
	// -1 addresses lastSample
	position   float64
	lastSample []float32 // one sample per channel
}

// New creates a new resampler
func New(inputRate, outputRate, channels int) *Resampler {
	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		channels:   channels,
		ratio:      float64(inputRate) / float64(outputRate),
		lastSample: make([]float32, channels),
	}
}

// InputRate returns the rate buffers are expected at
func (r *Resampler) InputRate() int {
	return r.inputRate
}

// OutputRate returns the rate buffers are converted to
func (r *Resampler) OutputRate() int {
	return r.outputRate
}

// Resample converts buf from the input rate to the output rate.
// A trailing fraction of a frame is carried into the next call.
func (r *Resampler) Resample(buf audio.Buffer) audio.Buffer {
	frames := buf.Frames()
	if frames == 0 || buf.NumChannels() != r.channels || r.ratio <= 0 {
		return audio.NewBuffer(r.channels, 0)
	}
	if r.inputRate == r.outputRate {
		return buf
	}

	estimate := int(math.Ceil(float64(frames+1)/r.ratio)) + 1
	out := make([][]float32, r.channels)
	for c := range out {
		out[c] = make([]float32, 0, estimate)
	}

	pos := r.position
	for {
		inputIdx := int(math.Floor(pos))
		// Both neighbours must be available in this chunk
		if inputIdx+1 > frames-1 {
			break
		}
		frac := float32(pos - float64(inputIdx))

		for c := 0; c < r.channels; c++ {
			sample1 := r.sampleAt(buf, c, inputIdx)
			sample2 := buf.Channels[c][inputIdx+1]
			out[c] = append(out[c], sample1*(1-frac)+sample2*frac)
		}
		pos += r.ratio
	}

	// Rebase onto the next chunk, keeping the last frame as index -1
	r.position = pos - float64(frames)
	for c := 0; c < r.channels; c++ {
		r.lastSample[c] = buf.Channels[c][frames-1]
	}

	return audio.Buffer{Channels: out}
}

func (r *Resampler) sampleAt(buf audio.Buffer, channel, idx int) float32 {
	if idx < 0 {
		return r.lastSample[channel]
	}
	return buf.Channels[channel][idx]
}

// Reset resets the resampler state
func (r *Resampler) Reset() {
	r.position = 0.0
	for i := range r.lastSample {
		r.lastSample[i] = 0
	}
}

// OutputFramesNeeded estimates how many frames inputFrames will produce
func (r *Resampler) OutputFramesNeeded(inputFrames int) int {
	if r.ratio <= 0 {
		return 0
	}
	return int(float64(inputFrames) / r.ratio)
}

// Remap converts buf to the given channel count. Mono is copied to every
// output channel; extra input channels are averaged into the output channel
// they wrap onto.
func Remap(buf audio.Buffer, channels int) audio.Buffer {
	in := buf.NumChannels()
	if in == channels || in == 0 || channels <= 0 {
		return buf
	}

	frames := buf.Frames()
	out := audio.NewBuffer(channels, frames)

	if in < channels {
		for c := 0; c < channels; c++ {
			copy(out.Channels[c], buf.Channels[c%in])
		}
		return out
	}

	counts := make([]float32, channels)
	for c := 0; c < in; c++ {
		counts[c%channels]++
	}
	for c := 0; c < in; c++ {
		dst := out.Channels[c%channels]
		scale := 1 / counts[c%channels]
		for i, s := range buf.Channels[c][:frames] {
			dst[i] += s * scale
		}
	}
	return out
}
