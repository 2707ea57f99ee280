// ABOUTME: Metronome tone generator for the reference server
// ABOUTME: Produces a sine tone with an accented click on every beat
package server

import (
	"math"

	"github.com/harperreed/tempostream/pkg/audio"
)

const (
	toneAmplitude  = 0.3
	clickAmplitude = 0.6
	clickDuration  = 30 // milliseconds
)

// Source produces audio and the tempo it was generated at
type Source interface {
	Read(frames int) audio.Buffer
	Tempo() float64
}

// ToneSource generates a continuous tone with a click on each beat
type ToneSource struct {
	sampleRate int
	channels   int
	frequency  float64
	tempo      float64
	index      uint64
}

// NewToneSource creates a tone generator.
// A tempo of zero or less disables the beat clicks.
func NewToneSource(sampleRate, channels int, frequency, tempo float64) *ToneSource {
	return &ToneSource{
		sampleRate: sampleRate,
		channels:   channels,
		frequency:  frequency,
		tempo:      tempo,
	}
}

// Read generates the next frames, identical on every channel
func (s *ToneSource) Read(frames int) audio.Buffer {
	buf := audio.NewBuffer(s.channels, frames)
	if s.sampleRate <= 0 {
		return buf
	}

	beatLen := s.beatLength()
	clickLen := uint64(s.sampleRate * clickDuration / 1000)

	for i := 0; i < frames; i++ {
		n := s.index + uint64(i)
		t := float64(n) / float64(s.sampleRate)

		freq, amp := s.frequency, toneAmplitude
		if beatLen > 0 && n%beatLen < clickLen {
			freq, amp = s.frequency*2, clickAmplitude
		}

		v := float32(amp * math.Sin(2*math.Pi*freq*t))
		for c := range buf.Channels {
			buf.Channels[c][i] = v
		}
	}

	s.index += uint64(frames)
	return buf
}

// Tempo returns the beats per minute
func (s *ToneSource) Tempo() float64 {
	return s.tempo
}

// beatLength is the number of frames per beat, 0 without a tempo
func (s *ToneSource) beatLength() uint64 {
	if s.tempo <= 0 {
		return 0
	}
	return uint64(float64(s.sampleRate) * 60 / s.tempo)
}
