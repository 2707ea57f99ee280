// ABOUTME: Tests for the metronome tone generator
// ABOUTME: Checks buffer shape, amplitude bounds, continuity, and beat clicks
package server

import (
	"math"
	"testing"
)

func TestToneSourceShape(t *testing.T) {
	src := NewToneSource(48000, 2, 440, 120)
	buf := src.Read(960)

	if buf.NumChannels() != 2 {
		t.Fatalf("expected 2 channels, got %d", buf.NumChannels())
	}
	if buf.Frames() != 960 {
		t.Fatalf("expected 960 frames, got %d", buf.Frames())
	}
	for i := range buf.Channels[0] {
		if buf.Channels[0][i] != buf.Channels[1][i] {
			t.Fatalf("expected identical channels at frame %d", i)
		}
		if math.Abs(float64(buf.Channels[0][i])) > clickAmplitude+1e-6 {
			t.Fatalf("sample %d out of range: %v", i, buf.Channels[0][i])
		}
	}
}

func TestToneSourceContinuity(t *testing.T) {
	a := NewToneSource(8000, 1, 440, 0)
	b := NewToneSource(8000, 1, 440, 0)

	whole := a.Read(200)
	first := b.Read(100)
	second := b.Read(100)

	for i := 0; i < 100; i++ {
		if whole.Channels[0][i] != first.Channels[0][i] || whole.Channels[0][100+i] != second.Channels[0][i] {
			t.Fatalf("expected chunked reads to match a single read at frame %d", i)
		}
	}
}

func TestToneSourceClicksOnBeat(t *testing.T) {
	// 60 BPM at 1kHz: one beat per 1000 frames, 30 click frames
	src := NewToneSource(1000, 1, 50, 60)
	buf := src.Read(2000)

	peak := func(from, to int) float64 {
		var p float64
		for i := from; i < to; i++ {
			p = math.Max(p, math.Abs(float64(buf.Channels[0][i])))
		}
		return p
	}

	if peak(0, 30) <= toneAmplitude {
		t.Errorf("expected click louder than tone at beat start, got %v", peak(0, 30))
	}
	if peak(100, 900) > toneAmplitude+1e-6 {
		t.Errorf("expected plain tone between beats, got %v", peak(100, 900))
	}
	if src.Tempo() != 60 {
		t.Errorf("expected tempo 60, got %v", src.Tempo())
	}
}

func TestToneSourceZeroRate(t *testing.T) {
	buf := NewToneSource(0, 2, 440, 120).Read(10)
	if buf.Frames() != 10 {
		t.Errorf("expected silent buffer of 10 frames, got %d", buf.Frames())
	}
}
