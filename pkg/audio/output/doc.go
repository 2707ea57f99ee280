// ABOUTME: Audio output package for playing decoded buffers
// ABOUTME: Provides Output interface with oto and discard implementations
// Package output provides playback sinks.
//
// Oto plays through the system audio device. Discard accepts and counts
// buffers without a device, for headless runs.
//
// Example:
//
//	out := output.NewOto(output.LatencyPlayback)
//	err := out.Open(format)
//	err = out.Play(buf)
package output
