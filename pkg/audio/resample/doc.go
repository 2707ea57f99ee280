// ABOUTME: Audio resampling package using linear interpolation
// ABOUTME: Converts decoded buffers between sample rates and channel layouts
// Package resample provides sample rate and channel count conversion for
// decoded audio buffers.
//
// Uses linear interpolation for converting between sample rates and keeps the
// last frame of each chunk so consecutive buffers join without a seam.
//
// Example:
//
//	r := resample.New(44100, 48000, 2)
//	out := r.Resample(buf)
//	stereo := resample.Remap(monoBuf, 2)
package resample
